package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ingestCmd runs the passive flow on a piece of context.
var ingestCmd = &cobra.Command{
	Use:   "ingest [context...]",
	Short: "Curate raw context (use - to read stdin)",
	Long: `Extracts the overall topic of the context, expands it with the search
model and stores the original context plus up to three adjacent topics.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input := strings.Join(args, " ")
		if input == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				log.Fatalf("Failed to read stdin: %v", err)
			}
			input = string(data)
		}

		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		ids, err := a.curator.Ingest(ctx, input)
		if err != nil {
			log.Fatalf("Failed to ingest context: %v", err)
		}
		fmt.Printf("Stored %d document(s) in %s\n", len(ids), a.curator.Collection())
		for _, id := range ids {
			fmt.Println(id)
		}
	},
}

// ingestFileCmd curates a text or PDF file chunk by chunk.
var ingestFileCmd = &cobra.Command{
	Use:   "ingest-file",
	Short: "Curate a text or PDF file chunk by chunk",
	Run: func(cmd *cobra.Command, args []string) {
		filePath, _ := cmd.Flags().GetString("file")
		parallel, _ := cmd.Flags().GetInt("parallel")

		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		ids, err := a.files(parallel).IngestFile(ctx, filePath)
		stored := 0
		for i, chunkIDs := range ids {
			if chunkIDs != nil {
				fmt.Printf("Chunk %d: stored %d document(s)\n", i, len(chunkIDs))
				stored += len(chunkIDs)
			}
		}
		if err != nil {
			log.Fatalf("Failed to ingest %s after storing %d document(s): %v", filePath, stored, err)
		}
		fmt.Printf("Stored %d document(s) from %s\n", stored, filePath)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(ingestFileCmd)

	ingestFileCmd.Flags().StringP("file", "f", "", "Path to the file to ingest")
	ingestFileCmd.Flags().IntP("parallel", "p", 1, "Number of chunks curated at once")
	ingestFileCmd.MarkFlagRequired("file")
}
