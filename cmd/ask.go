package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
)

// askCmd runs the active flow.
var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Answer a question from curated context and enrich the store",
	Long: `Returns the documents already curated about the question's topic, then
searches for adjacent topics the store does not cover yet and stores them for
next time.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		summarize, _ := cmd.Flags().GetBool("summarize")

		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		docs, err := a.curator.AnswerContext(ctx, strings.Join(args, " "))
		if err != nil {
			log.Fatalf("Failed to answer: %v", err)
		}
		if len(docs) == 0 {
			fmt.Println("Nothing curated about this yet; the store has been enriched for next time.")
			return
		}
		if !summarize {
			printJSON(docs)
			return
		}
		sources := make([]string, 0, len(docs))
		for _, doc := range docs {
			sources = append(sources, doc.Content)
		}
		summary, err := a.extractor.Summarize(ctx, sources)
		if err != nil {
			log.Fatalf("Failed to summarize: %v", err)
		}
		fmt.Println(summary)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().BoolP("summarize", "s", false, "Print a synthesis of the recalled documents")
}
