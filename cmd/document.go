package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/context-curator/types"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Read, edit or delete a single document",
}

var documentGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		doc, err := a.store.Get(ctx, a.curator.Collection(), args[0])
		if err != nil {
			log.Fatalf("Failed to get document: %v", err)
		}
		printJSON(doc)
	},
}

var documentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a document's content and metadata",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		content, _ := cmd.Flags().GetString("content")
		topic, _ := cmd.Flags().GetString("topic")
		extra, _ := cmd.Flags().GetStringToString("metadata")

		metadata := types.Metadata{}
		for k, v := range extra {
			metadata[k] = v
		}
		if topic != "" {
			metadata[types.MetadataTopic] = topic
		}

		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		doc := types.Document{ID: args[0], Content: content, Metadata: metadata}
		if err := a.store.Update(ctx, a.curator.Collection(), doc); err != nil {
			log.Fatalf("Failed to update document: %v", err)
		}
		fmt.Printf("Updated document %s\n", args[0])
	},
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		if err := a.store.DeleteDocument(ctx, a.curator.Collection(), args[0]); err != nil {
			log.Fatalf("Failed to delete document: %v", err)
		}
		fmt.Printf("Deleted document %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentGetCmd, documentUpdateCmd, documentDeleteCmd)

	documentUpdateCmd.Flags().StringP("content", "c", "", "New content")
	documentUpdateCmd.Flags().StringP("topic", "t", "", "Topic metadata")
	documentUpdateCmd.Flags().StringToStringP("metadata", "m", nil, "Extra metadata as key=value pairs")
	documentUpdateCmd.MarkFlagRequired("content")
}
