package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Inspect or delete collections",
}

var collectionStatsCmd = &cobra.Command{
	Use:   "stats [name]",
	Short: "Show the number of documents in a collection",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		stats, err := a.store.Stats(ctx, collectionArg(a, args))
		if err != nil {
			log.Fatalf("Failed to read stats: %v", err)
		}
		printJSON(stats)
	},
}

var collectionListCmd = &cobra.Command{
	Use:   "list [name]",
	Short: "List the documents of a collection",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		docs, err := a.store.List(ctx, collectionArg(a, args), limit)
		if err != nil {
			log.Fatalf("Failed to list documents: %v", err)
		}
		printJSON(docs)
	},
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a collection and all of its documents",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		if err := a.store.DeleteCollection(ctx, args[0]); err != nil {
			log.Fatalf("Failed to delete collection: %v", err)
		}
		fmt.Printf("Deleted collection %s\n", args[0])
	},
}

func collectionArg(a *app, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.curator.Collection()
}

func init() {
	rootCmd.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionStatsCmd, collectionListCmd, collectionDeleteCmd)

	collectionListCmd.Flags().IntP("limit", "l", 100, "Maximum number of documents, 0 for all")
}
