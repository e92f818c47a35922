package cmd

import (
	"log"
	"strings"

	"github.com/spf13/cobra"
)

// queryCmd searches a collection without curating anything.
var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Search a collection by similarity",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		k, _ := cmd.Flags().GetInt("results")

		ctx, cancel := commandContext()
		defer cancel()
		a := mustApp(ctx, cmd)
		defer a.Close()

		result, err := a.store.Query(ctx, a.curator.Collection(), strings.Join(args, " "), k)
		if err != nil {
			log.Fatalf("Failed to query: %v", err)
		}
		printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().IntP("results", "k", 3, "Number of results")
}
