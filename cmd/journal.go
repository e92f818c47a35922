package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

// journalCmd lists recent curation runs.
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent curation runs",
	Run: func(cmd *cobra.Command, args []string) {
		flow, _ := cmd.Flags().GetString("flow")
		limit, _ := cmd.Flags().GetInt64("limit")

		ctx, cancel := commandContext()
		defer cancel()
		if !cfg.Journal.Enabled {
			log.Fatal("The journal is disabled; set journal.enabled and MONGODB_URI")
		}
		a := mustApp(ctx, cmd)
		defer a.Close()

		runs, err := a.journal.Recent(ctx, flow, limit)
		if err != nil {
			log.Fatalf("Failed to read journal: %v", err)
		}
		printJSON(runs)
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().StringP("flow", "f", "", "Only show runs of this flow (passive, active, screenshot)")
	journalCmd.Flags().Int64P("limit", "l", 20, "Maximum number of runs")
}
