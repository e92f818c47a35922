/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/context-curator/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "context-curator",
	Short: "Curate a personal knowledge base from browsing context",
	Long: `context-curator extracts topics from what you read or ask, expands them
with a web-backed search model and stores the results in a similarity index,
so later questions can be answered from what was already curated.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file")
	rootCmd.PersistentFlags().String("collection", "", "collection to use (default from config)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	cfg, err = config.LoadConfig(cfgFile)
	cobra.CheckErr(err)
}

// commandContext is cancelled on interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// collectionFlag returns --collection or fallback.
func collectionFlag(cmd *cobra.Command, fallback string) string {
	if name, _ := cmd.Flags().GetString("collection"); name != "" {
		return name
	}
	return fallback
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	cobra.CheckErr(err)
	fmt.Println(string(out))
}
