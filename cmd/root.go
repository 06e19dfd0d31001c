package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse - AI insight engine for the CRM",
	Long: `Pulse is the AI insight and retrieval engine behind the CRM.

It embeds deals, contacts and activities into a tenant-scoped vector store,
retrieves the history relevant to a question, and generates structured
insights: deal coaching, buyer personas, objection handling and win-loss
analysis.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pulse.yaml", "Path to the configuration file")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
