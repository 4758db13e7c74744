// Package cli implements srpctl, the command line client of the
// training broker.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	brokerURL  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "srpctl",
	Short: "Client for the structured-pruning training broker",
	Long: `srpctl submits and tracks structured-pruning training runs on a
running broker.

The broker address is taken from --broker, or from the SRP_BROKER_URL
environment variable (a .env file in the working directory is honored).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if brokerURL == "" {
			brokerURL = os.Getenv("SRP_BROKER_URL")
		}
		if brokerURL == "" {
			brokerURL = "http://localhost:3090"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&brokerURL, "broker", "", "broker base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON responses")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
