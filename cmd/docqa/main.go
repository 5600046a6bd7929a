package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "docqa CLI - ask questions about your documents",
		Long: `docqa CLI talks to a docqad server over HTTP.

Environment variables:
  DOCQA_API_URL   API base URL (default: http://localhost:8080)`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.ForgetCmd())
	rootCmd.AddCommand(client.HealthCmd())
	rootCmd.AddCommand(client.ConfigCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.DocumentsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
