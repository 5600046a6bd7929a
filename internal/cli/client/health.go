package client

import (
	"fmt"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// HealthCmd creates the health command.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server and show index size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			health, err := api.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("server at %s is not healthy: %w", api.BaseURL(), err)
			}

			if outputJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), health)
			}
			w := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(w, "%s", health.Status)
			fmt.Fprintf(w, "  %s  %d documents, %d entries\n", api.BaseURL(), health.Documents, health.Entries)
			return nil
		},
	}
}
