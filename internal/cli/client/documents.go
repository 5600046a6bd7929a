package client

import (
	"fmt"
	"text/tabwriter"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/spf13/cobra"
)

// DocumentsCmd creates the documents command.
func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Short:   "List indexed documents",
		Aliases: []string{"docs"},
		Args:    cobra.NoArgs,
		RunE:    runDocuments,
	}

	cmd.Flags().String("cursor", "", "Cursor from a previous page")
	cmd.Flags().Int("limit", 20, "Page size (max 100)")

	return cmd
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	outputJSON, _ := cmd.Flags().GetBool("output")
	cursor, _ := cmd.Flags().GetString("cursor")
	limit, _ := cmd.Flags().GetInt("limit")

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	page, err := api.Documents(cmd.Context(), cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if outputJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), page)
	}

	w := cmd.OutOrStdout()
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tCHUNKS")
	for _, d := range page.Items {
		fmt.Fprintf(tw, "%s\t%d\n", d.ID, d.Chunks)
	}
	tw.Flush()

	if page.HasMore {
		sourceColor.Fprintf(w, "\nMore results: --cursor %s\n", page.Cursor)
	}
	return nil
}
