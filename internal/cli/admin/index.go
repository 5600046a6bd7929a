package admin

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/spf13/cobra"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the persisted index",
	}

	cmd.AddCommand(IndexStatsCmd())

	return cmd
}

func IndexStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entry, document and dimension counts",
		RunE:  runIndexStats,
	}

	cmd.Flags().Bool("documents", false, "Also list every indexed document")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := newRuntime(ctx, cfg, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	listDocs, _ := cmd.Flags().GetBool("documents")
	outputFormat, _ := cmd.Flags().GetString("output")

	stats := rt.index.Stats()
	if outputFormat == "json" {
		out := map[string]interface{}{
			"backend":    cfg.IndexBackend,
			"entries":    stats.Entries,
			"documents":  stats.Documents,
			"dimensions": stats.Dimensions,
		}
		if listDocs {
			out["items"] = rt.index.Documents()
		}
		return cli.PrintJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Backend:     %s\n", cfg.IndexBackend)
	fmt.Fprintf(w, "Entries:     %d\n", stats.Entries)
	fmt.Fprintf(w, "Documents:   %d\n", stats.Documents)
	fmt.Fprintf(w, "Dimensions:  %d\n", stats.Dimensions)

	if listDocs && stats.Documents > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DOCUMENT\tCHUNKS")
		for _, d := range rt.index.Documents() {
			fmt.Fprintf(tw, "%s\t%d\n", d.ID, d.Chunks)
		}
		tw.Flush()
	}

	return nil
}
