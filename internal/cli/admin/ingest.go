package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/spf13/cobra"
)

// IngestCmd runs one ingestion in the foreground and prints the report
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [document]",
		Short: "Ingest the document source into the index",
		Long: `Ingest every supported document of the configured source, or a single
named document, and print the ingest report. Documents already indexed with
the same chunks are left alone unless --rebuild clears the index first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().Bool("rebuild", false, "Clear the index before ingesting")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rebuild, _ := cmd.Flags().GetBool("rebuild")
	rebuild = rebuild || cfg.Rebuild()
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	outputFormat, _ := cmd.Flags().GetString("output")

	if rebuild && len(args) == 1 {
		return fmt.Errorf("--rebuild cannot be combined with a single document")
	}

	rt, err := newRuntime(ctx, cfg, runtimeOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer rt.Close()

	var report *domain.IngestReport
	if len(args) == 1 {
		report, err = rt.ingester.IngestDocument(ctx, args[0])
	} else {
		report, err = rt.ingester.IngestAll(ctx, rebuild)
	}
	if report != nil {
		if outputFormat == "json" {
			if perr := cli.PrintJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
		} else {
			printReport(cmd.OutOrStdout(), report)
		}
	}
	if err != nil {
		return fmt.Errorf("ingestion stopped: %w", err)
	}

	return nil
}

func printReport(w io.Writer, r *domain.IngestReport) {
	fmt.Fprintf(w, "Documents:   %d\n", r.Documents)
	fmt.Fprintf(w, "Added:       %d\n", r.Added)
	fmt.Fprintf(w, "Unchanged:   %d\n", r.Unchanged)
	fmt.Fprintf(w, "Removed:     %d\n", r.Removed)
	fmt.Fprintf(w, "Chunks:      %d\n", r.Chunks)

	if len(r.Unsupported) > 0 {
		fmt.Fprintf(w, "\nUnsupported (%d):\n", len(r.Unsupported))
		for _, name := range r.Unsupported {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped (%d):\n", len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Fprintf(w, "  %s: %s\n", s.Name, s.Reason)
		}
	}
}
