package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/spf13/cobra"
)

const ingestPollInterval = time.Second

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [document]",
		Short: "Queue an ingest job on the server",
		Long: `Queues ingestion of the whole document source, or of one document when a
name is given. With --wait the command polls until the job finishes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().Bool("rebuild", false, "Clear the index before ingesting")
	cmd.Flags().Bool("wait", false, "Wait for the job to finish")
	cmd.Flags().Duration("timeout", 10*time.Minute, "Give up waiting after this long")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	outputJSON, _ := cmd.Flags().GetBool("output")
	rebuild, _ := cmd.Flags().GetBool("rebuild")
	wait, _ := cmd.Flags().GetBool("wait")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var document string
	if len(args) > 0 {
		document = args[0]
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	job, err := api.Ingest(cmd.Context(), rebuild, document)
	if err != nil {
		return fmt.Errorf("failed to queue ingest: %w", err)
	}

	if wait {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		job, err = waitForJob(ctx, api, job.ID, ingestPollInterval)
		if err != nil {
			return err
		}
	}

	if outputJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), job)
	}
	printJob(cmd.OutOrStdout(), job)
	if job.Status == domain.IngestJobStatusFailed {
		return fmt.Errorf("ingest job %s failed: %s", job.ID, job.Error)
	}
	return nil
}

type jobPoller interface {
	IngestStatus(ctx context.Context, jobID string) (*domain.IngestJob, error)
}

func waitForJob(ctx context.Context, api jobPoller, jobID string, interval time.Duration) (*domain.IngestJob, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := api.IngestStatus(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to get job status: %w", err)
		}
		if job.Status == domain.IngestJobStatusCompleted || job.Status == domain.IngestJobStatusFailed {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printJob(w io.Writer, job *domain.IngestJob) {
	target := job.Document
	if target == "" {
		target = "all documents"
	}
	fmt.Fprintf(w, "Job %s (%s): %s\n", job.ID, target, job.Status)
	if job.Error != "" {
		refusalColor.Fprintf(w, "Error: %s\n", job.Error)
	}
	if r := job.Report; r != nil {
		fmt.Fprintf(w, "Documents: %d  Chunks: %d  Added: %d  Unchanged: %d  Removed: %d\n",
			r.Documents, r.Chunks, r.Added, r.Unchanged, r.Removed)
		for _, s := range r.Skipped {
			sourceColor.Fprintf(w, "  skipped %s: %s\n", s.Name, s.Reason)
		}
		for _, u := range r.Unsupported {
			sourceColor.Fprintf(w, "  unsupported %s\n", u)
		}
	}
}
