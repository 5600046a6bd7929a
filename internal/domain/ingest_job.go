package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus represents the status of an ingest job
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IngestJob is a queued ingestion of a whole source or a single document
type IngestJob struct {
	ID          string          `json:"id"`
	Document    string          `json:"document,omitempty"` // empty means the whole source
	Rebuild     bool            `json:"rebuild"`
	Status      IngestJobStatus `json:"status"`
	Retries     int32           `json:"retries"`
	Error       string          `json:"error,omitempty"`
	Report      *IngestReport   `json:"report,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
}

// NewIngestJob creates a new pending IngestJob
func NewIngestJob(id, document string, rebuild bool, createdAt time.Time) *IngestJob {
	return &IngestJob{
		ID:        id,
		Document:  document,
		Rebuild:   rebuild,
		Status:    IngestJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return fmt.Errorf("ingest job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("ingest job ID is required")
	}

	if j.Rebuild && j.Document != "" {
		return fmt.Errorf("ingest job cannot rebuild for a single Document")
	}

	if !isValidIngestJobStatus(j.Status) {
		return fmt.Errorf("ingest job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("ingest job Retries cannot be negative")
	}

	return nil
}

func isValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing,
		IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}

// SkippedDocument records a document that ingestion could not use
type SkippedDocument struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// IngestReport summarizes one ingestion run
type IngestReport struct {
	Documents   int               `json:"documents"`
	Chunks      int               `json:"chunks"`
	Added       int               `json:"added"`
	Unchanged   int               `json:"unchanged"`
	Removed     int               `json:"removed"`
	Skipped     []SkippedDocument `json:"skipped,omitempty"`
	Unsupported []string          `json:"unsupported,omitempty"`
}

// Merge folds another report into r
func (r *IngestReport) Merge(o IngestReport) {
	r.Documents += o.Documents
	r.Chunks += o.Chunks
	r.Added += o.Added
	r.Unchanged += o.Unchanged
	r.Removed += o.Removed
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.Unsupported = append(r.Unsupported, o.Unsupported...)
}
