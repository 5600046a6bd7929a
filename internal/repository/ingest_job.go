package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ingestJobColumns = `id, document, rebuild, status, retries, error, report, created_at, processed_at`

// IngestJobRepository persists ingest jobs in postgres
type IngestJobRepository struct {
	db dbtx
}

func NewIngestJobRepository(pool *pgxpool.Pool) *IngestJobRepository {
	return &IngestJobRepository{db: pool}
}

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	var document *string
	if job.Document != "" {
		document = &job.Document
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingest_jobs (id, document, rebuild, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, document, job.Rebuild, job.Status, job.Retries, job.Error, job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	job, err := scanIngestJob(r.db.QueryRow(ctx,
		`SELECT `+ingestJobColumns+` FROM ingest_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending moves up to limit pending jobs to processing, oldest first.
// Concurrent claimers never receive the same job.
func (r *IngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM ingest_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE ingest_jobs
		 SET status = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE ingest_jobs.id = cte.id
		 RETURNING ingest_jobs.id, ingest_jobs.document, ingest_jobs.rebuild, ingest_jobs.status,
		           ingest_jobs.retries, ingest_jobs.error, ingest_jobs.report, ingest_jobs.created_at,
		           ingest_jobs.processed_at`,
		domain.IngestJobStatusPending, limit, domain.IngestJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		job, err := scanIngestJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// the UPDATE ... RETURNING order is unspecified
	sortJobs(jobs)
	return jobs, nil
}

func (r *IngestJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IngestJobStatusCompleted || status == domain.IngestJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, errPtr, processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) SaveReport(ctx context.Context, id string, report *domain.IngestReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	cmdTag, err := r.db.Exec(ctx, `UPDATE ingest_jobs SET report = $1 WHERE id = $2`, raw, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	return r.ClaimPending(ctx, 100)
}

func (r *IngestJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	return r.UpdateStatus(ctx, jobID, status, errMsg)
}

func scanIngestJob(row pgx.Row) (*domain.IngestJob, error) {
	var job domain.IngestJob
	var document, errMsg pgtype.Text
	var report []byte
	if err := row.Scan(&job.ID, &document, &job.Rebuild, &job.Status, &job.Retries, &errMsg, &report,
		&job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if document.Valid {
		job.Document = document.String
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if len(report) > 0 {
		job.Report = &domain.IngestReport{}
		if err := json.Unmarshal(report, job.Report); err != nil {
			return nil, err
		}
	}
	return &job, nil
}
