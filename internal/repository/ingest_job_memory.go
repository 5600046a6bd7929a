package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// MemoryIngestJobRepository keeps ingest jobs in process memory. Used with
// every backend except postgres.
type MemoryIngestJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.IngestJob
	now  func() time.Time
}

func NewMemoryIngestJobRepository() *MemoryIngestJobRepository {
	return &MemoryIngestJobRepository{jobs: make(map[string]*domain.IngestJob), now: time.Now}
}

func (r *MemoryIngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *MemoryIngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *MemoryIngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.IngestJob
	for _, job := range r.jobs {
		if job.Status != domain.IngestJobStatusPending {
			continue
		}
		job.Status = domain.IngestJobStatusProcessing
		job.ProcessedAt = nil
		cp := *job
		out = append(out, &cp)
	}
	sortJobs(out)
	return out, nil
}

func (r *MemoryIngestJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	if status == domain.IngestJobStatusCompleted || status == domain.IngestJobStatusFailed {
		now := r.now().UTC()
		job.ProcessedAt = &now
	}
	return nil
}

func (r *MemoryIngestJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Retries++
	return nil
}

func (r *MemoryIngestJobRepository) SaveReport(ctx context.Context, jobID string, report *domain.IngestReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	cp := *report
	job.Report = &cp
	return nil
}

func sortJobs(jobs []*domain.IngestJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
