package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockIngestJobRepository is a mock implementation of IngestJobRepository
type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockIngestJobRepository) SaveReport(ctx context.Context, jobID string, report *domain.IngestReport) error {
	args := m.Called(ctx, jobID, report)
	return args.Error(0)
}

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) IngestAll(ctx context.Context, rebuild bool) (*domain.IngestReport, error) {
	args := m.Called(ctx, rebuild)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestReport), args.Error(1)
}

func (m *MockIngester) IngestDocument(ctx context.Context, name string) (*domain.IngestReport, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestReport), args.Error(1)
}

// countingProcessor signals every pass and can hold a pass open until the
// context is cancelled.
type countingProcessor struct {
	passes chan struct{}
	block  bool
}

func (p *countingProcessor) ProcessJobs(ctx context.Context) error {
	select {
	case p.passes <- struct{}{}:
	default:
	}
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func waitPass(t *testing.T, passes <-chan struct{}) {
	t.Helper()
	select {
	case <-passes:
	case <-time.After(2 * time.Second):
		t.Fatal("no pass")
	}
}

func TestWorker_FirstPassRunsImmediately(t *testing.T) {
	proc := &countingProcessor{passes: make(chan struct{}, 1)}
	worker := NewWorker(proc, time.Hour)

	go worker.Start(context.Background())
	waitPass(t, proc.passes)

	worker.Stop()
	// idempotent
	worker.Stop()
}

type processorFunc func(ctx context.Context) error

func (f processorFunc) ProcessJobs(ctx context.Context) error { return f(ctx) }

func TestWorker_PollsOnTickDespiteErrors(t *testing.T) {
	var calls atomic.Int32
	worker := NewWorker(processorFunc(func(context.Context) error {
		calls.Add(1)
		return errors.New("database error")
	}), 20*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(context.Background())
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)

	worker.Stop()
	wg.Wait()
}

func TestWorker_ContextCancellation(t *testing.T) {
	proc := &countingProcessor{passes: make(chan struct{}, 1)}
	worker := NewWorker(proc, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(returned)
	}()
	waitPass(t, proc.passes)

	cancel()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("worker ignored cancellation")
	}
}

func TestWorker_StopCancelsRunningPass(t *testing.T) {
	proc := &countingProcessor{passes: make(chan struct{}, 1), block: true}
	worker := NewWorker(proc, time.Hour)

	go worker.Start(context.Background())
	waitPass(t, proc.passes)

	stopped := make(chan struct{})
	go func() {
		worker.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited on a blocked pass")
	}
}

func TestWorker_NotifyWakesBeforeTick(t *testing.T) {
	proc := &countingProcessor{passes: make(chan struct{}, 1)}
	worker := NewWorker(proc, time.Hour)

	go worker.Start(context.Background())
	waitPass(t, proc.passes)

	worker.Notify()
	// a second notify with a full wake buffer must not block
	worker.Notify()
	waitPass(t, proc.passes)

	worker.Stop()
}

func TestIngestWorker_ProcessJobs_NoPendingJobs(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockIngester := new(MockIngester)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{}, nil)

	worker := NewIngestWorker(mockRepo, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngester.AssertNotCalled(t, "IngestAll", mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_WholeSource(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockIngester := new(MockIngester)

	job := &domain.IngestJob{ID: "job-1", Rebuild: true, Status: domain.IngestJobStatusPending}
	report := &domain.IngestReport{Documents: 2, Chunks: 5, Added: 2}

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockIngester.On("IngestAll", mock.Anything, true).Return(report, nil)
	mockRepo.On("SaveReport", mock.Anything, "job-1", report).Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(nil)

	worker := NewIngestWorker(mockRepo, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
	mockIngester.AssertNotCalled(t, "IngestDocument", mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_SingleDocument(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockIngester := new(MockIngester)

	job := &domain.IngestJob{ID: "job-1", Document: "guide.md", Status: domain.IngestJobStatusPending}
	report := &domain.IngestReport{Documents: 1, Chunks: 3, Added: 1}

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockIngester.On("IngestDocument", mock.Anything, "guide.md").Return(report, nil)
	mockRepo.On("SaveReport", mock.Anything, "job-1", report).Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(nil)

	worker := NewIngestWorker(mockRepo, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
	mockIngester.AssertNotCalled(t, "IngestAll", mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_FailureWithRetry(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockIngester := new(MockIngester)

	job := &domain.IngestJob{ID: "job-1", Document: "guide.md", Status: domain.IngestJobStatusPending, Retries: 0}

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockIngester.On("IngestDocument", mock.Anything, "guide.md").Return(nil, errors.New("embedding unavailable"))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusPending, "retry 1: embedding unavailable").Return(nil)

	worker := NewIngestWorker(mockRepo, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "SaveReport", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_MaxRetriesExceeded(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockIngester := new(MockIngester)

	job := &domain.IngestJob{ID: "job-1", Status: domain.IngestJobStatusPending, Retries: 2}

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	mockIngester.On("IngestAll", mock.Anything, false).Return(nil, errors.New("embedding unavailable"))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusFailed, "max retries exceeded: embedding unavailable").Return(nil)

	worker := NewIngestWorker(mockRepo, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_MultipleJobs(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockIngester := new(MockIngester)

	jobs := []*domain.IngestJob{
		{ID: "job-1", Document: "a.md", Status: domain.IngestJobStatusPending},
		{ID: "job-2", Document: "b.md", Status: domain.IngestJobStatusPending},
	}
	reportA := &domain.IngestReport{Documents: 1, Unchanged: 1}
	reportB := &domain.IngestReport{Documents: 1, Added: 1, Chunks: 2}

	mockRepo.On("GetPendingJobs", mock.Anything).Return(jobs, nil)

	mockIngester.On("IngestDocument", mock.Anything, "a.md").Return(reportA, nil)
	mockRepo.On("SaveReport", mock.Anything, "job-1", reportA).Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(nil)

	mockIngester.On("IngestDocument", mock.Anything, "b.md").Return(reportB, nil)
	mockRepo.On("SaveReport", mock.Anything, "job-2", reportB).Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-2", domain.IngestJobStatusCompleted, "").Return(nil)

	worker := NewIngestWorker(mockRepo, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_RepositoryError(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockIngester := new(MockIngester)

	mockRepo.On("GetPendingJobs", mock.Anything).Return(nil, errors.New("database error"))

	worker := NewIngestWorker(mockRepo, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch pending jobs")
	mockRepo.AssertExpectations(t)
}
