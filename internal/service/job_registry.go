package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/provider"
	"github.com/timmy/sportsync/internal/realtime"
	"github.com/timmy/sportsync/internal/repository"
)

const (
	staleRunSummary     = "process stopped while the run was in progress"
	cancelledRunSummary = "run cancelled before all records were applied"
	genericRunSummary   = "sync failed, see service logs for details"
)

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context, req SyncRequest) (*SyncResult, error)
}

// RunEvaluator decides whether a run's record failures fail the run, and
// inspects a finished run for alert conditions.
type RunEvaluator interface {
	ThresholdCrossed(batch *domain.Batch) bool
	EvaluateRun(ctx context.Context, run *domain.JobRun) (*domain.Alert, error)
}

// JobStatus is a job with its newest run.
type JobStatus struct {
	domain.Job
	LastRun *domain.JobRun `json:"last_run,omitempty"`
}

// RunPage is one page of job runs.
type RunPage struct {
	Runs    []domain.JobRun `json:"runs"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// RunQuery selects a page of job runs.
type RunQuery struct {
	JobID   uint
	Status  domain.RunStatus
	Page    int
	PerPage int
}

// JobRegistry owns job definitions and run history and enforces one running
// run per job.
type JobRegistry struct {
	jobs      *repository.JobRepository
	runner    Runner
	evaluator RunEvaluator
	publisher realtime.Publisher
	now       func() time.Time

	// mu makes the running-run check and insert one critical section.
	mu sync.Mutex
	wg sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewJobRegistry creates a new JobRegistry. evaluator and publisher may be nil.
func NewJobRegistry(jobs *repository.JobRepository, runner Runner, evaluator RunEvaluator, publisher realtime.Publisher) *JobRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobRegistry{
		jobs:      jobs,
		runner:    runner,
		evaluator: evaluator,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// EnsureJobs upserts the configured jobs by name.
func (r *JobRegistry) EnsureJobs(ctx context.Context, cfgs []config.JobConfig) error {
	for _, c := range cfgs {
		entityType, err := domain.ParseEntityType(c.EntityType)
		if err != nil {
			return fmt.Errorf("job %q: %w", c.Name, err)
		}
		if _, _, err := ParseSchedule(c.Schedule); err != nil {
			return fmt.Errorf("job %q: %w", c.Name, err)
		}

		job := &domain.Job{
			Name:       c.Name,
			EntityType: entityType,
			Schedule:   c.Schedule,
			Params:     domain.JobParams(c.Params),
			Enabled:    c.Enabled,
		}
		if err := r.jobs.UpsertByName(ctx, job); err != nil {
			return fmt.Errorf("failed to upsert job %q: %w", c.Name, err)
		}
	}

	logger.With(logger.Fields{logger.FieldCount: len(cfgs)}).Info(ctx, "[Jobs] Job definitions loaded")
	return nil
}

// RecoverStaleRuns fails runs a previous process left running, so they do not
// block single-flight forever. Call once at startup, before triggering runs.
func (r *JobRegistry) RecoverStaleRuns(ctx context.Context) (int64, error) {
	n, err := r.jobs.FailStaleRuns(ctx, staleRunSummary, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale runs: %w", err)
	}
	if n > 0 {
		logger.CtxWarn(ctx, "[Jobs] Marked %d stale runs as failed", n)
	}
	return n, nil
}

// ListJobs returns every job with its newest run.
func (r *JobRegistry) ListJobs(ctx context.Context) ([]JobStatus, error) {
	jobs, err := r.jobs.List(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := r.jobs.LatestRuns(ctx)
	if err != nil {
		return nil, err
	}
	byJob := make(map[uint]*domain.JobRun, len(latest))
	for i := range latest {
		byJob[latest[i].JobID] = &latest[i]
	}

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobStatus{Job: j, LastRun: byJob[j.ID]})
	}
	return out, nil
}

// GetJob returns one job.
func (r *JobRegistry) GetJob(ctx context.Context, id uint) (*domain.Job, error) {
	return r.jobs.GetByID(ctx, id)
}

// GetRun returns one run.
func (r *JobRegistry) GetRun(ctx context.Context, id uint) (*domain.JobRun, error) {
	return r.jobs.GetRun(ctx, id)
}

// ListRuns returns a page of runs, most recent first.
func (r *JobRegistry) ListRuns(ctx context.Context, q RunQuery) (*RunPage, error) {
	switch q.Status {
	case "", domain.RunStatusRunning, domain.RunStatusSuccess, domain.RunStatusFailed:
	default:
		return nil, fmt.Errorf("%w: status filter %q", domain.ErrInvalidArgument, q.Status)
	}

	page, perPage := clampPage(q.Page, q.PerPage)
	runs, total, err := r.jobs.ListRuns(ctx, repository.RunFilter{
		JobID:   q.JobID,
		Status:  q.Status,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return nil, err
	}
	return &RunPage{Runs: runs, Total: total, Page: page, PerPage: perPage}, nil
}

// TriggerRun starts a run of the job in the background and returns it in
// status running. It fails with domain.ErrJobAlreadyRunning while another run
// of the same job is running.
func (r *JobRegistry) TriggerRun(ctx context.Context, jobID uint, trigger domain.RunTrigger) (*domain.JobRun, error) {
	if r.baseCtx.Err() != nil {
		return nil, fmt.Errorf("job registry is shutting down")
	}

	r.mu.Lock()
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if !job.Enabled {
		r.mu.Unlock()
		return nil, domain.ErrJobDisabled
	}

	run := &domain.JobRun{
		JobID:     job.ID,
		Trigger:   trigger,
		StartedAt: r.now(),
	}
	err = r.jobs.StartRun(ctx, run)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	runCtx := logger.SetRunID(logger.SetJobID(r.baseCtx, job.ID), run.ID)
	if reqID := logger.GetRequestID(ctx); reqID != "" {
		runCtx = logger.SetRequestID(runCtx, reqID)
	}
	logger.CtxInfo(runCtx, "[Jobs] Run started for %s (%s)", job.Name, trigger)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(runCtx, job, run.ID)
	}()

	return run, nil
}

func (r *JobRegistry) execute(ctx context.Context, job *domain.Job, runID uint) {
	result, runErr := r.runner.Run(ctx, SyncRequest{
		EntityType: job.EntityType,
		Params:     provider.FromJobParams(job.Params),
	})

	completion := repository.RunCompletion{Status: domain.RunStatusSuccess}
	if result != nil {
		batchID := result.BatchID
		completion.BatchID = &batchID
		completion.OKCount = result.OK
		completion.FailCount = result.Fail
		completion.TotalCount = result.Total
		switch {
		case result.Cancelled:
			completion.Status = domain.RunStatusFailed
			completion.ErrorSummary = cancelledRunSummary
		case r.evaluator != nil && r.evaluator.ThresholdCrossed(&domain.Batch{
			ID:         result.BatchID,
			OKCount:    result.OK,
			FailCount:  result.Fail,
			TotalCount: result.Total,
		}):
			completion.Status = domain.RunStatusFailed
			completion.ErrorSummary = fmt.Sprintf("%d of %d records failed, over the alert threshold", result.Fail, result.Total)
		}
	}
	if runErr != nil {
		completion.Status = domain.RunStatusFailed
		completion.ErrorSummary = summarizeRunError(runErr)
		logger.CtxError(ctx, "[Jobs] Run of %s failed: %+v", job.Name, runErr)
	}

	// The run must be finalized even when the registry is shutting down.
	finishCtx := context.WithoutCancel(ctx)
	completion.FinishedAt = r.now()
	run, err := r.jobs.CompleteRun(finishCtx, runID, completion)
	if err != nil {
		logger.CtxError(ctx, "[Jobs] Failed to finalize run: %v", err)
		return
	}

	logger.With(logger.Fields{
		logger.FieldStatus:     string(run.Status),
		logger.FieldDurationMs: run.DurationMs,
		logger.FieldCount:      run.TotalCount,
	}).Info(ctx, "[Jobs] Run finished for %s", job.Name)

	if r.evaluator != nil {
		if _, err := r.evaluator.EvaluateRun(finishCtx, run); err != nil {
			logger.CtxError(ctx, "[Jobs] Alert evaluation failed: %v", err)
		}
	}
	if r.publisher != nil {
		r.publisher.Publish(realtime.EventRunFinished, run.ID, realtime.ScopeJobs, realtime.ScopeDashboard)
	}
}

// summarizeRunError maps a run error to a fixed operator-facing summary. The
// error text itself only goes to the logs.
func summarizeRunError(err error) string {
	switch {
	case errors.Is(err, domain.ErrProviderAuth):
		return "provider rejected credentials"
	case errors.Is(err, domain.ErrProviderRejected):
		return "provider rejected the request, check the job params"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "provider unavailable or timed out"
	case errors.Is(err, domain.ErrUnknownEntityType):
		return "provider does not serve this entity type"
	default:
		return genericRunSummary
	}
}

// Wait blocks until every started run has finished.
func (r *JobRegistry) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting runs, asks running ones to stop between records,
// and waits for them until ctx expires.
func (r *JobRegistry) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for runs: %w", ctx.Err())
	}
}
