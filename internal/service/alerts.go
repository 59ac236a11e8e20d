package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/realtime"
	"github.com/timmy/sportsync/internal/repository"
)

// AlertManager derives alerts from finished runs and batches.
type AlertManager struct {
	repo      *repository.AlertRepository
	jobs      *repository.JobRepository
	batches   *repository.BatchRepository
	publisher realtime.Publisher
	cfg       config.AlertsConfig
	now       func() time.Time
}

// NewAlertManager creates a new AlertManager. publisher may be nil.
func NewAlertManager(
	repo *repository.AlertRepository,
	jobs *repository.JobRepository,
	batches *repository.BatchRepository,
	publisher realtime.Publisher,
	cfg config.AlertsConfig,
) *AlertManager {
	return &AlertManager{
		repo:      repo,
		jobs:      jobs,
		batches:   batches,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ThresholdCrossed reports whether a batch's failures exceed the configured
// absolute threshold, or the ratio threshold once the batch is large enough.
func (m *AlertManager) ThresholdCrossed(batch *domain.Batch) bool {
	if batch.FailCount == 0 {
		return false
	}
	if m.cfg.FailThreshold > 0 && batch.FailCount > m.cfg.FailThreshold {
		return true
	}
	if m.cfg.FailRatio > 0 && batch.TotalCount > 0 && batch.TotalCount >= m.cfg.MinItemsForRatio {
		return float64(batch.FailCount)/float64(batch.TotalCount) > m.cfg.FailRatio
	}
	return false
}

// EvaluateRun creates at most one alert for a finished run. A batch over the
// fail threshold alerts on the batch; otherwise a failed run alerts on the job.
// Returns nil when nothing needs attention.
func (m *AlertManager) EvaluateRun(ctx context.Context, run *domain.JobRun) (*domain.Alert, error) {
	runID := run.ID
	if run.BatchID != nil {
		batch, err := m.batches.GetByID(ctx, *run.BatchID)
		if err != nil {
			return nil, err
		}
		if m.ThresholdCrossed(batch) {
			return m.EvaluateBatch(ctx, batch, &runID)
		}
	}
	if run.Status != domain.RunStatusFailed {
		return nil, nil
	}

	jobName := fmt.Sprintf("#%d", run.JobID)
	if job, err := m.jobs.GetByID(ctx, run.JobID); err == nil {
		jobName = job.Name
	}
	summary := run.ErrorSummary
	if summary == "" {
		summary = "no error summary"
	}
	return m.create(ctx, &domain.Alert{
		Kind:       domain.AlertKindRunFailed,
		SourceType: domain.AlertSourceJob,
		SourceID:   run.JobID,
		RunID:      &runID,
		Severity:   domain.SeverityCritical,
		Message:    fmt.Sprintf("job %s run %d failed: %s", jobName, run.ID, summary),
	})
}

// EvaluateBatch creates an alert when a closed batch crossed a fail threshold.
func (m *AlertManager) EvaluateBatch(ctx context.Context, batch *domain.Batch, runID *uint) (*domain.Alert, error) {
	if !m.ThresholdCrossed(batch) {
		return nil, nil
	}

	severity := domain.SeverityWarning
	if batch.FailCount == batch.TotalCount {
		severity = domain.SeverityCritical
	}
	return m.create(ctx, &domain.Alert{
		Kind:       domain.AlertKindFailThreshold,
		SourceType: domain.AlertSourceBatch,
		SourceID:   batch.ID,
		RunID:      runID,
		Severity:   severity,
		Message:    fmt.Sprintf("batch %d (%s): %d of %d items failed", batch.ID, batch.Name, batch.FailCount, batch.TotalCount),
	})
}

func (m *AlertManager) create(ctx context.Context, alert *domain.Alert) (*domain.Alert, error) {
	if err := m.repo.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	logger.With(logger.Fields{
		"alert_id":    alert.ID,
		"kind":        alert.Kind,
		"severity":    alert.Severity,
		"source_type": alert.SourceType,
		"source_id":   alert.SourceID,
	}).Warn(ctx, "[Alert] %s", alert.Message)

	if m.publisher != nil {
		m.publisher.Publish(realtime.EventAlertNew, alert.ID, realtime.ScopeAlerts, realtime.ScopeDashboard)
	}
	return alert, nil
}

// Resolve marks an alert resolved. Resolving twice fails with
// domain.ErrAlertAlreadyResolved and returns the alert as first resolved.
func (m *AlertManager) Resolve(ctx context.Context, id uint, resolvedBy string) (*domain.Alert, error) {
	resolvedBy = strings.TrimSpace(resolvedBy)
	if resolvedBy == "" {
		return nil, fmt.Errorf("%w: resolved_by is required", domain.ErrInvalidArgument)
	}

	alert, err := m.repo.Resolve(ctx, id, resolvedBy, m.now())
	if err != nil {
		return alert, err
	}

	logger.CtxInfo(ctx, "[Alert] %d resolved by %s", id, resolvedBy)
	if m.publisher != nil {
		m.publisher.Publish(realtime.EventAlertResolved, alert.ID, realtime.ScopeAlerts, realtime.ScopeDashboard)
	}
	return alert, nil
}

// ListActive returns unresolved alerts.
func (m *AlertManager) ListActive(ctx context.Context) ([]domain.Alert, error) {
	return m.repo.ListActive(ctx)
}

// ListHistory returns resolved and unresolved alerts, newest first.
func (m *AlertManager) ListHistory(ctx context.Context, limit int) ([]domain.Alert, error) {
	return m.repo.ListHistory(ctx, clampLimit(limit))
}
