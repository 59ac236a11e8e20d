package service

import (
	"context"
	"time"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/repository"
)

const dashboardRecentBatches = 10

// Dashboard is the operator overview refetched on invalidation events.
type Dashboard struct {
	ActiveAlerts  int64                    `json:"active_alerts"`
	RunningRuns   int64                    `json:"running_runs"`
	OpenBatches   int64                    `json:"open_batches"`
	LatestRuns    []domain.JobRun          `json:"latest_runs"`
	RecentBatches []domain.BatchWithStatus `json:"recent_batches"`
	GeneratedAt   time.Time                `json:"generated_at"`
}

// DashboardService assembles the operator overview.
type DashboardService struct {
	alerts  *repository.AlertRepository
	jobs    *repository.JobRepository
	batches *repository.BatchRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(alerts *repository.AlertRepository, jobs *repository.JobRepository, batches *repository.BatchRepository) *DashboardService {
	return &DashboardService{alerts: alerts, jobs: jobs, batches: batches}
}

// Get computes the overview.
func (s *DashboardService) Get(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{GeneratedAt: time.Now().UTC()}

	var err error
	if d.ActiveAlerts, err = s.alerts.CountActive(ctx); err != nil {
		return nil, err
	}
	if _, d.RunningRuns, err = s.jobs.ListRuns(ctx, repository.RunFilter{Status: domain.RunStatusRunning, Page: 1, PerPage: 1}); err != nil {
		return nil, err
	}
	if d.OpenBatches, err = s.batches.CountOpen(ctx); err != nil {
		return nil, err
	}
	if d.LatestRuns, err = s.jobs.LatestRuns(ctx); err != nil {
		return nil, err
	}

	batches, err := s.batches.List(ctx, "", dashboardRecentBatches)
	if err != nil {
		return nil, err
	}
	d.RecentBatches = make([]domain.BatchWithStatus, 0, len(batches))
	for _, b := range batches {
		d.RecentBatches = append(d.RecentBatches, b.WithStatus())
	}
	return d, nil
}
