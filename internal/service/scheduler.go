package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
)

// ParseSchedule decodes a schedule descriptor: "@every <duration>" or a bare
// duration run periodically, and "" or "manual" never run automatically.
func ParseSchedule(desc string) (interval time.Duration, periodic bool, err error) {
	desc = strings.TrimSpace(desc)
	if desc == "" || strings.EqualFold(desc, "manual") {
		return 0, false, nil
	}
	raw := strings.TrimSpace(strings.TrimPrefix(desc, "@every"))
	interval, err = time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: schedule %q", domain.ErrInvalidArgument, desc)
	}
	if interval <= 0 {
		return 0, false, fmt.Errorf("%w: schedule %q must be positive", domain.ErrInvalidArgument, desc)
	}
	return interval, true, nil
}

// Scheduler triggers periodic jobs when they are due.
type Scheduler struct {
	cfg      config.SchedulerConfig
	registry *JobRegistry
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(cfg config.SchedulerConfig, registry *JobRegistry) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the scheduler loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	logger.CtxInfo(ctx, "[Scheduler] Started, tick every %s", s.cfg.TickInterval)
}

// Stop ends the loop and waits for it to exit. Runs already triggered keep going.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	// Check for due jobs immediately on startup
	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick triggers every enabled periodic job whose interval has elapsed and
// returns how many runs were started. A job still running is skipped.
func (s *Scheduler) Tick(ctx context.Context) int {
	jobs, err := s.registry.ListJobs(ctx)
	if err != nil {
		logger.CtxError(ctx, "[Scheduler] Failed to list jobs: %v", err)
		return 0
	}

	now := s.now()
	started := 0
	for _, j := range jobs {
		if !j.Enabled {
			continue
		}
		interval, periodic, err := ParseSchedule(j.Schedule)
		if err != nil || !periodic {
			continue
		}
		if j.LastRunAt != nil && now.Sub(*j.LastRunAt) < interval {
			continue
		}

		jobCtx := logger.SetJobID(ctx, j.ID)
		if _, err := s.registry.TriggerRun(jobCtx, j.ID, domain.RunTriggerSchedule); err != nil {
			if errors.Is(err, domain.ErrJobAlreadyRunning) {
				logger.CtxDebug(jobCtx, "[Scheduler] %s still running, skipped", j.Name)
				continue
			}
			logger.CtxError(jobCtx, "[Scheduler] Failed to trigger %s: %v", j.Name, err)
			continue
		}
		started++
	}
	return started
}
