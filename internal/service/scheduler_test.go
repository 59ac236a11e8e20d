package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		desc     string
		interval time.Duration
		periodic bool
		wantErr  bool
	}{
		{"", 0, false, false},
		{"manual", 0, false, false},
		{"MANUAL", 0, false, false},
		{"@every 15m", 15 * time.Minute, true, false},
		{"@every 1h30m", 90 * time.Minute, true, false},
		{"6h", 6 * time.Hour, true, false},
		{"@every", 0, false, true},
		{"@every -5m", 0, false, true},
		{"daily", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			interval, periodic, err := ParseSchedule(tt.desc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.interval, interval)
			assert.Equal(t, tt.periodic, periodic)
		})
	}
}

func TestSchedulerTickTriggersDueJobsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.gateway.set(domain.EntityCountries, records(domain.EntityCountries, 2))
	env.gateway.set(domain.EntityLeagues, records(domain.EntityLeagues, 2))

	require.NoError(t, env.registry.EnsureJobs(ctx, []config.JobConfig{
		{Name: "countries", EntityType: "countries", Schedule: "@every 1h", Enabled: true},
		{Name: "leagues", EntityType: "leagues", Schedule: "manual", Enabled: true},
		{Name: "teams", EntityType: "teams", Schedule: "@every 1h", Enabled: false},
	}))

	sched := NewScheduler(config.SchedulerConfig{TickInterval: time.Minute}, env.registry)
	now := time.Now().UTC()
	sched.now = func() time.Time { return now }

	assert.Equal(t, 1, sched.Tick(ctx), "only the enabled periodic job is due")
	env.registry.Wait()

	assert.Equal(t, 0, sched.Tick(ctx), "interval has not elapsed")

	sched.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.Equal(t, 1, sched.Tick(ctx))
	env.registry.Wait()

	page, err := env.registry.ListRuns(ctx, RunQuery{})
	require.NoError(t, err)
	require.Len(t, page.Runs, 2)
	for _, run := range page.Runs {
		assert.Equal(t, domain.RunTriggerSchedule, run.Trigger)
		assert.Equal(t, domain.RunStatusSuccess, run.Status)
	}
}

func TestSchedulerTickSkipsRunningJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	job := seedJob(t, env, "sync-countries", domain.EntityCountries)
	env.gateway.release = make(chan struct{})

	_, err := env.registry.TriggerRun(ctx, job.ID, domain.RunTriggerManual)
	require.NoError(t, err)

	sched := NewScheduler(config.SchedulerConfig{}, env.registry)
	sched.now = func() time.Time { return time.Now().UTC().Add(3 * time.Hour) }
	assert.Equal(t, 0, sched.Tick(ctx))

	close(env.gateway.release)
	env.registry.Wait()
}

func TestSchedulerStartStop(t *testing.T) {
	env := newTestEnv(t)
	sched := NewScheduler(config.SchedulerConfig{TickInterval: 10 * time.Millisecond}, env.registry)

	sched.Start(context.Background())
	sched.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	sched.Stop()
	sched.Stop()
}
