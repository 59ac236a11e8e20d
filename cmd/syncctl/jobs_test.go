package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsync/internal/app"
	"github.com/timmy/sportsync/internal/config"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	a, err := app.New(context.Background(), &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "cli.db"), AutoMigrate: true},
		Provider: config.ProviderConfig{Type: "staging", StagingPath: dir},
		Sync:     config.SyncConfig{Workers: 1},
		Jobs: []config.JobConfig{
			{Name: "sync-leagues", EntityType: "leagues", Schedule: "@every 12h", Enabled: true},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	})
	return a
}

func TestPrintJobsIsReadOnlyByDefault(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	var out bytes.Buffer
	require.NoError(t, printJobs(ctx, a, &out, false))
	assert.NotContains(t, out.String(), "sync-leagues")

	jobs, err := a.Jobs.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	out.Reset()
	require.NoError(t, printJobs(ctx, a, &out, true))
	assert.Contains(t, out.String(), "sync-leagues")
	assert.Contains(t, out.String(), "@every 12h")
}
