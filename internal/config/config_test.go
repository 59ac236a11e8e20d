package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("PROVIDER_API_KEY", "secret-key")
	path := writeConfig(t, `
sync:
  workers: 8
jobs:
  - name: sync-fixtures
    entity_type: fixtures
    schedule: "@every 1h"
    enabled: true
    params:
      league: "39"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.Equal(t, 2, cfg.Sync.FetchRetries)
	assert.Equal(t, 2*time.Second, cfg.Sync.RetryBackoff)
	assert.Equal(t, "apisports", cfg.Provider.Type)
	assert.Equal(t, "secret-key", cfg.Provider.APIKey)
	assert.Equal(t, 15*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 3, cfg.Alerts.FailThreshold)
	assert.Equal(t, 30*24*time.Hour, cfg.Availability.HistoricalWindow)

	require.Len(t, cfg.Jobs, 1)
	assert.Equal(t, "fixtures", cfg.Jobs[0].EntityType)
	assert.Equal(t, "39", cfg.Jobs[0].Params["league"])
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Provider: ProviderConfig{Type: "staging"},
			Sync:     SyncConfig{Workers: 1},
			Alerts:   AlertsConfig{FailRatio: 0.5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no workers", func(c *Config) { c.Sync.Workers = 0 }, "sync.workers"},
		{"ratio above one", func(c *Config) { c.Alerts.FailRatio = 1.5 }, "alerts.fail_ratio"},
		{"unknown provider", func(c *Config) { c.Provider.Type = "csv" }, "provider.type"},
		{"unnamed job", func(c *Config) { c.Jobs = []JobConfig{{EntityType: "teams"}} }, "needs a name"},
		{"duplicate job", func(c *Config) { c.Jobs = []JobConfig{{Name: "a"}, {Name: "a"}} }, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "./data/x.db"}
	assert.Equal(t, "./data/x.db?_busy_timeout=5000", sqlite.DSN())

	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "sync", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=sync sslmode=disable", pg.DSN())
}
