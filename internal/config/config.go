package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Provider     ProviderConfig     `mapstructure:"provider"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Alerts       AlertsConfig       `mapstructure:"alerts"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Jobs         []JobConfig        `mapstructure:"jobs"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path + "?_busy_timeout=5000"
}

// ProviderConfig is passed by value into the provider client; nothing mutates it at runtime.
type ProviderConfig struct {
	// Type selects the gateway: "apisports" (live HTTP) or "staging" (JSONL files).
	Type              string        `mapstructure:"type"`
	StagingPath       string        `mapstructure:"staging_path"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	AuthHeader        string        `mapstructure:"auth_header"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxPages          int           `mapstructure:"max_pages"`
}

type SyncConfig struct {
	Workers      int           `mapstructure:"workers"`
	FetchRetries int           `mapstructure:"fetch_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type AlertsConfig struct {
	FailThreshold    int     `mapstructure:"fail_threshold"`
	FailRatio        float64 `mapstructure:"fail_ratio"`
	MinItemsForRatio int     `mapstructure:"min_items_for_ratio"`
}

type AvailabilityConfig struct {
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	HistoricalWindow time.Duration `mapstructure:"historical_window"`
}

type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// JobConfig declares a sync job. Jobs are upserted by name on startup.
type JobConfig struct {
	Name       string            `mapstructure:"name"`
	EntityType string            `mapstructure:"entity_type"`
	Schedule   string            `mapstructure:"schedule"`
	Enabled    bool              `mapstructure:"enabled"`
	Params     map[string]string `mapstructure:"params"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets come from the environment
	v.BindEnv("provider.api_key", "PROVIDER_API_KEY")
	v.BindEnv("provider.base_url", "PROVIDER_BASE_URL")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("archive.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("archive.endpoint", "STORAGE_ENDPOINT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/sportsync.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("provider.type", "apisports")
	v.SetDefault("provider.staging_path", "./data/staging")
	v.SetDefault("provider.base_url", "https://v3.football.api-sports.io")
	v.SetDefault("provider.auth_header", "x-apisports-key")
	v.SetDefault("provider.timeout", 15*time.Second)
	v.SetDefault("provider.requests_per_minute", 300)
	v.SetDefault("provider.max_pages", 50)
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.fetch_retries", 2)
	v.SetDefault("sync.retry_backoff", 2*time.Second)
	v.SetDefault("alerts.fail_threshold", 3)
	v.SetDefault("alerts.fail_ratio", 0.25)
	v.SetDefault("alerts.min_items_for_ratio", 20)
	v.SetDefault("availability.stale_after", 24*time.Hour)
	v.SetDefault("availability.historical_window", 30*24*time.Hour)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_interval", 30*time.Second)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucket", "sportsync-batches")
	v.SetDefault("archive.prefix", "batches")
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("sync.workers must be positive, got %d", c.Sync.Workers)
	}
	if c.Alerts.FailRatio < 0 || c.Alerts.FailRatio > 1 {
		return fmt.Errorf("alerts.fail_ratio must be within [0,1], got %v", c.Alerts.FailRatio)
	}
	switch c.Provider.Type {
	case "apisports", "staging":
	default:
		return fmt.Errorf("provider.type must be apisports or staging, got %q", c.Provider.Type)
	}
	seen := make(map[string]bool, len(c.Jobs))
	for _, j := range c.Jobs {
		if j.Name == "" {
			return fmt.Errorf("jobs: every job needs a name")
		}
		if seen[j.Name] {
			return fmt.Errorf("jobs: duplicate job name %q", j.Name)
		}
		seen[j.Name] = true
	}
	return nil
}
