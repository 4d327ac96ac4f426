// Package config loads settings from the environment and an optional .env
// style file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Remote backends.
const (
	BackendMemory   = "memory"
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
)

// Config holds all settings shared by the commands.
type Config struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	LogFormat          string        `mapstructure:"LOG_FORMAT"`
	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`
	SessionIdleTimeout time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`

	RemoteBackend        string        `mapstructure:"REMOTE_BACKEND"`
	StateFile            string        `mapstructure:"STATE_FILE"`
	GCPProjectID         string        `mapstructure:"GCP_PROJECT_ID"`
	BigQueryDataset      string        `mapstructure:"BIGQUERY_DATASET"`
	BigQueryPollInterval time.Duration `mapstructure:"BIGQUERY_POLL_INTERVAL"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	SeedExampleData      bool          `mapstructure:"SEED_EXAMPLE_DATA"`

	GeminiModel  string `mapstructure:"GEMINI_MODEL"`
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	PriceRefreshSchedule string   `mapstructure:"PRICE_REFRESH_SCHEDULE"`
	RefreshUserIDs       []string `mapstructure:"REFRESH_USER_IDS"`
	JobQueueSize         int      `mapstructure:"JOB_QUEUE_SIZE"`
	JobWorkers           int      `mapstructure:"JOB_WORKERS"`
	JobMaxRetries        int      `mapstructure:"JOB_MAX_RETRIES"`

	BackupBucket string `mapstructure:"BACKUP_BUCKET"`

	NotionToken          string `mapstructure:"NOTION_TOKEN"`
	NotionAccountsDB     string `mapstructure:"NOTION_ACCOUNTS_DB"`
	NotionTransactionsDB string `mapstructure:"NOTION_TRANSACTIONS_DB"`
	NotionStocksDB       string `mapstructure:"NOTION_STOCKS_DB"`
}

var keys = []string{
	"SERVER_PORT", "LOG_LEVEL", "LOG_FORMAT", "CORS_ALLOWED_ORIGINS", "SESSION_IDLE_TIMEOUT",
	"REMOTE_BACKEND", "STATE_FILE", "GCP_PROJECT_ID", "BIGQUERY_DATASET",
	"BIGQUERY_POLL_INTERVAL", "DATABASE_URL", "SEED_EXAMPLE_DATA",
	"GEMINI_MODEL", "GEMINI_API_KEY",
	"JWT_SECRET", "JWT_ISSUER",
	"PRICE_REFRESH_SCHEDULE", "REFRESH_USER_IDS",
	"JOB_QUEUE_SIZE", "JOB_WORKERS", "JOB_MAX_RETRIES",
	"BACKUP_BUCKET",
	"NOTION_TOKEN", "NOTION_ACCOUNTS_DB", "NOTION_TRANSACTIONS_DB", "NOTION_STOCKS_DB",
}

// Load reads configuration from environment variables and, when present,
// from a file. An empty path looks for .env in the working directory; a
// missing .env is not an error, a missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".env")
		v.SetConfigType("env")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("REMOTE_BACKEND", BackendMemory)
	v.SetDefault("BIGQUERY_DATASET", "wealthflow")
	v.SetDefault("BIGQUERY_POLL_INTERVAL", "5s")
	v.SetDefault("SEED_EXAMPLE_DATA", true)
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("JWT_ISSUER", "wealthflow")
	v.SetDefault("PRICE_REFRESH_SCHEDULE", "@every 30m")
	v.SetDefault("JOB_QUEUE_SIZE", 100)
	v.SetDefault("JOB_WORKERS", 5)
	v.SetDefault("JOB_MAX_RETRIES", 0)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Load: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: decoding: %w", err)
	}
	cfg.RefreshUserIDs = splitList(cfg.RefreshUserIDs)
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings needed by the selected backend exist.
func (c *Config) Validate() error {
	switch c.RemoteBackend {
	case BackendMemory:
	case BackendBigQuery:
		if c.GCPProjectID == "" {
			return fmt.Errorf("config: GCP_PROJECT_ID is required for the bigquery backend")
		}
		if c.BigQueryPollInterval <= 0 {
			return fmt.Errorf("config: BIGQUERY_POLL_INTERVAL must be positive")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown REMOTE_BACKEND %q", c.RemoteBackend)
	}

	if c.JobWorkers <= 0 {
		return fmt.Errorf("config: JOB_WORKERS must be positive")
	}
	if c.JobQueueSize <= 0 {
		return fmt.Errorf("config: JOB_QUEUE_SIZE must be positive")
	}
	if c.JobMaxRetries < 0 {
		return fmt.Errorf("config: JOB_MAX_RETRIES must not be negative")
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("config: SESSION_IDLE_TIMEOUT must not be negative")
	}
	return nil
}

// splitList normalizes comma or space separated values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, part)
		}
	}
	return out
}
