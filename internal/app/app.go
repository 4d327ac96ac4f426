// Package app builds the collaborators shared by the commands from
// configuration.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/config"
	infraBQ "github.com/dvloznov/wealthflow/internal/infra/bigquery"
	"github.com/dvloznov/wealthflow/internal/infra/postgres"
	"github.com/dvloznov/wealthflow/internal/pricing"
	"github.com/dvloznov/wealthflow/internal/remote"
	"github.com/dvloznov/wealthflow/internal/remote/inmemory"
)

// NewAdapter opens the remote backend selected by REMOTE_BACKEND.
func NewAdapter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (remote.Adapter, error) {
	log = log.With().Str("backend", cfg.RemoteBackend).Logger()

	switch cfg.RemoteBackend {
	case config.BackendMemory, "":
		a := inmemory.NewAdapter(cfg.SeedExampleData, log)
		if cfg.StateFile != "" {
			if err := a.OpenFile(cfg.StateFile); err != nil {
				return nil, fmt.Errorf("NewAdapter: %w", err)
			}
			log.Info().Str("state_file", cfg.StateFile).Msg("Using in-memory backend with state file")
		} else {
			log.Warn().Msg("Using in-memory backend; data is lost on exit")
		}
		return a, nil

	case config.BackendBigQuery:
		a, err := infraBQ.NewAdapter(ctx, cfg.GCPProjectID, cfg.BigQueryDataset, cfg.BigQueryPollInterval, cfg.SeedExampleData, log)
		if err != nil {
			return nil, fmt.Errorf("NewAdapter: %w", err)
		}
		log.Info().Str("project_id", cfg.GCPProjectID).Str("dataset", cfg.BigQueryDataset).Msg("Connected to BigQuery")
		return a, nil

	case config.BackendPostgres:
		a, err := postgres.NewAdapter(ctx, cfg.DatabaseURL, cfg.SeedExampleData, log)
		if err != nil {
			return nil, fmt.Errorf("NewAdapter: %w", err)
		}
		log.Info().Msg("Connected to PostgreSQL")
		return a, nil
	}

	return nil, fmt.Errorf("NewAdapter: unknown backend %q", cfg.RemoteBackend)
}

// NewPricing returns the Gemini service, or pricing.Disabled when no API
// key is configured.
func NewPricing(ctx context.Context, cfg *config.Config, log zerolog.Logger) (pricing.Service, error) {
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, price refresh and analysis are disabled")
		return pricing.Disabled{}, nil
	}

	svc, err := pricing.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		return nil, fmt.Errorf("NewPricing: %w", err)
	}
	return svc, nil
}
