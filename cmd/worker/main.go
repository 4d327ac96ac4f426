package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/app"
	"github.com/dvloznov/wealthflow/internal/config"
	"github.com/dvloznov/wealthflow/internal/jobs"
	"github.com/dvloznov/wealthflow/internal/jobs/inmemory"
	"github.com/dvloznov/wealthflow/internal/logger"
	"github.com/dvloznov/wealthflow/internal/session"
)

// userSource is implemented by adapters that can enumerate their users.
type userSource interface {
	Users() []string
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to a .env style config file")
		once       = flag.Bool("once", false, "Refresh every user once and exit")
	)
	flag.Parse()

	_ = godotenv.Load()
	bootLog := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log, err := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	log = log.With().Str("service", "worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter, err := app.NewAdapter(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create remote adapter")
	}
	defer adapter.Close()

	prices, err := app.NewPricing(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pricing service")
	}

	manager := session.NewManager(adapter, prices, log)
	defer manager.CloseAll()

	users := func() []string { return cfg.RefreshUserIDs }
	if len(cfg.RefreshUserIDs) == 0 {
		src, ok := adapter.(userSource)
		if !ok {
			log.Fatal().Str("backend", cfg.RemoteBackend).Msg("REFRESH_USER_IDS is required for this backend")
		}
		users = src.Users
	}

	if *once {
		failed := refreshAll(ctx, manager, users(), log)
		manager.CloseAll()
		adapter.Close()
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	if cfg.PriceRefreshSchedule == "" {
		log.Fatal().Msg("PRICE_REFRESH_SCHEDULE is empty, nothing to do (use -once for a single run)")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, cfg.JobMaxRetries, jobStore)

	if err := jobQueue.Start(ctx, jobs.NewRefreshHandler(manager, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	scheduler := jobs.NewScheduler(jobQueue, users, cfg.PriceRefreshSchedule, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	log.Info().Str("schedule", cfg.PriceRefreshSchedule).Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	<-scheduler.Stop().Done()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}

// refreshAll refreshes users sequentially and returns how many failed.
func refreshAll(ctx context.Context, manager *session.Manager, users []string, log zerolog.Logger) int {
	var failed int
	for _, id := range users {
		changed, err := manager.RefreshUser(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("user_id", id).Msg("Price refresh failed")
			failed++
			continue
		}
		log.Info().Str("user_id", id).Int("updated", changed).Msg("Prices refreshed")
	}
	log.Info().Int("users", len(users)).Int("failed", failed).Msg("Refresh run completed")
	return failed
}
