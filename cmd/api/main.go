package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/wealthflow/internal/api"
	"github.com/dvloznov/wealthflow/internal/app"
	"github.com/dvloznov/wealthflow/internal/config"
	"github.com/dvloznov/wealthflow/internal/identity"
	"github.com/dvloznov/wealthflow/internal/jobs"
	"github.com/dvloznov/wealthflow/internal/jobs/inmemory"
	"github.com/dvloznov/wealthflow/internal/logger"
	"github.com/dvloznov/wealthflow/internal/session"
)

func main() {
	var (
		port       = flag.String("port", "", "HTTP server port (overrides SERVER_PORT)")
		configPath = flag.String("config", "", "Path to a .env style config file")
	)
	flag.Parse()

	// Local development convenience; real deployments set the environment.
	_ = godotenv.Load()

	bootLog := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.ServerPort = *port
	}

	log, err := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	ctx := context.Background()

	adapter, err := app.NewAdapter(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create remote adapter")
	}
	defer adapter.Close()

	prices, err := app.NewPricing(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pricing service")
	}

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}
	verifier, err := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token verifier")
	}

	manager := session.NewManager(adapter, prices, log)
	defer manager.CloseAll()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, cfg.JobMaxRetries, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if cfg.SessionIdleTimeout > 0 {
		go manager.RunEviction(workerCtx, cfg.SessionIdleTimeout)
	}

	if err := jobQueue.Start(workerCtx, jobs.NewRefreshHandler(manager, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.JobWorkers).Int("queue_size", cfg.JobQueueSize).Msg("Job workers started")

	var scheduler *jobs.Scheduler
	if cfg.PriceRefreshSchedule != "" {
		users := jobs.UserLister(manager.ActiveUsers)
		if len(cfg.RefreshUserIDs) > 0 {
			ids := cfg.RefreshUserIDs
			users = func() []string { return ids }
		}
		scheduler = jobs.NewScheduler(jobQueue, users, cfg.PriceRefreshSchedule, log)
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start price refresh scheduler")
		}
	} else {
		log.Info().Msg("PRICE_REFRESH_SCHEDULE is empty, scheduled refresh disabled")
	}

	handler := api.NewRouter(api.Dependencies{
		Sessions:       manager,
		Verifier:       verifier,
		Publisher:      jobQueue,
		JobStore:       jobStore,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Str("backend", cfg.RemoteBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
