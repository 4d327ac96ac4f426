package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/wealthflow/internal/app"
	"github.com/dvloznov/wealthflow/internal/config"
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/logger"
	"github.com/dvloznov/wealthflow/internal/notionsync"
	"github.com/dvloznov/wealthflow/internal/pricing"
	"github.com/dvloznov/wealthflow/internal/session"
)

func main() {
	configPath := flag.String("config", "", "Path to a .env style config file")
	userID := flag.String("user", os.Getenv("WEALTHFLOW_USER"), "User whose ledger is mirrored (required)")
	startDateStr := flag.String("start-date", "", "Only mirror transactions on or after YYYY-MM-DD")
	endDateStr := flag.String("end-date", "", "Only mirror transactions before YYYY-MM-DD")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.New()

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.NotionToken == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN is required")
	}

	var startDate, endDate time.Time
	if *startDateStr != "" {
		if startDate, err = time.Parse("2006-01-02", *startDateStr); err != nil {
			log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
		}
	}
	if *endDateStr != "" {
		if endDate, err = time.Parse("2006-01-02", *endDateStr); err != nil {
			log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
		}
	}
	if !startDate.IsZero() && !endDate.IsZero() && endDate.Before(startDate) {
		log.Fatal().Time("start_date", startDate).Time("end_date", endDate).Msg("Error: end-date must be after start-date")
	}

	// Create context with timeout so the command doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	adapter, err := app.NewAdapter(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create remote adapter")
	}
	defer adapter.Close()

	s, err := session.Open(ctx, domain.User{ID: *userID}, adapter, pricing.Disabled{}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session")
	}
	defer s.Close()

	if err := s.WaitReady(ctx); err != nil {
		log.Fatal().Err(err).Msg("Ledger did not load")
	}

	syncer := notionsync.NewSyncer(notionsync.NewNotionClient(cfg.NotionToken), notionsync.Databases{
		Accounts:     cfg.NotionAccountsDB,
		Transactions: cfg.NotionTransactionsDB,
		Stocks:       cfg.NotionStocksDB,
	}, *dryRun, logger.WithUser(log, *userID))

	log.Info().Str("user_id", *userID).Bool("dry_run", *dryRun).Msg("Starting Notion sync")

	summary, err := syncer.Sync(ctx, s.Ledger(), startDate, endDate)
	if err != nil {
		log.Error().Err(err).Msg("Sync failed")
		s.Close()
		adapter.Close()
		os.Exit(1)
	}

	fmt.Printf("Sync completed: accounts %+v, transactions %+v, stocks %+v\n",
		summary.Accounts, summary.Transactions, summary.Stocks)
}
