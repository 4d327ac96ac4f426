package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/app"
	"github.com/dvloznov/wealthflow/internal/config"
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/logger"
	"github.com/dvloznov/wealthflow/internal/remote"
	"github.com/dvloznov/wealthflow/internal/session"
)

// common holds the flags every ledger command takes.
type common struct {
	configPath string
	userID     string
	timeout    time.Duration
}

func (c *common) register(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to a .env style config file.")
	f.StringVar(&c.userID, "user", os.Getenv("WEALTHFLOW_USER"), "User id to act as (or set WEALTHFLOW_USER).")
	f.DurationVar(&c.timeout, "timeout", 2*time.Minute, "Overall command timeout.")
}

// env is what a running command needs.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	adapter remote.Adapter
}

// open loads configuration, applies adjust and connects the backend.
func (c *common) open(ctx context.Context, adjust ...func(*config.Config)) (*env, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	for _, fn := range adjust {
		fn(cfg)
	}
	// Logs go to stderr so command output stays pipeable.
	log, err := logger.NewFromConfigTo(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	adapter, err := app.NewAdapter(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, adapter: adapter}, nil
}

// withSession opens a session for -user, waits for the ledger to load and
// runs fn.
func (c *common) withSession(fn func(ctx context.Context, s *session.Session, e *env) error) subcommands.ExitStatus {
	if c.userID == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		return subcommands.ExitUsageError
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	e, err := c.open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.adapter.Close()

	prices, err := app.NewPricing(ctx, e.cfg, e.log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	s, err := session.Open(ctx, domain.User{ID: c.userID}, e.adapter, prices, e.log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	if err := s.WaitReady(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if err := fn(ctx, s, e); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
