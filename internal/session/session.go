// Package session is the per-user application context. A Session is
// created on sign-in and torn down on sign-out; it owns the user's Ledger
// Store, the live feed that keeps it current, and every mutation entry
// point. Mutations are serialized per session, applied optimistically,
// persisted through the remote adapter and rolled back if the write fails.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/ledger"
	"github.com/dvloznov/wealthflow/internal/logger"
	"github.com/dvloznov/wealthflow/internal/pricing"
	"github.com/dvloznov/wealthflow/internal/remote"
	"github.com/dvloznov/wealthflow/internal/valuation"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a mutation targets an unknown entity.
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned by a session after sign-out.
	ErrClosed = errors.New("session closed")
	// ErrPersist wraps remote write failures. The local view has already
	// been rolled back when it is returned.
	ErrPersist = errors.New("remote write failed")
)

// Session is safe for concurrent use.
type Session struct {
	user    domain.User
	store   *ledger.Store
	adapter remote.Adapter
	prices  pricing.Service
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool

	feed   remote.Feed
	cancel context.CancelFunc
	done   chan struct{}
}

// Open initializes the user's remote data, subscribes to the live feed and
// starts applying snapshots to a fresh Ledger Store. The session outlives
// ctx; call Close to end it.
func Open(ctx context.Context, user domain.User, adapter remote.Adapter, prices pricing.Service, log zerolog.Logger) (*Session, error) {
	if user.ID == "" {
		return nil, fmt.Errorf("Open: %w: user id is required", domain.ErrInvalid)
	}
	if prices == nil {
		prices = pricing.Disabled{}
	}
	log = logger.WithUser(log, user.ID)

	if err := adapter.InitUserData(ctx, user); err != nil {
		return nil, fmt.Errorf("Open: init user data: %w", err)
	}

	feedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	feed, err := adapter.Subscribe(feedCtx, user.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("Open: subscribe: %w", err)
	}

	s := &Session{
		user:    user,
		store:   ledger.NewStore(log),
		adapter: adapter,
		prices:  prices,
		log:     log,
		now:     time.Now,
		feed:    feed,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.consume()

	log.Info().Msg("Session opened")
	return s, nil
}

func (s *Session) consume() {
	defer close(s.done)
	for snap := range s.feed.Events() {
		if s.store.ApplySnapshot(snap) {
			s.log.Debug().
				Str("collection", string(snap.Collection)).
				Int64("revision", int64(snap.Revision)).
				Msg("Snapshot applied")
		}
	}
}

// WaitReady blocks until every collection has been loaded from the feed.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.store.Ready():
		return nil
	case <-s.done:
		return fmt.Errorf("WaitReady: feed ended before data was loaded")
	case <-ctx.Done():
		return fmt.Errorf("WaitReady: %w", ctx.Err())
	}
}

// Close tears down the feed and drops all in-memory state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.cancel()
	err := s.feed.Close()
	<-s.done
	s.store.Reset()

	s.log.Info().Msg("Session closed")
	return err
}

// User returns the signed-in user.
func (s *Session) User() domain.User {
	return s.user
}

// Accounts returns the user's accounts.
func (s *Session) Accounts() []domain.Account {
	return s.store.Accounts()
}

// Transactions returns the user's transactions, newest first. A non-empty
// typ filters by transaction type.
func (s *Session) Transactions(typ domain.TransactionType) []domain.Transaction {
	txs := s.store.Transactions()
	if typ == "" {
		return txs
	}
	out := txs[:0]
	for _, tx := range txs {
		if tx.Type == typ {
			out = append(out, tx)
		}
	}
	return out
}

// Stocks returns the user's holdings.
func (s *Session) Stocks() []domain.StockHolding {
	return s.store.Stocks()
}

// Ledger returns a copy of all of the user's data.
func (s *Session) Ledger() domain.Ledger {
	return s.store.Ledger()
}

// Dashboard derives the overview from the current ledger.
func (s *Session) Dashboard() valuation.Dashboard {
	return valuation.BuildDashboard(s.store.Ledger(), s.now())
}

// Report derives the category breakdown and monthly trend.
func (s *Session) Report() valuation.Report {
	return valuation.BuildReport(s.store.Ledger(), s.now().Location())
}

// lock acquires the single-writer lock, failing if the session is closed.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// finish commits or rolls back w depending on err.
func (s *Session) finish(w *ledger.Write, op string, rev remote.Revision, err error) error {
	if err != nil {
		w.Rollback()
		s.log.Error().Err(err).Str("op", op).Msg("Remote write failed, local changes rolled back")
		return fmt.Errorf("%s: %w: %w", op, ErrPersist, err)
	}
	w.Commit(rev)
	return nil
}
