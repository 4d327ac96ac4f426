package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/pricing"
	"github.com/dvloznov/wealthflow/internal/remote"
)

// DefaultReadyTimeout bounds how long SignIn waits for the initial snapshots.
const DefaultReadyTimeout = 30 * time.Second

// Manager tracks one Session per signed-in user.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*tracked
	opening  singleflight.Group

	adapter      remote.Adapter
	prices       pricing.Service
	readyTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

type tracked struct {
	session  *Session
	lastUsed time.Time
}

// NewManager creates a session manager.
func NewManager(adapter remote.Adapter, prices pricing.Service, log zerolog.Logger) *Manager {
	return &Manager{
		sessions:     make(map[string]*tracked),
		adapter:      adapter,
		prices:       prices,
		readyTimeout: DefaultReadyTimeout,
		now:          time.Now,
		log:          log,
	}
}

// SignIn returns the user's session, opening it and waiting for the initial
// data on first use. Concurrent first sign-ins of one user share a single
// open; other users are not blocked by it.
func (m *Manager) SignIn(ctx context.Context, user domain.User) (*Session, error) {
	if s, ok := m.Get(user.ID); ok {
		return s, nil
	}

	v, err, _ := m.opening.Do(user.ID, func() (interface{}, error) {
		if s, ok := m.Get(user.ID); ok {
			return s, nil
		}

		// The open is shared, so it must not die with the first caller.
		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.readyTimeout)
		defer cancel()
		s, err := m.open(openCtx, user)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.sessions[user.ID] = &tracked{session: s, lastUsed: m.now()}
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("SignIn: %w", err)
	}
	return v.(*Session), nil
}

// open starts a session and waits until its data is loaded.
func (m *Manager) open(ctx context.Context, user domain.User) (*Session, error) {
	s, err := Open(ctx, user, m.adapter, m.prices, m.log)
	if err != nil {
		return nil, err
	}
	if err := s.WaitReady(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Get returns the user's open session and marks it as used.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	t.lastUsed = m.now()
	return t.session, true
}

// peek returns the user's open session without counting it as activity.
func (m *Manager) peek(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	return t.session, true
}

// SignOut closes the user's session and drops its state. Signing out a user
// without a session is a no-op.
func (m *Manager) SignOut(userID string) error {
	m.mu.Lock()
	t, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return t.session.Close()
}

// EvictIdle signs out every user whose session has not been used for
// longer than maxIdle and returns their ids.
func (m *Manager) EvictIdle(maxIdle time.Duration) []string {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*tracked
	var ids []string
	for id, t := range m.sessions {
		if t.lastUsed.Before(cutoff) {
			idle = append(idle, t)
			ids = append(ids, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for i, t := range idle {
		if err := t.session.Close(); err != nil {
			m.log.Warn().Err(err).Str("user_id", ids[i]).Msg("Failed to close idle session")
		}
	}
	if len(ids) > 0 {
		sort.Strings(ids)
		m.log.Info().Strs("user_ids", ids).Dur("max_idle", maxIdle).Msg("Idle sessions evicted")
	}
	return ids
}

// RunEviction calls EvictIdle every maxIdle/2 until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, maxIdle time.Duration) {
	interval := maxIdle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(maxIdle)
		}
	}
}

// RefreshUser refreshes the user's holding prices and returns how many
// changed. An open session is reused without counting as activity;
// otherwise a short-lived one is opened and closed again.
func (m *Manager) RefreshUser(ctx context.Context, userID string) (int, error) {
	if s, ok := m.peek(userID); ok {
		return s.refreshPrices(ctx)
	}

	openCtx, cancel := context.WithTimeout(ctx, m.readyTimeout)
	defer cancel()
	s, err := m.open(openCtx, domain.User{ID: userID})
	if err != nil {
		return 0, fmt.Errorf("RefreshUser: %w", err)
	}
	defer s.Close()
	return s.refreshPrices(ctx)
}

// ActiveUsers returns the ids of users with an open session.
func (m *Manager) ActiveUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll signs every user out.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*tracked)
	m.mu.Unlock()

	var errs []error
	for _, t := range sessions {
		if err := t.session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
