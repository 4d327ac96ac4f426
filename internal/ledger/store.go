// Package ledger holds the in-memory authoritative collections for one
// signed-in user and arbitrates between optimistic local writes and
// snapshots arriving from the live feed.
package ledger

import (
	"sort"
	"sync"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
	"github.com/rs/zerolog"
)

// Store is safe for concurrent use. Accessors return copies.
//
// Snapshots are version-stamped: a snapshot older than the last confirmed
// local write to its collection is discarded, and snapshots for a
// collection with a write in flight are held back until the write is
// committed or rolled back.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]domain.Account
	transactions map[string]domain.Transaction
	stocks       map[string]domain.StockHolding

	confirmed map[remote.Collection]remote.Revision
	pending   map[remote.Collection]int
	deferred  map[remote.Collection]remote.Snapshot

	loaded      map[remote.Collection]bool
	ready       chan struct{}
	readyClosed bool

	log zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(log zerolog.Logger) *Store {
	s := &Store{log: log}
	s.init()
	return s
}

func (s *Store) init() {
	s.accounts = make(map[string]domain.Account)
	s.transactions = make(map[string]domain.Transaction)
	s.stocks = make(map[string]domain.StockHolding)
	s.confirmed = make(map[remote.Collection]remote.Revision)
	s.pending = make(map[remote.Collection]int)
	s.deferred = make(map[remote.Collection]remote.Snapshot)
	s.loaded = make(map[remote.Collection]bool)
	s.ready = make(chan struct{})
	s.readyClosed = false
}

// Ready is closed once every collection has received its first snapshot.
func (s *Store) Ready() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Reset drops all data and revision tracking.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
}

// Accounts returns all accounts ordered by name.
func (s *Store) Accounts() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountsLocked()
}

func (s *Store) accountsLocked() []domain.Account {
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Transactions returns all transactions, newest first.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionsLocked()
}

func (s *Store) transactionsLocked() []domain.Transaction {
	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stocks returns all holdings ordered by symbol.
func (s *Store) Stocks() []domain.StockHolding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stocksLocked()
}

func (s *Store) stocksLocked() []domain.StockHolding {
	out := make([]domain.StockHolding, 0, len(s.stocks))
	for _, h := range s.stocks {
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Ledger returns a copy of all three collections.
func (s *Store) Ledger() domain.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Ledger{
		Accounts:     s.accountsLocked(),
		Transactions: s.transactionsLocked(),
		Stocks:       s.stocksLocked(),
	}
}

// Account looks up an account by id.
func (s *Store) Account(id string) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// Transaction looks up a transaction by id.
func (s *Store) Transaction(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	return tx, ok
}

// Stock looks up a holding by id.
func (s *Store) Stock(id string) (domain.StockHolding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.stocks[id]
	if !ok {
		return domain.StockHolding{}, false
	}
	return h.Clone(), true
}

// Revision returns the last confirmed revision for a collection.
func (s *Store) Revision(c remote.Collection) remote.Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confirmed[c]
}
