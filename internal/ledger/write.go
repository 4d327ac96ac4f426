package ledger

import (
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
)

// Write is an optimistic local mutation awaiting confirmation from the
// remote store. It is created by Begin and finished by exactly one of
// Commit or Rollback.
type Write struct {
	store       *Store
	collections []remote.Collection
	accounts    map[string]domain.Account
	txs         map[string]domain.Transaction
	stocks      map[string]domain.StockHolding
	done        bool
}

// Begin opens a write over the given collections. Their current contents
// are checkpointed for rollback, and snapshots for them are deferred until
// the write finishes.
func (s *Store) Begin(collections ...remote.Collection) *Write {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &Write{store: s, collections: collections}
	for _, c := range collections {
		s.pending[c]++
		switch c {
		case remote.CollectionAccounts:
			w.accounts = copyMap(s.accounts)
		case remote.CollectionTransactions:
			w.txs = copyMap(s.transactions)
		case remote.CollectionStocks:
			w.stocks = make(map[string]domain.StockHolding, len(s.stocks))
			for id, h := range s.stocks {
				w.stocks[id] = h.Clone()
			}
		}
	}
	return w
}

// PutAccount inserts or replaces an account.
func (w *Write) PutAccount(a domain.Account) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.accounts[a.ID] = a
}

// RemoveAccount deletes an account.
func (w *Write) RemoveAccount(id string) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	delete(w.store.accounts, id)
}

// PutTransaction inserts or replaces a transaction.
func (w *Write) PutTransaction(tx domain.Transaction) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.transactions[tx.ID] = tx
}

// RemoveTransaction deletes a transaction.
func (w *Write) RemoveTransaction(id string) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	delete(w.store.transactions, id)
}

// PutStock inserts or replaces a holding.
func (w *Write) PutStock(h domain.StockHolding) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.stocks[h.ID] = h.Clone()
}

// RemoveStock deletes a holding.
func (w *Write) RemoveStock(id string) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	delete(w.store.stocks, id)
}

// Commit confirms the write at rev. Deferred snapshots at or above rev are
// applied; older ones are dropped.
func (w *Write) Commit(rev remote.Revision) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.done {
		return
	}
	w.done = true

	for _, c := range w.collections {
		if rev > s.confirmed[c] {
			s.confirmed[c] = rev
		}
		s.pending[c]--
		s.flushLocked(c)
	}
}

// Rollback restores the checkpointed collections and then applies any
// snapshot that arrived in the meantime.
func (w *Write) Rollback() {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.done {
		return
	}
	w.done = true

	for _, c := range w.collections {
		switch c {
		case remote.CollectionAccounts:
			s.accounts = w.accounts
		case remote.CollectionTransactions:
			s.transactions = w.txs
		case remote.CollectionStocks:
			s.stocks = w.stocks
		}
		s.pending[c]--
		s.flushLocked(c)
	}
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
