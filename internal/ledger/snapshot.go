package ledger

import (
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
)

// ApplySnapshot replaces one collection with the snapshot contents. It
// returns false when the snapshot is stale or has been deferred behind a
// pending write.
func (s *Store) ApplySnapshot(snap remote.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[snap.Collection] > 0 {
		if prev, ok := s.deferred[snap.Collection]; !ok || snap.Revision >= prev.Revision {
			s.deferred[snap.Collection] = snap
		}
		s.log.Debug().
			Str("collection", string(snap.Collection)).
			Int64("revision", int64(snap.Revision)).
			Msg("Snapshot deferred behind pending write")
		return false
	}

	return s.applyLocked(snap)
}

func (s *Store) flushLocked(c remote.Collection) {
	if s.pending[c] > 0 {
		return
	}
	snap, ok := s.deferred[c]
	if !ok {
		return
	}
	delete(s.deferred, c)
	s.applyLocked(snap)
}

func (s *Store) applyLocked(snap remote.Snapshot) bool {
	if snap.Revision < s.confirmed[snap.Collection] {
		s.log.Debug().
			Str("collection", string(snap.Collection)).
			Int64("revision", int64(snap.Revision)).
			Int64("confirmed", int64(s.confirmed[snap.Collection])).
			Msg("Discarding stale snapshot")
		return false
	}

	switch snap.Collection {
	case remote.CollectionAccounts:
		s.accounts = make(map[string]domain.Account, len(snap.Accounts))
		for _, a := range snap.Accounts {
			s.accounts[a.ID] = a
		}
	case remote.CollectionTransactions:
		s.transactions = make(map[string]domain.Transaction, len(snap.Transactions))
		for _, tx := range snap.Transactions {
			s.transactions[tx.ID] = tx
		}
	case remote.CollectionStocks:
		s.stocks = make(map[string]domain.StockHolding, len(snap.Stocks))
		for _, h := range snap.Stocks {
			s.stocks[h.ID] = h.Clone()
		}
	default:
		s.log.Warn().Str("collection", string(snap.Collection)).Msg("Ignoring snapshot for unknown collection")
		return false
	}

	s.confirmed[snap.Collection] = snap.Revision
	s.loaded[snap.Collection] = true
	if !s.readyClosed && len(s.loaded) == len(remote.Collections) {
		close(s.ready)
		s.readyClosed = true
	}
	return true
}
