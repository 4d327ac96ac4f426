package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/domain"
)

// Revisions holds the revision at which each collection last changed.
type Revisions map[Collection]Revision

// Changed lists, in Collections order, the collections whose revision is
// newer than in since.
func (r Revisions) Changed(since Revisions) []Collection {
	var out []Collection
	for _, c := range Collections {
		if r[c] > since[c] {
			out = append(out, c)
		}
	}
	return out
}

// State is a consistent read of one user's data from a backend.
type State struct {
	Revision  Revision
	Revisions Revisions
	Ledger    domain.Ledger
}

// Snapshot returns the snapshot of collection c, stamped with the state's
// revision.
func (s State) Snapshot(c Collection) Snapshot {
	snap := Snapshot{Collection: c, Revision: s.Revision}
	switch c {
	case CollectionAccounts:
		snap.Accounts = s.Ledger.Accounts
	case CollectionTransactions:
		snap.Transactions = s.Ledger.Transactions
	case CollectionStocks:
		snap.Stocks = s.Ledger.Stocks
	}
	return snap
}

// Watcher configures a feed for backends without push delivery of data.
type Watcher struct {
	// Load reads the full state.
	Load func(ctx context.Context) (State, error)
	// Probe, when set, returns the current revision so Load can be skipped
	// while nothing changed.
	Probe func(ctx context.Context) (Revision, error)
	// Wake returns a channel signalling that the backend may have changed.
	// Its producer must stop when ctx ends; the feed ends when the channel
	// is closed.
	Wake func(ctx context.Context) <-chan struct{}
}

// WatchFeed is the Feed returned by Watch.
type WatchFeed struct {
	*FeedQueue
	cancel context.CancelFunc
}

// Close stops the watcher and its wake-up producer.
func (f *WatchFeed) Close() error {
	f.cancel()
	return f.FeedQueue.Close()
}

// Watch loads the state once, delivers every collection, and then delivers
// the changed collections after each wake-up until ctx ends or the feed is
// closed.
func Watch(ctx context.Context, w Watcher, log zerolog.Logger) (*WatchFeed, error) {
	initial, err := w.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("Watch: initial load: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	q := NewFeedQueue()
	for _, c := range Collections {
		q.Push(initial.Snapshot(c))
	}
	wake := w.Wake(ctx)

	go func() {
		defer q.Close()
		defer cancel()
		last := initial
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.Done():
				return
			case _, ok := <-wake:
				if !ok {
					return
				}
			}

			if w.Probe != nil {
				rev, err := w.Probe(ctx)
				if err != nil {
					log.Warn().Err(err).Msg("Revision probe failed")
					continue
				}
				if rev == last.Revision {
					continue
				}
			}

			next, err := w.Load(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Reloading state failed")
				continue
			}
			if next.Revision < last.Revision {
				continue
			}

			changed := next.Revisions.Changed(last.Revisions)
			for _, c := range changed {
				q.Push(next.Snapshot(c))
			}
			if len(changed) > 0 {
				log.Debug().Int64("revision", int64(next.Revision)).Int("collections", len(changed)).Msg("Pushed changed collections")
			}
			last = next
		}
	}()

	return &WatchFeed{FeedQueue: q, cancel: cancel}, nil
}

// Every returns a Wake function that fires every d.
func Every(d time.Duration) func(ctx context.Context) <-chan struct{} {
	return func(ctx context.Context) <-chan struct{} {
		wake := make(chan struct{})
		go func() {
			defer close(wake)
			ticker := time.NewTicker(d)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				select {
				case wake <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return wake
	}
}

var _ Feed = (*WatchFeed)(nil)
