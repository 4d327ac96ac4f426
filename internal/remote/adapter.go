// Package remote defines the boundary to durable storage: the persistence
// adapter contract, the live feed it exposes, and helpers shared by every
// adapter implementation.
package remote

import (
	"context"
	"errors"

	"github.com/dvloznov/wealthflow/internal/domain"
)

// ErrNotFound is returned when an update targets an entity that does not exist.
var ErrNotFound = errors.New("not found")

// Revision is a per-user, monotonically increasing version number. Every
// successful write returns the revision it committed at, and every snapshot
// carries the revision it was read at.
type Revision int64

// Collection names one of the three synchronized collections.
type Collection string

const (
	CollectionAccounts     Collection = "accounts"
	CollectionTransactions Collection = "transactions"
	CollectionStocks       Collection = "stocks"
)

// Collections lists every synchronized collection.
var Collections = []Collection{CollectionAccounts, CollectionTransactions, CollectionStocks}

// Snapshot is a full replacement of one collection pushed by the live feed.
// Only the slice matching Collection is populated.
type Snapshot struct {
	Collection   Collection
	Revision     Revision
	Accounts     []domain.Account
	Transactions []domain.Transaction
	Stocks       []domain.StockHolding
}

// Feed is a live subscription to a user's collections.
type Feed interface {
	// Events delivers snapshots. The channel is closed when the feed ends.
	Events() <-chan Snapshot

	// Close stops the subscription and releases resources.
	Close() error
}

// Adapter persists reconciled intents and streams the authoritative state back.
type Adapter interface {
	// InitUserData records the user profile and seeds sample data if the user
	// has no accounts yet. Calling it again is a no-op for the data.
	InitUserData(ctx context.Context, user domain.User) error

	AddAccount(ctx context.Context, userID string, account domain.Account) (Revision, error)
	UpdateAccount(ctx context.Context, userID string, account domain.Account) (Revision, error)
	DeleteAccount(ctx context.Context, userID, accountID string) (Revision, error)

	// AddTransaction inserts the transaction and overwrites the reconciled
	// account balances in one atomic write.
	AddTransaction(ctx context.Context, userID string, tx domain.Transaction, reconciled []domain.Account) (Revision, error)

	// DeleteTransaction removes the transaction and overwrites the reconciled
	// account balances in one atomic write.
	DeleteTransaction(ctx context.Context, userID, txID string, reconciled []domain.Account) (Revision, error)

	AddStock(ctx context.Context, userID string, holding domain.StockHolding) (Revision, error)
	DeleteStock(ctx context.Context, userID, holdingID string) (Revision, error)

	// UpdateStocks upserts the holdings in one batch.
	UpdateStocks(ctx context.Context, userID string, holdings []domain.StockHolding) (Revision, error)

	// Subscribe opens a live feed. One snapshot per collection is delivered
	// immediately, then one for each collection whenever it changes.
	Subscribe(ctx context.Context, userID string) (Feed, error)

	// Close releases the adapter's resources.
	Close() error
}
