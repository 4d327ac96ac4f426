// Package postgres implements the remote adapter on PostgreSQL. Writes run
// in SQL transactions that serialize on the user row; the live feed is
// driven by LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
)

// ChangesChannel is the NOTIFY channel; the payload is the user id.
const ChangesChannel = "wealthflow_changes"

// Adapter implements remote.Adapter on a pgx connection pool.
type Adapter struct {
	pool  *pgxpool.Pool
	seed  bool
	now   func() time.Time
	retry time.Duration
	log   zerolog.Logger
}

// NewAdapter connects to databaseURL.
func NewAdapter(ctx context.Context, databaseURL string, seed bool, log zerolog.Logger) (*Adapter, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("NewAdapter: parsing database URL: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("NewAdapter: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewAdapter: ping: %w", err)
	}
	return NewAdapterWithPool(pool, seed, log), nil
}

// NewAdapterWithPool wraps an existing pool. Close closes the pool.
func NewAdapterWithPool(pool *pgxpool.Pool, seed bool, log zerolog.Logger) *Adapter {
	return &Adapter{pool: pool, seed: seed, now: time.Now, retry: 2 * time.Second, log: log}
}

// Close implements remote.Adapter.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// bumpSQL advances the user's revision and the revisions of the changed
// collections and returns the new revision.
func bumpSQL(changed []remote.Collection) string {
	set := []string{"revision = revision + 1"}
	for _, c := range changed {
		set = append(set, fmt.Sprintf("%s_revision = revision + 1", c))
	}
	return "UPDATE users SET " + strings.Join(set, ", ") + " WHERE user_id = $1 RETURNING revision"
}

// write runs fn in a transaction holding the user row lock. When fn reports
// a change the revisions are bumped and listeners notified on commit; when
// it reports none the current revision is returned.
func (a *Adapter) write(ctx context.Context, op, userID string, fn func(tx pgx.Tx) (bool, error), changed ...remote.Collection) (remote.Revision, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	var rev int64
	err = tx.QueryRow(ctx, `SELECT revision FROM users WHERE user_id = $1 FOR UPDATE`, userID).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: user %s is not initialized", op, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: locking user: %w", op, err)
	}

	didChange, err := fn(tx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if didChange {
		if err := tx.QueryRow(ctx, bumpSQL(changed), userID).Scan(&rev); err != nil {
			return 0, fmt.Errorf("%s: bumping revision: %w", op, err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangesChannel, userID); err != nil {
			return 0, fmt.Errorf("%s: notify: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	a.log.Debug().Str("op", op).Str("user_id", userID).Int64("revision", rev).Bool("changed", didChange).Msg("Postgres write committed")
	return remote.Revision(rev), nil
}

// sourcesParam stores no sources as SQL NULL.
func sourcesParam(h domain.StockHolding) interface{} {
	if len(h.Sources) == 0 {
		return nil
	}
	return h.Sources
}

const insertAccountSQL = `
	INSERT INTO accounts (account_id, user_id, name, account_type, balance, currency)
	VALUES ($1, $2, $3, $4, $5, $6)`

const insertTransactionSQL = `
	INSERT INTO transactions (transaction_id, user_id, account_id, amount, tx_date, tx_type, category, note)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const upsertStockSQL = `
	INSERT INTO stocks (holding_id, user_id, symbol, name, shares, average_cost, current_price, last_updated, sources)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (user_id, holding_id) DO UPDATE SET
		symbol = EXCLUDED.symbol,
		name = EXCLUDED.name,
		shares = EXCLUDED.shares,
		average_cost = EXCLUDED.average_cost,
		current_price = EXCLUDED.current_price,
		last_updated = EXCLUDED.last_updated,
		sources = EXCLUDED.sources`

func queueAccount(b *pgx.Batch, userID string, acc domain.Account) {
	b.Queue(insertAccountSQL, acc.ID, userID, acc.Name, string(acc.Type), acc.Balance, acc.Currency)
}

func queueTransaction(b *pgx.Batch, userID string, t domain.Transaction) {
	b.Queue(insertTransactionSQL, t.ID, userID, t.AccountID, t.Amount, t.Date, string(t.Type), t.Category, t.Note)
}

func queueStock(b *pgx.Batch, userID string, h domain.StockHolding) {
	b.Queue(upsertStockSQL, h.ID, userID, h.Symbol, h.Name, h.Shares, h.AverageCost, h.CurrentPrice, h.LastUpdated, sourcesParam(h))
}

// InitUserData implements remote.Adapter.
func (a *Adapter) InitUserData(ctx context.Context, user domain.User) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO users (user_id, name, email) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email)`,
		user.ID, user.Name, user.Email)
	if err != nil {
		return fmt.Errorf("InitUserData: upserting user: %w", err)
	}

	if !a.seed {
		return nil
	}

	rev, err := a.write(ctx, "InitUserData", user.ID, func(tx pgx.Tx) (bool, error) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`, user.ID).Scan(&exists); err != nil {
			return false, fmt.Errorf("checking accounts: %w", err)
		}
		if exists {
			return false, nil
		}

		sample := remote.SampleData(user.ID, a.now())
		batch := &pgx.Batch{}
		for _, acc := range sample.Accounts {
			queueAccount(batch, user.ID, acc)
		}
		for _, t := range sample.Transactions {
			queueTransaction(batch, user.ID, t)
		}
		for _, h := range sample.Stocks {
			queueStock(batch, user.ID, h)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("inserting sample data: %w", err)
		}
		return true, nil
	}, remote.Collections...)
	if err != nil {
		return err
	}

	a.log.Info().Str("user_id", user.ID).Int64("revision", int64(rev)).Msg("User data initialized")
	return nil
}

// AddAccount implements remote.Adapter.
func (a *Adapter) AddAccount(ctx context.Context, userID string, account domain.Account) (remote.Revision, error) {
	return a.write(ctx, "AddAccount", userID, func(tx pgx.Tx) (bool, error) {
		_, err := tx.Exec(ctx, insertAccountSQL, account.ID, userID, account.Name, string(account.Type), account.Balance, account.Currency)
		return err == nil, err
	}, remote.CollectionAccounts)
}

// UpdateAccount implements remote.Adapter.
func (a *Adapter) UpdateAccount(ctx context.Context, userID string, account domain.Account) (remote.Revision, error) {
	return a.write(ctx, "UpdateAccount", userID, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `
			UPDATE accounts SET name = $3, account_type = $4, balance = $5, currency = $6
			WHERE user_id = $1 AND account_id = $2`,
			userID, account.ID, account.Name, string(account.Type), account.Balance, account.Currency)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() == 0 {
			return false, fmt.Errorf("account %s: %w", account.ID, remote.ErrNotFound)
		}
		return true, nil
	}, remote.CollectionAccounts)
}

// DeleteAccount implements remote.Adapter.
func (a *Adapter) DeleteAccount(ctx context.Context, userID, accountID string) (remote.Revision, error) {
	return a.write(ctx, "DeleteAccount", userID, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `DELETE FROM accounts WHERE user_id = $1 AND account_id = $2`, userID, accountID)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	}, remote.CollectionAccounts)
}

// setBalances overwrites each reconciled balance and fails if an account
// is gone, which rolls the whole write back.
func setBalances(ctx context.Context, tx pgx.Tx, userID string, reconciled []domain.Account) error {
	for _, acc := range reconciled {
		tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = $3 WHERE user_id = $1 AND account_id = $2`, userID, acc.ID, acc.Balance)
		if err != nil {
			return fmt.Errorf("updating balance of %s: %w", acc.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("account %s: %w", acc.ID, remote.ErrNotFound)
		}
	}
	return nil
}

func balanceCollections(reconciled []domain.Account) []remote.Collection {
	if len(reconciled) == 0 {
		return []remote.Collection{remote.CollectionTransactions}
	}
	return []remote.Collection{remote.CollectionTransactions, remote.CollectionAccounts}
}

// AddTransaction implements remote.Adapter.
func (a *Adapter) AddTransaction(ctx context.Context, userID string, t domain.Transaction, reconciled []domain.Account) (remote.Revision, error) {
	return a.write(ctx, "AddTransaction", userID, func(tx pgx.Tx) (bool, error) {
		if err := setBalances(ctx, tx, userID, reconciled); err != nil {
			return false, err
		}
		if _, err := tx.Exec(ctx, insertTransactionSQL, t.ID, userID, t.AccountID, t.Amount, t.Date, string(t.Type), t.Category, t.Note); err != nil {
			return false, fmt.Errorf("inserting transaction: %w", err)
		}
		return true, nil
	}, balanceCollections(reconciled)...)
}

// DeleteTransaction implements remote.Adapter.
func (a *Adapter) DeleteTransaction(ctx context.Context, userID, txID string, reconciled []domain.Account) (remote.Revision, error) {
	return a.write(ctx, "DeleteTransaction", userID, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND transaction_id = $2`, userID, txID)
		if err != nil {
			return false, fmt.Errorf("deleting transaction: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, nil
		}
		return true, setBalances(ctx, tx, userID, reconciled)
	}, balanceCollections(reconciled)...)
}

// AddStock implements remote.Adapter.
func (a *Adapter) AddStock(ctx context.Context, userID string, holding domain.StockHolding) (remote.Revision, error) {
	return a.write(ctx, "AddStock", userID, func(tx pgx.Tx) (bool, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO stocks (holding_id, user_id, symbol, name, shares, average_cost, current_price, last_updated, sources)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			holding.ID, userID, holding.Symbol, holding.Name, holding.Shares, holding.AverageCost,
			holding.CurrentPrice, holding.LastUpdated, sourcesParam(holding))
		return err == nil, err
	}, remote.CollectionStocks)
}

// DeleteStock implements remote.Adapter.
func (a *Adapter) DeleteStock(ctx context.Context, userID, holdingID string) (remote.Revision, error) {
	return a.write(ctx, "DeleteStock", userID, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `DELETE FROM stocks WHERE user_id = $1 AND holding_id = $2`, userID, holdingID)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	}, remote.CollectionStocks)
}

// UpdateStocks implements remote.Adapter. The batch is sent in one round trip.
func (a *Adapter) UpdateStocks(ctx context.Context, userID string, holdings []domain.StockHolding) (remote.Revision, error) {
	return a.write(ctx, "UpdateStocks", userID, func(tx pgx.Tx) (bool, error) {
		if len(holdings) == 0 {
			return false, nil
		}
		batch := &pgx.Batch{}
		for _, h := range holdings {
			queueStock(batch, userID, h)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("upserting holdings: %w", err)
		}
		return true, nil
	}, remote.CollectionStocks)
}

var _ remote.Adapter = (*Adapter)(nil)
