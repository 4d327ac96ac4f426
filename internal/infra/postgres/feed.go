package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
)

// Subscribe implements remote.Adapter.
func (a *Adapter) Subscribe(ctx context.Context, userID string) (remote.Feed, error) {
	log := a.log.With().Str("user_id", userID).Str("backend", "postgres").Logger()
	feed, err := remote.Watch(ctx, remote.Watcher{
		Load: func(ctx context.Context) (remote.State, error) { return a.state(ctx, userID) },
		Wake: a.listen(userID),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("Subscribe: %w", err)
	}
	return feed, nil
}

// listen wakes the watcher for every notification about userID. A lost
// connection is re-established after a.retry.
func (a *Adapter) listen(userID string) func(ctx context.Context) <-chan struct{} {
	return func(ctx context.Context) <-chan struct{} {
		wake := make(chan struct{}, 1)
		go func() {
			defer close(wake)
			for ctx.Err() == nil {
				err := a.waitNotifications(ctx, userID, wake)
				if ctx.Err() != nil {
					return
				}
				a.log.Warn().Err(err).Str("user_id", userID).Msg("Change listener lost, reconnecting")
				select {
				case <-time.After(a.retry):
				case <-ctx.Done():
					return
				}
			}
		}()
		return wake
	}
}

func signal(wake chan<- struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}

func (a *Adapter) waitNotifications(ctx context.Context, userID string, wake chan<- struct{}) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer func() {
		if !conn.Conn().IsClosed() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangesChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	// Changes committed before LISTEN took effect are picked up by one reload.
	signal(wake)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		if n.Payload == userID {
			signal(wake)
		}
	}
}

// state reads every collection in one repeatable-read transaction.
func (a *Adapter) state(ctx context.Context, userID string) (remote.State, error) {
	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return remote.State{}, fmt.Errorf("state: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var rev, accRev, txRev, stockRev int64
	err = tx.QueryRow(ctx, `
		SELECT revision, accounts_revision, transactions_revision, stocks_revision
		FROM users WHERE user_id = $1`, userID).Scan(&rev, &accRev, &txRev, &stockRev)
	if errors.Is(err, pgx.ErrNoRows) {
		return remote.State{}, nil
	}
	if err != nil {
		return remote.State{}, fmt.Errorf("state: reading revisions: %w", err)
	}

	state := remote.State{
		Revision: remote.Revision(rev),
		Revisions: remote.Revisions{
			remote.CollectionAccounts:     remote.Revision(accRev),
			remote.CollectionTransactions: remote.Revision(txRev),
			remote.CollectionStocks:       remote.Revision(stockRev),
		},
	}

	if state.Ledger.Accounts, err = loadAccounts(ctx, tx, userID); err != nil {
		return remote.State{}, err
	}
	if state.Ledger.Transactions, err = loadTransactions(ctx, tx, userID); err != nil {
		return remote.State{}, err
	}
	if state.Ledger.Stocks, err = loadStocks(ctx, tx, userID); err != nil {
		return remote.State{}, err
	}
	return state, nil
}

func loadAccounts(ctx context.Context, tx pgx.Tx, userID string) ([]domain.Account, error) {
	rows, err := tx.Query(ctx, `
		SELECT account_id, user_id, name, account_type, balance, currency
		FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("loadAccounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var acc domain.Account
		var typ string
		if err := rows.Scan(&acc.ID, &acc.UserID, &acc.Name, &typ, &acc.Balance, &acc.Currency); err != nil {
			return nil, fmt.Errorf("loadAccounts: scan: %w", err)
		}
		acc.Type = domain.AccountType(typ)
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loadAccounts: %w", err)
	}
	return out, nil
}

func loadTransactions(ctx context.Context, tx pgx.Tx, userID string) ([]domain.Transaction, error) {
	rows, err := tx.Query(ctx, `
		SELECT transaction_id, user_id, account_id, amount, tx_date, tx_type, category, note
		FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("loadTransactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Amount, &t.Date, &typ, &t.Category, &t.Note); err != nil {
			return nil, fmt.Errorf("loadTransactions: scan: %w", err)
		}
		t.Type = domain.TransactionType(typ)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loadTransactions: %w", err)
	}
	return out, nil
}

func loadStocks(ctx context.Context, tx pgx.Tx, userID string) ([]domain.StockHolding, error) {
	rows, err := tx.Query(ctx, `
		SELECT holding_id, user_id, symbol, name, shares, average_cost, current_price, last_updated, sources
		FROM stocks WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("loadStocks: %w", err)
	}
	defer rows.Close()

	var out []domain.StockHolding
	for rows.Next() {
		var h domain.StockHolding
		if err := rows.Scan(&h.ID, &h.UserID, &h.Symbol, &h.Name, &h.Shares, &h.AverageCost, &h.CurrentPrice, &h.LastUpdated, &h.Sources); err != nil {
			return nil, fmt.Errorf("loadStocks: scan: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loadStocks: %w", err)
	}
	return out, nil
}
