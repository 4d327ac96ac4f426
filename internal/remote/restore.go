package remote

import (
	"context"
	"fmt"

	"github.com/dvloznov/wealthflow/internal/domain"
)

// Restore writes a previously exported ledger through the adapter.
// Balances are written as stored since they already reflect the
// transaction history, so transactions are added without reconciliation.
func Restore(ctx context.Context, adapter Adapter, userID string, ledger domain.Ledger) (Revision, error) {
	var rev Revision
	var err error

	for _, a := range ledger.Accounts {
		a.UserID = userID
		if rev, err = adapter.AddAccount(ctx, userID, a); err != nil {
			return rev, fmt.Errorf("Restore: adding account %s: %w", a.ID, err)
		}
	}

	for _, tx := range ledger.Transactions {
		tx.UserID = userID
		if rev, err = adapter.AddTransaction(ctx, userID, tx, nil); err != nil {
			return rev, fmt.Errorf("Restore: adding transaction %s: %w", tx.ID, err)
		}
	}

	if len(ledger.Stocks) > 0 {
		stocks := make([]domain.StockHolding, len(ledger.Stocks))
		for i, h := range ledger.Stocks {
			h.UserID = userID
			stocks[i] = h
		}
		if rev, err = adapter.UpdateStocks(ctx, userID, stocks); err != nil {
			return rev, fmt.Errorf("Restore: updating stocks: %w", err)
		}
	}

	return rev, nil
}
