package session

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/reconcile"
	"github.com/dvloznov/wealthflow/internal/valuation"
)

// ApplyAccountIntent executes one explicit account command.
func (s *Session) ApplyAccountIntent(ctx context.Context, in reconcile.Intent[domain.Account]) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.applyAccountIntent(ctx, in)
}

func (s *Session) applyAccountIntent(ctx context.Context, in reconcile.Intent[domain.Account]) error {
	var err error
	switch in.Op {
	case reconcile.OpAdd:
		_, err = s.addAccount(ctx, in.Entity)
	case reconcile.OpUpdate:
		_, err = s.updateAccount(ctx, in.Entity)
	case reconcile.OpRemove:
		err = s.deleteAccount(ctx, in.ID)
	default:
		err = fmt.Errorf("ApplyAccountIntent: %w: unknown op %q", domain.ErrInvalid, in.Op)
	}
	return err
}

// ApplyStockIntent executes one explicit holding command.
func (s *Session) ApplyStockIntent(ctx context.Context, in reconcile.Intent[domain.StockHolding]) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.applyStockIntent(ctx, in)
}

func (s *Session) applyStockIntent(ctx context.Context, in reconcile.Intent[domain.StockHolding]) error {
	var err error
	switch in.Op {
	case reconcile.OpAdd:
		_, err = s.addStock(ctx, in.Entity)
	case reconcile.OpUpdate:
		if _, ok := s.store.Stock(in.ID); !ok {
			return fmt.Errorf("ApplyStockIntent: holding %s: %w", in.ID, ErrNotFound)
		}
		if err := domain.ValidateHolding(in.Entity); err != nil {
			return fmt.Errorf("ApplyStockIntent: %w", err)
		}
		err = s.updateStocks(ctx, []domain.StockHolding{in.Entity})
	case reconcile.OpRemove:
		err = s.deleteStock(ctx, in.ID)
	default:
		err = fmt.Errorf("ApplyStockIntent: %w: unknown op %q", domain.ErrInvalid, in.Op)
	}
	return err
}

// ReplaceAccounts accepts a complete new account collection, infers the
// change against the current one and persists it. It returns the intents
// that were executed.
func (s *Session) ReplaceAccounts(ctx context.Context, next []domain.Account) ([]reconcile.Intent[domain.Account], error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	intents := reconcile.DiffAccounts(s.store.Accounts(), next)
	for i, in := range intents {
		if err := s.applyAccountIntent(ctx, in); err != nil {
			return intents[:i], fmt.Errorf("ReplaceAccounts: %w", err)
		}
	}
	return intents, nil
}

// ReplaceStocks is ReplaceAccounts for holdings. Updates are sent to the
// adapter as one batch.
func (s *Session) ReplaceStocks(ctx context.Context, next []domain.StockHolding) ([]reconcile.Intent[domain.StockHolding], error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	intents := reconcile.DiffStocks(s.store.Stocks(), next)
	var updates []domain.StockHolding
	for _, in := range intents {
		if in.Op == reconcile.OpUpdate {
			if err := domain.ValidateHolding(in.Entity); err != nil {
				return nil, fmt.Errorf("ReplaceStocks: %w", err)
			}
			updates = append(updates, in.Entity)
			continue
		}
		if err := s.applyStockIntent(ctx, in); err != nil {
			return nil, fmt.Errorf("ReplaceStocks: %w", err)
		}
	}
	if err := s.updateStocks(ctx, updates); err != nil {
		return nil, fmt.Errorf("ReplaceStocks: %w", err)
	}
	return intents, nil
}

// ReplaceTransactions accepts a complete new transaction collection in
// which new transactions are prepended. At most one add or remove is
// inferred; ok is false when no change could be inferred.
func (s *Session) ReplaceTransactions(ctx context.Context, next []domain.Transaction) (intent reconcile.Intent[domain.Transaction], ok bool, err error) {
	if err := s.lock(); err != nil {
		return intent, false, err
	}
	defer s.mu.Unlock()

	intent, ok = reconcile.DiffTransactions(s.store.Transactions(), next)
	if !ok {
		s.log.Warn().Int("previous", len(s.store.Transactions())).Int("next", len(next)).Msg("No transaction change inferred, skipping")
		return intent, false, nil
	}

	switch intent.Op {
	case reconcile.OpAdd:
		tx, err := s.addTransaction(ctx, intent.Entity)
		if err != nil {
			return intent, false, fmt.Errorf("ReplaceTransactions: %w", err)
		}
		intent = reconcile.Add(tx)
	case reconcile.OpRemove:
		if err := s.deleteTransaction(ctx, intent.ID); err != nil {
			return intent, false, fmt.Errorf("ReplaceTransactions: %w", err)
		}
	}
	return intent, true, nil
}

// RefreshPrices asks the price service for new prices and writes the
// holdings that changed. The model call runs without holding the writer
// lock, so only the quote fields are merged into the holdings as they are
// once the lock is re-taken. Holdings deleted or re-pointed to another
// symbol in the meantime are not written back.
func (s *Session) RefreshPrices(ctx context.Context) ([]domain.StockHolding, error) {
	if _, err := s.refreshPrices(ctx); err != nil {
		return nil, err
	}
	return s.store.Stocks(), nil
}

func (s *Session) refreshPrices(ctx context.Context) (int, error) {
	holdings := s.store.Stocks()
	if len(holdings) == 0 {
		return 0, nil
	}
	asked := make(map[string]string, len(holdings))
	for _, h := range holdings {
		asked[h.ID] = h.Symbol
	}

	refreshed := s.prices.RefreshPrices(ctx, holdings)

	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	var changed []domain.StockHolding
	for _, quoted := range refreshed {
		current, ok := s.store.Stock(quoted.ID)
		if !ok || current.Symbol != asked[quoted.ID] {
			continue
		}
		if next, ok := withQuote(current, quoted); ok {
			changed = append(changed, next)
		}
	}

	if err := s.updateStocks(ctx, changed); err != nil {
		return 0, fmt.Errorf("RefreshPrices: %w", err)
	}

	s.log.Info().Int("holdings", len(holdings)).Int("updated", len(changed)).Msg("Price refresh applied")
	return len(changed), nil
}

// withQuote copies the price fields of quoted onto current. ok is false
// when they are already equal.
func withQuote(current, quoted domain.StockHolding) (domain.StockHolding, bool) {
	quoted = quoted.Clone()
	next := current
	next.CurrentPrice = quoted.CurrentPrice
	next.LastUpdated = quoted.LastUpdated
	next.Sources = quoted.Sources
	if cmp.Equal(current, next) {
		return current, false
	}
	return next, true
}

// AnalyzePortfolio returns AI commentary for the current holdings, given
// the total of account balances as the asset base.
func (s *Session) AnalyzePortfolio(ctx context.Context) (string, bool) {
	ledger := s.store.Ledger()
	return s.prices.AnalyzePortfolio(ctx, ledger.Stocks, valuation.TotalBalance(ledger.Accounts))
}
