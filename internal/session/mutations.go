package session

import (
	"context"
	"fmt"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/reconcile"
	"github.com/dvloznov/wealthflow/internal/remote"
	"github.com/google/uuid"
)

// AddAccount creates an account. A missing id is generated.
func (s *Session) AddAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	if err := s.lock(); err != nil {
		return domain.Account{}, err
	}
	defer s.mu.Unlock()
	return s.addAccount(ctx, a)
}

func (s *Session) addAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	if err := domain.ValidateAccount(a); err != nil {
		return domain.Account{}, fmt.Errorf("AddAccount: %w", err)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.UserID = s.user.ID

	w := s.store.Begin(remote.CollectionAccounts)
	w.PutAccount(a)
	rev, err := s.adapter.AddAccount(ctx, s.user.ID, a)
	if err = s.finish(w, "AddAccount", rev, err); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

// UpdateAccount overwrites an existing account's fields, balance included.
func (s *Session) UpdateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	if err := s.lock(); err != nil {
		return domain.Account{}, err
	}
	defer s.mu.Unlock()
	return s.updateAccount(ctx, a)
}

func (s *Session) updateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	if _, ok := s.store.Account(a.ID); !ok {
		return domain.Account{}, fmt.Errorf("UpdateAccount: account %s: %w", a.ID, ErrNotFound)
	}
	if err := domain.ValidateAccount(a); err != nil {
		return domain.Account{}, fmt.Errorf("UpdateAccount: %w", err)
	}
	a.UserID = s.user.ID

	w := s.store.Begin(remote.CollectionAccounts)
	w.PutAccount(a)
	rev, err := s.adapter.UpdateAccount(ctx, s.user.ID, a)
	if err = s.finish(w, "UpdateAccount", rev, err); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

// DeleteAccount removes an account. Its transactions are kept and become
// dangling references.
func (s *Session) DeleteAccount(ctx context.Context, id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.deleteAccount(ctx, id)
}

func (s *Session) deleteAccount(ctx context.Context, id string) error {
	if _, ok := s.store.Account(id); !ok {
		return fmt.Errorf("DeleteAccount: account %s: %w", id, ErrNotFound)
	}

	w := s.store.Begin(remote.CollectionAccounts)
	w.RemoveAccount(id)
	rev, err := s.adapter.DeleteAccount(ctx, s.user.ID, id)
	return s.finish(w, "DeleteAccount", rev, err)
}

// AddTransaction records a transaction and moves its account's balance in
// the same atomic write. A transaction whose account does not exist is
// stored without any balance change.
func (s *Session) AddTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if err := s.lock(); err != nil {
		return domain.Transaction{}, err
	}
	defer s.mu.Unlock()
	return s.addTransaction(ctx, tx)
}

func (s *Session) addTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if err := domain.ValidateTransaction(tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Date.IsZero() {
		tx.Date = s.now()
	}
	tx.UserID = s.user.ID

	_, touched := reconcile.ApplyAdd(s.store.Accounts(), tx)
	if len(touched) == 0 {
		s.log.Warn().Str("transaction_id", tx.ID).Str("account_id", tx.AccountID).Msg("Transaction references unknown account, balance unchanged")
	}

	w := s.store.Begin(balanceCollections(touched)...)
	w.PutTransaction(tx)
	for _, a := range touched {
		w.PutAccount(a)
	}
	rev, err := s.adapter.AddTransaction(ctx, s.user.ID, tx, touched)
	if err = s.finish(w, "AddTransaction", rev, err); err != nil {
		return domain.Transaction{}, err
	}

	s.log.Info().
		Str("transaction_id", tx.ID).
		Str("account_id", tx.AccountID).
		Str("type", string(tx.Type)).
		Float64("amount", tx.Amount).
		Int64("revision", int64(rev)).
		Msg("Transaction added")
	return tx, nil
}

// DeleteTransaction removes a transaction and reverts its balance effect in
// the same atomic write.
func (s *Session) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.deleteTransaction(ctx, id)
}

func (s *Session) deleteTransaction(ctx context.Context, id string) error {
	tx, ok := s.store.Transaction(id)
	if !ok {
		return fmt.Errorf("DeleteTransaction: transaction %s: %w", id, ErrNotFound)
	}

	_, touched := reconcile.ApplyDelete(s.store.Accounts(), tx)

	w := s.store.Begin(balanceCollections(touched)...)
	w.RemoveTransaction(id)
	for _, a := range touched {
		w.PutAccount(a)
	}
	rev, err := s.adapter.DeleteTransaction(ctx, s.user.ID, id, touched)
	if err = s.finish(w, "DeleteTransaction", rev, err); err != nil {
		return err
	}

	s.log.Info().
		Str("transaction_id", id).
		Str("account_id", tx.AccountID).
		Int64("revision", int64(rev)).
		Msg("Transaction deleted")
	return nil
}

// balanceCollections lists the collections a transaction write changes.
// Accounts are included only when a balance moves, matching the snapshots
// the adapter emits.
func balanceCollections(touched []domain.Account) []remote.Collection {
	if len(touched) == 0 {
		return []remote.Collection{remote.CollectionTransactions}
	}
	return []remote.Collection{remote.CollectionTransactions, remote.CollectionAccounts}
}

// AddStock creates a holding. Its current price starts at the average cost.
func (s *Session) AddStock(ctx context.Context, h domain.StockHolding) (domain.StockHolding, error) {
	if err := s.lock(); err != nil {
		return domain.StockHolding{}, err
	}
	defer s.mu.Unlock()
	return s.addStock(ctx, h)
}

func (s *Session) addStock(ctx context.Context, h domain.StockHolding) (domain.StockHolding, error) {
	if err := domain.ValidateHolding(h); err != nil {
		return domain.StockHolding{}, fmt.Errorf("AddStock: %w", err)
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CurrentPrice == nil {
		h.CurrentPrice = domain.Float64(h.AverageCost)
	}
	h.UserID = s.user.ID

	w := s.store.Begin(remote.CollectionStocks)
	w.PutStock(h)
	rev, err := s.adapter.AddStock(ctx, s.user.ID, h)
	if err = s.finish(w, "AddStock", rev, err); err != nil {
		return domain.StockHolding{}, err
	}
	return h, nil
}

// DeleteStock removes a holding.
func (s *Session) DeleteStock(ctx context.Context, id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.deleteStock(ctx, id)
}

func (s *Session) deleteStock(ctx context.Context, id string) error {
	if _, ok := s.store.Stock(id); !ok {
		return fmt.Errorf("DeleteStock: holding %s: %w", id, ErrNotFound)
	}

	w := s.store.Begin(remote.CollectionStocks)
	w.RemoveStock(id)
	rev, err := s.adapter.DeleteStock(ctx, s.user.ID, id)
	return s.finish(w, "DeleteStock", rev, err)
}

// updateStocks writes a batch of existing holdings.
func (s *Session) updateStocks(ctx context.Context, holdings []domain.StockHolding) error {
	if len(holdings) == 0 {
		return nil
	}
	w := s.store.Begin(remote.CollectionStocks)
	for i := range holdings {
		holdings[i].UserID = s.user.ID
		w.PutStock(holdings[i])
	}
	rev, err := s.adapter.UpdateStocks(ctx, s.user.ID, holdings)
	return s.finish(w, "UpdateStocks", rev, err)
}
