// Package inmemory is a process-local remote.Adapter. It is safe for
// concurrent use and can persist its state to a JSON file between runs.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
	"github.com/rs/zerolog"
)

type userData struct {
	profile  domain.User
	revision remote.Revision
	accounts map[string]domain.Account
	txs      map[string]domain.Transaction
	stocks   map[string]domain.StockHolding
}

func newUserData(userID string) *userData {
	return &userData{
		profile:  domain.User{ID: userID},
		accounts: make(map[string]domain.Account),
		txs:      make(map[string]domain.Transaction),
		stocks:   make(map[string]domain.StockHolding),
	}
}

// Adapter is an in-memory implementation of remote.Adapter.
type Adapter struct {
	mu     sync.RWMutex
	users  map[string]*userData
	subs   map[string]map[*remote.FeedQueue]struct{}
	closed bool

	seed      bool
	stateFile string
	now       func() time.Time
	log       zerolog.Logger
}

// NewAdapter creates an empty adapter. When seed is true, InitUserData gives
// new users the sample ledger.
func NewAdapter(seed bool, log zerolog.Logger) *Adapter {
	return &Adapter{
		users: make(map[string]*userData),
		subs:  make(map[string]map[*remote.FeedQueue]struct{}),
		seed:  seed,
		now:   time.Now,
		log:   log,
	}
}

// user returns the user's data, creating it if needed. Caller holds a.mu.
func (a *Adapter) user(userID string) *userData {
	u, ok := a.users[userID]
	if !ok {
		u = newUserData(userID)
		a.users[userID] = u
	}
	return u
}

// commit bumps the revision, notifies subscribers of the changed
// collections and persists the state file. Caller holds a.mu.
func (a *Adapter) commit(userID string, u *userData, changed ...remote.Collection) remote.Revision {
	u.revision++
	for _, c := range changed {
		snap := u.snapshot(c)
		for q := range a.subs[userID] {
			q.Push(snap)
		}
	}
	if a.stateFile != "" {
		if err := a.saveLocked(a.stateFile); err != nil {
			a.log.Error().Err(err).Str("path", a.stateFile).Msg("Failed to persist state file")
		}
	}
	return u.revision
}

func (u *userData) snapshot(c remote.Collection) remote.Snapshot {
	snap := remote.Snapshot{Collection: c, Revision: u.revision}
	switch c {
	case remote.CollectionAccounts:
		snap.Accounts = make([]domain.Account, 0, len(u.accounts))
		for _, acc := range u.accounts {
			snap.Accounts = append(snap.Accounts, acc)
		}
	case remote.CollectionTransactions:
		snap.Transactions = make([]domain.Transaction, 0, len(u.txs))
		for _, tx := range u.txs {
			snap.Transactions = append(snap.Transactions, tx)
		}
	case remote.CollectionStocks:
		snap.Stocks = make([]domain.StockHolding, 0, len(u.stocks))
		for _, h := range u.stocks {
			snap.Stocks = append(snap.Stocks, h.Clone())
		}
	}
	return snap
}

func (a *Adapter) checkOpen() error {
	if a.closed {
		return fmt.Errorf("adapter is closed")
	}
	return nil
}

// InitUserData implements remote.Adapter.
func (a *Adapter) InitUserData(ctx context.Context, user domain.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return err
	}

	u := a.user(user.ID)
	if user.Name != "" {
		u.profile.Name = user.Name
	}
	if user.Email != "" {
		u.profile.Email = user.Email
	}
	u.profile.ID = user.ID

	if !a.seed || len(u.accounts) > 0 {
		return nil
	}

	sample := remote.SampleData(user.ID, a.now())
	for _, acc := range sample.Accounts {
		u.accounts[acc.ID] = acc
	}
	for _, tx := range sample.Transactions {
		u.txs[tx.ID] = tx
	}
	for _, h := range sample.Stocks {
		u.stocks[h.ID] = h
	}
	rev := a.commit(user.ID, u, remote.Collections...)

	a.log.Info().Str("user_id", user.ID).Int64("revision", int64(rev)).Msg("Seeded sample data")
	return nil
}

// AddAccount implements remote.Adapter.
func (a *Adapter) AddAccount(ctx context.Context, userID string, account domain.Account) (remote.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	u := a.user(userID)
	account.UserID = userID
	u.accounts[account.ID] = account
	return a.commit(userID, u, remote.CollectionAccounts), nil
}

// UpdateAccount implements remote.Adapter.
func (a *Adapter) UpdateAccount(ctx context.Context, userID string, account domain.Account) (remote.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	u := a.user(userID)
	if _, ok := u.accounts[account.ID]; !ok {
		return u.revision, fmt.Errorf("UpdateAccount: account %s: %w", account.ID, remote.ErrNotFound)
	}
	account.UserID = userID
	u.accounts[account.ID] = account
	return a.commit(userID, u, remote.CollectionAccounts), nil
}

// DeleteAccount implements remote.Adapter. Deleting a missing account is a no-op.
func (a *Adapter) DeleteAccount(ctx context.Context, userID, accountID string) (remote.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	u := a.user(userID)
	if _, ok := u.accounts[accountID]; !ok {
		return u.revision, nil
	}
	delete(u.accounts, accountID)
	return a.commit(userID, u, remote.CollectionAccounts), nil
}

// AddTransaction implements remote.Adapter. Either the transaction and every
// reconciled balance are stored, or nothing is.
func (a *Adapter) AddTransaction(ctx context.Context, userID string, tx domain.Transaction, reconciled []domain.Account) (remote.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	u := a.user(userID)
	if err := u.checkAccounts(reconciled); err != nil {
		return u.revision, fmt.Errorf("AddTransaction: %w", err)
	}

	tx.UserID = userID
	u.txs[tx.ID] = tx
	u.applyBalances(reconciled)

	changed := []remote.Collection{remote.CollectionTransactions}
	if len(reconciled) > 0 {
		changed = append(changed, remote.CollectionAccounts)
	}
	return a.commit(userID, u, changed...), nil
}

// DeleteTransaction implements remote.Adapter with the same atomicity as
// AddTransaction.
func (a *Adapter) DeleteTransaction(ctx context.Context, userID, txID string, reconciled []domain.Account) (remote.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	u := a.user(userID)
	if err := u.checkAccounts(reconciled); err != nil {
		return u.revision, fmt.Errorf("DeleteTransaction: %w", err)
	}

	delete(u.txs, txID)
	u.applyBalances(reconciled)

	changed := []remote.Collection{remote.CollectionTransactions}
	if len(reconciled) > 0 {
		changed = append(changed, remote.CollectionAccounts)
	}
	return a.commit(userID, u, changed...), nil
}

func (u *userData) checkAccounts(accounts []domain.Account) error {
	for _, acc := range accounts {
		if _, ok := u.accounts[acc.ID]; !ok {
			return fmt.Errorf("account %s: %w", acc.ID, remote.ErrNotFound)
		}
	}
	return nil
}

func (u *userData) applyBalances(accounts []domain.Account) {
	for _, acc := range accounts {
		stored := u.accounts[acc.ID]
		stored.Balance = acc.Balance
		u.accounts[acc.ID] = stored
	}
}

// AddStock implements remote.Adapter.
func (a *Adapter) AddStock(ctx context.Context, userID string, holding domain.StockHolding) (remote.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	u := a.user(userID)
	holding.UserID = userID
	u.stocks[holding.ID] = holding.Clone()
	return a.commit(userID, u, remote.CollectionStocks), nil
}

// DeleteStock implements remote.Adapter. Deleting a missing holding is a no-op.
func (a *Adapter) DeleteStock(ctx context.Context, userID, holdingID string) (remote.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	u := a.user(userID)
	if _, ok := u.stocks[holdingID]; !ok {
		return u.revision, nil
	}
	delete(u.stocks, holdingID)
	return a.commit(userID, u, remote.CollectionStocks), nil
}

// UpdateStocks implements remote.Adapter as an upsert of every holding.
func (a *Adapter) UpdateStocks(ctx context.Context, userID string, holdings []domain.StockHolding) (remote.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	u := a.user(userID)
	if len(holdings) == 0 {
		return u.revision, nil
	}
	for _, h := range holdings {
		h.UserID = userID
		u.stocks[h.ID] = h.Clone()
	}
	return a.commit(userID, u, remote.CollectionStocks), nil
}

// Subscribe implements remote.Adapter. The feed ends when ctx is cancelled
// or the feed is closed.
func (a *Adapter) Subscribe(ctx context.Context, userID string) (remote.Feed, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	q := remote.NewFeedQueue()
	u := a.user(userID)
	for _, c := range remote.Collections {
		q.Push(u.snapshot(c))
	}

	if a.subs[userID] == nil {
		a.subs[userID] = make(map[*remote.FeedQueue]struct{})
	}
	a.subs[userID][q] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			q.Close()
		case <-q.Done():
		}
		a.mu.Lock()
		delete(a.subs[userID], q)
		if len(a.subs[userID]) == 0 {
			delete(a.subs, userID)
		}
		a.mu.Unlock()
	}()

	return q, nil
}

// Users returns the ids of every known user.
func (a *Adapter) Users() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.users))
	for id := range a.users {
		ids = append(ids, id)
	}
	return ids
}

// Close implements remote.Adapter. Open feeds are closed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	var queues []*remote.FeedQueue
	for _, subs := range a.subs {
		for q := range subs {
			queues = append(queues, q)
		}
	}
	a.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
	return nil
}

var _ remote.Adapter = (*Adapter)(nil)
