package inmemory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
)

type userState struct {
	Profile  domain.User     `json:"profile"`
	Revision remote.Revision `json:"revision"`
	Ledger   domain.Ledger   `json:"ledger"`
}

type fileState struct {
	Users map[string]userState `json:"users"`
}

// OpenFile loads state from path if it exists and keeps the file updated
// after every write.
func (a *Adapter) OpenFile(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("OpenFile: reading %s: %w", path, err)
	default:
		var st fileState
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("OpenFile: decoding %s: %w", path, err)
		}
		for id, us := range st.Users {
			u := newUserData(id)
			u.profile = us.Profile
			u.revision = us.Revision
			for _, acc := range us.Ledger.Accounts {
				u.accounts[acc.ID] = acc
			}
			for _, tx := range us.Ledger.Transactions {
				u.txs[tx.ID] = tx
			}
			for _, h := range us.Ledger.Stocks {
				u.stocks[h.ID] = h
			}
			a.users[id] = u
		}
	}

	a.stateFile = path
	return nil
}

// Ledger returns a copy of one user's data.
func (a *Adapter) Ledger(userID string) domain.Ledger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.users[userID]
	if !ok {
		return domain.Ledger{}
	}
	return u.ledger()
}

func (u *userData) ledger() domain.Ledger {
	return domain.Ledger{
		Accounts:     u.snapshot(remote.CollectionAccounts).Accounts,
		Transactions: u.snapshot(remote.CollectionTransactions).Transactions,
		Stocks:       u.snapshot(remote.CollectionStocks).Stocks,
	}
}

func (a *Adapter) saveLocked(path string) error {
	st := fileState{Users: make(map[string]userState, len(a.users))}
	for id, u := range a.users {
		st.Users[id] = userState{Profile: u.profile, Revision: u.revision, Ledger: u.ledger()}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("saveLocked: encoding: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".wealthflow-*.json")
	if err != nil {
		return fmt.Errorf("saveLocked: creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("saveLocked: writing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("saveLocked: closing: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saveLocked: renaming: %w", err)
	}
	return nil
}
