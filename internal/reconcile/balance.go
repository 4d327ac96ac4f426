// Package reconcile keeps account balances consistent with the transaction
// ledger and classifies collection changes into persistence intents.
//
// Balance arithmetic runs in decimal on the shortest decimal form of each
// float. Add-then-delete restores the prior balance exactly for amounts and
// balances with a few fractional digits, such as currency cents. Floats
// carrying full 17-digit precision are rounded back to float64 after every
// step and may not round-trip bit for bit.
package reconcile

import (
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/shopspring/decimal"
)

// ApplyAdd returns the accounts after tx has been added to the ledger.
// The owning account's balance moves by sign(type)*amount; every other
// account is returned unchanged. touched holds the updated owning account,
// or is empty when tx references an account that does not exist.
// The input slice is never modified.
func ApplyAdd(accounts []domain.Account, tx domain.Transaction) (next, touched []domain.Account) {
	return adjust(accounts, tx.AccountID, contribution(tx))
}

// ApplyDelete is the inverse of ApplyAdd: it reverts the balance effect of a
// transaction that is being removed from the ledger.
func ApplyDelete(accounts []domain.Account, tx domain.Transaction) (next, touched []domain.Account) {
	return adjust(accounts, tx.AccountID, contribution(tx).Neg())
}

// Replay computes the balance of every account after applying txs in order
// on top of the given starting balances.
func Replay(accounts []domain.Account, txs []domain.Transaction) []domain.Account {
	out := append([]domain.Account(nil), accounts...)
	for _, tx := range txs {
		out, _ = ApplyAdd(out, tx)
	}
	return out
}

func contribution(tx domain.Transaction) decimal.Decimal {
	return decimal.NewFromFloat(tx.Amount).Mul(decimal.NewFromFloat(tx.Type.Sign()))
}

func adjust(accounts []domain.Account, accountID string, delta decimal.Decimal) ([]domain.Account, []domain.Account) {
	next := make([]domain.Account, len(accounts))
	copy(next, accounts)

	touched := []domain.Account{}
	if delta.IsZero() {
		// Still report the owner so the batch rewrites the same value.
		for _, a := range next {
			if a.ID == accountID {
				touched = append(touched, a)
			}
		}
		return next, touched
	}

	for i := range next {
		if next[i].ID != accountID {
			continue
		}
		next[i].Balance = decimal.NewFromFloat(next[i].Balance).Add(delta).InexactFloat64()
		touched = append(touched, next[i])
	}
	return next, touched
}
