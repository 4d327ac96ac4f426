package domain

import "time"

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "Income"
	TransactionTypeExpense TransactionType = "Expense"
	// TransactionTypeTransfer is declared for compatibility with stored data
	// but carries no balance semantics and cannot be created.
	TransactionTypeTransfer TransactionType = "Transfer"
)

// Sign returns +1 for income, -1 for expense and 0 for anything else.
func (t TransactionType) Sign() float64 {
	switch t {
	case TransactionTypeIncome:
		return 1
	case TransactionTypeExpense:
		return -1
	}
	return 0
}

// Transaction records a movement of money into or out of one account.
// Amount is always non-negative; the direction comes from Type.
// AccountID is a weak reference: the account may have been deleted.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	AccountID string          `json:"accountId"`
	Amount    float64         `json:"amount"`
	Date      time.Time       `json:"date"`
	Type      TransactionType `json:"type"`
	Category  string          `json:"category"`
	Note      string          `json:"note,omitempty"`
}

// GetID returns the transaction identifier.
func (t Transaction) GetID() string {
	return t.ID
}

// Contribution is the signed effect of the transaction on its account balance.
func (t Transaction) Contribution() float64 {
	return t.Type.Sign() * t.Amount
}
