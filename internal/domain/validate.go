package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalid is returned for entities that fail validation.
	ErrInvalid = errors.New("invalid input")
	// ErrUnsupportedType is returned for transaction types that cannot be created.
	ErrUnsupportedType = errors.New("unsupported transaction type")
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateAccount checks an account before it is created or updated.
func ValidateAccount(a Account) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalid)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", ErrInvalid, a.Type)
	}
	if !finite(a.Balance) {
		return fmt.Errorf("%w: balance must be a finite number", ErrInvalid)
	}
	return nil
}

// ValidateTransaction checks a transaction before it is created.
func ValidateTransaction(tx Transaction) error {
	if tx.AccountID == "" {
		return fmt.Errorf("%w: accountId is required", ErrInvalid)
	}
	if !finite(tx.Amount) || tx.Amount < 0 {
		return fmt.Errorf("%w: amount must be a non-negative number", ErrInvalid)
	}
	switch tx.Type {
	case TransactionTypeIncome, TransactionTypeExpense:
	case TransactionTypeTransfer:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, tx.Type)
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalid, tx.Type)
	}
	return nil
}

// ValidateHolding checks a stock holding before it is created.
func ValidateHolding(h StockHolding) error {
	if strings.TrimSpace(h.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalid)
	}
	if !finite(h.Shares) || h.Shares < 0 {
		return fmt.Errorf("%w: shares must be a non-negative number", ErrInvalid)
	}
	if !finite(h.AverageCost) || h.AverageCost < 0 {
		return fmt.Errorf("%w: averageCost must be a non-negative number", ErrInvalid)
	}
	return nil
}
