package domain

import (
	"errors"
	"math"
	"testing"
)

func TestSign(t *testing.T) {
	tests := []struct {
		typ  TransactionType
		want float64
	}{
		{TransactionTypeIncome, 1},
		{TransactionTypeExpense, -1},
		{TransactionTypeTransfer, 0},
		{TransactionType("Refund"), 0},
	}
	for _, tt := range tests {
		if got := tt.typ.Sign(); got != tt.want {
			t.Errorf("%s.Sign() = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestValidateTransaction(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		wantErr error
	}{
		{"income ok", Transaction{AccountID: "a", Amount: 10, Type: TransactionTypeIncome}, nil},
		{"zero amount ok", Transaction{AccountID: "a", Amount: 0, Type: TransactionTypeExpense}, nil},
		{"negative amount", Transaction{AccountID: "a", Amount: -1, Type: TransactionTypeExpense}, ErrInvalid},
		{"nan amount", Transaction{AccountID: "a", Amount: math.NaN(), Type: TransactionTypeExpense}, ErrInvalid},
		{"missing account", Transaction{Amount: 1, Type: TransactionTypeIncome}, ErrInvalid},
		{"transfer", Transaction{AccountID: "a", Amount: 1, Type: TransactionTypeTransfer}, ErrUnsupportedType},
		{"unknown type", Transaction{AccountID: "a", Amount: 1, Type: "Gift"}, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransaction(tt.tx)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAccountAndHolding(t *testing.T) {
	if err := ValidateAccount(Account{Name: "Main", Type: AccountTypeBank}); err != nil {
		t.Errorf("valid account rejected: %v", err)
	}
	if err := ValidateAccount(Account{Name: " ", Type: AccountTypeBank}); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank name accepted: %v", err)
	}
	if err := ValidateAccount(Account{Name: "x", Type: "Savings"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("unknown type accepted: %v", err)
	}
	if err := ValidateHolding(StockHolding{Symbol: "AAPL", Shares: 1, AverageCost: 10}); err != nil {
		t.Errorf("valid holding rejected: %v", err)
	}
	if err := ValidateHolding(StockHolding{Symbol: "", Shares: 1}); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty symbol accepted: %v", err)
	}
}

func TestPriceFallsBackToAverageCost(t *testing.T) {
	h := StockHolding{AverageCost: 12.5}
	if h.Price() != 12.5 {
		t.Errorf("Price() = %v, want 12.5", h.Price())
	}
	h.CurrentPrice = Float64(20)
	if h.Price() != 20 {
		t.Errorf("Price() = %v, want 20", h.Price())
	}

	c := h.Clone()
	*c.CurrentPrice = 99
	if *h.CurrentPrice != 20 {
		t.Error("Clone shares the CurrentPrice pointer")
	}
}

func TestLookupCategory(t *testing.T) {
	c, ok := LookupCategory("food")
	if !ok || c.Name != "Food" {
		t.Fatalf("LookupCategory(food) = %+v, %v", c, ok)
	}
	if _, ok := LookupCategory("Salary"); !ok {
		t.Error("LookupCategory(Salary) not found")
	}
	if _, ok := LookupCategory("unknown"); ok {
		t.Error("LookupCategory(unknown) found")
	}
}
