package remote

import (
	"time"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/google/uuid"
)

// SampleData builds the example ledger given to a user on first sign-in.
// Account balances already include the sample transactions.
func SampleData(userID string, now time.Time) domain.Ledger {
	bank := domain.Account{
		ID:       uuid.New().String(),
		UserID:   userID,
		Name:     "Main Bank Account",
		Type:     domain.AccountTypeBank,
		Balance:  150000,
		Currency: "TWD",
	}
	cash := domain.Account{
		ID:       uuid.New().String(),
		UserID:   userID,
		Name:     "Wallet",
		Type:     domain.AccountTypeCash,
		Balance:  5000,
		Currency: "TWD",
	}
	broker := domain.Account{
		ID:       uuid.New().String(),
		UserID:   userID,
		Name:     "Brokerage",
		Type:     domain.AccountTypeInvestment,
		Balance:  0,
		Currency: "TWD",
	}

	txs := []domain.Transaction{
		{
			ID:        uuid.New().String(),
			UserID:    userID,
			AccountID: bank.ID,
			Amount:    50000,
			Date:      now,
			Type:      domain.TransactionTypeIncome,
			Category:  "salary",
			Note:      "Monthly salary",
		},
		{
			ID:        uuid.New().String(),
			UserID:    userID,
			AccountID: cash.ID,
			Amount:    120,
			Date:      now,
			Type:      domain.TransactionTypeExpense,
			Category:  "food",
			Note:      "Lunch",
		},
	}

	updated := now
	stocks := []domain.StockHolding{
		{
			ID:           uuid.New().String(),
			UserID:       userID,
			Symbol:       "2330.TW",
			Name:         "TSMC",
			Shares:       1000,
			AverageCost:  550,
			CurrentPrice: domain.Float64(580),
			LastUpdated:  &updated,
		},
	}

	return domain.Ledger{
		Accounts:     []domain.Account{bank, cash, broker},
		Transactions: txs,
		Stocks:       stocks,
	}
}
