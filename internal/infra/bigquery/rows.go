package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
)

// UserRow is a row of the users table. The *_revision columns record the
// revision at which each collection last changed.
type UserRow struct {
	UserID               string `bigquery:"user_id"` // REQUIRED
	Name                 string `bigquery:"name"`
	Email                string `bigquery:"email"`
	Revision             int64  `bigquery:"revision"`
	AccountsRevision     int64  `bigquery:"accounts_revision"`
	TransactionsRevision int64  `bigquery:"transactions_revision"`
	StocksRevision       int64  `bigquery:"stocks_revision"`
}

type AccountRow struct {
	AccountID   string  `bigquery:"account_id"` // REQUIRED
	UserID      string  `bigquery:"user_id"`    // REQUIRED
	Name        string  `bigquery:"name"`
	AccountType string  `bigquery:"account_type"`
	Balance     float64 `bigquery:"balance"`
	Currency    string  `bigquery:"currency"`
}

type TransactionRow struct {
	TransactionID string    `bigquery:"transaction_id"` // REQUIRED
	UserID        string    `bigquery:"user_id"`        // REQUIRED
	AccountID     string    `bigquery:"account_id"`     // weak reference
	Amount        float64   `bigquery:"amount"`
	TxDate        time.Time `bigquery:"tx_date"` // TIMESTAMP
	TxType        string    `bigquery:"tx_type"`
	Category      string    `bigquery:"category"`
	Note          string    `bigquery:"note"`
}

type StockRow struct {
	HoldingID    string                 `bigquery:"holding_id"` // REQUIRED
	UserID       string                 `bigquery:"user_id"`    // REQUIRED
	Symbol       string                 `bigquery:"symbol"`
	Name         string                 `bigquery:"name"`
	Shares       float64                `bigquery:"shares"`
	AverageCost  float64                `bigquery:"average_cost"`
	CurrentPrice bigquery.NullFloat64   `bigquery:"current_price"` // NULLABLE
	LastUpdated  bigquery.NullTimestamp `bigquery:"last_updated"`  // NULLABLE
	SourcesJSON  string                 `bigquery:"sources_json"`  // JSON array as STRING, "" when none
}

// StateRow is the result of the consistent state query: the user row with
// every collection nested as an array.
type StateRow struct {
	Revision             int64            `bigquery:"revision"`
	AccountsRevision     int64            `bigquery:"accounts_revision"`
	TransactionsRevision int64            `bigquery:"transactions_revision"`
	StocksRevision       int64            `bigquery:"stocks_revision"`
	Accounts             []AccountRow     `bigquery:"accounts"`
	Transactions         []TransactionRow `bigquery:"transactions"`
	Stocks               []StockRow       `bigquery:"stocks"`
}

func accountRow(userID string, a domain.Account) AccountRow {
	return AccountRow{
		AccountID:   a.ID,
		UserID:      userID,
		Name:        a.Name,
		AccountType: string(a.Type),
		Balance:     a.Balance,
		Currency:    a.Currency,
	}
}

func (r AccountRow) toDomain() domain.Account {
	return domain.Account{
		ID:       r.AccountID,
		UserID:   r.UserID,
		Name:     r.Name,
		Type:     domain.AccountType(r.AccountType),
		Balance:  r.Balance,
		Currency: r.Currency,
	}
}

func transactionRow(userID string, tx domain.Transaction) TransactionRow {
	return TransactionRow{
		TransactionID: tx.ID,
		UserID:        userID,
		AccountID:     tx.AccountID,
		Amount:        tx.Amount,
		TxDate:        tx.Date.UTC(),
		TxType:        string(tx.Type),
		Category:      tx.Category,
		Note:          tx.Note,
	}
}

func (r TransactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:        r.TransactionID,
		UserID:    r.UserID,
		AccountID: r.AccountID,
		Amount:    r.Amount,
		Date:      r.TxDate,
		Type:      domain.TransactionType(r.TxType),
		Category:  r.Category,
		Note:      r.Note,
	}
}

func stockRow(userID string, h domain.StockHolding) (StockRow, error) {
	row := StockRow{
		HoldingID:   h.ID,
		UserID:      userID,
		Symbol:      h.Symbol,
		Name:        h.Name,
		Shares:      h.Shares,
		AverageCost: h.AverageCost,
	}
	if h.CurrentPrice != nil {
		row.CurrentPrice = bigquery.NullFloat64{Float64: *h.CurrentPrice, Valid: true}
	}
	if h.LastUpdated != nil {
		row.LastUpdated = bigquery.NullTimestamp{Timestamp: h.LastUpdated.UTC(), Valid: true}
	}
	if len(h.Sources) > 0 {
		raw, err := json.Marshal(h.Sources)
		if err != nil {
			return StockRow{}, fmt.Errorf("stockRow: encoding sources: %w", err)
		}
		row.SourcesJSON = string(raw)
	}
	return row, nil
}

func (r StockRow) toDomain() (domain.StockHolding, error) {
	h := domain.StockHolding{
		ID:          r.HoldingID,
		UserID:      r.UserID,
		Symbol:      r.Symbol,
		Name:        r.Name,
		Shares:      r.Shares,
		AverageCost: r.AverageCost,
	}
	if r.CurrentPrice.Valid {
		h.CurrentPrice = domain.Float64(r.CurrentPrice.Float64)
	}
	if r.LastUpdated.Valid {
		ts := r.LastUpdated.Timestamp
		h.LastUpdated = &ts
	}
	if r.SourcesJSON != "" {
		if err := json.Unmarshal([]byte(r.SourcesJSON), &h.Sources); err != nil {
			return domain.StockHolding{}, fmt.Errorf("StockRow.toDomain: decoding sources of %s: %w", r.HoldingID, err)
		}
	}
	return h, nil
}

func (r StateRow) toState() (remote.State, error) {
	state := remote.State{
		Revision: remote.Revision(r.Revision),
		Revisions: remote.Revisions{
			remote.CollectionAccounts:     remote.Revision(r.AccountsRevision),
			remote.CollectionTransactions: remote.Revision(r.TransactionsRevision),
			remote.CollectionStocks:       remote.Revision(r.StocksRevision),
		},
	}

	for _, a := range r.Accounts {
		state.Ledger.Accounts = append(state.Ledger.Accounts, a.toDomain())
	}
	for _, tx := range r.Transactions {
		state.Ledger.Transactions = append(state.Ledger.Transactions, tx.toDomain())
	}
	for _, s := range r.Stocks {
		h, err := s.toDomain()
		if err != nil {
			return remote.State{}, err
		}
		state.Ledger.Stocks = append(state.Ledger.Stocks, h)
	}
	return state, nil
}
