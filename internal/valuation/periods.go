package valuation

import (
	"sort"
	"time"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/shopspring/decimal"
)

// Totals is an income/expense pair.
type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// MonthTotal is the income/expense of one calendar month, keyed "2006-01".
type MonthTotal struct {
	Month   string  `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// MonthlyTotals sums income and expense for transactions in the calendar
// month (year and month) containing now, in now's location.
func MonthlyTotals(txs []domain.Transaction, now time.Time) Totals {
	year, month, _ := now.Date()
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		y, m, _ := tx.Date.In(now.Location()).Date()
		if y != year || m != month {
			continue
		}
		switch tx.Type {
		case domain.TransactionTypeIncome:
			income = income.Add(decimal.NewFromFloat(tx.Amount))
		case domain.TransactionTypeExpense:
			expense = expense.Add(decimal.NewFromFloat(tx.Amount))
		}
	}
	return Totals{Income: income.InexactFloat64(), Expense: expense.InexactFloat64()}
}

// CategoryBreakdown groups expenses by category, largest first.
func CategoryBreakdown(txs []domain.Transaction) []CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != domain.TransactionTypeExpense {
			continue
		}
		sums[tx.Category] = sums[tx.Category].Add(decimal.NewFromFloat(tx.Amount))
	}

	out := make([]CategoryTotal, 0, len(sums))
	for cat, sum := range sums {
		out = append(out, CategoryTotal{Category: cat, Amount: sum.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// MonthlyTrend sums income and expense per calendar month, oldest first.
func MonthlyTrend(txs []domain.Transaction, loc *time.Location) []MonthTotal {
	if loc == nil {
		loc = time.UTC
	}
	type pair struct{ income, expense decimal.Decimal }
	months := make(map[string]*pair)
	for _, tx := range txs {
		key := tx.Date.In(loc).Format("2006-01")
		p, ok := months[key]
		if !ok {
			p = &pair{}
			months[key] = p
		}
		switch tx.Type {
		case domain.TransactionTypeIncome:
			p.income = p.income.Add(decimal.NewFromFloat(tx.Amount))
		case domain.TransactionTypeExpense:
			p.expense = p.expense.Add(decimal.NewFromFloat(tx.Amount))
		}
	}

	out := make([]MonthTotal, 0, len(months))
	for key, p := range months {
		out = append(out, MonthTotal{Month: key, Income: p.income.InexactFloat64(), Expense: p.expense.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// RecentTransactions returns at most n transactions, newest first.
func RecentTransactions(txs []domain.Transaction, n int) []domain.Transaction {
	out := append([]domain.Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
