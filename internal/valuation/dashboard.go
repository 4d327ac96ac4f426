package valuation

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/shopspring/decimal"
)

// RecentLimit is how many transactions the dashboard shows.
const RecentLimit = 5

// Dashboard is the overview of a user's ledger.
type Dashboard struct {
	TotalBalance float64              `json:"totalBalance"`
	TotalAssets  float64              `json:"totalAssets"`
	Month        Totals               `json:"month"`
	Portfolio    PortfolioValue       `json:"portfolio"`
	Recent       []domain.Transaction `json:"recent"`
	AsOf         time.Time            `json:"asOf"`
}

// Report holds the distribution and trend views.
type Report struct {
	Categories []CategoryTotal `json:"categories"`
	Trend      []MonthTotal    `json:"trend"`
}

// BuildDashboard assembles the dashboard for now.
func BuildDashboard(ledger domain.Ledger, now time.Time) Dashboard {
	return Dashboard{
		TotalBalance: TotalBalance(ledger.Accounts),
		TotalAssets:  TotalAssets(ledger.Accounts, ledger.Stocks),
		Month:        MonthlyTotals(ledger.Transactions, now),
		Portfolio:    Portfolio(ledger.Stocks),
		Recent:       RecentTransactions(ledger.Transactions, RecentLimit),
		AsOf:         now,
	}
}

// BuildReport assembles the category breakdown and monthly trend.
func BuildReport(ledger domain.Ledger, loc *time.Location) Report {
	return Report{
		Categories: CategoryBreakdown(ledger.Transactions),
		Trend:      MonthlyTrend(ledger.Transactions, loc),
	}
}

// FormatMoney renders amount in the currency's conventional format.
// Unknown or empty currency codes fall back to a plain two-decimal number.
func FormatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if currency == "" || cur == nil {
		return decimal.NewFromFloat(amount).StringFixed(2)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
