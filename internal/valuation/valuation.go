// Package valuation derives read-only projections from a ledger: balances,
// holding values, profit and loss, and period aggregates. Every function is
// total over empty input.
package valuation

import (
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// HoldingValue is the valuation of one holding.
type HoldingValue struct {
	Holding     domain.StockHolding `json:"holding"`
	MarketValue float64             `json:"marketValue"`
	CostBasis   float64             `json:"costBasis"`
	PL          float64             `json:"pl"`
	PLPercent   float64             `json:"plPercent"`
}

// PortfolioValue aggregates every holding.
type PortfolioValue struct {
	Holdings    []HoldingValue `json:"holdings"`
	MarketValue float64        `json:"marketValue"`
	CostBasis   float64        `json:"costBasis"`
	PL          float64        `json:"pl"`
	PLPercent   float64        `json:"plPercent"`
}

// TotalBalance sums every account balance.
func TotalBalance(accounts []domain.Account) float64 {
	sum := decimal.Zero
	for _, a := range accounts {
		sum = sum.Add(decimal.NewFromFloat(a.Balance))
	}
	return sum.InexactFloat64()
}

// Value computes market value, cost basis and unrealized P/L for a holding.
// PLPercent is 0 when the cost basis is 0.
func Value(h domain.StockHolding) HoldingValue {
	market, cost := amounts(h)
	pl := market.Sub(cost)
	return HoldingValue{
		Holding:     h,
		MarketValue: market.InexactFloat64(),
		CostBasis:   cost.InexactFloat64(),
		PL:          pl.InexactFloat64(),
		PLPercent:   percent(pl, cost),
	}
}

// Portfolio values every holding and totals them.
func Portfolio(holdings []domain.StockHolding) PortfolioValue {
	out := PortfolioValue{Holdings: make([]HoldingValue, 0, len(holdings))}
	market, cost := decimal.Zero, decimal.Zero
	for _, h := range holdings {
		m, c := amounts(h)
		market = market.Add(m)
		cost = cost.Add(c)
		out.Holdings = append(out.Holdings, Value(h))
	}
	pl := market.Sub(cost)
	out.MarketValue = market.InexactFloat64()
	out.CostBasis = cost.InexactFloat64()
	out.PL = pl.InexactFloat64()
	out.PLPercent = percent(pl, cost)
	return out
}

// TotalAssets is the sum of account balances and holding market values.
func TotalAssets(accounts []domain.Account, holdings []domain.StockHolding) float64 {
	total := decimal.NewFromFloat(TotalBalance(accounts))
	for _, h := range holdings {
		m, _ := amounts(h)
		total = total.Add(m)
	}
	return total.InexactFloat64()
}

func amounts(h domain.StockHolding) (market, cost decimal.Decimal) {
	shares := decimal.NewFromFloat(h.Shares)
	market = shares.Mul(decimal.NewFromFloat(h.Price()))
	cost = shares.Mul(decimal.NewFromFloat(h.AverageCost))
	return market, cost
}

func percent(pl, cost decimal.Decimal) float64 {
	if cost.IsZero() {
		return 0
	}
	return pl.Div(cost).Mul(hundred).InexactFloat64()
}
