package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/valuation"
)

// displayCurrency formats totals that mix accounts; there is no conversion.
const displayCurrency = "TWD"

// printMarkdown renders md for the terminal, falling back to the raw text
// when rendering fails.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Warning: rendering markdown: %v\n", err)
	fmt.Print(md)
}

func money(amount float64) string {
	return valuation.FormatMoney(amount, displayCurrency)
}

// cell escapes pipes so free text cannot break a table row.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func accountsMarkdown(accounts []domain.Account) string {
	var b strings.Builder
	b.WriteString("# Accounts\n\n")
	if len(accounts) == 0 {
		b.WriteString("_No accounts._\n")
		return b.String()
	}
	b.WriteString("| ID | Name | Type | Balance |\n|---|---|---|---:|\n")
	for _, a := range accounts {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", a.ID, cell(a.Name), a.Type, valuation.FormatMoney(a.Balance, a.Currency))
	}
	fmt.Fprintf(&b, "\n**Total balance:** %s\n", money(valuation.TotalBalance(accounts)))
	return b.String()
}

func transactionsMarkdown(txs []domain.Transaction, accounts []domain.Account) string {
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}

	var b strings.Builder
	b.WriteString("# Transactions\n\n")
	if len(txs) == 0 {
		b.WriteString("_No transactions._\n")
		return b.String()
	}
	b.WriteString("| Date | ID | Account | Type | Category | Amount | Note |\n|---|---|---|---|---|---:|---|\n")
	for _, tx := range txs {
		account, ok := names[tx.AccountID]
		if !ok {
			account = "_deleted_"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			tx.Date.Format("2006-01-02"), tx.ID, cell(account), tx.Type, cell(tx.Category), money(tx.Amount), cell(tx.Note))
	}
	return b.String()
}

func portfolioMarkdown(p valuation.PortfolioValue) string {
	var b strings.Builder
	b.WriteString("# Portfolio\n\n")
	if len(p.Holdings) == 0 {
		b.WriteString("_No holdings._\n")
		return b.String()
	}
	b.WriteString("| ID | Symbol | Shares | Avg cost | Price | Value | P/L | P/L % | Updated |\n|---|---|---:|---:|---:|---:|---:|---:|---|\n")
	for _, hv := range p.Holdings {
		h := hv.Holding
		updated := "never"
		if h.LastUpdated != nil {
			updated = h.LastUpdated.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "| %s | %s | %g | %s | %s | %s | %s | %.2f%% | %s |\n",
			h.ID, h.Symbol, h.Shares, money(h.AverageCost), money(h.Price()),
			money(hv.MarketValue), money(hv.PL), hv.PLPercent, updated)
	}
	fmt.Fprintf(&b, "\n**Market value:** %s · **Cost basis:** %s · **P/L:** %s (%.2f%%)\n",
		money(p.MarketValue), money(p.CostBasis), money(p.PL), p.PLPercent)

	var sources []domain.Source
	for _, hv := range p.Holdings {
		sources = append(sources, hv.Holding.Sources...)
	}
	if len(sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		seen := make(map[string]bool)
		for _, s := range sources {
			if seen[s.URI] {
				continue
			}
			seen[s.URI] = true
			title := s.Title
			if title == "" {
				title = s.URI
			}
			fmt.Fprintf(&b, "- [%s](%s)\n", title, s.URI)
		}
	}
	return b.String()
}

func dashboardMarkdown(d valuation.Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Dashboard (%s)\n\n", d.AsOf.Format("2006-01-02"))
	fmt.Fprintf(&b, "- **Total assets:** %s\n", money(d.TotalAssets))
	fmt.Fprintf(&b, "- **Account balance:** %s\n", money(d.TotalBalance))
	fmt.Fprintf(&b, "- **Portfolio value:** %s\n", money(d.Portfolio.MarketValue))
	fmt.Fprintf(&b, "- **This month:** income %s, expense %s\n", money(d.Month.Income), money(d.Month.Expense))

	b.WriteString("\n## Recent transactions\n\n")
	if len(d.Recent) == 0 {
		b.WriteString("_None._\n")
		return b.String()
	}
	for _, tx := range d.Recent {
		sign := "+"
		if tx.Type == domain.TransactionTypeExpense {
			sign = "-"
		}
		fmt.Fprintf(&b, "- %s %s%s %s\n", tx.Date.Format("2006-01-02"), sign, money(tx.Amount), tx.Category)
	}
	return b.String()
}

func reportMarkdown(r valuation.Report) string {
	var b strings.Builder
	b.WriteString("# Report\n\n## Expenses by category\n\n")
	if len(r.Categories) == 0 {
		b.WriteString("_No expenses._\n")
	} else {
		b.WriteString("| Category | Amount |\n|---|---:|\n")
		for _, c := range r.Categories {
			fmt.Fprintf(&b, "| %s | %s |\n", cell(c.Category), money(c.Amount))
		}
	}

	b.WriteString("\n## Monthly trend\n\n")
	if len(r.Trend) == 0 {
		b.WriteString("_No transactions._\n")
		return b.String()
	}
	b.WriteString("| Month | Income | Expense | Net |\n|---|---:|---:|---:|\n")
	for _, m := range r.Trend {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", m.Month, money(m.Income), money(m.Expense), money(m.Income-m.Expense))
	}
	return b.String()
}
