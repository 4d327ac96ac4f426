package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/session"
	"github.com/dvloznov/wealthflow/internal/valuation"
)

type stocksCmd struct{ common }

func (*stocksCmd) Name() string     { return "stocks" }
func (*stocksCmd) Synopsis() string { return "list holdings with market value and profit/loss" }
func (*stocksCmd) Usage() string {
	return `wealthflow stocks -user <id>
`
}
func (c *stocksCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *stocksCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withSession(func(_ context.Context, s *session.Session, _ *env) error {
		printMarkdown(portfolioMarkdown(valuation.Portfolio(s.Stocks())))
		return nil
	})
}

type addStockCmd struct {
	common
	symbol string
	name   string
	shares float64
	cost   float64
}

func (*addStockCmd) Name() string     { return "add-stock" }
func (*addStockCmd) Synopsis() string { return "add a holding" }
func (*addStockCmd) Usage() string {
	return `wealthflow add-stock -user <id> -symbol <ticker> -shares <n> -cost <average cost> [-name <name>]
`
}

func (c *addStockCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.symbol, "symbol", "", "Ticker symbol, e.g. 2330.TW (required).")
	f.StringVar(&c.name, "name", "", "Display name.")
	f.Float64Var(&c.shares, "shares", 0, "Number of shares (required).")
	f.Float64Var(&c.cost, "cost", 0, "Average cost per share (required).")
}

func (c *addStockCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withSession(func(ctx context.Context, s *session.Session, _ *env) error {
		h, err := s.AddStock(ctx, domain.StockHolding{
			Symbol:      strings.ToUpper(c.symbol),
			Name:        c.name,
			Shares:      c.shares,
			AverageCost: c.cost,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added holding %s (%s)\n", h.ID, h.Symbol)
		return nil
	})
}

type deleteStockCmd struct{ common }

func (*deleteStockCmd) Name() string     { return "delete-stock" }
func (*deleteStockCmd) Synopsis() string { return "remove a holding" }
func (*deleteStockCmd) Usage() string {
	return `wealthflow delete-stock -user <id> <holding-id>
`
}
func (c *deleteStockCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *deleteStockCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)
	return c.withSession(func(ctx context.Context, s *session.Session, _ *env) error {
		if err := s.DeleteStock(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted holding %s\n", id)
		return nil
	})
}

type refreshCmd struct{ common }

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "fetch current prices for every holding" }
func (*refreshCmd) Usage() string {
	return `wealthflow refresh -user <id>

  Asks the pricing service for current prices. Holdings it cannot price keep
  their previous values.
`
}
func (c *refreshCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *refreshCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withSession(func(ctx context.Context, s *session.Session, _ *env) error {
		holdings, err := s.RefreshPrices(ctx)
		if err != nil {
			return err
		}
		printMarkdown(portfolioMarkdown(valuation.Portfolio(holdings)))
		return nil
	})
}

type analyzeCmd struct{ common }

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "ask the AI service for portfolio commentary" }
func (*analyzeCmd) Usage() string {
	return `wealthflow analyze -user <id>
`
}
func (c *analyzeCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *analyzeCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withSession(func(ctx context.Context, s *session.Session, _ *env) error {
		text, ok := s.AnalyzePortfolio(ctx)
		if !ok {
			fmt.Println("No analysis available.")
			return nil
		}
		printMarkdown("# Portfolio analysis\n\n" + text + "\n")
		return nil
	})
}
