package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/session"
)

type accountsCmd struct{ common }

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list accounts and their balances" }
func (*accountsCmd) Usage() string {
	return `wealthflow accounts -user <id>
`
}
func (c *accountsCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *accountsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withSession(func(_ context.Context, s *session.Session, _ *env) error {
		printMarkdown(accountsMarkdown(s.Accounts()))
		return nil
	})
}

type addAccountCmd struct {
	common
	name     string
	typ      string
	balance  float64
	currency string
}

func (*addAccountCmd) Name() string     { return "add-account" }
func (*addAccountCmd) Synopsis() string { return "create an account" }
func (*addAccountCmd) Usage() string {
	return `wealthflow add-account -user <id> -name <name> [-type Bank|Cash|Investment|Credit] [-balance <opening>] [-currency TWD]
`
}

func (c *addAccountCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.name, "name", "", "Account name (required).")
	f.StringVar(&c.typ, "type", string(domain.AccountTypeBank), "Account type: Bank, Cash, Investment or Credit.")
	f.Float64Var(&c.balance, "balance", 0, "Opening balance.")
	f.StringVar(&c.currency, "currency", displayCurrency, "Currency code.")
}

func (c *addAccountCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withSession(func(ctx context.Context, s *session.Session, _ *env) error {
		acc, err := s.AddAccount(ctx, domain.Account{
			Name:     c.name,
			Type:     domain.AccountType(c.typ),
			Balance:  c.balance,
			Currency: strings.ToUpper(c.currency),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created account %s (%s)\n", acc.ID, acc.Name)
		return nil
	})
}

type transactionsCmd struct {
	common
	typ string
}

func (*transactionsCmd) Name() string     { return "transactions" }
func (*transactionsCmd) Synopsis() string { return "list transactions, newest first" }
func (*transactionsCmd) Usage() string {
	return `wealthflow transactions -user <id> [-type Income|Expense]
`
}

func (c *transactionsCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.typ, "type", "", "Only show Income or Expense transactions.")
}

func (c *transactionsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	typ := domain.TransactionType(c.typ)
	if typ != "" && typ != domain.TransactionTypeIncome && typ != domain.TransactionTypeExpense {
		fmt.Fprintf(os.Stderr, "Error: unknown transaction type %q\n", c.typ)
		return subcommands.ExitUsageError
	}
	return c.withSession(func(_ context.Context, s *session.Session, _ *env) error {
		printMarkdown(transactionsMarkdown(s.Transactions(typ), s.Accounts()))
		return nil
	})
}

type addTxCmd struct {
	common
	account  string
	amount   float64
	typ      string
	category string
	note     string
	date     string
}

func (*addTxCmd) Name() string     { return "add-tx" }
func (*addTxCmd) Synopsis() string { return "record an income or expense and update the account balance" }
func (*addTxCmd) Usage() string {
	return `wealthflow add-tx -user <id> -account <account-id> -amount <n> [-type Income|Expense] [-category <c>] [-note <text>] [-date YYYY-MM-DD]
`
}

func (c *addTxCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.account, "account", "", "Account id (required).")
	f.Float64Var(&c.amount, "amount", 0, "Positive amount (required).")
	f.StringVar(&c.typ, "type", string(domain.TransactionTypeExpense), "Income or Expense.")
	f.StringVar(&c.category, "category", "", "Category name.")
	f.StringVar(&c.note, "note", "", "Free text note.")
	f.StringVar(&c.date, "date", "", "Transaction date (defaults to now).")
}

func (c *addTxCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var date time.Time
	if c.date != "" {
		var err error
		if date, err = time.ParseInLocation("2006-01-02", c.date, time.Local); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	category := c.category
	if cat, ok := domain.LookupCategory(category); ok {
		category = cat.Name
	}

	return c.withSession(func(ctx context.Context, s *session.Session, _ *env) error {
		tx, err := s.AddTransaction(ctx, domain.Transaction{
			AccountID: c.account,
			Amount:    c.amount,
			Date:      date,
			Type:      domain.TransactionType(c.typ),
			Category:  category,
			Note:      c.note,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Recorded transaction %s\n", tx.ID)
		if acc, ok := domain.FindAccount(s.Accounts(), tx.AccountID); ok {
			fmt.Printf("%s balance: %s\n", acc.Name, money(acc.Balance))
		}
		return nil
	})
}

type deleteTxCmd struct{ common }

func (*deleteTxCmd) Name() string     { return "delete-tx" }
func (*deleteTxCmd) Synopsis() string { return "delete a transaction and reverse its balance effect" }
func (*deleteTxCmd) Usage() string {
	return `wealthflow delete-tx -user <id> <transaction-id>
`
}
func (c *deleteTxCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *deleteTxCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)
	return c.withSession(func(ctx context.Context, s *session.Session, _ *env) error {
		if err := s.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted transaction %s\n", id)
		return nil
	})
}
