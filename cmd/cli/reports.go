package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/dvloznov/wealthflow/internal/session"
)

type dashboardCmd struct {
	common
	asJSON bool
}

func (*dashboardCmd) Name() string     { return "dashboard" }
func (*dashboardCmd) Synopsis() string { return "show total assets, this month's totals and recent activity" }
func (*dashboardCmd) Usage() string {
	return `wealthflow dashboard -user <id> [-json]
`
}

func (c *dashboardCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.BoolVar(&c.asJSON, "json", false, "Print JSON instead of formatted text.")
}

func (c *dashboardCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withSession(func(_ context.Context, s *session.Session, _ *env) error {
		d := s.Dashboard()
		if c.asJSON {
			return writeJSON(d)
		}
		printMarkdown(dashboardMarkdown(d))
		return nil
	})
}

type reportCmd struct {
	common
	asJSON bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "show expenses by category and the monthly trend" }
func (*reportCmd) Usage() string {
	return `wealthflow report -user <id> [-json]
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.BoolVar(&c.asJSON, "json", false, "Print JSON instead of formatted text.")
}

func (c *reportCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withSession(func(_ context.Context, s *session.Session, _ *env) error {
		r := s.Report()
		if c.asJSON {
			return writeJSON(r)
		}
		printMarkdown(reportMarkdown(r))
		return nil
	})
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
