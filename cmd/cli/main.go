package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

// Commands lists every CLI subcommand.
var Commands = []subcommands.Command{
	&tokenCmd{},
	&accountsCmd{},
	&addAccountCmd{},
	&transactionsCmd{},
	&addTxCmd{},
	&deleteTxCmd{},
	&stocksCmd{},
	&addStockCmd{},
	&deleteStockCmd{},
	&refreshCmd{},
	&analyzeCmd{},
	&dashboardCmd{},
	&reportCmd{},
	&backupCmd{},
	&restoreCmd{},
}

func main() {
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range Commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
