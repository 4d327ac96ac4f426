package remote_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/remote"
	"github.com/dvloznov/wealthflow/internal/remote/inmemory"
)

func TestRestoreRewritesOwnerAndKeepsBalances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := inmemory.NewAdapter(false, zerolog.Nop())
	defer adapter.Close()

	backup := remote.SampleData("someone-else", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	rev, err := remote.Restore(ctx, adapter, "u2", backup)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if rev == 0 {
		t.Error("Restore returned zero revision")
	}

	feed, err := adapter.Subscribe(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	defer feed.Close()

	got := map[remote.Collection]remote.Snapshot{}
	timeout := time.After(2 * time.Second)
	for len(got) < len(remote.Collections) {
		select {
		case s := <-feed.Events():
			got[s.Collection] = s
		case <-timeout:
			t.Fatalf("received %d of %d collections", len(got), len(remote.Collections))
		}
	}

	accounts := got[remote.CollectionAccounts].Accounts
	if len(accounts) != len(backup.Accounts) {
		t.Fatalf("accounts = %d, want %d", len(accounts), len(backup.Accounts))
	}
	want := map[string]float64{}
	for _, a := range backup.Accounts {
		want[a.ID] = a.Balance
	}
	for _, a := range accounts {
		if a.UserID != "u2" {
			t.Errorf("account %s owned by %q", a.ID, a.UserID)
		}
		if a.Balance != want[a.ID] {
			t.Errorf("account %s balance = %v, want %v", a.ID, a.Balance, want[a.ID])
		}
	}

	if n := len(got[remote.CollectionTransactions].Transactions); n != len(backup.Transactions) {
		t.Errorf("transactions = %d, want %d", n, len(backup.Transactions))
	}
	for _, h := range got[remote.CollectionStocks].Stocks {
		if h.UserID != "u2" {
			t.Errorf("holding %s owned by %q", h.ID, h.UserID)
		}
	}
}
