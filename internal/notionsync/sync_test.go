package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/domain"
)

// fakeNotion keeps pages per database in memory and serves them two per
// query page to exercise pagination.
type fakeNotion struct {
	pages    map[string][]notionapi.Page
	archived []string
	updated  []string
	nextID   int

	createErr error
}

func (f *fakeNotion) CreatePage(_ context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	page := notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("page-%d", f.nextID)), Properties: props}
	if f.pages == nil {
		f.pages = make(map[string][]notionapi.Page)
	}
	f.pages[databaseID] = append(f.pages[databaseID], page)
	return &page, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	f.updated = append(f.updated, pageID)
	return &notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}, nil
}

func (f *fakeNotion) ArchivePage(_ context.Context, pageID string) error {
	f.archived = append(f.archived, pageID)
	return nil
}

func (f *fakeNotion) QueryDatabase(_ context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	all := f.pages[databaseID]
	start := 0
	if req.StartCursor != "" {
		fmt.Sscanf(string(req.StartCursor), "%d", &start)
	}
	end := start + 2
	if end > len(all) {
		end = len(all)
	}
	resp := &notionapi.DatabaseQueryResponse{Results: all[start:end]}
	if end < len(all) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(fmt.Sprintf("%d", end))
	}
	return resp, nil
}

func existingPage(id, ledgerID string) notionapi.Page {
	props := notionapi.Properties{}
	if ledgerID != "" {
		props[IDProperty] = &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: ledgerID}}}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func testLedger() domain.Ledger {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	return domain.Ledger{
		Accounts: []domain.Account{
			{ID: "a1", Name: "Bank", Type: domain.AccountTypeBank, Balance: 100, Currency: "TWD"},
			{ID: "a2", Name: "Wallet", Type: domain.AccountTypeCash, Balance: 5, Currency: "TWD"},
		},
		Transactions: []domain.Transaction{
			{ID: "t1", AccountID: "a1", Amount: 100, Date: day(5), Type: domain.TransactionTypeIncome, Category: "Salary"},
			{ID: "t2", AccountID: "gone", Amount: 7, Date: day(20), Type: domain.TransactionTypeExpense, Category: "Food"},
		},
		Stocks: []domain.StockHolding{
			{ID: "s1", Symbol: "2330.TW", Shares: 10, AverageCost: 500},
		},
	}
}

func TestSyncCreatesUpdatesAndArchives(t *testing.T) {
	fake := &fakeNotion{pages: map[string][]notionapi.Page{
		"acc-db": {
			existingPage("p-a1", "a1"),
			existingPage("p-old", "deleted-account"),
			existingPage("p-none", ""),
			existingPage("p-dup", "a1"),
		},
	}}
	s := NewSyncer(fake, Databases{Accounts: "acc-db", Transactions: "tx-db", Stocks: "stock-db"}, false, zerolog.Nop())

	sum, err := s.Sync(context.Background(), testLedger(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	want := Summary{
		Accounts:     Result{Created: 1, Updated: 1, Archived: 3},
		Transactions: Result{Created: 2},
		Stocks:       Result{Created: 1},
	}
	if sum != want {
		t.Errorf("Sync() = %+v, want %+v", sum, want)
	}
	if len(fake.updated) != 1 || fake.updated[0] != "p-a1" {
		t.Errorf("updated pages = %v, want [p-a1]", fake.updated)
	}
}

func TestSyncTransactionRange(t *testing.T) {
	fake := &fakeNotion{}
	s := NewSyncer(fake, Databases{Transactions: "tx-db"}, false, zerolog.Nop())

	from := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	sum, err := s.Sync(context.Background(), testLedger(), from, time.Time{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if sum.Transactions.Created != 1 {
		t.Fatalf("created = %d, want 1", sum.Transactions.Created)
	}
	if got := pageLedgerID(fake.pages["tx-db"][0]); got != "t2" {
		t.Errorf("mirrored transaction = %q, want t2", got)
	}
}

func TestSyncDryRunWritesNothing(t *testing.T) {
	fake := &fakeNotion{pages: map[string][]notionapi.Page{
		"acc-db": {existingPage("p-old", "deleted-account")},
	}}
	s := NewSyncer(fake, Databases{Accounts: "acc-db"}, true, zerolog.Nop())

	sum, err := s.Sync(context.Background(), testLedger(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if sum.Accounts != (Result{Created: 2, Archived: 1}) {
		t.Errorf("Sync() accounts = %+v", sum.Accounts)
	}
	if len(fake.archived) != 0 || len(fake.pages["acc-db"]) != 1 {
		t.Errorf("dry run wrote to Notion: archived=%v pages=%d", fake.archived, len(fake.pages["acc-db"]))
	}
}

func TestSyncCountsPageFailures(t *testing.T) {
	fake := &fakeNotion{createErr: errors.New("rate limited")}
	s := NewSyncer(fake, Databases{Stocks: "stock-db"}, false, zerolog.Nop())

	sum, err := s.Sync(context.Background(), testLedger(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if sum.Stocks.Failed != 1 || sum.Stocks.Created != 0 {
		t.Errorf("Sync() stocks = %+v, want one failure", sum.Stocks)
	}
}

func TestTransactionPropertiesResolvesAccountName(t *testing.T) {
	tx := testLedger().Transactions[0]
	props := TransactionProperties(tx, map[string]string{"a1": "Bank"})

	account, ok := props["Account"].(notionapi.RichTextProperty)
	if !ok || account.RichText[0].Text.Content != "Bank" {
		t.Errorf("Account property = %#v, want Bank", props["Account"])
	}
	title, ok := props["Description"].(notionapi.TitleProperty)
	if !ok || title.Title[0].Text.Content != "Salary" {
		t.Errorf("Description property = %#v, want category fallback", props["Description"])
	}
}
