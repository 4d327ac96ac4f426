package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/identity"
	"github.com/dvloznov/wealthflow/internal/jobs"
	jobsmem "github.com/dvloznov/wealthflow/internal/jobs/inmemory"
	"github.com/dvloznov/wealthflow/internal/remote/inmemory"
	"github.com/dvloznov/wealthflow/internal/session"
)

type fixedPrices struct {
	prices map[string]float64
}

func (f fixedPrices) RefreshPrices(_ context.Context, holdings []domain.StockHolding) []domain.StockHolding {
	out := make([]domain.StockHolding, len(holdings))
	for i, h := range holdings {
		h = h.Clone()
		if p, ok := f.prices[h.Symbol]; ok {
			h.CurrentPrice = domain.Float64(p)
		}
		out[i] = h
	}
	return out
}

func (fixedPrices) AnalyzePortfolio(context.Context, []domain.StockHolding, float64) (string, bool) {
	return "Diversify.", true
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	verifier *identity.Verifier
	jobStore *jobsmem.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.New(io.Discard)

	adapter := inmemory.NewAdapter(true, log)
	manager := session.NewManager(adapter, fixedPrices{prices: map[string]float64{"2330.TW": 600}}, log)
	t.Cleanup(func() { _ = manager.CloseAll() })

	verifier, err := identity.NewVerifier("test-secret", "wealthflow")
	if err != nil {
		t.Fatal(err)
	}

	store := jobsmem.NewStore()
	queue := jobsmem.NewQueue(10, 1, 0, store)
	if err := queue.Start(context.Background(), jobs.NewRefreshHandler(manager, log)); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = queue.Close() })

	return &testServer{
		t: t,
		handler: NewRouter(Dependencies{
			Sessions:  manager,
			Verifier:  verifier,
			Publisher: queue,
			JobStore:  store,
			Log:       log,
		}),
		verifier: verifier,
		jobStore: store,
	}
}

func (s *testServer) do(userID, method, path string, body interface{}, out interface{}) int {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		token, err := s.verifier.Issue(domain.User{ID: userID, Name: "Test " + userID}, time.Hour)
		if err != nil {
			s.t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decoding %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	if code := s.do("", http.MethodGet, "/health", nil, nil); code != http.StatusOK {
		t.Fatalf("GET /health = %d", code)
	}
	if code := s.do("", http.MethodGet, "/api/accounts", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("GET /api/accounts without token = %d, want 401", code)
	}
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	var me domain.User
	if code := s.do("alice", http.MethodGet, "/api/me", nil, &me); code != http.StatusOK {
		t.Fatalf("GET /api/me = %d", code)
	}
	if me.ID != "alice" || me.Name != "Test alice" {
		t.Errorf("me = %+v", me)
	}
}

type accountList struct {
	Accounts []domain.Account `json:"accounts"`
	Count    int              `json:"count"`
}

func findAccount(t *testing.T, s *testServer, userID, name string) domain.Account {
	t.Helper()
	var list accountList
	s.do(userID, http.MethodGet, "/api/accounts", nil, &list)
	for _, a := range list.Accounts {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("account %q not found in %+v", name, list.Accounts)
	return domain.Account{}
}

func TestAccountsCRUD(t *testing.T) {
	s := newTestServer(t)

	var list accountList
	if code := s.do("alice", http.MethodGet, "/api/accounts", nil, &list); code != http.StatusOK {
		t.Fatalf("list = %d", code)
	}
	if list.Count != 3 {
		t.Fatalf("seeded accounts = %d, want 3", list.Count)
	}

	var created domain.Account
	code := s.do("alice", http.MethodPost, "/api/accounts", domain.Account{Name: "Card", Type: domain.AccountTypeCredit, Currency: "TWD"}, &created)
	if code != http.StatusCreated || created.ID == "" || created.UserID != "alice" {
		t.Fatalf("create = %d %+v", code, created)
	}

	if code := s.do("alice", http.MethodPost, "/api/accounts", domain.Account{Name: "", Type: domain.AccountTypeBank}, nil); code != http.StatusBadRequest {
		t.Errorf("invalid create = %d, want 400", code)
	}

	created.Balance = -2500
	var updated domain.Account
	if code := s.do("alice", http.MethodPut, "/api/accounts/"+created.ID, created, &updated); code != http.StatusOK || updated.Balance != -2500 {
		t.Errorf("update = %d %+v", code, updated)
	}

	if code := s.do("alice", http.MethodPut, "/api/accounts/missing", created, nil); code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", code)
	}

	if code := s.do("alice", http.MethodDelete, "/api/accounts/"+created.ID, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete = %d", code)
	}
	s.do("alice", http.MethodGet, "/api/accounts", nil, &list)
	if list.Count != 3 {
		t.Errorf("accounts after delete = %d, want 3", list.Count)
	}
}

func TestReplaceAccountsInfersChange(t *testing.T) {
	s := newTestServer(t)

	var list accountList
	s.do("alice", http.MethodGet, "/api/accounts", nil, &list)

	next := append([]domain.Account{}, list.Accounts...)
	next[0].Name = "Renamed"

	var resp struct {
		Changes []struct {
			Op string `json:"op"`
			ID string `json:"id"`
		} `json:"changes"`
	}
	if code := s.do("alice", http.MethodPut, "/api/accounts", next, &resp); code != http.StatusOK {
		t.Fatalf("replace = %d", code)
	}
	if len(resp.Changes) != 1 || resp.Changes[0].Op != "update" || resp.Changes[0].ID != next[0].ID {
		t.Errorf("changes = %+v", resp.Changes)
	}
}

func TestTransactionsReconcileBalances(t *testing.T) {
	s := newTestServer(t)
	wallet := findAccount(t, s, "alice", "Wallet")

	var tx domain.Transaction
	code := s.do("alice", http.MethodPost, "/api/transactions", domain.Transaction{
		AccountID: wallet.ID,
		Amount:    300,
		Type:      domain.TransactionTypeExpense,
		Category:  "transport",
	}, &tx)
	if code != http.StatusCreated || tx.ID == "" || tx.Date.IsZero() {
		t.Fatalf("create tx = %d %+v", code, tx)
	}

	if got := findAccount(t, s, "alice", "Wallet").Balance; got != wallet.Balance-300 {
		t.Errorf("wallet after expense = %v, want %v", got, wallet.Balance-300)
	}

	var expenses []domain.Transaction
	if code := s.do("alice", http.MethodGet, "/api/transactions?type=Expense", nil, &expenses); code != http.StatusOK {
		t.Fatalf("list = %d", code)
	}
	for _, e := range expenses {
		if e.Type != domain.TransactionTypeExpense {
			t.Errorf("filter leaked %s", e.Type)
		}
	}
	if len(expenses) != 2 {
		t.Errorf("expenses = %d, want 2", len(expenses))
	}

	if code := s.do("alice", http.MethodDelete, "/api/transactions/"+tx.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete tx = %d", code)
	}
	if got := findAccount(t, s, "alice", "Wallet").Balance; got != wallet.Balance {
		t.Errorf("wallet after delete = %v, want %v", got, wallet.Balance)
	}
}

func TestTransactionsRejectInvalid(t *testing.T) {
	s := newTestServer(t)
	wallet := findAccount(t, s, "alice", "Wallet")

	tests := []struct {
		name string
		tx   domain.Transaction
	}{
		{"transfer", domain.Transaction{AccountID: wallet.ID, Amount: 10, Type: domain.TransactionTypeTransfer}},
		{"negative", domain.Transaction{AccountID: wallet.ID, Amount: -10, Type: domain.TransactionTypeExpense}},
		{"no account", domain.Transaction{Amount: 10, Type: domain.TransactionTypeIncome}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := s.do("alice", http.MethodPost, "/api/transactions", tt.tx, nil); code != http.StatusBadRequest {
				t.Errorf("code = %d, want 400", code)
			}
		})
	}

	if code := s.do("alice", http.MethodGet, "/api/transactions?type=Gift", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad filter = %d, want 400", code)
	}
	if code := s.do("alice", http.MethodDelete, "/api/transactions/missing", nil, nil); code != http.StatusNotFound {
		t.Errorf("delete missing = %d, want 404", code)
	}
}

func TestStocksRefreshJob(t *testing.T) {
	s := newTestServer(t)

	var created domain.StockHolding
	code := s.do("alice", http.MethodPost, "/api/stocks", domain.StockHolding{Symbol: "AAPL", Name: "Apple", Shares: 10, AverageCost: 150}, &created)
	if code != http.StatusCreated || created.CurrentPrice == nil || *created.CurrentPrice != 150 {
		t.Fatalf("create stock = %d %+v", code, created)
	}

	var accepted map[string]string
	if code := s.do("alice", http.MethodPost, "/api/stocks/refresh", nil, &accepted); code != http.StatusAccepted {
		t.Fatalf("refresh = %d", code)
	}
	jobID := accepted["job_id"]

	var job jobs.RefreshPricesJob
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.do("alice", http.MethodGet, "/api/jobs/"+jobID, nil, &job)
		if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != jobs.JobStatusCompleted || job.Updated != 1 {
		t.Fatalf("job = %+v", job)
	}

	var list struct {
		Stocks []domain.StockHolding `json:"stocks"`
	}
	s.do("alice", http.MethodGet, "/api/stocks", nil, &list)
	for _, h := range list.Stocks {
		if h.Symbol == "2330.TW" && h.Price() != 600 {
			t.Errorf("2330.TW price = %v, want 600", h.Price())
		}
		if h.Symbol == "AAPL" && h.Price() != 150 {
			t.Errorf("AAPL price = %v, want unchanged 150", h.Price())
		}
	}

	if code := s.do("bob", http.MethodGet, "/api/jobs/"+jobID, nil, nil); code != http.StatusNotFound {
		t.Errorf("other user's job = %d, want 404", code)
	}
}

func TestAnalysisDashboardAndReports(t *testing.T) {
	s := newTestServer(t)

	var analysis map[string]string
	if code := s.do("alice", http.MethodPost, "/api/stocks/analysis", nil, &analysis); code != http.StatusOK || analysis["analysis"] != "Diversify." {
		t.Errorf("analysis = %d %v", code, analysis)
	}

	var dashboard struct {
		TotalBalance float64 `json:"totalBalance"`
		TotalAssets  float64 `json:"totalAssets"`
	}
	if code := s.do("alice", http.MethodGet, "/api/dashboard", nil, &dashboard); code != http.StatusOK {
		t.Fatalf("dashboard = %d", code)
	}
	if dashboard.TotalBalance != 155000 || dashboard.TotalAssets != 155000+580000 {
		t.Errorf("dashboard = %+v", dashboard)
	}

	if code := s.do("alice", http.MethodGet, "/api/reports", nil, nil); code != http.StatusOK {
		t.Errorf("reports = %d", code)
	}

	var categories struct {
		Count int `json:"count"`
	}
	if code := s.do("alice", http.MethodGet, "/api/categories?type=Income", nil, &categories); code != http.StatusOK || categories.Count != 2 {
		t.Errorf("categories = %d %+v", code, categories)
	}
}

func TestSignOutDropsSession(t *testing.T) {
	s := newTestServer(t)
	if code := s.do("alice", http.MethodGet, "/api/me", nil, nil); code != http.StatusOK {
		t.Fatal(code)
	}
	if code := s.do("alice", http.MethodPost, "/api/session/signout", nil, nil); code != http.StatusNoContent {
		t.Fatalf("signout = %d", code)
	}
	if code := s.do("alice", http.MethodPost, "/api/session/signout", nil, nil); code != http.StatusNoContent {
		t.Fatalf("second signout = %d", code)
	}

	var list accountList
	if code := s.do("alice", http.MethodGet, "/api/accounts", nil, &list); code != http.StatusOK || list.Count != 3 {
		t.Errorf("accounts after re-sign-in = %d %d", code, list.Count)
	}
}
