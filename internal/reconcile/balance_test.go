package reconcile

import (
	"testing"

	"github.com/dvloznov/wealthflow/internal/domain"
)

func income(id, accountID string, amount float64) domain.Transaction {
	return domain.Transaction{ID: id, AccountID: accountID, Amount: amount, Type: domain.TransactionTypeIncome}
}

func expense(id, accountID string, amount float64) domain.Transaction {
	return domain.Transaction{ID: id, AccountID: accountID, Amount: amount, Type: domain.TransactionTypeExpense}
}

func TestApplyAdd(t *testing.T) {
	accounts := []domain.Account{
		{ID: "a1", Balance: 1000},
		{ID: "a2", Balance: 50},
	}

	tests := []struct {
		name        string
		tx          domain.Transaction
		wantA1      float64
		wantA2      float64
		wantTouched int
	}{
		{"income adds", income("t1", "a1", 500), 1500, 50, 1},
		{"expense subtracts", expense("t1", "a1", 300), 700, 50, 1},
		{"other account", expense("t1", "a2", 60), 1000, -10, 1},
		{"dangling reference", income("t1", "missing", 500), 1000, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, touched := ApplyAdd(accounts, tt.tx)
			if next[0].Balance != tt.wantA1 || next[1].Balance != tt.wantA2 {
				t.Errorf("balances = %v, %v; want %v, %v", next[0].Balance, next[1].Balance, tt.wantA1, tt.wantA2)
			}
			if len(touched) != tt.wantTouched {
				t.Errorf("touched = %d accounts, want %d", len(touched), tt.wantTouched)
			}
			if accounts[0].Balance != 1000 || accounts[1].Balance != 50 {
				t.Error("input accounts were modified")
			}
		})
	}
}

func TestApplyDeleteExpenseRollback(t *testing.T) {
	accounts := []domain.Account{{ID: "a1", Balance: 1500}}

	next, touched := ApplyDelete(accounts, expense("t1", "a1", 300))
	if next[0].Balance != 1800 {
		t.Errorf("balance = %v, want 1800", next[0].Balance)
	}
	if len(touched) != 1 || touched[0].Balance != 1800 {
		t.Errorf("touched = %+v", touched)
	}
}

func TestApplyDeleteDanglingReference(t *testing.T) {
	accounts := []domain.Account{{ID: "a1", Balance: 1500}}

	next, touched := ApplyDelete(accounts, income("t1", "gone", 300))
	if next[0].Balance != 1500 {
		t.Errorf("balance = %v, want 1500", next[0].Balance)
	}
	if len(touched) != 0 {
		t.Errorf("touched = %+v, want none", touched)
	}
}

func TestAddDeleteInverse(t *testing.T) {
	starts := []float64{0, 0.1, 0.3, 1000, -250.75, 150000, 1e9 + 0.01}
	amounts := []float64{0, 0.1, 0.2, 0.7, 19.99, 123.456, 50000}
	kinds := []domain.TransactionType{domain.TransactionTypeIncome, domain.TransactionTypeExpense}

	for _, start := range starts {
		for _, amount := range amounts {
			for _, kind := range kinds {
				accounts := []domain.Account{{ID: "a", Balance: start}}
				tx := domain.Transaction{ID: "t", AccountID: "a", Amount: amount, Type: kind}

				added, _ := ApplyAdd(accounts, tx)
				restored, _ := ApplyDelete(added, tx)
				if restored[0].Balance != start {
					t.Errorf("start %v, %s %v: restored %v", start, kind, amount, restored[0].Balance)
				}
			}
		}
	}
}

func TestAddDeleteInverseCentScaleSweep(t *testing.T) {
	kinds := []domain.TransactionType{domain.TransactionTypeIncome, domain.TransactionTypeExpense}
	failures := 0
	for i := 0; i < 20000; i++ {
		start := float64((i*7919)%100000000-50000000) / 100
		amount := float64((i*104729)%10000000) / 100
		kind := kinds[i%2]

		accounts := []domain.Account{{ID: "a", Balance: start}}
		tx := domain.Transaction{ID: "t", AccountID: "a", Amount: amount, Type: kind}
		added, _ := ApplyAdd(accounts, tx)
		restored, _ := ApplyDelete(added, tx)
		if restored[0].Balance != start {
			failures++
			if failures <= 5 {
				t.Errorf("start %v, %s %v: restored %v", start, kind, amount, restored[0].Balance)
			}
		}
	}
	if failures > 0 {
		t.Errorf("%d cent-scale pairs did not restore exactly", failures)
	}
}

func TestBalanceConsistency(t *testing.T) {
	accounts := []domain.Account{{ID: "a", Balance: 100}}
	txs := []domain.Transaction{
		income("t1", "a", 0.1),
		income("t2", "a", 0.2),
		expense("t3", "a", 30),
		income("t4", "a", 12.5),
		expense("t5", "a", 0.3),
	}

	for _, tx := range txs {
		accounts, _ = ApplyAdd(accounts, tx)
	}
	// Delete t3 and t5.
	accounts, _ = ApplyDelete(accounts, txs[2])
	accounts, _ = ApplyDelete(accounts, txs[4])

	want := 112.8
	if accounts[0].Balance != want {
		t.Errorf("balance = %v, want %v", accounts[0].Balance, want)
	}
}

func TestTransferHasNoBalanceEffect(t *testing.T) {
	accounts := []domain.Account{{ID: "a", Balance: 10}}
	tx := domain.Transaction{ID: "t", AccountID: "a", Amount: 5, Type: domain.TransactionTypeTransfer}

	next, touched := ApplyAdd(accounts, tx)
	if next[0].Balance != 10 {
		t.Errorf("balance = %v, want 10", next[0].Balance)
	}
	if len(touched) != 1 {
		t.Errorf("touched = %d, want 1", len(touched))
	}
}

func TestReplay(t *testing.T) {
	accounts := []domain.Account{{ID: "bank", Balance: 0}, {ID: "cash", Balance: 0}}
	got := Replay(accounts, []domain.Transaction{
		income("t1", "bank", 50000),
		expense("t2", "cash", 120),
	})
	if got[0].Balance != 50000 || got[1].Balance != -120 {
		t.Errorf("Replay = %+v", got)
	}
}
