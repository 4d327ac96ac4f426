package domain

// Ledger is the full data set owned by one user.
type Ledger struct {
	Accounts     []Account      `json:"accounts"`
	Transactions []Transaction  `json:"transactions"`
	Stocks       []StockHolding `json:"stocks"`
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := Ledger{
		Accounts:     append([]Account(nil), l.Accounts...),
		Transactions: append([]Transaction(nil), l.Transactions...),
	}
	if l.Stocks != nil {
		out.Stocks = make([]StockHolding, len(l.Stocks))
		for i, h := range l.Stocks {
			out.Stocks[i] = h.Clone()
		}
	}
	return out
}
