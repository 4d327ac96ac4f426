package domain

import "time"

// Source is a web citation returned alongside AI-fetched prices.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// StockHolding is a position in a single ticker.
type StockHolding struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	Shares       float64    `json:"shares"`
	AverageCost  float64    `json:"averageCost"`
	CurrentPrice *float64   `json:"currentPrice,omitempty"`
	LastUpdated  *time.Time `json:"lastUpdated,omitempty"`
	Sources      []Source   `json:"sources,omitempty"`
}

// GetID returns the holding identifier.
func (h StockHolding) GetID() string {
	return h.ID
}

// Price is the current price, falling back to the average cost when no
// price has been fetched yet.
func (h StockHolding) Price() float64 {
	if h.CurrentPrice != nil {
		return *h.CurrentPrice
	}
	return h.AverageCost
}

// Clone returns a deep copy of the holding.
func (h StockHolding) Clone() StockHolding {
	out := h
	if h.CurrentPrice != nil {
		p := *h.CurrentPrice
		out.CurrentPrice = &p
	}
	if h.LastUpdated != nil {
		t := *h.LastUpdated
		out.LastUpdated = &t
	}
	if h.Sources != nil {
		out.Sources = append([]Source(nil), h.Sources...)
	}
	return out
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
