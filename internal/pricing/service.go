// Package pricing fetches stock prices and portfolio commentary from a
// remote language model. Failures never reach the caller: prices fall back
// to the holdings passed in and analysis falls back to a fixed message.
package pricing

import (
	"context"

	"github.com/dvloznov/wealthflow/internal/domain"
)

const (
	// DefaultModelName is the Gemini model used when none is configured.
	DefaultModelName = "gemini-2.5-flash"

	// FallbackAnalysis is returned when the analysis call fails.
	FallbackAnalysis = "Portfolio analysis is temporarily unavailable. Please try again later."
)

// Service is the price and analysis collaborator.
type Service interface {
	// RefreshPrices returns the holdings with updated prices. Holdings whose
	// symbol could not be priced are returned unchanged, and on total
	// failure the input is returned as is.
	RefreshPrices(ctx context.Context, holdings []domain.StockHolding) []domain.StockHolding

	// AnalyzePortfolio returns short commentary on the holdings. ok is false
	// when the model produced no text.
	AnalyzePortfolio(ctx context.Context, holdings []domain.StockHolding, totalAssets float64) (text string, ok bool)
}

// Disabled is used when no model is configured.
type Disabled struct{}

// RefreshPrices returns the holdings unchanged.
func (Disabled) RefreshPrices(_ context.Context, holdings []domain.StockHolding) []domain.StockHolding {
	return holdings
}

// AnalyzePortfolio always reports no analysis.
func (Disabled) AnalyzePortfolio(context.Context, []domain.StockHolding, float64) (string, bool) {
	return "", false
}

var _ Service = Disabled{}
