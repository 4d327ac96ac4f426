package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/api/middleware"
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/jobs"
	"github.com/dvloznov/wealthflow/internal/valuation"
)

// StocksHandler handles holding endpoints.
type StocksHandler struct {
	base
	publisher jobs.Publisher
}

// NewStocksHandler creates a new stocks handler.
func NewStocksHandler(sessions Sessions, publisher jobs.Publisher, log zerolog.Logger) *StocksHandler {
	return &StocksHandler{base: base{sessions: sessions, log: log}, publisher: publisher}
}

// ListStocks handles GET /api/stocks
func (h *StocksHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	stocks := s.Stocks()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stocks":    stocks,
		"count":     len(stocks),
		"portfolio": valuation.Portfolio(stocks),
	})
}

// CreateStock handles POST /api/stocks
func (h *StocksHandler) CreateStock(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var holding domain.StockHolding
	if !decode(w, r, &holding) {
		return
	}

	created, err := s.AddStock(r.Context(), holding)
	if err != nil {
		h.fail(w, err, "Failed to create holding")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// ReplaceStocks handles PUT /api/stocks with the complete new collection.
func (h *StocksHandler) ReplaceStocks(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var next []domain.StockHolding
	if !decode(w, r, &next) {
		return
	}

	intents, err := s.ReplaceStocks(r.Context(), next)
	if err != nil {
		h.fail(w, err, "Failed to replace holdings")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"changes": intents,
		"stocks":  s.Stocks(),
	})
}

// DeleteStock handles DELETE /api/stocks/{id}
func (h *StocksHandler) DeleteStock(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.DeleteStock(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err, "Failed to delete holding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshPrices handles POST /api/stocks/refresh. The refresh runs as a
// background job; poll /api/jobs/{id} for the result.
func (h *StocksHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	job := &jobs.RefreshPricesJob{UserID: s.User().ID, Trigger: jobs.TriggerAPI}
	if err := h.publisher.PublishRefreshPrices(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("user_id", job.UserID).Msg("Failed to enqueue price refresh")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue price refresh")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("user_id", job.UserID).Msg("Price refresh enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// AnalyzePortfolio handles POST /api/stocks/analysis
func (h *StocksHandler) AnalyzePortfolio(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	text, ok := s.AnalyzePortfolio(r.Context())
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"analysis": nil})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"analysis": text})
}
