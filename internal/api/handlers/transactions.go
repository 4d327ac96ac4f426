package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/api/middleware"
	"github.com/dvloznov/wealthflow/internal/domain"
)

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(sessions Sessions, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{base{sessions: sessions, log: log}}
}

// ListTransactions handles GET /api/transactions?type=Income|Expense
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	typ := domain.TransactionType(r.URL.Query().Get("type"))
	switch typ {
	case "", domain.TransactionTypeIncome, domain.TransactionTypeExpense, domain.TransactionTypeTransfer:
	default:
		middleware.WriteError(w, http.StatusBadRequest, "Invalid type filter")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	// Return array directly for frontend compatibility
	transactions := s.Transactions(typ)
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var tx domain.Transaction
	if !decode(w, r, &tx) {
		return
	}

	created, err := s.AddTransaction(r.Context(), tx)
	if err != nil {
		h.fail(w, err, "Failed to create transaction")
		return
	}

	h.log.Info().
		Str("user_id", s.User().ID).
		Str("transaction_id", created.ID).
		Str("account_id", created.AccountID).
		Msg("Transaction created")
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
