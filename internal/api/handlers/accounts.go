package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/api/middleware"
	"github.com/dvloznov/wealthflow/internal/domain"
)

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	base
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(sessions Sessions, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{base{sessions: sessions, log: log}}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	accounts := s.Accounts()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var account domain.Account
	if !decode(w, r, &account) {
		return
	}

	created, err := s.AddAccount(r.Context(), account)
	if err != nil {
		h.fail(w, err, "Failed to create account")
		return
	}

	h.log.Info().Str("user_id", s.User().ID).Str("account_id", created.ID).Msg("Account created")
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// UpdateAccount handles PUT /api/accounts/{id}
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var account domain.Account
	if !decode(w, r, &account) {
		return
	}
	account.ID = chi.URLParam(r, "id")

	updated, err := s.UpdateAccount(r.Context(), account)
	if err != nil {
		h.fail(w, err, "Failed to update account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err, "Failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceAccounts handles PUT /api/accounts with the complete new
// collection. The response lists the inferred changes.
func (h *AccountsHandler) ReplaceAccounts(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var next []domain.Account
	if !decode(w, r, &next) {
		return
	}

	intents, err := s.ReplaceAccounts(r.Context(), next)
	if err != nil {
		h.fail(w, err, "Failed to replace accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"changes":  intents,
		"accounts": s.Accounts(),
	})
}
