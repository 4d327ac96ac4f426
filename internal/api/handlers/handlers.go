package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/api/middleware"
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
	"github.com/dvloznov/wealthflow/internal/session"
)

// Sessions opens and closes per-user sessions. *session.Manager implements it.
type Sessions interface {
	SignIn(ctx context.Context, user domain.User) (*session.Session, error)
	SignOut(userID string) error
}

// base carries what every authenticated handler needs.
type base struct {
	sessions Sessions
	log      zerolog.Logger
}

// session resolves the caller's session. It writes the error response and
// returns false when there is none.
func (b base) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Not signed in")
		return nil, false
	}

	s, err := b.sessions.SignIn(r.Context(), user)
	if err != nil {
		b.log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to open session")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to load user data")
		return nil, false
	}
	return s, true
}

// fail maps err to a status code and writes it.
func (b base) fail(w http.ResponseWriter, err error, message string) {
	status := statusFor(err)
	event := b.log.Warn()
	if status >= http.StatusInternalServerError {
		event = b.log.Error()
	}
	event.Err(err).Int("status", status).Msg(message)

	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		middleware.WriteError(w, status, err.Error())
	default:
		middleware.WriteError(w, status, message)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalid), errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, remote.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, session.ErrPersist):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads a JSON request body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// SessionHandler handles identity endpoints.
type SessionHandler struct {
	base
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions Sessions, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{base{sessions: sessions, log: log}}
}

// Me handles GET /api/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.User())
}

// SignOut handles POST /api/session/signout
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	if err := h.sessions.SignOut(user.ID); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to close session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := domain.DefaultCategories
	if typ := r.URL.Query().Get("type"); typ != "" {
		categories = nil
		for _, c := range domain.DefaultCategories {
			if string(c.Type) == typ {
				categories = append(categories, c)
			}
		}
	}
	if categories == nil {
		categories = []domain.Category{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}
