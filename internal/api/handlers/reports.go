package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/api/middleware"
)

// ReportsHandler serves the derived dashboard and report views.
type ReportsHandler struct {
	base
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(sessions Sessions, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{base{sessions: sessions, log: log}}
}

// Dashboard handles GET /api/dashboard
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Dashboard())
}

// Report handles GET /api/reports
func (h *ReportsHandler) Report(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Report())
}
