// Package api assembles the HTTP surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/api/handlers"
	"github.com/dvloznov/wealthflow/internal/api/middleware"
	"github.com/dvloznov/wealthflow/internal/jobs"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Sessions       handlers.Sessions
	Verifier       middleware.TokenVerifier
	Publisher      jobs.Publisher
	JobStore       jobs.JobStore
	AllowedOrigins []string
	Log            zerolog.Logger
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(d Dependencies) http.Handler {
	log := d.Log

	sessionHandler := handlers.NewSessionHandler(d.Sessions, log)
	accountsHandler := handlers.NewAccountsHandler(d.Sessions, log)
	transactionsHandler := handlers.NewTransactionsHandler(d.Sessions, log)
	stocksHandler := handlers.NewStocksHandler(d.Sessions, d.Publisher, log)
	reportsHandler := handlers.NewReportsHandler(d.Sessions, log)
	categoriesHandler := handlers.NewCategoriesHandler(log)
	jobsHandler := handlers.NewJobsHandler(d.JobStore, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(d.AllowedOrigins...))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.Verifier, log))

		r.Get("/me", sessionHandler.Me)
		r.Post("/session/signout", sessionHandler.SignOut)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", accountsHandler.ListAccounts)
			r.Post("/", accountsHandler.CreateAccount)
			r.Put("/", accountsHandler.ReplaceAccounts)
			r.Put("/{id}", accountsHandler.UpdateAccount)
			r.Delete("/{id}", accountsHandler.DeleteAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactionsHandler.ListTransactions)
			r.Post("/", transactionsHandler.CreateTransaction)
			r.Delete("/{id}", transactionsHandler.DeleteTransaction)
		})

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/", stocksHandler.ListStocks)
			r.Post("/", stocksHandler.CreateStock)
			r.Put("/", stocksHandler.ReplaceStocks)
			r.Delete("/{id}", stocksHandler.DeleteStock)
			r.Post("/refresh", stocksHandler.RefreshPrices)
			r.Post("/analysis", stocksHandler.AnalyzePortfolio)
		})

		r.Get("/dashboard", reportsHandler.Dashboard)
		r.Get("/reports", reportsHandler.Report)
		r.Get("/categories", categoriesHandler.ListCategories)

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{id}", jobsHandler.GetJob)
	})

	return r
}
