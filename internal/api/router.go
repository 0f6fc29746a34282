// Package api wires the HTTP surface of the ledger.
package api

import (
	"net/http"

	"github.com/dvloznov/sheetledger/internal/api/handlers"
	"github.com/dvloznov/sheetledger/internal/api/middleware"
	"github.com/dvloznov/sheetledger/internal/jobs"
	"github.com/dvloznov/sheetledger/internal/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Ledger *ledger.Service
	// Jobs enables the audit job endpoints when set.
	Jobs jobs.JobStore
	// Verifier authenticates bearer tokens. When nil every request runs as
	// StaticOwner.
	Verifier       middleware.TokenVerifier
	StaticOwner    string
	AllowedOrigins []string
	Log            zerolog.Logger
}

// NewRouter builds the API router.
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(opts.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Log))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/health", handlers.Health)

	sheets := handlers.NewSheetsHandler(opts.Ledger)
	transactions := handlers.NewTransactionsHandler(opts.Ledger)
	categories := handlers.NewCategoriesHandler(opts.Ledger)

	r.Route("/api", func(r chi.Router) {
		if opts.Verifier != nil {
			r.Use(middleware.Auth(opts.Verifier))
		} else {
			r.Use(middleware.StaticOwner(opts.StaticOwner))
		}

		r.Route("/sheets", func(r chi.Router) {
			r.Post("/detect", sheets.Detect)
			r.Post("/", sheets.Configure)
			r.Get("/", sheets.List)

			r.Route("/{sheetID}", func(r chi.Router) {
				r.Get("/", sheets.Get)
				r.Delete("/", sheets.Delete)
				r.Put("/schema", sheets.RefreshSchema)
				r.Patch("/schema", sheets.RemapColumns)
				r.Post("/mobile-id", sheets.AddMobileID)

				r.Get("/transactions", transactions.List)
				r.Post("/transactions", transactions.Create)
				r.Get("/transactions/{txID}", transactions.Get)
				r.Patch("/transactions/{txID}", transactions.Update)
			})
		})

		r.Get("/categories", categories.List)

		if opts.Jobs != nil {
			jobsHandler := handlers.NewJobsHandler(opts.Jobs, opts.Log)
			r.Get("/audit/jobs", jobsHandler.ListJobs)
			r.Get("/audit/jobs/{jobID}", jobsHandler.GetJob)
		}
	})

	return r
}
