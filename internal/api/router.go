package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/risco/internal/api/middleware"
	"github.com/kiranshivaraju/risco/internal/api/response"
	"github.com/kiranshivaraju/risco/internal/metrics"
)

// Dependencies holds all handler and middleware dependencies for the router.
// A nil RateLimit disables rate limiting.
type Dependencies struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	AnalisarHandler http.HandlerFunc
	GetHandler      http.HandlerFunc
	MatrizHandler   http.HandlerFunc
	ModeloHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger(deps.Logger, deps.Metrics))
	r.Use(mw.Recovery(deps.Logger))

	// Public
	r.Get("/health", orNotImplemented(deps.HealthHandler))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/risco/analisar", orNotImplemented(deps.AnalisarHandler))
		r.Get("/risco/matriz", orNotImplemented(deps.MatrizHandler))
		r.Get("/risco/modelo", orNotImplemented(deps.ModeloHandler))
		r.Get("/risco/{studyID}", orNotImplemented(deps.GetHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
