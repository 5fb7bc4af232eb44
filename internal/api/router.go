package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/pulsehound/internal/api/middleware"
	"github.com/kiranshivaraju/pulsehound/internal/api/response"
)

// Dependencies holds the handler dependencies for the router. The surface
// is deliberately small: the pipeline is scheduler-driven, so HTTP exists
// only for the deployment platform (health, metrics) and read-only
// analysis timelines.
type Dependencies struct {
	HealthHandler  http.HandlerFunc
	ListAnalyses   http.HandlerFunc
	MetricsHandler http.Handler
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/analyses", orNotImplemented(deps.ListAnalyses))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

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
