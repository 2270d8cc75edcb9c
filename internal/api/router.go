package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/notecheck/internal/resultservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *resultservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Artifacts.
	r.Get("/artifacts", h.ListArtifacts)
	r.Get("/artifacts/*", h.GetArtifact)
	r.Get("/locate", h.Locate)
	r.Get("/stats", h.Stats)

	// Standards.
	r.Get("/standards", h.ListStandards)
	r.Get("/standards/{idx}", h.GetStandard)
	r.Put("/standards/{idx}", h.SetStandard)

	// Scores and search.
	r.Get("/scores", h.Scores)
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
