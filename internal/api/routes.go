package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP router for the browser-facing API.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/api/{family}", func(r chi.Router) {
		r.Get("/jobs", h.ListJobs)
		r.Post("/jobs", h.StartJob)
		r.Get("/jobs/{jobID}", h.GetJob)
		r.Post("/jobs/{jobID}/{verb}", h.Command)
	})

	return r
}
