package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the chi router with CORS and all API routes mounted
func (h *Handler) Router(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/health", h.HandleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/engines/{engine}", h.HandleEngine)
		r.Post("/batch", h.HandleBatch)
		r.Post("/schedule", h.HandleSchedule)
		r.Get("/queries/{queryID}/citations", h.HandleListCitations)
	})

	return r
}
