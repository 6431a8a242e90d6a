package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the ID service's single endpoint, in the teacher's
// chi + middleware convention (api/server.go).
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/ids", func(r chi.Router) {
		r.Get("/create", h.CreateID)
	})

	return r
}
