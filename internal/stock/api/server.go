package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the Stock service's routes, in the teacher's
// chi + middleware convention (api/server.go).
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/stock", func(r chi.Router) {
		r.Post("/item", h.CreateItem)
		r.Get("/item/{id}", h.FindItem)
		r.Post("/item/{id}/add/{amount}", h.AddStock)
		r.Post("/item/{id}/subtract/{amount}", h.SubtractStock)
		r.Get("/log/{logID}", h.GetLog)
		r.Get("/logs", h.ListLogs)
		r.Get("/fault_tolerance/{min_diff}", h.FaultTolerance)
	})

	return r
}
