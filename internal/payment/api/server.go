package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the Payment service's routes.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/payment", func(r chi.Router) {
		r.Post("/user", h.CreateUser)
		r.Get("/user/{id}", h.FindUser)
		r.Post("/user/{id}/add", h.AddFunds)
		r.Post("/user/{id}/pay", h.Pay)
		r.Get("/log/{logID}", h.GetLog)
		r.Get("/logs", h.ListLogs)
		r.Get("/fault_tolerance/{min_diff}", h.FaultTolerance)
	})

	return r
}
