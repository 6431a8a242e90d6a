package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the Order service's routes. Order is the only service a
// browser-based frontend would call directly (the checkout button), so it
// carries the cors middleware the other two services don't need.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/orders", func(r chi.Router) {
		r.Post("/order", h.CreateOrder)
		r.Get("/order/{id}", h.FindOrder)
		r.Post("/order/{id}/addItem/{itemID}/{amount}", h.AddItem)
		r.Post("/order/{id}/checkout", h.Checkout)
		r.Get("/log/{logID}", h.GetLog)
		r.Get("/logs", h.ListLogs)
		r.Get("/fault_tolerance/{min_diff}", h.FaultTolerance)
	})

	return r
}
