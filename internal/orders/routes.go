package orders

import (
	"github.com/go-chi/chi/v5"

	"github.com/gapal/gapal/internal/auth"
)

func (h *Handler) MountRoutes(r chi.Router, authmw auth.Middleware) {
	// Vendors create and read their own orders; state transitions are
	// reserved for order managers.
	r.Post("/orders", h.Create)
	r.Post("/orders/sync", h.Sync)
	r.Get("/orders", h.List)
	r.Get("/orders/stats", h.Stats)
	r.Get("/orders/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireOrderManager())
		r.Put("/orders/{id}/status", h.UpdateStatus)
		r.Put("/orders/{id}/payment", h.UpdatePayment)
	})
}
