package sales

import (
	"github.com/go-chi/chi/v5"

	"github.com/gapal/gapal/internal/auth"
)

func (h *Handler) MountRoutes(r chi.Router, authmw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireStockManager())
		r.Post("/sales", h.Create)
		r.Get("/sales", h.List)
		r.Get("/sales/summary", h.DailySummary)
		r.Get("/sales/{id}", h.Get)
	})
}
