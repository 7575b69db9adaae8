package stock

import (
	"github.com/go-chi/chi/v5"

	"github.com/gapal/gapal/internal/auth"
)

func (h *Handler) MountRoutes(r chi.Router, authmw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireStockManager())
		r.Post("/stock/entries", h.Entry)
		r.Post("/stock/exits", h.Exit)
		r.Post("/stock/adjustments", h.Adjustment)
		r.Get("/stock/movements", h.ListMovements)
	})
}
