package products

import (
	"github.com/go-chi/chi/v5"

	"github.com/gapal/gapal/internal/auth"
)

func (h *Handler) MountRoutes(r chi.Router, authmw auth.Middleware) {
	r.Get("/products", h.List)
	r.Get("/products/{id}", h.Show)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireStockManager())
		r.Post("/products", h.Create)
		r.Put("/products/{id}", h.Update)
	})
}
