package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gapal/gapal/internal/auth"
	"github.com/gapal/gapal/internal/notifications"
	"github.com/gapal/gapal/internal/observability"
	"github.com/gapal/gapal/internal/orders"
	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/internal/realtime"
	"github.com/gapal/gapal/internal/sales"
	"github.com/gapal/gapal/internal/stock"
	"github.com/gapal/gapal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	AuthMiddleware       auth.Middleware
	ProductsHandler      *products.Handler
	StockHandler         *stock.Handler
	OrdersHandler        *orders.Handler
	SalesHandler         *sales.Handler
	NotificationsHandler *notifications.Handler
	RealtimeHandler      *realtime.Handler
	JobsHandler          *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// REST API: full middleware stack, token auth on everything.
	r.Group(func(api chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:  params.Logger,
			Config:  params.Config,
			Metrics: params.Metrics,
		}) {
			api.Use(mw)
		}
		api.Use(chimw.Logger)
		api.Use(params.AuthMiddleware.Authenticate)

		api.Route("/api/v1", func(api chi.Router) {
			params.ProductsHandler.MountRoutes(api, params.AuthMiddleware)
			params.StockHandler.MountRoutes(api, params.AuthMiddleware)
			params.OrdersHandler.MountRoutes(api, params.AuthMiddleware)
			params.SalesHandler.MountRoutes(api, params.AuthMiddleware)
			params.NotificationsHandler.MountRoutes(api)
			if params.JobsHandler != nil {
				api.Route("/jobs", func(jr chi.Router) {
					jr.Use(params.AuthMiddleware.RequireAdmin())
					params.JobsHandler.MountRoutes(jr)
				})
			}
		})
	})

	// WebSocket endpoint: outside the request timeout, auth still applies.
	if params.RealtimeHandler != nil {
		params.RealtimeHandler.MountRoutes(r, params.AuthMiddleware)
	}

	return r
}
