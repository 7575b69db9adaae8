package realtime

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gapal/gapal/internal/auth"
	"github.com/gapal/gapal/internal/shared"
)

// Handler upgrades authenticated HTTP requests to WebSocket connections.
type Handler struct {
	logger   *slog.Logger
	hub      *Hub
	api      NotificationAPI
	upgrader websocket.Upgrader
}

func NewHandler(logger *slog.Logger, hub *Hub, api NotificationAPI) *Handler {
	return &Handler{
		logger: logger,
		hub:    hub,
		api:    api,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the PWA origin; token auth is the
			// actual gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws. The auth middleware has already resolved the
// identity (bearer header or token query parameter); without one the request
// never reaches this handler.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade", slog.Any("error", err))
		return
	}
	client := newClient(h.hub, conn, h.api, h.logger, identity)
	client.serve(r.Context())
}

func (h *Handler) MountRoutes(r chi.Router, authmw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.Authenticate)
		r.Get("/ws", h.Serve)
	})
}
