// Package realtime maintains the live WebSocket connection registry and fans
// notification frames out to subscribed clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gapal/gapal/internal/notifications"
)

// Hub routes outbound frames to connected clients. Every client is
// registered under its identity's targets (its user target plus its role
// target), so a push addressed to either reaches it. Hub implements the
// dispatcher's Broadcaster.
type Hub struct {
	logger *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope

	// clients is owned by the run loop; no lock needed.
	clients map[notifications.Target]map[*Client]struct{}

	connGauge prometheus.Gauge
}

type envelope struct {
	target notifications.Target
	msg    notifications.OutboundMessage
}

// NewHub builds Hub. Run must be started before clients connect.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 64),
		clients:    make(map[notifications.Target]map[*Client]struct{}),
	}
}

// InstrumentConnections tracks the connected-client count on the gauge.
// Call before Run.
func (h *Hub) InstrumentConnections(gauge prometheus.Gauge) {
	h.connGauge = gauge
}

// Run processes registry events until the context is cancelled. All client
// map mutation happens here.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					client.closeSend()
				}
			}
			return
		case client := <-h.register:
			for _, target := range client.targets {
				set, ok := h.clients[target]
				if !ok {
					set = make(map[*Client]struct{})
					h.clients[target] = set
				}
				set[client] = struct{}{}
			}
			if h.connGauge != nil {
				h.connGauge.Inc()
			}
			h.logger.Debug("client connected",
				slog.Int64("user_id", client.identity.UserID),
				slog.String("role", string(client.identity.Role)))
		case client := <-h.unregister:
			h.drop(client)
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// Push queues a frame for every client subscribed to the target. It never
// blocks: when the hub's queue is full the frame is dropped and clients catch
// up from the persisted notification rows.
func (h *Hub) Push(target notifications.Target, msg notifications.OutboundMessage) {
	select {
	case h.broadcast <- envelope{target: target, msg: msg}:
	default:
		h.logger.Warn("broadcast queue full, frame dropped", slog.String("target", target.String()))
	}
}

func (h *Hub) deliver(env envelope) {
	set := h.clients[env.target]
	if len(set) == 0 {
		return
	}
	payload, err := json.Marshal(env.msg)
	if err != nil {
		h.logger.Error("marshal frame", slog.Any("error", err))
		return
	}
	for client := range set {
		select {
		case client.send <- payload:
		default:
			// Slow consumer: disconnect rather than block the loop.
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	removed := false
	for _, target := range client.targets {
		set, ok := h.clients[target]
		if !ok {
			continue
		}
		if _, ok := set[client]; ok {
			delete(set, client)
			removed = true
			if len(set) == 0 {
				delete(h.clients, target)
			}
		}
	}
	if removed {
		client.closeSend()
		if h.connGauge != nil {
			h.connGauge.Dec()
		}
		h.logger.Debug("client disconnected", slog.Int64("user_id", client.identity.UserID))
	}
}
