package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gapal/gapal/internal/notifications"
	"github.com/gapal/gapal/internal/shared"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 16
)

// NotificationAPI is the slice of the dispatcher clients drive over the
// socket.
type NotificationAPI interface {
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, identity shared.Identity) error
	UnreadCount(ctx context.Context, identity shared.Identity) (int, error)
}

// inboundMessage is what clients send over the socket.
type inboundMessage struct {
	Action         string `json:"action"`
	NotificationID int64  `json:"notification_id,omitempty"`
}

const (
	actionMarkRead       = "mark_read"
	actionMarkAllRead    = "mark_all_read"
	actionGetUnreadCount = "get_unread_count"
)

// Client is one live WebSocket connection. The hub owns registration; the
// client owns its two pump goroutines.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	api      NotificationAPI
	logger   *slog.Logger
	identity shared.Identity
	targets  []notifications.Target
	send     chan []byte
	closed   chan struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, api NotificationAPI, logger *slog.Logger, identity shared.Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		api:      api,
		logger:   logger,
		identity: identity,
		targets:  notifications.TargetsFor(identity),
		send:     make(chan []byte, sendBuffer),
		closed:   make(chan struct{}),
	}
}

func (c *Client) closeSend() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

// serve registers the client, sends the init frame, and runs both pumps
// until the connection dies.
func (c *Client) serve(ctx context.Context) {
	c.hub.register <- c

	count, err := c.api.UnreadCount(ctx, c.identity)
	if err != nil {
		c.logger.Error("unread count on connect", slog.Any("error", err))
	}
	c.enqueue(notifications.OutboundMessage{
		Type: notifications.FrameInit,
		Data: map[string]any{
			"message":      "connected",
			"unread_count": count,
		},
	})

	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", slog.Any("error", err))
			}
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		c.handleAction(ctx, msg)
	}
}

func (c *Client) handleAction(ctx context.Context, msg inboundMessage) {
	switch msg.Action {
	case actionMarkRead:
		if msg.NotificationID == 0 {
			return
		}
		if err := c.api.MarkRead(ctx, msg.NotificationID); err != nil {
			c.logger.Error("mark read", slog.Int64("id", msg.NotificationID), slog.Any("error", err))
			return
		}
		c.pushUnreadCount(ctx)
	case actionMarkAllRead:
		if err := c.api.MarkAllRead(ctx, c.identity); err != nil {
			c.logger.Error("mark all read", slog.Any("error", err))
			return
		}
		c.pushUnreadCount(ctx)
	case actionGetUnreadCount:
		c.pushUnreadCount(ctx)
	}
}

func (c *Client) pushUnreadCount(ctx context.Context) {
	count, err := c.api.UnreadCount(ctx, c.identity)
	if err != nil {
		c.logger.Error("unread count", slog.Any("error", err))
		return
	}
	c.enqueue(notifications.OutboundMessage{
		Type: notifications.FrameUnreadCount,
		Data: map[string]any{"unread_count": count},
	})
}

func (c *Client) enqueue(msg notifications.OutboundMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
