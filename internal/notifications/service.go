package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	InsertProductAlertIfAbsent(ctx context.Context, n Notification) (Notification, bool, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, id shared.Identity) error
	UnreadCount(ctx context.Context, id shared.Identity) (int, error)
	ListForIdentity(ctx context.Context, id shared.Identity, limit int) ([]Notification, error)
}

// Broadcaster pushes a frame to every live connection subscribed to the
// target. Delivery is fire-and-forget: connections that are absent or slow
// miss the push and catch up from the persisted rows.
type Broadcaster interface {
	Push(target Target, msg OutboundMessage)
}

// OrderInfo carries the order fields notifications mention. The dispatcher
// does not depend on the order aggregate itself.
type OrderInfo struct {
	ID         int64  `json:"id"`
	Number     string `json:"order_number"`
	ClientName string `json:"client_name"`
	TotalPrice int64  `json:"total_price"`
	Priority   string `json:"priority,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Service is the notification dispatcher: it persists notification rows and
// forwards frames to the realtime registry.
type Service struct {
	repo        RepositoryPort
	broadcaster Broadcaster
	logger      *slog.Logger
	sent        *prometheus.CounterVec
}

// NewService builds Service. broadcaster may be nil (persist only).
func NewService(repo RepositoryPort, broadcaster Broadcaster, logger *slog.Logger) *Service {
	return &Service{repo: repo, broadcaster: broadcaster, logger: logger}
}

// InstrumentSends counts persisted notifications on the counter, labelled by
// type.
func (s *Service) InstrumentSends(vec *prometheus.CounterVec) {
	s.sent = vec
}

func (s *Service) countSent(t Type) {
	if s.sent != nil {
		s.sent.WithLabelValues(string(t)).Inc()
	}
}

// NewOrder notifies order managers (and admins, live only) about a freshly
// created order.
func (s *Service) NewOrder(ctx context.Context, order OrderInfo) (Notification, error) {
	n, err := s.repo.Insert(ctx, Notification{
		Type:          TypeNewOrder,
		Title:         "New order",
		Message:       fmt.Sprintf("Order %s from %s - %d FCFA", order.Number, order.ClientName, order.TotalPrice),
		RecipientRole: shared.RoleOrderManager,
		OrderID:       &order.ID,
	})
	if err != nil {
		return Notification{}, fmt.Errorf("notifications: new order: %w", err)
	}
	s.countSent(n.Type)
	data := notificationData(n, map[string]any{
		"order_id":     order.ID,
		"order_number": order.Number,
		"priority":     order.Priority,
	})
	s.push(ByRole(shared.RoleOrderManager), OutboundMessage{Type: FrameNotification, Data: data})
	s.push(ByRole(shared.RoleAdmin), OutboundMessage{Type: FrameNotification, Data: data})
	return n, nil
}

// OrderDelivered notifies order managers that an order reached DELIVERED.
func (s *Service) OrderDelivered(ctx context.Context, order OrderInfo) (Notification, error) {
	n, err := s.repo.Insert(ctx, Notification{
		Type:          TypeOrderDelivered,
		Title:         "Order delivered",
		Message:       fmt.Sprintf("Order %s was delivered to %s", order.Number, order.ClientName),
		RecipientRole: shared.RoleOrderManager,
		OrderID:       &order.ID,
	})
	if err != nil {
		return Notification{}, fmt.Errorf("notifications: order delivered: %w", err)
	}
	s.countSent(n.Type)
	data := notificationData(n, map[string]any{
		"order_id":     order.ID,
		"order_number": order.Number,
	})
	s.push(ByRole(shared.RoleOrderManager), OutboundMessage{Type: FrameNotification, Data: data})
	return n, nil
}

// OrderStatusChanged pushes a live order_update frame. No row is persisted:
// status history lives in the audit log.
func (s *Service) OrderStatusChanged(ctx context.Context, order OrderInfo, oldStatus string) {
	data := map[string]any{
		"order_id":     order.ID,
		"order_number": order.Number,
		"old_status":   oldStatus,
		"new_status":   order.Status,
		"updated_at":   time.Now().UTC().Format(time.RFC3339),
	}
	s.push(ByRole(shared.RoleOrderManager), OutboundMessage{Type: FrameOrderUpdate, Data: data})
	s.push(ByRole(shared.RoleAdmin), OutboundMessage{Type: FrameOrderUpdate, Data: data})
}

// LowStock creates a low-stock alert for stock managers unless an unread one
// already exists for the product. Implements the stock ledger's Notifier.
func (s *Service) LowStock(ctx context.Context, product products.Product) error {
	n, created, err := s.repo.InsertProductAlertIfAbsent(ctx, Notification{
		Type:  TypeLowStock,
		Title: "Low stock",
		Message: fmt.Sprintf("%s: %d %s left (threshold: %d)",
			product.Name, product.StockQuantity, product.Unit, product.MinStockLevel),
		RecipientRole: shared.RoleStockManager,
		ProductID:     &product.ID,
	})
	if err != nil {
		return fmt.Errorf("notifications: low stock: %w", err)
	}
	if !created {
		return nil
	}
	s.countSent(n.Type)
	data := notificationData(n, map[string]any{
		"product_id":     product.ID,
		"product_name":   product.Name,
		"stock_quantity": product.StockQuantity,
	})
	s.push(ByRole(shared.RoleStockManager), OutboundMessage{Type: FrameStockAlert, Data: data})
	s.push(ByRole(shared.RoleAdmin), OutboundMessage{Type: FrameStockAlert, Data: data})
	return nil
}

// Expiration notifies stock managers about a product nearing its expiration
// date. Like low-stock alerts, an unread expiration alert for the same
// product suppresses a new one, so the daily scan does not pile up
// duplicates.
func (s *Service) Expiration(ctx context.Context, product products.Product) (Notification, bool, error) {
	if product.ExpirationDate == nil {
		return Notification{}, false, fmt.Errorf("notifications: product %d has no expiration date", product.ID)
	}
	n, created, err := s.repo.InsertProductAlertIfAbsent(ctx, Notification{
		Type:          TypeExpiration,
		Title:         "Product expiring soon",
		Message:       fmt.Sprintf("%s expires on %s", product.Name, product.ExpirationDate.Format("2006-01-02")),
		RecipientRole: shared.RoleStockManager,
		ProductID:     &product.ID,
	})
	if err != nil {
		return Notification{}, false, fmt.Errorf("notifications: expiration: %w", err)
	}
	if !created {
		return n, false, nil
	}
	s.countSent(n.Type)
	data := notificationData(n, map[string]any{
		"product_id":      product.ID,
		"product_name":    product.Name,
		"expiration_date": product.ExpirationDate.Format("2006-01-02"),
	})
	s.push(ByRole(shared.RoleStockManager), OutboundMessage{Type: FrameNotification, Data: data})
	return n, true, nil
}

// MarkRead flips one notification's read flag. Idempotent.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	return s.repo.MarkRead(ctx, id)
}

// MarkAllRead flips the read flag on everything addressed to the identity.
func (s *Service) MarkAllRead(ctx context.Context, id shared.Identity) error {
	return s.repo.MarkAllRead(ctx, id)
}

// UnreadCount counts unread notifications for the identity.
func (s *Service) UnreadCount(ctx context.Context, id shared.Identity) (int, error) {
	return s.repo.UnreadCount(ctx, id)
}

// List returns the newest notifications for the identity.
func (s *Service) List(ctx context.Context, id shared.Identity, limit int) ([]Notification, error) {
	return s.repo.ListForIdentity(ctx, id, limit)
}

func (s *Service) push(target Target, msg OutboundMessage) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Push(target, msg)
}

func notificationData(n Notification, extra map[string]any) map[string]any {
	data := map[string]any{
		"id":         n.ID,
		"type":       string(n.Type),
		"title":      n.Title,
		"message":    n.Message,
		"created_at": n.CreatedAt.Format(time.RFC3339),
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
