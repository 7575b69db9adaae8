package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gapal/gapal/internal/notifications"
	"github.com/gapal/gapal/internal/platform/db"
	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/internal/shared"
	"github.com/gapal/gapal/internal/stock"
)

var (
	// ErrCancelled rejects any mutation on a cancelled order.
	ErrCancelled = errors.New("orders: order is cancelled")
	// ErrInvalidStatus rejects an unknown delivery or payment status value.
	ErrInvalidStatus = errors.New("orders: invalid status")
	// ErrUnknownProduct rejects an order line referencing a missing or
	// inactive product.
	ErrUnknownProduct = errors.New("orders: unknown product")
	// ErrEmptyOrder rejects an order with no line items.
	ErrEmptyOrder = errors.New("orders: order has no items")
	// ErrForbidden rejects access to another vendor's order.
	ErrForbidden = errors.New("orders: forbidden")
)

// CatalogPort resolves products for price snapshots.
type CatalogPort interface {
	GetActive(ctx context.Context, id int64) (products.Product, error)
}

// LedgerPort is the slice of the stock ledger orders drive: the delivery
// decrement inside the order's own transaction, and the post-commit
// low-stock pass.
type LedgerPort interface {
	DecrementForOrder(ctx context.Context, tx stock.TxRepository, orderID int64, orderNumber string, lines []stock.OrderLine, actorID int64) ([]stock.Result, error)
	NotifyLowStock(ctx context.Context, results []stock.Result)
}

// DispatcherPort is the notification fan-out orders trigger. All calls happen
// after the owning transaction commits.
type DispatcherPort interface {
	NewOrder(ctx context.Context, order notifications.OrderInfo) (notifications.Notification, error)
	OrderDelivered(ctx context.Context, order notifications.OrderInfo) (notifications.Notification, error)
	OrderStatusChanged(ctx context.Context, order notifications.OrderInfo, oldStatus string)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the order lifecycle. Status transitions and their stock
// side effects commit atomically; notifications go out only after commit.
type Service struct {
	repo       Repository
	catalog    CatalogPort
	ledger     LedgerPort
	dispatcher DispatcherPort
	audit      AuditPort
	logger     *slog.Logger
	now        func() time.Time
	created    prometheus.Counter
}

// NewService builds Service. dispatcher and audit may be nil.
func NewService(repo Repository, catalog CatalogPort, ledger LedgerPort, dispatcher DispatcherPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		catalog:    catalog,
		ledger:     ledger,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// InstrumentCreations counts committed orders on the counter.
func (s *Service) InstrumentCreations(counter prometheus.Counter) {
	s.created = counter
}

// Create registers a new order. Unit prices are snapshotted from the catalog
// at creation time and the total is computed server-side; client-provided
// amounts are never trusted. The order number is a daily sequence
// (YYYYMMDD + 4 digits) generated inside the transaction and retried once on
// a concurrent collision.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, actor shared.Identity) (*Order, error) {
	return s.create(ctx, req, actor, false)
}

func (s *Service) create(ctx context.Context, req CreateOrderRequest, actor shared.Identity, synced bool) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	priority := Priority(req.Priority)
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidStatus, req.Priority)
	}
	payment := PaymentStatus(req.PaymentStatus)
	if payment == "" {
		payment = PaymentStatusUnpaid
	}
	if !payment.Valid() {
		return nil, fmt.Errorf("%w: payment status %q", ErrInvalidStatus, req.PaymentStatus)
	}

	// A client-generated local_id keeps offline retries idempotent. Anything
	// that does not parse as a UUID is replaced rather than rejected.
	localID := req.LocalID
	if _, err := uuid.Parse(localID); err != nil {
		localID = uuid.NewString()
	} else if existing, err := s.repo.GetByLocalID(ctx, localID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	items := make([]OrderItem, 0, len(req.Items))
	var total int64
	for _, line := range req.Items {
		product, err := s.catalog.GetActive(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, line.ProductID)
		}
		subtotal := line.Quantity * product.UnitPrice
		items = append(items, OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.UnitPrice,
			Subtotal:    subtotal,
		})
		total += subtotal
	}

	var created *Order
	insert := func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository, _ stock.TxRepository) error {
			prefix := shared.DatePrefix(s.now())
			last, err := tx.LastOrderNumber(ctx, prefix)
			if err != nil {
				return err
			}
			order := Order{
				OrderNumber:     shared.NextSequenceNumber(prefix, last),
				LocalID:         localID,
				ClientName:      req.ClientName,
				ClientPhone:     req.ClientPhone,
				DeliveryAddress: req.DeliveryAddress,
				DeliveryDate:    req.DeliveryDate,
				DeliveryStatus:  DeliveryStatusNew,
				PaymentStatus:   payment,
				Priority:        priority,
				TotalPrice:      total,
				Notes:           req.Notes,
				CreatedBy:       actor.UserID,
			}
			id, err := tx.Create(ctx, order)
			if err != nil {
				return err
			}
			order.ID = id
			order.Items = make([]OrderItem, len(items))
			for i, item := range items {
				item.OrderID = id
				itemID, err := tx.InsertItem(ctx, item)
				if err != nil {
					return err
				}
				item.ID = itemID
				order.Items[i] = item
			}
			if synced {
				now := s.now()
				if err := tx.MarkSynced(ctx, id, now); err != nil {
					return err
				}
				order.SyncedAt = &now
			}
			created = &order
			return nil
		})
	}
	err := insert()
	if err != nil && db.IsUniqueViolation(err) {
		// Two creations raced to the same daily sequence slot; the loser
		// recomputes from the committed winner and tries once more.
		err = insert()
	}
	if err != nil {
		return nil, err
	}

	if s.created != nil {
		s.created.Inc()
	}
	s.recordAudit(ctx, actor.UserID, shared.AuditActionCreate, created.ID, nil, map[string]any{
		"order_number": created.OrderNumber,
		"client_name":  created.ClientName,
		"total_price":  created.TotalPrice,
		"status":       string(created.DeliveryStatus),
	})
	if s.dispatcher != nil {
		if _, err := s.dispatcher.NewOrder(ctx, s.orderInfo(created)); err != nil {
			s.logger.Error("new order notification", slog.Int64("order_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}

// UpdateDeliveryStatus moves an order through the fulfillment state machine.
// A transition to DELIVERED decrements stock for every line, once, in the
// same transaction as the status write; repeating the transition is a no-op.
// Cancelled orders reject every transition.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus, actor shared.Identity) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: delivery status %q", ErrInvalidStatus, status)
	}
	var (
		order     *Order
		oldStatus DeliveryStatus
		delivered []stock.Result
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository, ledgerTx stock.TxRepository) error {
		o, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		oldStatus = o.DeliveryStatus
		if o.IsCancelled() {
			return ErrCancelled
		}
		if o.DeliveryStatus == status {
			order = o
			return nil
		}
		if err := tx.SetDeliveryStatus(ctx, id, status); err != nil {
			return err
		}
		if status == DeliveryStatusDelivered {
			lines := make([]stock.OrderLine, 0, len(o.Items))
			for _, item := range o.Items {
				lines = append(lines, stock.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
			}
			delivered, err = s.ledger.DecrementForOrder(ctx, ledgerTx, o.ID, o.OrderNumber, lines, actor.UserID)
			if err != nil {
				return err
			}
		}
		o.DeliveryStatus = status
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if oldStatus == order.DeliveryStatus {
		return order, nil
	}

	s.recordAudit(ctx, actor.UserID, shared.AuditActionUpdate, order.ID,
		map[string]any{"status": string(oldStatus)},
		map[string]any{"status": string(order.DeliveryStatus)})
	if s.dispatcher != nil {
		s.dispatcher.OrderStatusChanged(ctx, s.orderInfo(order), string(oldStatus))
		if order.IsDelivered() {
			if _, err := s.dispatcher.OrderDelivered(ctx, s.orderInfo(order)); err != nil {
				s.logger.Error("delivery notification", slog.Int64("order_id", order.ID), slog.Any("error", err))
			}
		}
	}
	if len(delivered) > 0 {
		s.ledger.NotifyLowStock(ctx, delivered)
	}
	return order, nil
}

// UpdatePaymentStatus flips the payment flag. Payment is orthogonal to
// delivery, but cancelled orders stay frozen.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus, actor shared.Identity) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: payment status %q", ErrInvalidStatus, status)
	}
	var (
		order *Order
		old   PaymentStatus
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository, _ stock.TxRepository) error {
		o, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.IsCancelled() {
			return ErrCancelled
		}
		old = o.PaymentStatus
		if old != status {
			if err := tx.SetPaymentStatus(ctx, id, status); err != nil {
				return err
			}
		}
		o.PaymentStatus = status
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if old != status {
		s.recordAudit(ctx, actor.UserID, shared.AuditActionUpdate, order.ID,
			map[string]any{"payment_status": string(old)},
			map[string]any{"payment_status": string(status)})
	}
	return order, nil
}

// Sync replays a batch of offline-created orders. Items are independent: one
// bad order is reported in the result and the rest still commit. Replaying an
// already-synced local_id returns the stored order instead of a duplicate.
func (s *Service) Sync(ctx context.Context, req SyncRequest, actor shared.Identity) SyncResult {
	result := SyncResult{Orders: make([]Order, 0, len(req.Orders))}
	for i, item := range req.Orders {
		order, err := s.create(ctx, item, actor, true)
		if err != nil {
			result.Errors = append(result.Errors, SyncItemError{Index: i, Error: err.Error()})
			continue
		}
		result.Orders = append(result.Orders, *order)
		result.Synced++
	}
	return result
}

// Get returns one order. Vendors only see their own.
func (s *Service) Get(ctx context.Context, id int64, actor shared.Identity) (*Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canSee(actor, order) {
		return nil, ErrForbidden
	}
	return order, nil
}

// List returns orders matching the filter. Vendors are scoped to their own
// orders regardless of the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, actor shared.Identity) ([]Order, error) {
	if s.vendorScoped(actor) {
		filter.CreatedBy = actor.UserID
	}
	return s.repo.List(ctx, filter)
}

// Stats counts orders per delivery status, scoped like List.
func (s *Service) Stats(ctx context.Context, actor shared.Identity) (Stats, error) {
	var createdBy int64
	if s.vendorScoped(actor) {
		createdBy = actor.UserID
	}
	return s.repo.Stats(ctx, createdBy)
}

func (s *Service) vendorScoped(actor shared.Identity) bool {
	return actor.IsVendor() && !actor.IsOrderManager()
}

func (s *Service) canSee(actor shared.Identity, order *Order) bool {
	if !s.vendorScoped(actor) {
		return true
	}
	return order.CreatedBy == actor.UserID
}

func (s *Service) orderInfo(o *Order) notifications.OrderInfo {
	return notifications.OrderInfo{
		ID:         o.ID,
		Number:     o.OrderNumber,
		ClientName: o.ClientName,
		TotalPrice: o.TotalPrice,
		Priority:   string(o.Priority),
		Status:     string(o.DeliveryStatus),
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, oldValues, newValues map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: "Order",
		EntityID:   fmt.Sprintf("%d", orderID),
		OldValues:  oldValues,
		NewValues:  newValues,
	})
}
