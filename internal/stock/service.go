package stock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier receives low-stock events after a movement commits. Persisting and
// broadcasting the alert, including duplicate suppression, is its concern.
type Notifier interface {
	LowStock(ctx context.Context, product products.Product) error
}

// Result pairs a recorded movement with the product snapshot after it.
type Result struct {
	Movement Movement
	Product  products.Product
}

// ServiceConfig groups policy settings.
type ServiceConfig struct {
	// AllowNegativeStock keeps the ledger floor-less: exits may take stock
	// below zero and callers needing a floor pre-validate. Off, exits fail
	// with ErrNegativeStock instead.
	AllowNegativeStock bool
}

// Service is the inventory ledger. Every operation commits the product stock
// mutation and its movement record in one transaction.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier Notifier
	logger   *slog.Logger
	allowNeg bool
	recorded *prometheus.CounterVec
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger, allowNeg: cfg.AllowNegativeStock}
}

// InstrumentMovements counts committed movements on the counter, labelled by
// movement type.
func (s *Service) InstrumentMovements(vec *prometheus.CounterVec) {
	s.recorded = vec
}

func (s *Service) countMovement(t MovementType) {
	if s.recorded != nil {
		s.recorded.WithLabelValues(string(t)).Inc()
	}
}

// Entry adds stock: new quantity = old + quantity.
func (s *Service) Entry(ctx context.Context, input EntryInput) (Result, error) {
	if input.Quantity <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	reason := input.Reason
	if reason == "" {
		reason = "Stock entry"
	}
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.apply(ctx, tx, input.ProductID, Movement{
			Type:     MovementIn,
			Quantity: input.Quantity,
			Reason:   reason,
			UserID:   input.ActorID,
		})
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.afterCommit(ctx, result)
	return result, nil
}

// Exit removes stock: new quantity = old - quantity. The stored movement
// quantity is negated. Stock may go negative when the policy allows it.
// After commit a low-stock check runs for the product.
func (s *Service) Exit(ctx context.Context, input ExitInput) (Result, error) {
	if input.Quantity <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	reason := input.Reason
	if reason == "" {
		reason = "Stock exit"
	}
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.apply(ctx, tx, input.ProductID, Movement{
			Type:     MovementOut,
			Quantity: -input.Quantity,
			OrderID:  input.OrderID,
			Reason:   reason,
			UserID:   input.ActorID,
		})
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.afterCommit(ctx, result)
	s.NotifyLowStock(ctx, []Result{result})
	return result, nil
}

// Adjustment sets stock to an absolute target; the recorded delta may be
// positive, negative, or zero.
func (s *Service) Adjustment(ctx context.Context, input AdjustmentInput) (Result, error) {
	if input.TargetQuantity < 0 {
		return Result{}, ErrNegativeTarget
	}
	reason := input.Reason
	if reason == "" {
		reason = "Inventory adjustment"
	}
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		result, err = s.applyLocked(ctx, tx, product, Movement{
			Type:     MovementAdjustment,
			Quantity: input.TargetQuantity - product.StockQuantity,
			Reason:   reason,
			UserID:   input.ActorID,
		})
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.afterCommit(ctx, result)
	return result, nil
}

// ExitWithTx records a single exit against an already-open transaction. The
// caller owns commit and the post-commit NotifyLowStock pass.
func (s *Service) ExitWithTx(ctx context.Context, tx TxRepository, input ExitInput) (Result, error) {
	if input.Quantity <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	return s.apply(ctx, tx, input.ProductID, Movement{
		Type:     MovementOut,
		Quantity: -input.Quantity,
		OrderID:  input.OrderID,
		Reason:   input.Reason,
		UserID:   input.ActorID,
	})
}

// DecrementForOrder records one exit per line item against the supplied
// transaction, so the caller's status update and the stock writes commit or
// roll back together. Low-stock checks belong to the caller, after commit,
// via NotifyLowStock.
func (s *Service) DecrementForOrder(ctx context.Context, tx TxRepository, orderID int64, orderNumber string, lines []OrderLine, actorID int64) ([]Result, error) {
	results := make([]Result, 0, len(lines))
	for _, line := range lines {
		result, err := s.apply(ctx, tx, line.ProductID, Movement{
			Type:     MovementOut,
			Quantity: -line.Quantity,
			OrderID:  &orderID,
			Reason:   fmt.Sprintf("Order %s delivery", orderNumber),
			UserID:   actorID,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// NotifyLowStock runs the low-stock check for each committed result. Failures
// are logged and swallowed: the movement is already durable.
func (s *Service) NotifyLowStock(ctx context.Context, results []Result) {
	if s.notifier == nil {
		return
	}
	for _, result := range results {
		if !result.Product.IsLowStock() {
			continue
		}
		if err := s.notifier.LowStock(ctx, result.Product); err != nil && s.logger != nil {
			s.logger.Error("low stock notification",
				slog.Int64("product_id", result.Product.ID),
				slog.Any("error", err))
		}
	}
}

// ListMovements lists recorded movements.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) apply(ctx context.Context, tx TxRepository, productID int64, m Movement) (Result, error) {
	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	return s.applyLocked(ctx, tx, product, m)
}

// applyLocked writes the movement for a product already locked in this
// transaction, keeping the chain invariant: previous = current stock,
// new = previous + quantity.
func (s *Service) applyLocked(ctx context.Context, tx TxRepository, product products.Product, m Movement) (Result, error) {
	m.ProductID = product.ID
	m.PreviousQuantity = product.StockQuantity
	m.NewQuantity = product.StockQuantity + m.Quantity
	if m.NewQuantity < 0 && !s.allowNeg {
		return Result{}, ErrNegativeStock
	}
	if err := tx.SetProductStock(ctx, product.ID, m.NewQuantity); err != nil {
		return Result{}, err
	}
	id, err := tx.InsertMovement(ctx, m)
	if err != nil {
		return Result{}, err
	}
	m.ID = id
	product.StockQuantity = m.NewQuantity
	return Result{Movement: m, Product: product}, nil
}

func (s *Service) afterCommit(ctx context.Context, result Result) {
	s.countMovement(result.Movement.Type)
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:    result.Movement.UserID,
		Action:     AuditActionFor(result.Movement.Type),
		EntityType: "StockMovement",
		EntityID:   fmt.Sprintf("%d", result.Movement.ID),
		NewValues: map[string]any{
			"product_id":   result.Movement.ProductID,
			"quantity":     result.Movement.Quantity,
			"new_quantity": result.Movement.NewQuantity,
			"reason":       result.Movement.Reason,
		},
	})
}

// AuditActionFor maps a movement type to its audit action string.
func AuditActionFor(t MovementType) string {
	return fmt.Sprintf("stock:%s", t)
}
