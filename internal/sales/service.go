package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gapal/gapal/internal/platform/db"
	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/internal/shared"
	"github.com/gapal/gapal/internal/stock"
)

var (
	// ErrInvalidPayment rejects an unknown payment method or an amount paid
	// above the total.
	ErrInvalidPayment = errors.New("sales: invalid payment")
	// ErrUnknownProduct rejects a sale line referencing a missing or
	// inactive product.
	ErrUnknownProduct = errors.New("sales: unknown product")
	// ErrEmptySale rejects a sale with no line items.
	ErrEmptySale = errors.New("sales: sale has no items")
	// ErrInsufficientStock rejects a sale that would take stock below zero.
	// Unlike order deliveries, a walk-in sale of goods not on the shelf is
	// a data entry error, so sales enforce a hard floor.
	ErrInsufficientStock = errors.New("sales: insufficient stock")
)

const receiptPrefix = "REC"

// CatalogPort resolves products for price snapshots.
type CatalogPort interface {
	GetActive(ctx context.Context, id int64) (products.Product, error)
}

// LedgerPort is the slice of the stock ledger sales drive.
type LedgerPort interface {
	ExitWithTx(ctx context.Context, tx stock.TxRepository, input stock.ExitInput) (stock.Result, error)
	NotifyLowStock(ctx context.Context, results []stock.Result)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records store sales. A sale, its items, and one stock exit per
// item commit in a single transaction.
type Service struct {
	repo    Repository
	catalog CatalogPort
	ledger  LedgerPort
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service. audit may be nil.
func NewService(repo Repository, catalog CatalogPort, ledger LedgerPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, ledger: ledger, audit: audit, logger: logger, now: time.Now}
}

// Create records a sale. Prices are snapshotted from the catalog, the
// receipt number is a daily sequence under REC + YYYYMMDD, and every line
// exits stock immediately. A line that would drive stock negative rolls the
// whole sale back.
func (s *Service) Create(ctx context.Context, req CreateSaleRequest, actor shared.Identity) (*Sale, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptySale
	}
	method := PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return nil, fmt.Errorf("%w: method %q", ErrInvalidPayment, req.PaymentMethod)
	}

	lines := make([]SaleItem, 0, len(req.Items))
	var total int64
	for _, line := range req.Items {
		product, err := s.catalog.GetActive(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, line.ProductID)
		}
		subtotal := line.Quantity * product.UnitPrice
		lines = append(lines, SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.UnitPrice,
			Subtotal:    subtotal,
		})
		total += subtotal
	}
	if req.AmountPaid > total {
		return nil, fmt.Errorf("%w: amount paid %d exceeds total %d", ErrInvalidPayment, req.AmountPaid, total)
	}

	var (
		created *Sale
		exits   []stock.Result
	)
	insert := func() error {
		exits = exits[:0]
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository, ledgerTx stock.TxRepository) error {
			prefix := receiptPrefix + shared.DatePrefix(s.now())
			last, err := tx.LastReceiptNumber(ctx, prefix)
			if err != nil {
				return err
			}
			sale := Sale{
				ReceiptNumber: shared.NextSequenceNumber(prefix, last),
				ClientName:    req.ClientName,
				PaymentMethod: method,
				PaymentStatus: StatusFor(total, req.AmountPaid),
				TotalPrice:    total,
				AmountPaid:    req.AmountPaid,
				Notes:         req.Notes,
				CreatedBy:     actor.UserID,
			}
			id, err := tx.Create(ctx, sale)
			if err != nil {
				return err
			}
			sale.ID = id
			sale.Items = make([]SaleItem, len(lines))
			for i, item := range lines {
				item.SaleID = id
				itemID, err := tx.InsertItem(ctx, item)
				if err != nil {
					return err
				}
				item.ID = itemID
				sale.Items[i] = item

				result, err := s.ledger.ExitWithTx(ctx, ledgerTx, stock.ExitInput{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					Reason:    fmt.Sprintf("Vente %s", sale.ReceiptNumber),
					ActorID:   actor.UserID,
				})
				if err != nil {
					return err
				}
				if result.Movement.NewQuantity < 0 {
					return fmt.Errorf("%w: product %d", ErrInsufficientStock, item.ProductID)
				}
				exits = append(exits, result)
			}
			created = &sale
			return nil
		})
	}
	err := insert()
	if err != nil && db.IsUniqueViolation(err) {
		// Receipt number race: recompute from the committed winner.
		err = insert()
	}
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:    actor.UserID,
			Action:     shared.AuditActionCreate,
			EntityType: "Sale",
			EntityID:   fmt.Sprintf("%d", created.ID),
			NewValues: map[string]any{
				"receipt_number": created.ReceiptNumber,
				"total_price":    created.TotalPrice,
				"amount_paid":    created.AmountPaid,
			},
		})
	}
	s.ledger.NotifyLowStock(ctx, exits)
	return created, nil
}

// Get returns one sale with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns sales matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	return s.repo.List(ctx, filter)
}

// DailySummary aggregates one day of sales, defaulting to today.
func (s *Service) DailySummary(ctx context.Context, day string) (DailySummary, error) {
	if day == "" {
		day = s.now().Format("2006-01-02")
	}
	return s.repo.DailySummary(ctx, day)
}
