package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapal/gapal/internal/platform/db"
	"github.com/gapal/gapal/internal/stock"
)

// ErrNotFound indicates a missing order row.
var ErrNotFound = errors.New("orders: not found")

// Repository persists orders. WithTx hands the callback a transaction-scoped
// repository together with a ledger handle bound to the same transaction, so
// a status update and its stock movements commit as one unit.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository, ledgerTx stock.TxRepository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	GetByLocalID(ctx context.Context, localID string) (*Order, error)
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	LastOrderNumber(ctx context.Context, prefix string) (string, error)
	Create(ctx context.Context, o Order) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	SetDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus) error
	SetPaymentStatus(ctx context.Context, id int64, status PaymentStatus) error
	MarkSynced(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Stats(ctx context.Context, createdBy int64) (Stats, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db        dbtx
	pool      *pgxpool.Pool
	stockRepo *stock.Repository
}

// NewRepository constructs the PostgreSQL repository. stockRepo provides
// transaction-scoped ledger handles for WithTx.
func NewRepository(pool *pgxpool.Pool, stockRepo *stock.Repository) Repository {
	return &repository{db: pool, pool: pool, stockRepo: stockRepo}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository, stock.TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		repoTx := &repository{db: tx, pool: r.pool, stockRepo: r.stockRepo}
		return fn(ctx, repoTx, r.stockRepo.TxRepositoryFor(tx))
	})
}

const orderColumns = `id, order_number, local_id, client_name, client_phone, delivery_address, delivery_date, delivery_status, payment_status, priority, total_price, notes, created_by, created_at, updated_at, synced_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.LocalID, &o.ClientName, &o.ClientPhone,
		&o.DeliveryAddress, &o.DeliveryDate, &o.DeliveryStatus, &o.PaymentStatus, &o.Priority,
		&o.TotalPrice, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.SyncedAt)
	return o, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByLocalID resolves an order by its client-generated identifier.
func (r *repository) GetByLocalID(ctx context.Context, localID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE local_id=$1`, localID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdate locks the order row for the current transaction, serialising
// concurrent status updates on the same order.
func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.db.Query(ctx, `SELECT i.id, i.order_id, i.product_id, p.name, i.quantity, i.unit_price, i.subtotal, i.created_at
FROM order_items i JOIN products p ON p.id = i.product_id
WHERE i.order_id=$1 ORDER BY i.id ASC`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal, &item.CreatedAt); err != nil {
			return err
		}
		items = append(items, item)
	}
	o.Items = items
	return rows.Err()
}

// LastOrderNumber returns the highest order number under the given day
// prefix, or empty when the day has no orders yet.
func (r *repository) LastOrderNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := r.db.QueryRow(ctx, `SELECT order_number FROM orders WHERE order_number LIKE $1 || '%'
ORDER BY order_number DESC LIMIT 1`, prefix).Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return number, nil
}

func (r *repository) Create(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO orders (order_number, local_id, client_name, client_phone, delivery_address, delivery_date, delivery_status, payment_status, priority, total_price, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW()) RETURNING id`,
		o.OrderNumber, o.LocalID, o.ClientName, o.ClientPhone, o.DeliveryAddress, o.DeliveryDate,
		string(o.DeliveryStatus), string(o.PaymentStatus), string(o.Priority), o.TotalPrice, o.Notes, o.CreatedBy).Scan(&id)
	return id, err
}

func (r *repository) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).Scan(&id)
	return id, err
}

func (r *repository) SetDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus) error {
	_, err := r.db.Exec(ctx, `UPDATE orders SET delivery_status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (r *repository) SetPaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	_, err := r.db.Exec(ctx, `UPDATE orders SET payment_status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (r *repository) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE orders SET synced_at=$2 WHERE id=$1`, id, at)
	return err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND delivery_status=$%d", len(args))
	}
	if filter.PendingOnly {
		query += ` AND delivery_status NOT IN ('DELIVERED','CANCELLED')`
	}
	if filter.UnpaidOnly {
		query += ` AND payment_status='UNPAID' AND delivery_status <> 'CANCELLED'`
	}
	if filter.DeliveryDate != nil {
		args = append(args, *filter.DeliveryDate)
		query += fmt.Sprintf(" AND delivery_date=$%d", len(args))
	}
	if filter.CreatedBy != 0 {
		args = append(args, filter.CreatedBy)
		query += fmt.Sprintf(" AND created_by=$%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END, created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (r *repository) Stats(ctx context.Context, createdBy int64) (Stats, error) {
	query := `SELECT delivery_status, COUNT(*) FROM orders`
	args := []any{}
	if createdBy != 0 {
		args = append(args, createdBy)
		query += ` WHERE created_by=$1`
	}
	query += ` GROUP BY delivery_status`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch DeliveryStatus(status) {
		case DeliveryStatusNew:
			stats.New = count
		case DeliveryStatusInPreparation:
			stats.InPreparation = count
		case DeliveryStatusInDelivery:
			stats.InDelivery = count
		case DeliveryStatusDelivered:
			stats.Delivered = count
		case DeliveryStatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}
