package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapal/gapal/internal/products"
)

// ErrProductNotFound indicates a missing product row.
var ErrProductNotFound = errors.New("stock: product not found")

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the ledger needs. A
// product's stock quantity and its movement record always commit together.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID int64) (products.Product, error)
	SetProductStock(ctx context.Context, productID, quantity int64) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// TxRepositoryFor adapts an already-open transaction, letting another
// module's transaction carry ledger writes atomically with its own.
func (r *Repository) TxRepositoryFor(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// ListMovements returns the newest movements, optionally for one product.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, product_id, movement_type, quantity, previous_quantity, new_quantity, order_id, reason, user_id, created_at
FROM stock_movements`
	args := []any{}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		query += ` WHERE product_id=$1`
	}
	args = append(args, limit)
	if filter.ProductID != 0 {
		query += ` ORDER BY created_at DESC, id DESC LIMIT $2`
	} else {
		query += ` ORDER BY created_at DESC, id DESC LIMIT $1`
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.PreviousQuantity,
			&m.NewQuantity, &m.OrderID, &m.Reason, &m.UserID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, productID int64) (products.Product, error) {
	var p products.Product
	err := r.tx.QueryRow(ctx, `SELECT id, name, description, unit_price, stock_quantity, unit, min_stock_level, expiration_date, active, created_at, updated_at
FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.Description, &p.UnitPrice, &p.StockQuantity, &p.Unit,
			&p.MinStockLevel, &p.ExpirationDate, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return products.Product{}, ErrProductNotFound
		}
		return products.Product{}, err
	}
	return p, nil
}

func (r *txRepository) SetProductStock(ctx context.Context, productID, quantity int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET stock_quantity=$2, updated_at=NOW() WHERE id=$1`, productID, quantity)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, movement_type, quantity, previous_quantity, new_quantity, order_id, reason, user_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		m.ProductID, string(m.Type), m.Quantity, m.PreviousQuantity, m.NewQuantity, m.OrderID, m.Reason, m.UserID).Scan(&id)
	return id, err
}
