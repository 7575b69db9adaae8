package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing product row.
var ErrNotFound = errors.New("products: not found")

// Repository persists catalog data in PostgreSQL. Stock quantity is written
// exclusively by the stock ledger's transactional repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, description, unit_price, stock_quantity, unit, min_stock_level, expiration_date, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.UnitPrice, &p.StockQuantity, &p.Unit,
		&p.MinStockLevel, &p.ExpirationDate, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Get loads one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetActive loads one active product by id.
func (r *Repository) GetActive(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND active`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	ActiveOnly     bool
	LowStockOnly   bool
	ExpiringWithin time.Duration
	Limit          int
}

// List returns catalog products ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}
	if filter.ActiveOnly {
		query += ` AND active`
	}
	if filter.LowStockOnly {
		query += ` AND stock_quantity <= min_stock_level`
	}
	if filter.ExpiringWithin > 0 {
		args = append(args, time.Now().UTC().Add(filter.ExpiringWithin))
		query += fmt.Sprintf(` AND expiration_date IS NOT NULL AND expiration_date <= $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY name ASC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Create inserts a catalog row. Stock starts at zero; initial stock arrives
// through an entry movement.
func (r *Repository) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (name, description, unit_price, stock_quantity, unit, min_stock_level, expiration_date, active, created_at, updated_at)
VALUES ($1,$2,$3,0,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		p.Name, p.Description, p.UnitPrice, string(p.Unit), p.MinStockLevel, p.ExpirationDate, p.Active).Scan(&id)
	return id, err
}

// Update rewrites the catalog fields of a product. Stock quantity is not
// touched here.
func (r *Repository) Update(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$2, description=$3, unit_price=$4, unit=$5, min_stock_level=$6, expiration_date=$7, active=$8, updated_at=NOW()
WHERE id=$1`, p.ID, p.Name, p.Description, p.UnitPrice, string(p.Unit), p.MinStockLevel, p.ExpirationDate, p.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
