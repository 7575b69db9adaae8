package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapal/gapal/internal/platform/db"
	"github.com/gapal/gapal/internal/stock"
)

// ErrNotFound indicates a missing sale row.
var ErrNotFound = errors.New("sales: not found")

// Repository persists sales. WithTx pairs the sale write with a ledger handle
// on the same transaction so the receipt and its stock exits commit together.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository, ledgerTx stock.TxRepository) error) error
	Get(ctx context.Context, id int64) (*Sale, error)
	LastReceiptNumber(ctx context.Context, prefix string) (string, error)
	Create(ctx context.Context, s Sale) (int64, error)
	InsertItem(ctx context.Context, item SaleItem) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, error)
	DailySummary(ctx context.Context, day string) (DailySummary, error)
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

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, stockRepo *stock.Repository) Repository {
	return &repository{db: pool, pool: pool, stockRepo: stockRepo}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository, stock.TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		repoTx := &repository{db: tx, pool: r.pool, stockRepo: r.stockRepo}
		return fn(ctx, repoTx, r.stockRepo.TxRepositoryFor(tx))
	})
}

const saleColumns = `id, receipt_number, client_name, payment_method, payment_status, total_price, amount_paid, notes, created_by, created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.ReceiptNumber, &s.ClientName, &s.PaymentMethod, &s.PaymentStatus,
		&s.TotalPrice, &s.AmountPaid, &s.Notes, &s.CreatedBy, &s.CreatedAt)
	return s, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Sale, error) {
	s, err := scanSale(r.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT i.id, i.sale_id, i.product_id, p.name, i.quantity, i.unit_price, i.subtotal, i.created_at
FROM sale_items i JOIN products p ON p.id = i.product_id
WHERE i.sale_id=$1 ORDER BY i.id ASC`, s.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal, &item.CreatedAt); err != nil {
			return nil, err
		}
		s.Items = append(s.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) LastReceiptNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := r.db.QueryRow(ctx, `SELECT receipt_number FROM sales WHERE receipt_number LIKE $1 || '%'
ORDER BY receipt_number DESC LIMIT 1`, prefix).Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return number, nil
}

func (r *repository) Create(ctx context.Context, s Sale) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO sales (receipt_number, client_name, payment_method, payment_status, total_price, amount_paid, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		s.ReceiptNumber, s.ClientName, string(s.PaymentMethod), string(s.PaymentStatus),
		s.TotalPrice, s.AmountPaid, s.Notes, s.CreatedBy).Scan(&id)
	return id, err
}

func (r *repository) InsertItem(ctx context.Context, item SaleItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, subtotal, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`,
		item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).Scan(&id)
	return id, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE 1=1`
	args := []any{}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		query += fmt.Sprintf(" AND created_at::date=$%d::date", len(args))
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
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// DailySummary aggregates sales for one day (YYYY-MM-DD).
func (r *repository) DailySummary(ctx context.Context, day string) (DailySummary, error) {
	summary := DailySummary{Date: day}
	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total_price),0), COALESCE(SUM(amount_paid),0)
FROM sales WHERE created_at::date=$1::date`, day).
		Scan(&summary.Count, &summary.TotalPrice, &summary.AmountPaid)
	return summary, err
}
