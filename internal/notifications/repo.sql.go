package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapal/gapal/internal/platform/db"
	"github.com/gapal/gapal/internal/shared"
)

// Repository persists notifications in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, type, title, message, user_id, recipient_role, related_order_id, related_product_id, is_read, created_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	var role *string
	err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.UserID, &role,
		&n.OrderID, &n.ProductID, &n.Read, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	if role != nil {
		n.RecipientRole = shared.Role(*role)
	}
	return n, nil
}

func roleArg(role shared.Role) any {
	if role == "" {
		return nil
	}
	return string(role)
}

// Insert stores a notification row and returns it with id and timestamp set.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	return scanNotification(r.pool.QueryRow(ctx, `INSERT INTO notifications (type, title, message, user_id, recipient_role, related_order_id, related_product_id, is_read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,false,NOW())
RETURNING `+notificationColumns,
		string(n.Type), n.Title, n.Message, n.UserID, roleArg(n.RecipientRole), n.OrderID, n.ProductID))
}

// InsertProductAlertIfAbsent stores a product alert (low stock, expiration)
// unless an unread one of the same type already exists for the product. The
// guard subquery handles the common case; two concurrent inserts can both
// pass it under snapshot isolation, so the unique partial index on unread
// (type, related_product_id) backstops the race and the loser is reported
// as suppressed.
func (r *Repository) InsertProductAlertIfAbsent(ctx context.Context, n Notification) (Notification, bool, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO notifications (type, title, message, user_id, recipient_role, related_order_id, related_product_id, is_read, created_at)
SELECT $1,$2,$3,$4,$5,$6,$7,false,NOW()
WHERE NOT EXISTS (
    SELECT 1 FROM notifications WHERE type=$1 AND related_product_id=$7 AND NOT is_read
)
RETURNING `+notificationColumns,
		string(n.Type), n.Title, n.Message, n.UserID, roleArg(n.RecipientRole), n.OrderID, n.ProductID)
	inserted, err := scanNotification(row)
	if err != nil {
		if alertSuppressed(err) {
			return Notification{}, false, nil
		}
		return Notification{}, false, err
	}
	return inserted, true, nil
}

// alertSuppressed reports whether the conditional alert insert was a no-op:
// the guard saw an existing unread alert (no row returned) or a concurrent
// writer won the unique index race (23505).
func alertSuppressed(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || db.IsUniqueViolation(err)
}

// MarkRead flips the read flag of one notification. Idempotent.
func (r *Repository) MarkRead(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=true WHERE id=$1`, id)
	return err
}

// MarkAllRead flips the read flag of every unread notification addressed to
// the identity, directly or through its role. Idempotent.
func (r *Repository) MarkAllRead(ctx context.Context, id shared.Identity) error {
	_, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=true
WHERE NOT is_read AND (user_id=$1 OR recipient_role=$2)`, id.UserID, string(id.Role))
	return err
}

// UnreadCount counts unread notifications addressed to the identity.
func (r *Repository) UnreadCount(ctx context.Context, id shared.Identity) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications
WHERE NOT is_read AND (user_id=$1 OR recipient_role=$2)`, id.UserID, string(id.Role)).Scan(&count)
	return count, err
}

// ListForIdentity returns the newest notifications addressed to the identity.
func (r *Repository) ListForIdentity(ctx context.Context, id shared.Identity, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
WHERE user_id=$1 OR recipient_role=$2
ORDER BY created_at DESC, id DESC LIMIT $3`, id.UserID, string(id.Role), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}
