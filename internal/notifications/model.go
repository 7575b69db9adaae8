package notifications

import (
	"fmt"
	"time"

	"github.com/gapal/gapal/internal/shared"
)

// Type tags a notification with the domain event that produced it.
type Type string

const (
	TypeNewOrder       Type = "new_order"
	TypeOrderDelivered Type = "order_delivered"
	TypeLowStock       Type = "low_stock"
	TypeExpiration     Type = "expiration"
)

// Notification is a persisted alert targeted at a specific user or at every
// user holding a role. Exactly one of UserID and RecipientRole is set. Once
// created only the read flag changes.
type Notification struct {
	ID            int64       `json:"id" db:"id"`
	Type          Type        `json:"type" db:"type"`
	Title         string      `json:"title" db:"title"`
	Message       string      `json:"message" db:"message"`
	UserID        *int64      `json:"user_id,omitempty" db:"user_id"`
	RecipientRole shared.Role `json:"recipient_role,omitempty" db:"recipient_role"`
	OrderID       *int64      `json:"order_id,omitempty" db:"related_order_id"`
	ProductID     *int64      `json:"product_id,omitempty" db:"related_product_id"`
	Read          bool        `json:"read" db:"is_read"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// TargetKind discriminates subscription targets.
type TargetKind string

const (
	// TargetUser addresses one user's connections.
	TargetUser TargetKind = "user"
	// TargetRole addresses every connection of a role.
	TargetRole TargetKind = "role"
)

// Target is a typed subscription key: either one user or one role.
type Target struct {
	Kind   TargetKind
	UserID int64
	Role   shared.Role
}

// ByUser addresses a specific user.
func ByUser(userID int64) Target {
	return Target{Kind: TargetUser, UserID: userID}
}

// ByRole addresses all users holding a role.
func ByRole(role shared.Role) Target {
	return Target{Kind: TargetRole, Role: role}
}

// String renders the group key form used in logs and registries.
func (t Target) String() string {
	if t.Kind == TargetUser {
		return fmt.Sprintf("user:%d", t.UserID)
	}
	return fmt.Sprintf("role:%s", t.Role)
}

// TargetsFor returns the groups an identity's connection subscribes to.
func TargetsFor(id shared.Identity) []Target {
	return []Target{ByUser(id.UserID), ByRole(id.Role)}
}

// Outbound frame types pushed to live connections.
const (
	FrameInit         = "init"
	FrameNotification = "notification"
	FrameOrderUpdate  = "order_update"
	FrameStockAlert   = "stock_alert"
	FrameUnreadCount  = "unread_count"
)

// OutboundMessage is one frame forwarded to live connections. Data is opaque
// to the registry.
type OutboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
