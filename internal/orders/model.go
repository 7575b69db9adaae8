package orders

import "time"

// DeliveryStatus is the order's position in the fulfillment state machine:
// NEW -> IN_PREPARATION -> IN_DELIVERY -> DELIVERED (terminal), with
// CANCELLED reachable from any non-terminal state.
type DeliveryStatus string

const (
	DeliveryStatusNew           DeliveryStatus = "NEW"
	DeliveryStatusInPreparation DeliveryStatus = "IN_PREPARATION"
	DeliveryStatusInDelivery    DeliveryStatus = "IN_DELIVERY"
	DeliveryStatusDelivered     DeliveryStatus = "DELIVERED"
	DeliveryStatusCancelled     DeliveryStatus = "CANCELLED"
)

// Valid reports whether the status is one of the known delivery statuses.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusNew, DeliveryStatusInPreparation, DeliveryStatusInDelivery,
		DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is orthogonal to delivery status.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
)

// Valid reports whether the status is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPaid
}

// Priority orders the delivery queue.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether the priority is known.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Order is a customer order. Orders are never physically deleted; CANCELLED
// is the soft end of life. TotalPrice always equals the sum of item
// subtotals.
type Order struct {
	ID              int64          `json:"id" db:"id"`
	OrderNumber     string         `json:"order_number" db:"order_number"`
	LocalID         string         `json:"local_id" db:"local_id"`
	ClientName      string         `json:"client_name" db:"client_name"`
	ClientPhone     string         `json:"client_phone" db:"client_phone"`
	DeliveryAddress string         `json:"delivery_address" db:"delivery_address"`
	DeliveryDate    time.Time      `json:"delivery_date" db:"delivery_date"`
	DeliveryStatus  DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	PaymentStatus   PaymentStatus  `json:"payment_status" db:"payment_status"`
	Priority        Priority       `json:"priority" db:"priority"`
	TotalPrice      int64          `json:"total_price" db:"total_price"`
	Notes           string         `json:"notes" db:"notes"`
	CreatedBy       int64          `json:"created_by" db:"created_by"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
	SyncedAt        *time.Time     `json:"synced_at,omitempty" db:"synced_at"`
	Items           []OrderItem    `json:"items,omitempty" db:"-"`
}

// IsDelivered reports the terminal delivered state.
func (o Order) IsDelivered() bool {
	return o.DeliveryStatus == DeliveryStatusDelivered
}

// IsCancelled reports the soft-deleted state.
func (o Order) IsCancelled() bool {
	return o.DeliveryStatus == DeliveryStatusCancelled
}

// OrderItem belongs to exactly one order. UnitPrice is a snapshot taken at
// creation time, immune to later catalog price changes, and
// Subtotal = Quantity * UnitPrice.
type OrderItem struct {
	ID          int64     `json:"id" db:"id"`
	OrderID     int64     `json:"order_id" db:"order_id"`
	ProductID   int64     `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name,omitempty" db:"-"`
	Quantity    int64     `json:"quantity" db:"quantity"`
	UnitPrice   int64     `json:"unit_price" db:"unit_price"`
	Subtotal    int64     `json:"subtotal" db:"subtotal"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Stats counts orders per delivery status.
type Stats struct {
	Total         int `json:"total"`
	New           int `json:"new"`
	InPreparation int `json:"in_preparation"`
	InDelivery    int `json:"in_delivery"`
	Delivered     int `json:"delivered"`
	Cancelled     int `json:"cancelled"`
}
