package stock

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement (supplier delivery, return).
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement (order delivery, direct sale).
	MovementOut MovementType = "OUT"
	// MovementAdjustment indicates a manual inventory correction.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Movement is one append-only stock change record. For every movement
// NewQuantity = PreviousQuantity + Quantity, and the PreviousQuantity of a
// product's next movement equals the NewQuantity of the one before it.
type Movement struct {
	ID               int64        `json:"id" db:"id"`
	ProductID        int64        `json:"product_id" db:"product_id"`
	Type             MovementType `json:"type" db:"movement_type"`
	Quantity         int64        `json:"quantity" db:"quantity"`
	PreviousQuantity int64        `json:"previous_quantity" db:"previous_quantity"`
	NewQuantity      int64        `json:"new_quantity" db:"new_quantity"`
	OrderID          *int64       `json:"order_id,omitempty" db:"order_id"`
	Reason           string       `json:"reason" db:"reason"`
	UserID           int64        `json:"user_id" db:"user_id"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// EntryInput describes a stock entry request.
type EntryInput struct {
	ProductID int64
	Quantity  int64
	Reason    string
	ActorID   int64
}

// ExitInput describes a stock exit request. Quantity is positive; the stored
// movement quantity is negated.
type ExitInput struct {
	ProductID int64
	Quantity  int64
	Reason    string
	ActorID   int64
	OrderID   *int64
}

// AdjustmentInput sets stock to an absolute target quantity.
type AdjustmentInput struct {
	ProductID      int64
	TargetQuantity int64
	Reason         string
	ActorID        int64
}

// OrderLine is the slice of an order the ledger needs to decrement stock.
type OrderLine struct {
	ProductID int64
	Quantity  int64
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID int64
	Limit     int
}

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be positive")

// ErrNegativeTarget indicates an adjustment below zero.
var ErrNegativeTarget = errors.New("stock: target quantity must be >= 0")

// ErrNegativeStock is returned when a movement would take stock below zero
// and the negative-stock policy disallows it.
var ErrNegativeStock = errors.New("stock: negative stock not allowed")
