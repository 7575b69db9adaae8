package orders

import "time"

type CreateOrderRequest struct {
	LocalID         string                   `json:"local_id,omitempty"`
	ClientName      string                   `json:"client_name" validate:"required,max=200"`
	ClientPhone     string                   `json:"client_phone,omitempty" validate:"max=20"`
	DeliveryAddress string                   `json:"delivery_address,omitempty"`
	DeliveryDate    time.Time                `json:"delivery_date" validate:"required"`
	Priority        string                   `json:"priority,omitempty"`
	PaymentStatus   string                   `json:"payment_status,omitempty"`
	Notes           string                   `json:"notes,omitempty"`
	Items           []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type UpdateStatusRequest struct {
	DeliveryStatus string `json:"delivery_status" validate:"required"`
}

type UpdatePaymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required"`
}

type SyncRequest struct {
	Orders []CreateOrderRequest `json:"orders" validate:"required,min=1,dive"`
}

// SyncItemError reports one failed order in a sync batch.
type SyncItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// SyncResult summarises a sync batch: committed orders plus per-item errors.
type SyncResult struct {
	Synced int             `json:"synced"`
	Orders []Order         `json:"orders"`
	Errors []SyncItemError `json:"errors,omitempty"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status       DeliveryStatus
	PendingOnly  bool
	UnpaidOnly   bool
	DeliveryDate *time.Time
	CreatedBy    int64
	Limit        int
}
