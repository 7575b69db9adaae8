package sales

import "time"

type CreateSaleRequest struct {
	ClientName    string                  `json:"client_name,omitempty" validate:"max=200"`
	PaymentMethod string                  `json:"payment_method" validate:"required"`
	AmountPaid    int64                   `json:"amount_paid" validate:"gte=0"`
	Notes         string                  `json:"notes,omitempty"`
	Items         []CreateSaleItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateSaleItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

// ListFilter narrows sale listings.
type ListFilter struct {
	Date      *time.Time
	CreatedBy int64
	Limit     int
}

// DailySummary aggregates one day of sales.
type DailySummary struct {
	Date       string `json:"date"`
	Count      int    `json:"count"`
	TotalPrice int64  `json:"total_price"`
	AmountPaid int64  `json:"amount_paid"`
}
