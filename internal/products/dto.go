package products

import "time"

type CreateProductRequest struct {
	Name           string     `json:"name" validate:"required,max=200"`
	Description    string     `json:"description,omitempty"`
	UnitPrice      int64      `json:"unit_price" validate:"required,gt=0"`
	Unit           string     `json:"unit" validate:"required"`
	MinStockLevel  int64      `json:"min_stock_level" validate:"gte=0"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

type UpdateProductRequest struct {
	Name           *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Description    *string    `json:"description,omitempty"`
	UnitPrice      *int64     `json:"unit_price,omitempty" validate:"omitempty,gt=0"`
	Unit           *string    `json:"unit,omitempty"`
	MinStockLevel  *int64     `json:"min_stock_level,omitempty" validate:"omitempty,gte=0"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Active         *bool      `json:"active,omitempty"`
}
