package products

import "time"

// Unit enumerates units of measure for dairy products.
type Unit string

const (
	UnitLitre  Unit = "litre"
	UnitKg     Unit = "kg"
	UnitPiece  Unit = "piece"
	UnitSachet Unit = "sachet"
	UnitPot    Unit = "pot"
)

// Valid reports whether the unit is one of the known units.
func (u Unit) Valid() bool {
	switch u {
	case UnitLitre, UnitKg, UnitPiece, UnitSachet, UnitPot:
		return true
	}
	return false
}

// Product is a catalog item with stock tracking. StockQuantity is only ever
// mutated through a recorded stock movement, never assigned directly.
type Product struct {
	ID             int64      `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	Description    string     `json:"description" db:"description"`
	UnitPrice      int64      `json:"unit_price" db:"unit_price"`
	StockQuantity  int64      `json:"stock_quantity" db:"stock_quantity"`
	Unit           Unit       `json:"unit" db:"unit"`
	MinStockLevel  int64      `json:"min_stock_level" db:"min_stock_level"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty" db:"expiration_date"`
	Active         bool       `json:"active" db:"active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IsLowStock reports whether stock has fallen to or below the minimum level.
func (p Product) IsLowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

// IsExpiringSoon reports whether the product expires within the given window.
func (p Product) IsExpiringSoon(now time.Time, window time.Duration) bool {
	if p.ExpirationDate == nil {
		return false
	}
	return !p.ExpirationDate.After(now.Add(window))
}
