// Package sales records walk-in store sales: a receipt plus an immediate
// stock exit per line.
package sales

import "time"

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "CASH"
	PaymentMobileMoney PaymentMethod = "MOBILE_MONEY"
	PaymentCredit      PaymentMethod = "CREDIT"
)

// Valid reports whether the method is known.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentMobileMoney || m == PaymentCredit
}

// PaymentStatus is derived from the amount paid against the total: PAID when
// covered in full, PARTIAL when something but not everything was paid,
// PENDING when nothing was.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "PAID"
	StatusPartial PaymentStatus = "PARTIAL"
	StatusPending PaymentStatus = "PENDING"
)

// StatusFor derives the payment status from amounts.
func StatusFor(total, paid int64) PaymentStatus {
	switch {
	case paid >= total:
		return StatusPaid
	case paid > 0:
		return StatusPartial
	default:
		return StatusPending
	}
}

// Sale is one store sale. ReceiptNumber follows REC + YYYYMMDD + a 4-digit
// daily sequence. TotalPrice equals the sum of item subtotals.
type Sale struct {
	ID            int64         `json:"id" db:"id"`
	ReceiptNumber string        `json:"receipt_number" db:"receipt_number"`
	ClientName    string        `json:"client_name" db:"client_name"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	TotalPrice    int64         `json:"total_price" db:"total_price"`
	AmountPaid    int64         `json:"amount_paid" db:"amount_paid"`
	Notes         string        `json:"notes" db:"notes"`
	CreatedBy     int64         `json:"created_by" db:"created_by"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	Items         []SaleItem    `json:"items,omitempty" db:"-"`
}

// SaleItem is one sold line, priced at the catalog snapshot taken when the
// sale was recorded.
type SaleItem struct {
	ID          int64     `json:"id" db:"id"`
	SaleID      int64     `json:"sale_id" db:"sale_id"`
	ProductID   int64     `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name,omitempty" db:"-"`
	Quantity    int64     `json:"quantity" db:"quantity"`
	UnitPrice   int64     `json:"unit_price" db:"unit_price"`
	Subtotal    int64     `json:"subtotal" db:"subtotal"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
