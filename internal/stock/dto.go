package stock

type EntryRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason,omitempty" validate:"max=255"`
}

type ExitRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason,omitempty" validate:"max=255"`
}

type AdjustmentRequest struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	TargetQuantity int64  `json:"target_quantity" validate:"gte=0"`
	Reason         string `json:"reason,omitempty" validate:"max=255"`
}
