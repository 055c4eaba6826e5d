package refunds

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
)

// Type classifies a refund. It is informational; bounds are enforced on
// amounts and quantities regardless of type.
type Type string

const (
	TypeTotal   Type = "TOTAL"
	TypeParcial Type = "PARCIAL"
)

// Valid reports whether t is a known refund type.
func (t Type) Valid() bool {
	return t == TypeTotal || t == TypeParcial
}

// Refund returns money and optionally stock for part or all of a sale.
type Refund struct {
	ID            uuid.UUID          `json:"id"`
	BusinessID    uuid.UUID          `json:"business_id"`
	SaleID        uuid.UUID          `json:"sale_id"`
	Type          Type               `json:"type"`
	Reason        string             `json:"reason"`
	Amount        decimal.Decimal    `json:"refund_amount"`
	RestockItems  bool               `json:"restock_items"`
	PaymentMethod cash.PaymentMethod `json:"payment_method"`
	RegisterID    *uuid.UUID         `json:"cash_register_id,omitempty"`
	Items         []Item             `json:"items"`
	CreatedBy     uuid.UUID          `json:"created_by"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Item is one refunded line, bound to the original sale item.
type Item struct {
	ID         uuid.UUID       `json:"id"`
	RefundID   uuid.UUID       `json:"refund_id"`
	SaleItemID uuid.UUID       `json:"sale_item_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	VariantID  *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// ItemInput is a requested refund line.
type ItemInput struct {
	SaleItemID uuid.UUID
	Quantity   int
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
}

// CreateInput is a refund request.
type CreateInput struct {
	SaleID       uuid.UUID
	Type         Type
	Reason       string
	Amount       decimal.Decimal
	Items        []ItemInput
	RestockItems bool
}

// ItemBalance is the refundable remainder of one sale item.
type ItemBalance struct {
	SaleItemID uuid.UUID  `json:"sale_item_id"`
	ProductID  uuid.UUID  `json:"product_id"`
	VariantID  *uuid.UUID `json:"variant_id,omitempty"`
	Sold       int        `json:"sold"`
	Refunded   int        `json:"refunded"`
	Refundable int        `json:"refundable"`
}

// Balance reports what is still refundable on a sale.
type Balance struct {
	SaleID           uuid.UUID       `json:"sale_id"`
	Total            decimal.Decimal `json:"total"`
	RefundedAmount   decimal.Decimal `json:"refunded_amount"`
	RefundableAmount decimal.Decimal `json:"refundable_amount"`
	Items            []ItemBalance   `json:"items"`
}
