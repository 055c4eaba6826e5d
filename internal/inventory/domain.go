package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementEntrada increases stock.
	MovementEntrada MovementType = "ENTRADA"
	// MovementSalida decreases stock.
	MovementSalida MovementType = "SALIDA"
	// MovementAjuste sets stock to an absolute value.
	MovementAjuste MovementType = "AJUSTE"
	// MovementTransferencia moves stock in or out of a location.
	MovementTransferencia MovementType = "TRANSFERENCIA"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementEntrada, MovementSalida, MovementAjuste, MovementTransferencia:
		return true
	}
	return false
}

// OversellPolicy decides what happens when a decrement exceeds stock.
type OversellPolicy string

const (
	// OversellClamp floors stock at zero.
	OversellClamp OversellPolicy = "clamp"
	// OversellReject fails the operation with a conflict.
	OversellReject OversellPolicy = "reject"
)

// Product is a sellable item with tracked stock.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	BusinessID uuid.UUID       `json:"business_id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Stock      int             `json:"stock"`
	MinStock   int             `json:"min_stock"`
	Cost       decimal.Decimal `json:"cost"`
	Price      decimal.Decimal `json:"price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Variant tracks stock for a product variation (size, color).
type Variant struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StockMovement is an immutable record of a single stock change.
type StockMovement struct {
	ID            uuid.UUID    `json:"id"`
	BusinessID    uuid.UUID    `json:"business_id"`
	ProductID     uuid.UUID    `json:"product_id"`
	VariantID     *uuid.UUID   `json:"variant_id,omitempty"`
	Type          MovementType `json:"type"`
	Quantity      int          `json:"quantity"`
	PreviousStock int          `json:"previous_stock"`
	NewStock      int          `json:"new_stock"`
	Reason        string       `json:"reason"`
	Reference     string       `json:"reference"`
	CreatedBy     uuid.UUID    `json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
}

// DeltaInput describes one stock change. Quantity is signed for ENTRADA,
// SALIDA and TRANSFERENCIA and absolute for AJUSTE.
type DeltaInput struct {
	BusinessID uuid.UUID
	ActorID    uuid.UUID
	ProductID  uuid.UUID
	VariantID  *uuid.UUID
	Type       MovementType
	Quantity   int
	Reason     string
	Reference  string
}

// ReceiptInput registers incoming stock, e.g. a purchase reception.
type ReceiptInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	Reason    string
	Reference string
}

// AdjustmentInput sets stock to a counted value.
type AdjustmentInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	NewStock  int
	Reason    string
}

// MovementFilter filters stock card entries.
type MovementFilter struct {
	BusinessID uuid.UUID
	ProductID  uuid.UUID
	From       time.Time
	To         time.Time
	Limit      int
}
