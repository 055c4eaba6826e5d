package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
)

// Status is the lifecycle state of a sale.
type Status string

const (
	StatusCompletado              Status = "COMPLETADO"
	StatusCancelado               Status = "CANCELADO"
	StatusReembolsado             Status = "REEMBOLSADO"
	StatusParcialmenteReembolsado Status = "PARCIALMENTE_REEMBOLSADO"
)

// CanTransition reports whether a sale may move from s to next. Transitions
// are monotonic: COMPLETADO to CANCELADO, or through partial refund to
// fully refunded.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusCompletado:
		return next == StatusCancelado || next == StatusParcialmenteReembolsado || next == StatusReembolsado
	case StatusParcialmenteReembolsado:
		return next == StatusParcialmenteReembolsado || next == StatusReembolsado
	}
	return false
}

// Sale is a completed ticket with its items and payment parts.
type Sale struct {
	ID            uuid.UUID          `json:"id"`
	BusinessID    uuid.UUID          `json:"business_id"`
	TicketNumber  int64              `json:"ticket_number"`
	RegisterID    *uuid.UUID         `json:"cash_register_id,omitempty"`
	UserID        uuid.UUID          `json:"user_id"`
	ClientID      *uuid.UUID         `json:"client_id,omitempty"`
	Status        Status             `json:"status"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	Discount      decimal.Decimal    `json:"discount"`
	Total         decimal.Decimal    `json:"total"`
	PaymentMethod cash.PaymentMethod `json:"payment_method"`
	Items         []Item             `json:"items"`
	Payments      []Payment          `json:"payments"`
	CancelReason  string             `json:"cancel_reason,omitempty"`
	CanceledBy    *uuid.UUID         `json:"canceled_by,omitempty"`
	CanceledAt    *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// OnAccount reports whether the sale was charged to the client's running account.
func (s Sale) OnAccount() bool {
	return s.PaymentMethod == cash.PaymentCuentaCorriente
}

// ItemByID returns the sale item with id.
func (s Sale) ItemByID(id uuid.UUID) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Item is one line of a sale.
type Item struct {
	ID        uuid.UUID       `json:"id"`
	SaleID    uuid.UUID       `json:"sale_id"`
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Payment is one settled part of a sale's total.
type Payment struct {
	ID     uuid.UUID          `json:"id"`
	SaleID uuid.UUID          `json:"sale_id"`
	Method cash.PaymentMethod `json:"payment_method"`
	Amount decimal.Decimal    `json:"amount"`
}

// ItemInput is a requested sale line.
type ItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// PaymentInput is a requested split-payment part.
type PaymentInput struct {
	Method cash.PaymentMethod
	Amount decimal.Decimal
}

// CreateInput is a sale request. Total is the amount the caller charged.
type CreateInput struct {
	Items          []ItemInput
	PaymentMethod  cash.PaymentMethod
	ClientID       *uuid.UUID
	Discount       decimal.Decimal
	Total          decimal.Decimal
	Payments       []PaymentInput
	IdempotencyKey string
}

// CancelInput voids a sale.
type CancelInput struct {
	SaleID uuid.UUID
	Reason string
}

// ListFilter narrows sale listings.
type ListFilter struct {
	BusinessID uuid.UUID
	RegisterID *uuid.UUID
	ClientID   *uuid.UUID
	Status     Status
	From       time.Time
	To         time.Time
	Page       int
	PerPage    int
}

// StatusUpdate persists a status change and its cancellation metadata.
type StatusUpdate struct {
	BusinessID   uuid.UUID
	SaleID       uuid.UUID
	Status       Status
	CancelReason string
	CanceledBy   *uuid.UUID
	CanceledAt   *time.Time
}

// CreateResult reports the sale and whether it was replayed from an
// idempotency key.
type CreateResult struct {
	Sale     Sale `json:"sale"`
	Replayed bool `json:"replayed"`
}
