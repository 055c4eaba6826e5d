package cash

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegisterStatus is the lifecycle state of a register session.
type RegisterStatus string

const (
	RegisterOpen   RegisterStatus = "OPEN"
	RegisterClosed RegisterStatus = "CLOSED"
)

// MovementType classifies a cash ledger row.
type MovementType string

const (
	MovementApertura MovementType = "APERTURA"
	MovementCierre   MovementType = "CIERRE"
	MovementIngreso  MovementType = "INGRESO"
	MovementEgreso   MovementType = "EGRESO"
)

// Inflow reports whether the movement type increases the balance.
func (t MovementType) Inflow() bool {
	return t == MovementApertura || t == MovementIngreso
}

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementApertura, MovementCierre, MovementIngreso, MovementEgreso:
		return true
	}
	return false
}

// Concept tags why a movement happened.
type Concept string

const (
	ConceptApertura       Concept = "APERTURA"
	ConceptCierre         Concept = "CIERRE"
	ConceptVenta          Concept = "VENTA"
	ConceptAnulacionVenta Concept = "ANULACION_VENTA"
	ConceptReembolso      Concept = "REEMBOLSO"
	ConceptCobroCliente   Concept = "COBRO_CLIENTE"
	ConceptManual         Concept = "MANUAL"
)

// PaymentMethod is how a sale or payment was settled.
type PaymentMethod string

const (
	PaymentEfectivo        PaymentMethod = "EFECTIVO"
	PaymentTarjetaDebito   PaymentMethod = "TARJETA_DEBITO"
	PaymentTarjetaCredito  PaymentMethod = "TARJETA_CREDITO"
	PaymentTransferencia   PaymentMethod = "TRANSFERENCIA"
	PaymentMercadoPago     PaymentMethod = "MERCADOPAGO"
	PaymentOtro            PaymentMethod = "OTRO"
	PaymentCuentaCorriente PaymentMethod = "CUENTA_CORRIENTE"
	PaymentMixto           PaymentMethod = "MIXTO"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentEfectivo, PaymentTarjetaDebito, PaymentTarjetaCredito, PaymentTransferencia,
		PaymentMercadoPago, PaymentOtro, PaymentCuentaCorriente, PaymentMixto:
		return true
	}
	return false
}

// Settles reports whether money for this method lands in a register.
func (m PaymentMethod) Settles() bool {
	return m.Valid() && m != PaymentCuentaCorriente && m != PaymentMixto
}

// Bucket is the register total a settling method is counted under.
type Bucket string

const (
	BucketCash     Bucket = "cash"
	BucketCard     Bucket = "card"
	BucketTransfer Bucket = "transfer"
	BucketOther    Bucket = "other"
)

// Bucket returns the register total bucket for m.
func (m PaymentMethod) Bucket() Bucket {
	switch m {
	case PaymentEfectivo:
		return BucketCash
	case PaymentTarjetaDebito, PaymentTarjetaCredito:
		return BucketCard
	case PaymentTransferencia:
		return BucketTransfer
	default:
		return BucketOther
	}
}

// MethodTotals accumulates settled amounts per bucket.
type MethodTotals struct {
	Cash     decimal.Decimal `json:"total_cash"`
	Card     decimal.Decimal `json:"total_card"`
	Transfer decimal.Decimal `json:"total_transfer"`
	Other    decimal.Decimal `json:"total_other"`
}

// Add counts amount under the bucket of m. Non-settling methods are ignored.
func (t *MethodTotals) Add(m PaymentMethod, amount decimal.Decimal) {
	if !m.Settles() {
		return
	}
	switch m.Bucket() {
	case BucketCash:
		t.Cash = t.Cash.Add(amount)
	case BucketCard:
		t.Card = t.Card.Add(amount)
	case BucketTransfer:
		t.Transfer = t.Transfer.Add(amount)
	default:
		t.Other = t.Other.Add(amount)
	}
}

// Sum is the total across buckets.
func (t MethodTotals) Sum() decimal.Decimal {
	return t.Cash.Add(t.Card).Add(t.Transfer).Add(t.Other)
}

// Register is one cashier session.
type Register struct {
	ID             uuid.UUID        `json:"id"`
	BusinessID     uuid.UUID        `json:"business_id"`
	UserID         uuid.UUID        `json:"user_id"`
	Status         RegisterStatus   `json:"status"`
	OpeningAmount  decimal.Decimal  `json:"opening_amount"`
	ClosingAmount  *decimal.Decimal `json:"closing_amount,omitempty"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty"`
	Difference     *decimal.Decimal `json:"difference,omitempty"`
	Totals         MethodTotals     `json:"totals"`
	OpeningNotes   string           `json:"opening_notes"`
	ClosingNotes   string           `json:"closing_notes"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
}

// IsOpen reports whether the register accepts movements.
func (r Register) IsOpen() bool {
	return r.Status == RegisterOpen
}

// Movement is an immutable cash ledger row. Only Description may change, when
// a related sale is voided.
type Movement struct {
	ID            uuid.UUID       `json:"id"`
	BusinessID    uuid.UUID       `json:"business_id"`
	RegisterID    uuid.UUID       `json:"cash_register_id"`
	Type          MovementType    `json:"type"`
	Concept       Concept         `json:"concept"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Reference     string          `json:"reference"`
	Description   string          `json:"description"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SignedAmount is Amount with the sign of its effect on the balance.
func (m Movement) SignedAmount() decimal.Decimal {
	if m.Type.Inflow() {
		return m.Amount
	}
	return m.Amount.Neg()
}

// Balance folds movements into a running balance.
func Balance(movements []Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.SignedAmount())
	}
	return total
}

// MovementInput describes a movement to append.
type MovementInput struct {
	BusinessID    uuid.UUID
	RegisterID    uuid.UUID
	ActorID       uuid.UUID
	Type          MovementType
	Concept       Concept
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Reference     string
	Description   string
}

// OpenInput opens a register.
type OpenInput struct {
	OpeningAmount decimal.Decimal
	Notes         string
}

// CloseInput closes the caller's register with the counted cash.
type CloseInput struct {
	CountedAmount decimal.Decimal
	Notes         string
}

// ManualMovementInput records a cashier entered INGRESO or EGRESO.
type ManualMovementInput struct {
	Type          MovementType
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Description   string
}

// Summary is the live view of a register.
type Summary struct {
	Register       Register        `json:"register"`
	Balance        decimal.Decimal `json:"balance"`
	TotalIngresos  decimal.Decimal `json:"total_ingresos"`
	TotalEgresos   decimal.Decimal `json:"total_egresos"`
	SalesTotals    MethodTotals    `json:"sales_totals"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	MovementCount  int             `json:"movement_count"`
}
