package credit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
)

// Status is derived from debt against limit.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusDelinquent Status = "DELINQUENT"
)

// DeriveStatus returns DELINQUENT iff debt exceeds limit.
func DeriveStatus(debt, limit decimal.Decimal) Status {
	if debt.GreaterThan(limit) {
		return StatusDelinquent
	}
	return StatusActive
}

// Client is a customer that may buy on a running account.
type Client struct {
	ID               uuid.UUID       `json:"id"`
	BusinessID       uuid.UUID       `json:"business_id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	HasCreditAccount bool            `json:"has_credit_account"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	CurrentDebt      decimal.Decimal `json:"current_debt"`
	Status           Status          `json:"status"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AvailableCredit is the remaining headroom, never negative.
func (c Client) AvailableCredit() decimal.Decimal {
	avail := c.CreditLimit.Sub(c.CurrentDebt)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// Payment is money a client hands in against their debt.
type Payment struct {
	ID            uuid.UUID          `json:"id"`
	BusinessID    uuid.UUID          `json:"business_id"`
	ClientID      uuid.UUID          `json:"client_id"`
	Amount        decimal.Decimal    `json:"amount"`
	PaymentMethod cash.PaymentMethod `json:"payment_method"`
	RegisterID    *uuid.UUID         `json:"cash_register_id,omitempty"`
	Notes         string             `json:"notes"`
	CreatedBy     uuid.UUID          `json:"created_by"`
	CreatedAt     time.Time          `json:"created_at"`
}

// PaymentInput registers a client payment.
type PaymentInput struct {
	ClientID      uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod cash.PaymentMethod
	Notes         string
}

// LimitInput changes a client's credit settings.
type LimitInput struct {
	ClientID         uuid.UUID
	CreditLimit      decimal.Decimal
	HasCreditAccount *bool
}

// PaymentResult bundles the outcome of a payment.
type PaymentResult struct {
	Payment  Payment       `json:"payment"`
	Client   Client        `json:"client"`
	Movement cash.Movement `json:"movement"`
}
