package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Ledger applies debt deltas within a caller-owned transaction.
type Ledger struct {
	now func() time.Time
}

// NewLedger builds a Ledger.
func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// ApplyDebtDelta adds delta to the client's debt, floors it at zero and
// recomputes the status.
func (l *Ledger) ApplyDebtDelta(ctx context.Context, tx TxRepository, businessID, clientID uuid.UUID, delta decimal.Decimal) (Client, error) {
	client, err := l.lock(ctx, tx, businessID, clientID)
	if err != nil {
		return Client{}, err
	}
	debt := shared.RoundMoney(client.CurrentDebt.Add(delta))
	if debt.IsNegative() {
		debt = decimal.Zero
	}
	client.CurrentDebt = debt
	return l.save(ctx, tx, client)
}

// SetLimit replaces the credit limit and recomputes the status.
func (l *Ledger) SetLimit(ctx context.Context, tx TxRepository, businessID, clientID uuid.UUID, limit decimal.Decimal, hasCreditAccount *bool) (Client, error) {
	if limit.IsNegative() {
		return Client{}, shared.Validation("el límite de crédito no puede ser negativo", shared.FieldError{Field: "creditLimit", Message: "debe ser mayor o igual a 0"})
	}
	client, err := l.lock(ctx, tx, businessID, clientID)
	if err != nil {
		return Client{}, err
	}
	client.CreditLimit = shared.RoundMoney(limit)
	if hasCreditAccount != nil {
		client.HasCreditAccount = *hasCreditAccount
	}
	return l.save(ctx, tx, client)
}

// Lock returns the client row locked for the rest of the transaction.
func (l *Ledger) Lock(ctx context.Context, tx TxRepository, businessID, clientID uuid.UUID) (Client, error) {
	return l.lock(ctx, tx, businessID, clientID)
}

func (l *Ledger) lock(ctx context.Context, tx TxRepository, businessID, clientID uuid.UUID) (Client, error) {
	client, err := tx.GetClientForUpdate(ctx, businessID, clientID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Client{}, shared.NotFound("cliente no encontrado")
		}
		return Client{}, fmt.Errorf("credit: lock client: %w", err)
	}
	return client, nil
}

func (l *Ledger) save(ctx context.Context, tx TxRepository, client Client) (Client, error) {
	client.Status = DeriveStatus(client.CurrentDebt, client.CreditLimit)
	client.UpdatedAt = l.now()
	if err := tx.UpdateClientCredit(ctx, client); err != nil {
		return Client{}, fmt.Errorf("credit: update client: %w", err)
	}
	return client, nil
}
