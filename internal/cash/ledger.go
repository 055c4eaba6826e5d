package cash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Ledger appends cash movements within a caller-owned transaction.
type Ledger struct {
	now func() time.Time
}

// NewLedger builds a Ledger.
func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// Append validates and persists one movement against an OPEN register.
func (l *Ledger) Append(ctx context.Context, tx TxRepository, in MovementInput) (Movement, error) {
	if !in.Type.Valid() {
		return Movement{}, shared.Validation("tipo de movimiento inválido", shared.FieldError{Field: "type", Message: string(in.Type)})
	}
	if !in.Amount.IsPositive() {
		return Movement{}, shared.Validation("el monto debe ser mayor a 0", shared.FieldError{Field: "amount", Message: "debe ser mayor a 0"})
	}
	method := in.PaymentMethod
	if method == "" {
		method = PaymentEfectivo
	}
	if !method.Settles() {
		return Movement{}, shared.Validation("medio de pago inválido para caja", shared.FieldError{Field: "paymentMethod", Message: string(method)})
	}
	register, err := tx.GetRegisterForUpdate(ctx, in.BusinessID, in.RegisterID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Movement{}, shared.NotFound("caja no encontrada")
		}
		return Movement{}, fmt.Errorf("cash: lock register: %w", err)
	}
	if !register.IsOpen() {
		return Movement{}, shared.Conflict("la caja está cerrada")
	}
	movement := Movement{
		ID:            uuid.New(),
		BusinessID:    in.BusinessID,
		RegisterID:    in.RegisterID,
		Type:          in.Type,
		Concept:       in.Concept,
		Amount:        shared.RoundMoney(in.Amount),
		PaymentMethod: method,
		Reference:     in.Reference,
		Description:   strings.TrimSpace(in.Description),
		CreatedBy:     in.ActorID,
		CreatedAt:     l.now(),
	}
	if err := tx.InsertCashMovement(ctx, movement); err != nil {
		return Movement{}, fmt.Errorf("cash: insert movement: %w", err)
	}
	return movement, nil
}

// Void appends note to the description of every movement tagged with
// reference. Amounts are never touched.
func (l *Ledger) Void(ctx context.Context, tx TxRepository, businessID uuid.UUID, reference, note string) error {
	if reference == "" {
		return nil
	}
	if _, err := tx.AnnotateCashMovements(ctx, businessID, reference, note); err != nil {
		return fmt.Errorf("cash: annotate movements: %w", err)
	}
	return nil
}

// RequireOpen returns the caller's OPEN register, locked, or a conflict when
// none exists.
func RequireOpen(ctx context.Context, tx TxRepository, actor shared.Actor) (Register, error) {
	register, err := tx.GetOpenRegisterForUpdate(ctx, actor.BusinessID, actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Register{}, shared.Conflict("debe abrir la caja antes de operar")
		}
		return Register{}, fmt.Errorf("cash: lock open register: %w", err)
	}
	return register, nil
}

// FindOpen returns the caller's OPEN register when there is one.
func FindOpen(ctx context.Context, tx TxRepository, actor shared.Actor) (*Register, error) {
	register, err := tx.GetOpenRegisterForUpdate(ctx, actor.BusinessID, actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("cash: lock open register: %w", err)
	}
	return &register, nil
}

// ResolvePayoutRegister picks the register an outflow is charged to: the
// caller's open register first, then fallback when it is still open.
func ResolvePayoutRegister(ctx context.Context, tx TxRepository, actor shared.Actor, fallback *uuid.UUID) (Register, error) {
	own, err := FindOpen(ctx, tx, actor)
	if err != nil {
		return Register{}, err
	}
	if own != nil {
		return *own, nil
	}
	if fallback != nil {
		register, err := tx.GetRegisterForUpdate(ctx, actor.BusinessID, *fallback)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return Register{}, fmt.Errorf("cash: lock register: %w", err)
		}
		if err == nil && register.IsOpen() {
			return register, nil
		}
	}
	return Register{}, shared.Conflict("no hay una caja abierta para registrar la salida de dinero")
}
