package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Ledger applies stock deltas within a caller-owned transaction.
type Ledger struct {
	policy OversellPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger builds a Ledger. An empty policy defaults to OversellClamp.
func NewLedger(policy OversellPolicy, logger *slog.Logger) *Ledger {
	if policy == "" {
		policy = OversellClamp
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{policy: policy, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ApplyDelta locks the target row, computes the new stock, persists it and
// appends a movement. It never opens its own transaction.
func (l *Ledger) ApplyDelta(ctx context.Context, tx TxRepository, in DeltaInput) (StockMovement, error) {
	if err := validateDelta(in); err != nil {
		return StockMovement{}, err
	}

	product, err := tx.GetProductForUpdate(ctx, in.BusinessID, in.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return StockMovement{}, shared.NotFound("producto no encontrado").WithDetails(shared.FieldError{Field: "productId", Message: in.ProductID.String()})
		}
		return StockMovement{}, fmt.Errorf("inventory: lock product: %w", err)
	}

	current := product.Stock
	label := product.Name
	if in.VariantID != nil {
		variant, err := tx.GetVariantForUpdate(ctx, in.BusinessID, in.ProductID, *in.VariantID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return StockMovement{}, shared.NotFound("variante no encontrada").WithDetails(shared.FieldError{Field: "variantId", Message: in.VariantID.String()})
			}
			return StockMovement{}, fmt.Errorf("inventory: lock variant: %w", err)
		}
		current = variant.Stock
		label = fmt.Sprintf("%s (%s)", product.Name, variant.Name)
	}

	next, err := l.nextStock(current, in, label)
	if err != nil {
		return StockMovement{}, err
	}

	if in.VariantID != nil {
		err = tx.UpdateVariantStock(ctx, in.BusinessID, *in.VariantID, next)
	} else {
		err = tx.UpdateProductStock(ctx, in.BusinessID, in.ProductID, next)
	}
	if err != nil {
		return StockMovement{}, fmt.Errorf("inventory: update stock: %w", err)
	}

	movement := StockMovement{
		ID:            uuid.New(),
		BusinessID:    in.BusinessID,
		ProductID:     in.ProductID,
		VariantID:     in.VariantID,
		Type:          in.Type,
		Quantity:      movementQuantity(in),
		PreviousStock: current,
		NewStock:      next,
		Reason:        in.Reason,
		Reference:     in.Reference,
		CreatedBy:     in.ActorID,
		CreatedAt:     l.now(),
	}
	if err := tx.InsertStockMovement(ctx, movement); err != nil {
		return StockMovement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	return movement, nil
}

func (l *Ledger) nextStock(current int, in DeltaInput, label string) (int, error) {
	if in.Type == MovementAjuste {
		return in.Quantity, nil
	}
	next := current + in.Quantity
	if next >= 0 {
		return next, nil
	}
	if l.policy == OversellReject {
		return 0, shared.Conflict(fmt.Sprintf("stock insuficiente para %s (disponible: %d)", label, current),
			shared.FieldError{Field: "quantity", Message: fmt.Sprintf("máximo disponible: %d", current)})
	}
	l.logger.Warn("stock clamped at zero",
		slog.String("product_id", in.ProductID.String()),
		slog.Int("current", current),
		slog.Int("delta", in.Quantity),
		slog.String("reference", in.Reference))
	return 0, nil
}

func validateDelta(in DeltaInput) error {
	if in.BusinessID == uuid.Nil || in.ProductID == uuid.Nil {
		return shared.Validation("producto requerido", shared.FieldError{Field: "productId", Message: "campo obligatorio"})
	}
	switch in.Type {
	case MovementEntrada:
		if in.Quantity <= 0 {
			return shared.Validation("la cantidad de una entrada debe ser positiva", shared.FieldError{Field: "quantity", Message: "debe ser mayor a 0"})
		}
	case MovementSalida:
		if in.Quantity >= 0 {
			return shared.Validation("la cantidad de una salida debe ser negativa", shared.FieldError{Field: "quantity", Message: "debe ser menor a 0"})
		}
	case MovementTransferencia:
		if in.Quantity == 0 {
			return shared.Validation("la cantidad no puede ser cero", shared.FieldError{Field: "quantity", Message: "distinto de 0"})
		}
	case MovementAjuste:
		if in.Quantity < 0 {
			return shared.Validation("el stock ajustado no puede ser negativo", shared.FieldError{Field: "quantity", Message: "debe ser mayor o igual a 0"})
		}
	default:
		return shared.Validation("tipo de movimiento inválido", shared.FieldError{Field: "type", Message: string(in.Type)})
	}
	return nil
}

func movementQuantity(in DeltaInput) int {
	if in.Quantity < 0 {
		return -in.Quantity
	}
	return in.Quantity
}
