package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates standalone inventory operations. Sales and refunds use
// the Ledger directly inside their own transactions.
type Service struct {
	repo   RepositoryPort
	ledger *Ledger
	audit  AuditPort
	authz  shared.Authorizer
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger *Ledger, audit AuditPort, authz shared.Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, authz: authz, logger: logger}
}

// ReceiveStock posts an ENTRADA movement in its own transaction.
func (s *Service) ReceiveStock(ctx context.Context, actor shared.Actor, input ReceiptInput) (StockMovement, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermStockManage); err != nil {
		return StockMovement{}, err
	}
	if input.Quantity <= 0 {
		return StockMovement{}, shared.Validation("la cantidad debe ser mayor a 0", shared.FieldError{Field: "quantity", Message: "debe ser mayor a 0"})
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "Ingreso de mercadería"
	}
	return s.post(ctx, actor, DeltaInput{
		BusinessID: actor.BusinessID,
		ActorID:    actor.UserID,
		ProductID:  input.ProductID,
		VariantID:  input.VariantID,
		Type:       MovementEntrada,
		Quantity:   input.Quantity,
		Reason:     reason,
		Reference:  input.Reference,
	})
}

// Adjust sets stock to a counted value with an AJUSTE movement.
func (s *Service) Adjust(ctx context.Context, actor shared.Actor, input AdjustmentInput) (StockMovement, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermStockManage); err != nil {
		return StockMovement{}, err
	}
	if input.NewStock < 0 {
		return StockMovement{}, shared.Validation("el stock no puede ser negativo", shared.FieldError{Field: "newStock", Message: "debe ser mayor o igual a 0"})
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return StockMovement{}, shared.Validation("el motivo del ajuste es obligatorio", shared.FieldError{Field: "reason", Message: "campo obligatorio"})
	}
	return s.post(ctx, actor, DeltaInput{
		BusinessID: actor.BusinessID,
		ActorID:    actor.UserID,
		ProductID:  input.ProductID,
		VariantID:  input.VariantID,
		Type:       MovementAjuste,
		Quantity:   input.NewStock,
		Reason:     reason,
	})
}

// GetProduct returns a tenant product.
func (s *Service) GetProduct(ctx context.Context, actor shared.Actor, productID uuid.UUID) (Product, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermStockView); err != nil {
		return Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, actor.BusinessID, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Product{}, shared.NotFound("producto no encontrado")
		}
		return Product{}, fmt.Errorf("inventory: get product: %w", err)
	}
	return product, nil
}

// StockCard lists the latest movements for a product in chronological order.
func (s *Service) StockCard(ctx context.Context, actor shared.Actor, filter MovementFilter) ([]StockMovement, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermStockView); err != nil {
		return nil, err
	}
	if filter.ProductID == uuid.Nil {
		return nil, shared.Validation("producto requerido", shared.FieldError{Field: "productId", Message: "campo obligatorio"})
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.Validation("rango de fechas inválido", shared.FieldError{Field: "to", Message: "debe ser posterior a from"})
	}
	filter.BusinessID = actor.BusinessID
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 200
	}
	if _, err := s.GetProduct(ctx, actor, filter.ProductID); err != nil {
		return nil, err
	}
	return s.repo.ListStockMovements(ctx, filter)
}

// LowStock lists products at or below their minimum stock.
func (s *Service) LowStock(ctx context.Context, actor shared.Actor) ([]Product, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermStockView); err != nil {
		return nil, err
	}
	return s.repo.ListLowStock(ctx, actor.BusinessID)
}

func (s *Service) post(ctx context.Context, actor shared.Actor, in DeltaInput) (StockMovement, error) {
	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = s.ledger.ApplyDelta(ctx, tx, in)
		return err
	})
	if err != nil {
		return StockMovement{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			BusinessID: actor.BusinessID,
			ActorID:    actor.UserID,
			Action:     fmt.Sprintf("inventory:%s", in.Type),
			Entity:     "product",
			EntityID:   in.ProductID.String(),
			Meta: map[string]any{
				"quantity":  movement.Quantity,
				"new_stock": movement.NewStock,
				"reason":    movement.Reason,
			},
		}); err != nil {
			s.logger.Warn("audit inventory movement", slog.Any("error", err))
		}
	}
	return movement, nil
}
