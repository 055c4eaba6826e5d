package refunds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives refund observations.
type MetricsPort interface {
	RefundCreated(refundType string, amount float64)
}

// Config tunes refund validation. StrictAmount requires the refund amount to
// match the sum of item subtotals.
type Config struct {
	Tolerance       decimal.Decimal
	ReasonMinLength int
	StrictAmount    bool
}

// Service creates refunds against completed sales.
type Service struct {
	repo      RepositoryPort
	inventory *inventory.Ledger
	cash      *cash.Ledger
	credit    *credit.Ledger
	audit     AuditPort
	authz     shared.Authorizer
	metrics   MetricsPort
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// NewService builds Service. audit and metrics may be nil.
func NewService(repo RepositoryPort, inv *inventory.Ledger, cashLedger *cash.Ledger, creditLedger *credit.Ledger,
	audit AuditPort, authz shared.Authorizer, metrics MetricsPort, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Tolerance.IsPositive() {
		cfg.Tolerance = shared.DefaultTolerance
	}
	if cfg.ReasonMinLength <= 0 {
		cfg.ReasonMinLength = 10
	}
	return &Service{
		repo:      repo,
		inventory: inv,
		cash:      cashLedger,
		credit:    creditLedger,
		audit:     audit,
		authz:     authz,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateRefund validates the request against what was already refunded and,
// in one transaction, records the refund, restocks when asked, advances the
// sale status and pays the money back.
func (s *Service) CreateRefund(ctx context.Context, actor shared.Actor, input CreateInput) (Refund, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermRefundCreate); err != nil {
		return Refund{}, err
	}
	reason, err := sales.ValidateReason(input.Reason, s.cfg.ReasonMinLength)
	if err != nil {
		return Refund{}, err
	}
	if err := s.validateInput(input); err != nil {
		return Refund{}, err
	}
	amount := shared.RoundMoney(input.Amount)

	var refund Refund
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, actor.BusinessID, input.SaleID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NotFound("venta no encontrada")
			}
			return fmt.Errorf("refunds: lock sale: %w", err)
		}
		switch sale.Status {
		case sales.StatusReembolsado:
			return shared.Conflict("la venta ya fue reembolsada en su totalidad")
		case sales.StatusCancelado:
			return shared.Conflict("no se puede reembolsar una venta anulada")
		}

		refunded, err := tx.RefundedAmount(ctx, actor.BusinessID, sale.ID)
		if err != nil {
			return fmt.Errorf("refunds: refunded amount: %w", err)
		}
		if maxAmount := sale.Total.Sub(refunded); amount.GreaterThan(maxAmount) {
			return shared.Conflict("el monto supera el máximo reembolsable",
				shared.FieldError{Field: "refundAmount", Message: "máximo reembolsable: " + shared.FormatMoney(maxAmount)})
		}
		quantities, err := tx.RefundedQuantities(ctx, actor.BusinessID, sale.ID)
		if err != nil {
			return fmt.Errorf("refunds: refunded quantities: %w", err)
		}

		refund = Refund{
			ID:            uuid.New(),
			BusinessID:    actor.BusinessID,
			SaleID:        sale.ID,
			Type:          input.Type,
			Reason:        reason,
			Amount:        amount,
			RestockItems:  input.RestockItems,
			PaymentMethod: payoutMethod(sale),
			CreatedBy:     actor.UserID,
			CreatedAt:     s.now(),
		}
		items, err := bindItems(sale, input.Items, quantities, refund.ID)
		if err != nil {
			return err
		}
		if err := s.checkStrictAmount(amount, items); err != nil {
			return err
		}
		refund.Items = items

		var register cash.Register
		if !sale.OnAccount() {
			register, err = cash.ResolvePayoutRegister(ctx, tx, actor, sale.RegisterID)
			if err != nil {
				return err
			}
			refund.RegisterID = &register.ID
		}
		if sale.OnAccount() && sale.ClientID != nil {
			if _, err := s.credit.Lock(ctx, tx, actor.BusinessID, *sale.ClientID); err != nil {
				return err
			}
		}

		if err := tx.InsertRefund(ctx, refund); err != nil {
			return fmt.Errorf("refunds: insert refund: %w", err)
		}

		if refund.RestockItems {
			for _, item := range sales.LockOrder(refund.Items, itemLockKey) {
				if _, err := s.inventory.ApplyDelta(ctx, tx, inventory.DeltaInput{
					BusinessID: actor.BusinessID,
					ActorID:    actor.UserID,
					ProductID:  item.ProductID,
					VariantID:  item.VariantID,
					Type:       inventory.MovementEntrada,
					Quantity:   item.Quantity,
					Reason:     fmt.Sprintf("Devolución venta #%d", sale.TicketNumber),
					Reference:  refund.ID.String(),
				}); err != nil {
					return err
				}
			}
		}

		next := sales.StatusParcialmenteReembolsado
		if refunded.Add(amount).GreaterThanOrEqual(sale.Total) {
			next = sales.StatusReembolsado
		}
		if !sale.Status.CanTransition(next) {
			return shared.Conflict("estado de la venta incompatible con el reembolso")
		}
		if err := tx.UpdateSaleStatus(ctx, sales.StatusUpdate{BusinessID: actor.BusinessID, SaleID: sale.ID, Status: next}); err != nil {
			return fmt.Errorf("refunds: update sale status: %w", err)
		}

		if sale.OnAccount() {
			if sale.ClientID != nil {
				_, err := s.credit.ApplyDebtDelta(ctx, tx, actor.BusinessID, *sale.ClientID, amount.Neg())
				return err
			}
			return nil
		}
		if !amount.IsPositive() {
			return nil
		}
		_, err = s.cash.Append(ctx, tx, cash.MovementInput{
			BusinessID:    actor.BusinessID,
			RegisterID:    register.ID,
			ActorID:       actor.UserID,
			Type:          cash.MovementEgreso,
			Concept:       cash.ConceptReembolso,
			Amount:        amount,
			PaymentMethod: refund.PaymentMethod,
			Reference:     refund.ID.String(),
			Description:   fmt.Sprintf("Reembolso venta #%d", sale.TicketNumber),
		})
		return err
	})
	if err != nil {
		return Refund{}, err
	}

	s.record(ctx, actor, "refund:create", refund.ID, map[string]any{
		"sale_id": refund.SaleID.String(),
		"amount":  refund.Amount.String(),
		"type":    string(refund.Type),
		"restock": refund.RestockItems,
	})
	if s.metrics != nil {
		s.metrics.RefundCreated(string(refund.Type), refund.Amount.InexactFloat64())
	}
	return refund, nil
}

func (s *Service) validateInput(input CreateInput) error {
	var details []shared.FieldError
	if input.SaleID == uuid.Nil {
		details = append(details, shared.FieldError{Field: "saleId", Message: "campo obligatorio"})
	}
	if !input.Type.Valid() {
		details = append(details, shared.FieldError{Field: "type", Message: "debe ser TOTAL o PARCIAL"})
	}
	if !input.Amount.IsPositive() {
		details = append(details, shared.FieldError{Field: "refundAmount", Message: "debe ser mayor a 0"})
	}
	if len(input.Items) == 0 {
		details = append(details, shared.FieldError{Field: "items", Message: "debe incluir al menos un producto"})
	}
	for i, it := range input.Items {
		if it.SaleItemID == uuid.Nil {
			details = append(details, shared.FieldError{Field: fmt.Sprintf("items[%d].saleItemId", i), Message: "campo obligatorio"})
		}
		if it.Quantity <= 0 {
			details = append(details, shared.FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "debe ser mayor a 0"})
		}
		if it.Subtotal.IsNegative() {
			details = append(details, shared.FieldError{Field: fmt.Sprintf("items[%d].subtotal", i), Message: "no puede ser negativo"})
		}
	}
	if len(details) > 0 {
		return shared.Validation("datos del reembolso inválidos", details...)
	}
	return nil
}

// checkStrictAmount compares the refund amount with the bound item subtotals,
// which already default to price times quantity.
func (s *Service) checkStrictAmount(amount decimal.Decimal, items []Item) error {
	if !s.cfg.StrictAmount {
		return nil
	}
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal)
	}
	if !shared.WithinTolerance(sum, amount, s.cfg.Tolerance) {
		return shared.Validation("el monto no coincide con la suma de los productos",
			shared.FieldError{Field: "refundAmount", Message: "suma de productos: " + shared.FormatMoney(sum)})
	}
	return nil
}

// bindItems resolves each requested line against the sale and enforces the
// per-item refundable quantity, counting repeated lines together.
func bindItems(sale sales.Sale, requested []ItemInput, refunded map[uuid.UUID]int, refundID uuid.UUID) ([]Item, error) {
	pending := make(map[uuid.UUID]int, len(requested))
	items := make([]Item, 0, len(requested))
	for i, req := range requested {
		saleItem, ok := sale.ItemByID(req.SaleItemID)
		if !ok {
			return nil, shared.NotFound("producto no pertenece a la venta").
				WithDetails(shared.FieldError{Field: fmt.Sprintf("items[%d].saleItemId", i), Message: req.SaleItemID.String()})
		}
		remaining := saleItem.Quantity - refunded[saleItem.ID] - pending[saleItem.ID]
		if req.Quantity > remaining {
			if remaining < 0 {
				remaining = 0
			}
			return nil, shared.Conflict("la cantidad supera el máximo reembolsable",
				shared.FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: fmt.Sprintf("máximo reembolsable: %d", remaining)})
		}
		pending[saleItem.ID] += req.Quantity

		price := req.UnitPrice
		if !price.IsPositive() {
			price = saleItem.UnitPrice
		}
		subtotal := req.Subtotal
		if subtotal.IsZero() {
			subtotal = price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		}
		items = append(items, Item{
			ID:         uuid.New(),
			RefundID:   refundID,
			SaleItemID: saleItem.ID,
			ProductID:  saleItem.ProductID,
			VariantID:  saleItem.VariantID,
			Quantity:   req.Quantity,
			UnitPrice:  shared.RoundMoney(price),
			Subtotal:   shared.RoundMoney(subtotal),
		})
	}
	return items, nil
}

// payoutMethod is the method money goes back through. Split sales are paid
// back in cash.
func payoutMethod(sale sales.Sale) cash.PaymentMethod {
	if sale.PaymentMethod.Settles() {
		return sale.PaymentMethod
	}
	if sale.PaymentMethod == cash.PaymentMixto {
		return cash.PaymentEfectivo
	}
	return sale.PaymentMethod
}

func itemLockKey(it Item) string {
	if it.VariantID != nil {
		return it.ProductID.String() + ":" + it.VariantID.String()
	}
	return it.ProductID.String()
}

// Balance reports what remains refundable on a sale.
func (s *Service) Balance(ctx context.Context, actor shared.Actor, saleID uuid.UUID) (Balance, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermSaleView); err != nil {
		return Balance{}, err
	}
	sale, err := s.repo.GetSale(ctx, actor.BusinessID, saleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Balance{}, shared.NotFound("venta no encontrada")
		}
		return Balance{}, fmt.Errorf("refunds: get sale: %w", err)
	}
	refunded, err := s.repo.RefundedAmount(ctx, actor.BusinessID, saleID)
	if err != nil {
		return Balance{}, fmt.Errorf("refunds: refunded amount: %w", err)
	}
	quantities, err := s.repo.RefundedQuantities(ctx, actor.BusinessID, saleID)
	if err != nil {
		return Balance{}, fmt.Errorf("refunds: refunded quantities: %w", err)
	}

	balance := Balance{
		SaleID:           sale.ID,
		Total:            sale.Total,
		RefundedAmount:   refunded,
		RefundableAmount: decimal.Max(sale.Total.Sub(refunded), decimal.Zero),
	}
	closed := sale.Status == sales.StatusCancelado || sale.Status == sales.StatusReembolsado
	if closed {
		balance.RefundableAmount = decimal.Zero
	}
	for _, item := range sale.Items {
		done := quantities[item.ID]
		refundable := item.Quantity - done
		if refundable < 0 || closed {
			refundable = 0
		}
		balance.Items = append(balance.Items, ItemBalance{
			SaleItemID: item.ID,
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Sold:       item.Quantity,
			Refunded:   done,
			Refundable: refundable,
		})
	}
	return balance, nil
}

// GetRefund returns a refund with its items.
func (s *Service) GetRefund(ctx context.Context, actor shared.Actor, refundID uuid.UUID) (Refund, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermSaleView); err != nil {
		return Refund{}, err
	}
	refund, err := s.repo.GetRefund(ctx, actor.BusinessID, refundID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Refund{}, shared.NotFound("reembolso no encontrado")
		}
		return Refund{}, fmt.Errorf("refunds: get refund: %w", err)
	}
	return refund, nil
}

// ListRefunds returns the refunds of a sale, oldest first.
func (s *Service) ListRefunds(ctx context.Context, actor shared.Actor, saleID uuid.UUID) ([]Refund, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermSaleView); err != nil {
		return nil, err
	}
	refunds, err := s.repo.ListRefunds(ctx, actor.BusinessID, saleID)
	if err != nil {
		return nil, fmt.Errorf("refunds: list refunds: %w", err)
	}
	return refunds, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, refundID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		BusinessID: actor.BusinessID,
		ActorID:    actor.UserID,
		Action:     action,
		Entity:     "refund",
		EntityID:   refundID.String(),
		Meta:       meta,
	}); err != nil {
		s.logger.Warn("audit refund", slog.String("action", action), slog.Any("error", err))
	}
}
