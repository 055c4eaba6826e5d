package sales

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
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives sale lifecycle observations.
type MetricsPort interface {
	SaleCompleted(method string, total float64)
	SaleCanceled(method string)
}

// Config tunes sale validation.
type Config struct {
	Tolerance       decimal.Decimal
	ReasonMinLength int
}

// Service executes sales and cancellations as single transactions across the
// inventory, cash and credit ledgers.
type Service struct {
	repo      RepositoryPort
	inventory *inventory.Ledger
	cash      *cash.Ledger
	credit    *credit.Ledger
	audit     AuditPort
	authz     shared.Authorizer
	notifier  shared.Notifier
	metrics   MetricsPort
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// NewService builds Service. audit, notifier and metrics may be nil.
func NewService(repo RepositoryPort, inv *inventory.Ledger, cashLedger *cash.Ledger, creditLedger *credit.Ledger,
	audit AuditPort, authz shared.Authorizer, notifier shared.Notifier, metrics MetricsPort, logger *slog.Logger, cfg Config) *Service {
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
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSale validates the request and, in one transaction, decrements stock,
// persists the sale and books the money into the register or the client's
// account. A repeated idempotency key returns the original sale.
func (s *Service) CreateSale(ctx context.Context, actor shared.Actor, input CreateInput) (CreateResult, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermSaleCreate); err != nil {
		return CreateResult{}, err
	}
	key, err := shared.NormalizeIdempotencyKey(input.IdempotencyKey)
	if err != nil {
		return CreateResult{}, err
	}
	p, err := buildPlan(input, s.cfg.Tolerance)
	if err != nil {
		return CreateResult{}, err
	}

	if key != "" {
		existing, err := s.repo.FindSaleByIdempotencyKey(ctx, actor.BusinessID, key)
		switch {
		case err == nil:
			return CreateResult{Sale: existing, Replayed: true}, nil
		case !errors.Is(err, shared.ErrNotFound):
			return CreateResult{}, fmt.Errorf("sales: lookup idempotency key: %w", err)
		}
	}

	sale := Sale{
		ID:            uuid.New(),
		BusinessID:    actor.BusinessID,
		UserID:        actor.UserID,
		ClientID:      input.ClientID,
		Status:        StatusCompletado,
		Subtotal:      p.subtotal,
		Discount:      p.discount,
		Total:         p.total,
		PaymentMethod: input.PaymentMethod,
		Items:         p.items,
		Payments:      p.payments,
		CreatedAt:     s.now(),
	}
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
	}
	for i := range sale.Payments {
		sale.Payments[i].SaleID = sale.ID
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if key != "" {
			if err := tx.ReserveIdempotencyKey(ctx, actor.BusinessID, key, sale.ID); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					return shared.Conflict("la venta con esta clave ya está en proceso")
				}
				return fmt.Errorf("sales: reserve idempotency key: %w", err)
			}
		}

		register, err := s.saleRegister(ctx, tx, actor, sale.OnAccount())
		if err != nil {
			return err
		}
		if register != nil {
			sale.RegisterID = &register.ID
		}

		if sale.ClientID != nil {
			client, err := s.credit.Lock(ctx, tx, actor.BusinessID, *sale.ClientID)
			if err != nil {
				return err
			}
			if sale.OnAccount() && !client.HasCreditAccount {
				return shared.Conflict("el cliente no tiene cuenta corriente habilitada")
			}
		}

		for _, item := range LockOrder(sale.Items, itemLockKey) {
			if _, err := s.inventory.ApplyDelta(ctx, tx, inventory.DeltaInput{
				BusinessID: actor.BusinessID,
				ActorID:    actor.UserID,
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				Type:       inventory.MovementSalida,
				Quantity:   -item.Quantity,
				Reason:     "Venta",
				Reference:  sale.ID.String(),
			}); err != nil {
				return err
			}
		}

		ticket, err := tx.NextTicketNumber(ctx, actor.BusinessID)
		if err != nil {
			return fmt.Errorf("sales: next ticket number: %w", err)
		}
		sale.TicketNumber = ticket
		if err := tx.InsertSale(ctx, sale); err != nil {
			return fmt.Errorf("sales: insert sale: %w", err)
		}

		if sale.OnAccount() {
			_, err := s.credit.ApplyDebtDelta(ctx, tx, actor.BusinessID, *sale.ClientID, sale.Total)
			return err
		}
		for _, part := range sale.Payments {
			if _, err := s.cash.Append(ctx, tx, cash.MovementInput{
				BusinessID:    actor.BusinessID,
				RegisterID:    register.ID,
				ActorID:       actor.UserID,
				Type:          cash.MovementIngreso,
				Concept:       cash.ConceptVenta,
				Amount:        part.Amount,
				PaymentMethod: part.Method,
				Reference:     sale.ID.String(),
				Description:   fmt.Sprintf("Venta #%d", sale.TicketNumber),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.record(ctx, actor, "sale:create", sale.ID, map[string]any{
		"ticket_number":  sale.TicketNumber,
		"total":          sale.Total.String(),
		"payment_method": string(sale.PaymentMethod),
	})
	if s.metrics != nil {
		s.metrics.SaleCompleted(string(sale.PaymentMethod), sale.Total.InexactFloat64())
	}
	if s.notifier != nil {
		receipt := shared.SaleReceipt{
			BusinessID:    sale.BusinessID,
			SaleID:        sale.ID,
			TicketNumber:  sale.TicketNumber,
			Total:         sale.Total,
			PaymentMethod: string(sale.PaymentMethod),
			ClientID:      sale.ClientID,
			CreatedAt:     sale.CreatedAt,
		}
		shared.NotifyAfterCommit(ctx, s.logger, "sale_completed", func(ctx context.Context) error {
			return s.notifier.SaleCompleted(ctx, receipt)
		})
	}
	return CreateResult{Sale: sale}, nil
}

// saleRegister requires an open register for settled sales. Sales on account
// attach the register only when the cashier has one open.
func (s *Service) saleRegister(ctx context.Context, tx TxRepository, actor shared.Actor, onAccount bool) (*cash.Register, error) {
	if onAccount {
		return cash.FindOpen(ctx, tx, actor)
	}
	register, err := cash.RequireOpen(ctx, tx, actor)
	if err != nil {
		return nil, err
	}
	return &register, nil
}

// CancelSale voids a completed sale: stock goes back, money leaves the
// register (or the client's debt drops) and the original cash movements are
// annotated.
func (s *Service) CancelSale(ctx context.Context, actor shared.Actor, input CancelInput) (Sale, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermSaleCancel); err != nil {
		return Sale{}, err
	}
	reason, err := ValidateReason(input.Reason, s.cfg.ReasonMinLength)
	if err != nil {
		return Sale{}, err
	}

	var sale Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, actor.BusinessID, input.SaleID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NotFound("venta no encontrada")
			}
			return fmt.Errorf("sales: lock sale: %w", err)
		}
		switch sale.Status {
		case StatusCompletado:
		case StatusCancelado:
			return shared.Conflict("la venta ya fue anulada")
		default:
			return shared.Conflict("no se puede anular una venta con devoluciones registradas")
		}

		var register cash.Register
		if !sale.OnAccount() {
			register, err = cash.ResolvePayoutRegister(ctx, tx, actor, sale.RegisterID)
			if err != nil {
				return err
			}
		}
		if sale.OnAccount() && sale.ClientID != nil {
			if _, err := s.credit.Lock(ctx, tx, actor.BusinessID, *sale.ClientID); err != nil {
				return err
			}
		}

		for _, item := range LockOrder(sale.Items, itemLockKey) {
			if _, err := s.inventory.ApplyDelta(ctx, tx, inventory.DeltaInput{
				BusinessID: actor.BusinessID,
				ActorID:    actor.UserID,
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				Type:       inventory.MovementEntrada,
				Quantity:   item.Quantity,
				Reason:     fmt.Sprintf("Anulación venta #%d: %s", sale.TicketNumber, reason),
				Reference:  sale.ID.String(),
			}); err != nil {
				return err
			}
		}

		if sale.OnAccount() {
			if sale.ClientID != nil {
				if _, err := s.credit.ApplyDebtDelta(ctx, tx, actor.BusinessID, *sale.ClientID, sale.Total.Neg()); err != nil {
					return err
				}
			}
		} else {
			if err := s.cash.Void(ctx, tx, actor.BusinessID, sale.ID.String(), " [ANULADA]"); err != nil {
				return err
			}
			for _, part := range sale.Payments {
				if !part.Method.Settles() || !part.Amount.IsPositive() {
					continue
				}
				if _, err := s.cash.Append(ctx, tx, cash.MovementInput{
					BusinessID:    actor.BusinessID,
					RegisterID:    register.ID,
					ActorID:       actor.UserID,
					Type:          cash.MovementEgreso,
					Concept:       cash.ConceptAnulacionVenta,
					Amount:        part.Amount,
					PaymentMethod: part.Method,
					Reference:     sale.ID.String(),
					Description:   fmt.Sprintf("Anulación venta #%d", sale.TicketNumber),
				}); err != nil {
					return err
				}
			}
		}

		now := s.now()
		update := StatusUpdate{
			BusinessID:   actor.BusinessID,
			SaleID:       sale.ID,
			Status:       StatusCancelado,
			CancelReason: reason,
			CanceledBy:   &actor.UserID,
			CanceledAt:   &now,
		}
		if err := tx.UpdateSaleStatus(ctx, update); err != nil {
			return fmt.Errorf("sales: update status: %w", err)
		}
		sale.Status = StatusCancelado
		sale.CancelReason = reason
		sale.CanceledBy = update.CanceledBy
		sale.CanceledAt = update.CanceledAt
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.record(ctx, actor, "sale:cancel", sale.ID, map[string]any{
		"ticket_number": sale.TicketNumber,
		"reason":        sale.CancelReason,
	})
	if s.metrics != nil {
		s.metrics.SaleCanceled(string(sale.PaymentMethod))
	}
	return sale, nil
}

// GetSale returns a sale with its items and payment parts.
func (s *Service) GetSale(ctx context.Context, actor shared.Actor, saleID uuid.UUID) (Sale, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermSaleView); err != nil {
		return Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, actor.BusinessID, saleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Sale{}, shared.NotFound("venta no encontrada")
		}
		return Sale{}, fmt.Errorf("sales: get sale: %w", err)
	}
	return sale, nil
}

// ListSales returns a page of the tenant's sales, newest first.
func (s *Service) ListSales(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Sale, shared.Pagination, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermSaleView); err != nil {
		return nil, shared.Pagination{}, err
	}
	page := shared.PageRequest{Page: filter.Page, PerPage: filter.PerPage}.Normalize()
	filter.BusinessID = actor.BusinessID
	filter.Page = page.Page
	filter.PerPage = page.PerPage
	items, total, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("sales: list sales: %w", err)
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, saleID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		BusinessID: actor.BusinessID,
		ActorID:    actor.UserID,
		Action:     action,
		Entity:     "sale",
		EntityID:   saleID.String(),
		Meta:       meta,
	}); err != nil {
		s.logger.Warn("audit sale", slog.String("action", action), slog.Any("error", err))
	}
}
