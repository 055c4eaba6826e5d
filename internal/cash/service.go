package cash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives register lifecycle observations.
type MetricsPort interface {
	RegisterClosed(difference float64)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	LockTTL time.Duration
}

// Service runs the register session state machine.
type Service struct {
	repo      RepositoryPort
	ledger    *Ledger
	audit     AuditPort
	authz     shared.Authorizer
	locker    shared.Locker
	metrics   MetricsPort
	logger    *slog.Logger
	lockTTL   time.Duration
	summaries singleflight.Group
	now       func() time.Time
}

// NewService builds Service. locker, audit and metrics may be nil.
func NewService(repo RepositoryPort, ledger *Ledger, audit AuditPort, authz shared.Authorizer, locker shared.Locker, metrics MetricsPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	return &Service{
		repo:    repo,
		ledger:  ledger,
		audit:   audit,
		authz:   authz,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
		lockTTL: cfg.LockTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Open creates an OPEN register for the caller. At most one OPEN register per
// user and business may exist; the store enforces it with a unique index.
func (s *Service) Open(ctx context.Context, actor shared.Actor, input OpenInput) (Register, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermRegisterOperate); err != nil {
		return Register{}, err
	}
	if input.OpeningAmount.IsNegative() {
		return Register{}, shared.Validation("el monto inicial no puede ser negativo", shared.FieldError{Field: "openingAmount", Message: "debe ser mayor o igual a 0"})
	}

	release, err := s.acquire(ctx, actor)
	if err != nil {
		return Register{}, err
	}
	defer release()

	register := Register{
		ID:            uuid.New(),
		BusinessID:    actor.BusinessID,
		UserID:        actor.UserID,
		Status:        RegisterOpen,
		OpeningAmount: shared.RoundMoney(input.OpeningAmount),
		OpeningNotes:  strings.TrimSpace(input.Notes),
		OpenedAt:      s.now(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := FindOpen(ctx, tx, actor)
		if err != nil {
			return err
		}
		if existing != nil {
			return errRegisterAlreadyOpen()
		}
		if err := tx.InsertRegister(ctx, register); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				return errRegisterAlreadyOpen()
			}
			return fmt.Errorf("cash: insert register: %w", err)
		}
		if !register.OpeningAmount.IsPositive() {
			return nil
		}
		_, err = s.ledger.Append(ctx, tx, MovementInput{
			BusinessID:    actor.BusinessID,
			RegisterID:    register.ID,
			ActorID:       actor.UserID,
			Type:          MovementApertura,
			Concept:       ConceptApertura,
			Amount:        register.OpeningAmount,
			PaymentMethod: PaymentEfectivo,
			Reference:     register.ID.String(),
			Description:   "Apertura de caja",
		})
		return err
	})
	if err != nil {
		return Register{}, err
	}
	s.record(ctx, actor, "cash:open", register.ID, map[string]any{"opening_amount": register.OpeningAmount.String()})
	s.logger.Info("register opened", slog.String("register_id", register.ID.String()), slog.String("user_id", actor.UserID.String()))
	return register, nil
}

// Close closes the caller's OPEN register, computing expected cash and the
// counted difference. CLOSED is terminal.
func (s *Service) Close(ctx context.Context, actor shared.Actor, input CloseInput) (Register, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermRegisterOperate); err != nil {
		return Register{}, err
	}
	if input.CountedAmount.IsNegative() {
		return Register{}, shared.Validation("el monto contado no puede ser negativo", shared.FieldError{Field: "countedAmount", Message: "debe ser mayor o igual a 0"})
	}

	var closed Register
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		register, err := tx.GetOpenRegisterForUpdate(ctx, actor.BusinessID, actor.UserID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.Conflict("no tiene una caja abierta")
			}
			return fmt.Errorf("cash: lock open register: %w", err)
		}
		totals, err := tx.RegisterSalesTotals(ctx, actor.BusinessID, register.ID)
		if err != nil {
			return fmt.Errorf("cash: sales totals: %w", err)
		}
		counted := shared.RoundMoney(input.CountedAmount)
		expected := ExpectedAmount(register.OpeningAmount, totals)
		difference := counted.Sub(expected)

		if counted.IsPositive() {
			if _, err := s.ledger.Append(ctx, tx, MovementInput{
				BusinessID:    actor.BusinessID,
				RegisterID:    register.ID,
				ActorID:       actor.UserID,
				Type:          MovementCierre,
				Concept:       ConceptCierre,
				Amount:        counted,
				PaymentMethod: PaymentEfectivo,
				Reference:     register.ID.String(),
				Description:   "Cierre de caja",
			}); err != nil {
				return err
			}
		}

		closedAt := s.now()
		register.Status = RegisterClosed
		register.ClosingAmount = &counted
		register.ExpectedAmount = &expected
		register.Difference = &difference
		register.Totals = totals
		register.ClosingNotes = strings.TrimSpace(input.Notes)
		register.ClosedAt = &closedAt
		if err := tx.CloseRegister(ctx, register); err != nil {
			return fmt.Errorf("cash: close register: %w", err)
		}
		closed = register
		return nil
	})
	if err != nil {
		return Register{}, err
	}
	if s.metrics != nil {
		s.metrics.RegisterClosed(closed.Difference.InexactFloat64())
	}
	s.record(ctx, actor, "cash:close", closed.ID, map[string]any{
		"closing_amount":  closed.ClosingAmount.String(),
		"expected_amount": closed.ExpectedAmount.String(),
		"difference":      closed.Difference.String(),
	})
	s.logger.Info("register closed",
		slog.String("register_id", closed.ID.String()),
		slog.String("difference", closed.Difference.String()))
	return closed, nil
}

// RecordMovement appends a manual INGRESO or EGRESO to the caller's register.
func (s *Service) RecordMovement(ctx context.Context, actor shared.Actor, input ManualMovementInput) (Movement, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermCashMovement); err != nil {
		return Movement{}, err
	}
	if input.Type != MovementIngreso && input.Type != MovementEgreso {
		return Movement{}, shared.Validation("solo se permiten ingresos o egresos manuales", shared.FieldError{Field: "type", Message: "debe ser INGRESO o EGRESO"})
	}
	if strings.TrimSpace(input.Description) == "" {
		return Movement{}, shared.Validation("la descripción es obligatoria", shared.FieldError{Field: "description", Message: "campo obligatorio"})
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		register, err := RequireOpen(ctx, tx, actor)
		if err != nil {
			return err
		}
		movement, err = s.ledger.Append(ctx, tx, MovementInput{
			BusinessID:    actor.BusinessID,
			RegisterID:    register.ID,
			ActorID:       actor.UserID,
			Type:          input.Type,
			Concept:       ConceptManual,
			Amount:        input.Amount,
			PaymentMethod: input.PaymentMethod,
			Description:   input.Description,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.record(ctx, actor, "cash:movement", movement.ID, map[string]any{"type": string(movement.Type), "amount": movement.Amount.String()})
	return movement, nil
}

// Current returns the caller's OPEN register.
func (s *Service) Current(ctx context.Context, actor shared.Actor) (Register, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermRegisterView); err != nil {
		return Register{}, err
	}
	register, err := s.repo.GetOpenRegister(ctx, actor.BusinessID, actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Register{}, shared.NotFound("no tiene una caja abierta")
		}
		return Register{}, fmt.Errorf("cash: get open register: %w", err)
	}
	return register, nil
}

// Summary computes balance and totals for a register. Concurrent requests for
// the same register share one computation.
func (s *Service) Summary(ctx context.Context, actor shared.Actor, registerID uuid.UUID) (Summary, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermRegisterView); err != nil {
		return Summary{}, err
	}
	key := actor.BusinessID.String() + ":" + registerID.String()
	res := s.summaries.DoChan(key, func() (interface{}, error) {
		return s.buildSummary(context.WithoutCancel(ctx), actor.BusinessID, registerID)
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case out := <-res:
		if out.Err != nil {
			return Summary{}, out.Err
		}
		return out.Val.(Summary), nil
	}
}

// Movements lists a register's movements page by page.
func (s *Service) Movements(ctx context.Context, actor shared.Actor, registerID uuid.UUID, page shared.PageRequest) ([]Movement, shared.Pagination, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermRegisterView); err != nil {
		return nil, shared.Pagination{}, err
	}
	if _, err := s.getRegister(ctx, actor.BusinessID, registerID); err != nil {
		return nil, shared.Pagination{}, err
	}
	page = page.Normalize()
	movements, total, err := s.repo.ListRegisterMovements(ctx, actor.BusinessID, registerID, page)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("cash: list movements: %w", err)
	}
	return movements, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// ExpectedAmount is the cash that should be in the drawer: the opening amount
// plus cash settled by non-canceled sales of the session.
func ExpectedAmount(opening decimal.Decimal, sales MethodTotals) decimal.Decimal {
	return shared.RoundMoney(opening.Add(sales.Cash))
}

func (s *Service) buildSummary(ctx context.Context, businessID, registerID uuid.UUID) (Summary, error) {
	register, err := s.getRegister(ctx, businessID, registerID)
	if err != nil {
		return Summary{}, err
	}
	movements, err := s.repo.AllRegisterMovements(ctx, businessID, registerID)
	if err != nil {
		return Summary{}, fmt.Errorf("cash: list movements: %w", err)
	}
	totals, err := s.repo.SalesTotals(ctx, businessID, registerID)
	if err != nil {
		return Summary{}, fmt.Errorf("cash: sales totals: %w", err)
	}
	summary := Summary{
		Register:       register,
		Balance:        Balance(movements),
		TotalIngresos:  decimal.Zero,
		TotalEgresos:   decimal.Zero,
		SalesTotals:    totals,
		ExpectedAmount: ExpectedAmount(register.OpeningAmount, totals),
		MovementCount:  len(movements),
	}
	for _, m := range movements {
		switch m.Type {
		case MovementIngreso:
			summary.TotalIngresos = summary.TotalIngresos.Add(m.Amount)
		case MovementEgreso:
			summary.TotalEgresos = summary.TotalEgresos.Add(m.Amount)
		}
	}
	return summary, nil
}

func (s *Service) getRegister(ctx context.Context, businessID, registerID uuid.UUID) (Register, error) {
	register, err := s.repo.GetRegister(ctx, businessID, registerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Register{}, shared.NotFound("caja no encontrada")
		}
		return Register{}, fmt.Errorf("cash: get register: %w", err)
	}
	return register, nil
}

func (s *Service) acquire(ctx context.Context, actor shared.Actor) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	release, err := s.locker.Acquire(ctx, shared.RegisterLockKey(actor.BusinessID, actor.UserID), s.lockTTL)
	if errors.Is(err, shared.ErrLockNotObtained) {
		return nil, shared.Conflict("ya hay una operación de caja en curso para este usuario")
	}
	if err != nil {
		s.logger.Warn("register lock unavailable, continuing without lock", slog.Any("error", err))
		return noop, nil
	}
	return release, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		BusinessID: actor.BusinessID,
		ActorID:    actor.UserID,
		Action:     action,
		Entity:     "cash_register",
		EntityID:   id.String(),
		Meta:       meta,
	}); err != nil {
		s.logger.Warn("audit cash", slog.String("action", action), slog.Any("error", err))
	}
}

func errRegisterAlreadyOpen() error {
	return shared.Conflict("ya tiene una caja abierta")
}
