package credit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles client payments and credit settings.
type Service struct {
	repo     RepositoryPort
	ledger   *Ledger
	cash     *cash.Ledger
	audit    AuditPort
	authz    shared.Authorizer
	notifier shared.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. audit and notifier may be nil.
func NewService(repo RepositoryPort, ledger *Ledger, cashLedger *cash.Ledger, audit AuditPort, authz shared.Authorizer, notifier shared.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		ledger:   ledger,
		cash:     cashLedger,
		audit:    audit,
		authz:    authz,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterPayment decrements the client's debt and books the money into the
// caller's open register, atomically.
func (s *Service) RegisterPayment(ctx context.Context, actor shared.Actor, input PaymentInput) (PaymentResult, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermClientPayment); err != nil {
		return PaymentResult{}, err
	}
	if input.ClientID == uuid.Nil {
		return PaymentResult{}, shared.Validation("cliente requerido", shared.FieldError{Field: "clientId", Message: "campo obligatorio"})
	}
	if !input.Amount.IsPositive() {
		return PaymentResult{}, shared.Validation("el monto debe ser mayor a 0", shared.FieldError{Field: "amount", Message: "debe ser mayor a 0"})
	}
	method := input.PaymentMethod
	if method == "" {
		method = cash.PaymentEfectivo
	}
	if !method.Settles() {
		return PaymentResult{}, shared.Validation("medio de pago inválido para un cobro", shared.FieldError{Field: "paymentMethod", Message: string(method)})
	}

	var result PaymentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx PaymentTxRepository) error {
		register, err := cash.RequireOpen(ctx, tx, actor)
		if err != nil {
			return err
		}
		amount := shared.RoundMoney(input.Amount)
		current, err := s.ledger.Lock(ctx, tx, actor.BusinessID, input.ClientID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(current.CurrentDebt) {
			return shared.Conflict("el cobro supera la deuda del cliente",
				shared.FieldError{Field: "amount", Message: "deuda actual: " + shared.FormatMoney(current.CurrentDebt)})
		}
		client, err := s.ledger.ApplyDebtDelta(ctx, tx, actor.BusinessID, input.ClientID, amount.Neg())
		if err != nil {
			return err
		}
		payment := Payment{
			ID:            uuid.New(),
			BusinessID:    actor.BusinessID,
			ClientID:      client.ID,
			Amount:        amount,
			PaymentMethod: method,
			RegisterID:    &register.ID,
			Notes:         strings.TrimSpace(input.Notes),
			CreatedBy:     actor.UserID,
			CreatedAt:     s.now(),
		}
		if err := tx.InsertClientPayment(ctx, payment); err != nil {
			return fmt.Errorf("credit: insert payment: %w", err)
		}
		movement, err := s.cash.Append(ctx, tx, cash.MovementInput{
			BusinessID:    actor.BusinessID,
			RegisterID:    register.ID,
			ActorID:       actor.UserID,
			Type:          cash.MovementIngreso,
			Concept:       cash.ConceptCobroCliente,
			Amount:        payment.Amount,
			PaymentMethod: method,
			Reference:     payment.ID.String(),
			Description:   fmt.Sprintf("Cobro cuenta corriente: %s", client.Name),
		})
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: payment, Client: client, Movement: movement}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	s.record(ctx, actor, "credit:payment", result.Client.ID, map[string]any{
		"payment_id":   result.Payment.ID.String(),
		"amount":       result.Payment.Amount.String(),
		"current_debt": result.Client.CurrentDebt.String(),
	})
	if s.notifier != nil {
		receipt := shared.PaymentReceipt{
			BusinessID:    actor.BusinessID,
			ClientID:      result.Client.ID,
			PaymentID:     result.Payment.ID,
			Amount:        result.Payment.Amount,
			RemainingDebt: result.Client.CurrentDebt,
			CreatedAt:     result.Payment.CreatedAt,
		}
		shared.NotifyAfterCommit(ctx, s.logger, "client_payment", func(ctx context.Context) error {
			return s.notifier.ClientPaymentReceived(ctx, receipt)
		})
	}
	return result, nil
}

// UpdateCreditLimit changes the limit and recomputes the client's status.
func (s *Service) UpdateCreditLimit(ctx context.Context, actor shared.Actor, input LimitInput) (Client, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermClientCredit); err != nil {
		return Client{}, err
	}
	var client Client
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx PaymentTxRepository) error {
		var err error
		client, err = s.ledger.SetLimit(ctx, tx, actor.BusinessID, input.ClientID, input.CreditLimit, input.HasCreditAccount)
		return err
	})
	if err != nil {
		return Client{}, err
	}
	s.record(ctx, actor, "credit:limit", client.ID, map[string]any{
		"credit_limit": client.CreditLimit.String(),
		"status":       string(client.Status),
	})
	return client, nil
}

// GetClient returns a tenant client with its credit state.
func (s *Service) GetClient(ctx context.Context, actor shared.Actor, clientID uuid.UUID) (Client, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermClientView); err != nil {
		return Client{}, err
	}
	client, err := s.repo.GetClient(ctx, actor.BusinessID, clientID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Client{}, shared.NotFound("cliente no encontrado")
		}
		return Client{}, fmt.Errorf("credit: get client: %w", err)
	}
	return client, nil
}

// ListPayments returns a client's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, actor shared.Actor, clientID uuid.UUID) ([]Payment, error) {
	if _, err := s.GetClient(ctx, actor, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListClientPayments(ctx, actor.BusinessID, clientID)
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, clientID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		BusinessID: actor.BusinessID,
		ActorID:    actor.UserID,
		Action:     action,
		Entity:     "client",
		EntityID:   clientID.String(),
		Meta:       meta,
	}); err != nil {
		s.logger.Warn("audit credit", slog.String("action", action), slog.Any("error", err))
	}
}
