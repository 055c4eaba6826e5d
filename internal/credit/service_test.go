package credit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/store/memory"
)

type fakeNotifier struct {
	payments []shared.PaymentReceipt
	err      error
}

func (n *fakeNotifier) SaleCompleted(context.Context, shared.SaleReceipt) error { return n.err }

func (n *fakeNotifier) ClientPaymentReceived(_ context.Context, receipt shared.PaymentReceipt) error {
	n.payments = append(n.payments, receipt)
	return n.err
}

type creditFixture struct {
	store    *memory.Store
	notifier *fakeNotifier
	registry *cash.Service
	service  *credit.Service
	actor    shared.Actor
	client   credit.Client
}

func newCreditFixture(t *testing.T, debt, limit string) creditFixture {
	t.Helper()
	store := memory.New()
	policy := rbac.NewDefaultPolicy()
	cashLedger := cash.NewLedger()
	notifier := &fakeNotifier{}
	actor := shared.Actor{BusinessID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleManager}
	client := store.AddClient(credit.Client{
		BusinessID:       actor.BusinessID,
		Name:             "Ana Gómez",
		HasCreditAccount: true,
		CreditLimit:      decimal.RequireFromString(limit),
		CurrentDebt:      decimal.RequireFromString(debt),
	})
	return creditFixture{
		store:    store,
		notifier: notifier,
		registry: cash.NewService(store.Cash(), cashLedger, nil, policy, nil, nil, nil, cash.ServiceConfig{}),
		service:  credit.NewService(store.Credit(), credit.NewLedger(), cashLedger, nil, policy, notifier, nil),
		actor:    actor,
		client:   client,
	}
}

func (f creditFixture) openRegister(t *testing.T) cash.Register {
	t.Helper()
	register, err := f.registry.Open(context.Background(), f.actor, cash.OpenInput{OpeningAmount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	return register
}

func TestRegisterPaymentReducesDebtAndBooksCash(t *testing.T) {
	f := newCreditFixture(t, "1200", "1000")
	require.Equal(t, credit.StatusDelinquent, f.client.Status)
	register := f.openRegister(t)

	result, err := f.service.RegisterPayment(context.Background(), f.actor, credit.PaymentInput{
		ClientID:      f.client.ID,
		Amount:        decimal.NewFromInt(500),
		PaymentMethod: cash.PaymentTransferencia,
	})
	require.NoError(t, err)
	require.Equal(t, "700", result.Client.CurrentDebt.String())
	require.Equal(t, credit.StatusActive, result.Client.Status)
	require.Equal(t, cash.ConceptCobroCliente, result.Movement.Concept)
	require.Equal(t, register.ID, result.Movement.RegisterID)
	require.Equal(t, &register.ID, result.Payment.RegisterID)

	movements := f.store.CashMovements(result.Payment.ID.String())
	require.Len(t, movements, 1)
	require.Equal(t, cash.MovementIngreso, movements[0].Type)

	require.Len(t, f.notifier.payments, 1)
	require.Equal(t, "700", f.notifier.payments[0].RemainingDebt.String())

	payments, err := f.service.ListPayments(context.Background(), f.actor, f.client.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
}

func TestRegisterPaymentRejectsMoreThanDebt(t *testing.T) {
	f := newCreditFixture(t, "200", "1000")
	register := f.openRegister(t)
	ctx := context.Background()

	_, err := f.service.RegisterPayment(ctx, f.actor, credit.PaymentInput{
		ClientID: f.client.ID,
		Amount:   decimal.NewFromInt(350),
	})
	require.Equal(t, shared.KindConflict, shared.KindOf(err))
	details := shared.AsError(err).Details
	require.Len(t, details, 1)
	require.Equal(t, "amount", details[0].Field)
	require.Contains(t, details[0].Message, "200")
	require.Len(t, f.store.CashMovements(register.ID.String()), 1)
	require.Empty(t, f.notifier.payments)

	result, err := f.service.RegisterPayment(ctx, f.actor, credit.PaymentInput{
		ClientID: f.client.ID,
		Amount:   decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	require.True(t, result.Client.CurrentDebt.IsZero())
	require.Equal(t, cash.PaymentEfectivo, result.Payment.PaymentMethod)
	require.Equal(t, "200", result.Movement.Amount.String())
}

func TestRegisterPaymentWithoutOpenRegisterRollsBack(t *testing.T) {
	f := newCreditFixture(t, "200", "1000")

	_, err := f.service.RegisterPayment(context.Background(), f.actor, credit.PaymentInput{
		ClientID: f.client.ID,
		Amount:   decimal.NewFromInt(50),
	})
	require.Equal(t, shared.KindConflict, shared.KindOf(err))

	client, err := f.service.GetClient(context.Background(), f.actor, f.client.ID)
	require.NoError(t, err)
	require.Equal(t, "200", client.CurrentDebt.String())
	require.Empty(t, f.notifier.payments)
}

func TestRegisterPaymentValidation(t *testing.T) {
	f := newCreditFixture(t, "200", "1000")
	f.openRegister(t)
	ctx := context.Background()

	_, err := f.service.RegisterPayment(ctx, f.actor, credit.PaymentInput{ClientID: f.client.ID, Amount: decimal.Zero})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = f.service.RegisterPayment(ctx, f.actor, credit.PaymentInput{ClientID: f.client.ID, Amount: decimal.NewFromInt(5), PaymentMethod: cash.PaymentCuentaCorriente})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = f.service.RegisterPayment(ctx, f.actor, credit.PaymentInput{ClientID: uuid.New(), Amount: decimal.NewFromInt(5)})
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestNotificationFailureDoesNotFailPayment(t *testing.T) {
	f := newCreditFixture(t, "200", "1000")
	f.notifier.err = errors.New("smtp down")
	f.openRegister(t)

	result, err := f.service.RegisterPayment(context.Background(), f.actor, credit.PaymentInput{
		ClientID: f.client.ID,
		Amount:   decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	require.Equal(t, "180", result.Client.CurrentDebt.String())
}

func TestUpdateCreditLimitRecomputesStatus(t *testing.T) {
	f := newCreditFixture(t, "800", "1000")
	ctx := context.Background()

	client, err := f.service.UpdateCreditLimit(ctx, f.actor, credit.LimitInput{ClientID: f.client.ID, CreditLimit: decimal.NewFromInt(500)})
	require.NoError(t, err)
	require.Equal(t, credit.StatusDelinquent, client.Status)
	require.True(t, client.HasCreditAccount)

	disabled := false
	client, err = f.service.UpdateCreditLimit(ctx, f.actor, credit.LimitInput{ClientID: f.client.ID, CreditLimit: decimal.NewFromInt(900), HasCreditAccount: &disabled})
	require.NoError(t, err)
	require.Equal(t, credit.StatusActive, client.Status)
	require.False(t, client.HasCreditAccount)

	_, err = f.service.UpdateCreditLimit(ctx, f.actor, credit.LimitInput{ClientID: f.client.ID, CreditLimit: decimal.NewFromInt(-1)})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestCashierCannotChangeCreditLimit(t *testing.T) {
	f := newCreditFixture(t, "0", "1000")
	cashier := f.actor
	cashier.Role = rbac.RoleCashier

	_, err := f.service.UpdateCreditLimit(context.Background(), cashier, credit.LimitInput{ClientID: f.client.ID, CreditLimit: decimal.NewFromInt(5000)})
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))
}
