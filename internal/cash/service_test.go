package cash_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/store/memory"
)

type recordingMetrics struct {
	differences []float64
}

func (m *recordingMetrics) RegisterClosed(difference float64) {
	m.differences = append(m.differences, difference)
}

type registerFixture struct {
	store   *memory.Store
	audit   *shared.MemoryAuditLogger
	metrics *recordingMetrics
	service *cash.Service
	actor   shared.Actor
}

func newRegisterFixture(t *testing.T, locker shared.Locker) registerFixture {
	t.Helper()
	store := memory.New()
	audit := shared.NewMemoryAuditLogger()
	metrics := &recordingMetrics{}
	service := cash.NewService(store.Cash(), cash.NewLedger(), audit, rbac.NewDefaultPolicy(), locker, metrics, nil, cash.ServiceConfig{})
	actor := shared.Actor{BusinessID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleCashier}
	return registerFixture{store: store, audit: audit, metrics: metrics, service: service, actor: actor}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestOpenCreatesRegisterWithAperturaMovement(t *testing.T) {
	f := newRegisterFixture(t, nil)
	ctx := context.Background()

	register, err := f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("100"), Notes: " turno mañana "})
	require.NoError(t, err)
	require.Equal(t, cash.RegisterOpen, register.Status)
	require.Equal(t, "turno mañana", register.OpeningNotes)

	movements := f.store.CashMovements(register.ID.String())
	require.Len(t, movements, 1)
	require.Equal(t, cash.MovementApertura, movements[0].Type)
	require.Equal(t, "100", movements[0].Amount.String())

	current, err := f.service.Current(ctx, f.actor)
	require.NoError(t, err)
	require.Equal(t, register.ID, current.ID)
}

func TestOpenWithZeroAmountSkipsMovement(t *testing.T) {
	f := newRegisterFixture(t, nil)

	register, err := f.service.Open(context.Background(), f.actor, cash.OpenInput{OpeningAmount: decimal.Zero})
	require.NoError(t, err)
	require.Empty(t, f.store.CashMovements(register.ID.String()))
}

func TestOpenRejectsNegativeAndDuplicate(t *testing.T) {
	f := newRegisterFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("-1")})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("50")})
	require.NoError(t, err)
	_, err = f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("50")})
	require.Equal(t, shared.KindConflict, shared.KindOf(err))

	counts := f.store.CountRegisters(f.actor.BusinessID, f.actor.UserID)
	require.Equal(t, 1, counts[cash.RegisterOpen])
}

func TestConcurrentOpenKeepsOneOpenRegister(t *testing.T) {
	f := newRegisterFixture(t, nil)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		opened    []cash.Register
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			register, err := f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("50")})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if shared.KindOf(err) == shared.KindConflict {
					conflicts++
				}
				return
			}
			opened = append(opened, register)
		}()
	}
	wg.Wait()

	require.Len(t, opened, 1)
	require.Equal(t, attempts-1, conflicts)
	require.Equal(t, 1, f.store.CountRegisters(f.actor.BusinessID, f.actor.UserID)[cash.RegisterOpen])
	require.Len(t, f.store.CashMovements(opened[0].ID.String()), 1)
}

func TestCloseComputesDifference(t *testing.T) {
	f := newRegisterFixture(t, nil)
	ctx := context.Background()

	register, err := f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("100")})
	require.NoError(t, err)

	closed, err := f.service.Close(ctx, f.actor, cash.CloseInput{CountedAmount: dec("90"), Notes: "faltante"})
	require.NoError(t, err)
	require.Equal(t, cash.RegisterClosed, closed.Status)
	require.Equal(t, "100", closed.ExpectedAmount.String())
	require.Equal(t, "-10", closed.Difference.String())
	require.NotNil(t, closed.ClosedAt)
	require.Equal(t, []float64{-10}, f.metrics.differences)

	movements := f.store.CashMovements(register.ID.String())
	require.Len(t, movements, 2)
	require.Equal(t, cash.MovementCierre, movements[1].Type)

	// CLOSED is terminal and a new session can be opened.
	_, err = f.service.Close(ctx, f.actor, cash.CloseInput{CountedAmount: dec("90")})
	require.Equal(t, shared.KindConflict, shared.KindOf(err))
	_, err = f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("10")})
	require.NoError(t, err)
	counts := f.store.CountRegisters(f.actor.BusinessID, f.actor.UserID)
	require.Equal(t, 1, counts[cash.RegisterOpen])
	require.Equal(t, 1, counts[cash.RegisterClosed])
}

func TestCloseWithZeroCountSkipsCierre(t *testing.T) {
	f := newRegisterFixture(t, nil)
	ctx := context.Background()

	register, err := f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: decimal.Zero})
	require.NoError(t, err)
	closed, err := f.service.Close(ctx, f.actor, cash.CloseInput{CountedAmount: decimal.Zero})
	require.NoError(t, err)
	require.True(t, closed.Difference.IsZero())
	require.Empty(t, f.store.CashMovements(register.ID.String()))
}

func TestRecordMovementRequiresOpenRegister(t *testing.T) {
	f := newRegisterFixture(t, nil)
	ctx := context.Background()
	input := cash.ManualMovementInput{Type: cash.MovementEgreso, Amount: dec("15"), Description: "Pago flete"}

	_, err := f.service.RecordMovement(ctx, f.actor, input)
	require.Equal(t, shared.KindConflict, shared.KindOf(err))

	register, err := f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("100")})
	require.NoError(t, err)

	movement, err := f.service.RecordMovement(ctx, f.actor, input)
	require.NoError(t, err)
	require.Equal(t, cash.ConceptManual, movement.Concept)
	require.Equal(t, cash.PaymentEfectivo, movement.PaymentMethod)

	_, err = f.service.RecordMovement(ctx, f.actor, cash.ManualMovementInput{Type: cash.MovementApertura, Amount: dec("1"), Description: "x"})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
	_, err = f.service.RecordMovement(ctx, f.actor, cash.ManualMovementInput{Type: cash.MovementIngreso, Amount: dec("0"), Description: "x"})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
	_, err = f.service.RecordMovement(ctx, f.actor, cash.ManualMovementInput{Type: cash.MovementIngreso, Amount: dec("5"), PaymentMethod: cash.PaymentCuentaCorriente, Description: "x"})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	summary, err := f.service.Summary(ctx, f.actor, register.ID)
	require.NoError(t, err)
	require.Equal(t, "85", summary.Balance.String())
	require.Equal(t, "15", summary.TotalEgresos.String())
	require.Equal(t, 2, summary.MovementCount)
	require.Equal(t, "100", summary.ExpectedAmount.String())

	page, pagination, err := f.service.Movements(ctx, f.actor, register.ID, shared.PageRequest{Page: 1, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, 2, pagination.Total)
}

func TestSummaryUnknownRegister(t *testing.T) {
	f := newRegisterFixture(t, nil)
	_, err := f.service.Summary(context.Background(), f.actor, uuid.New())
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestStockRoleCannotOperateRegister(t *testing.T) {
	f := newRegisterFixture(t, nil)
	actor := f.actor
	actor.Role = rbac.RoleStock
	_, err := f.service.Open(context.Background(), actor, cash.OpenInput{OpeningAmount: dec("10")})
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestOpenHonoursRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	locker := cache.NewLocker(rdb, nil)
	f := newRegisterFixture(t, locker)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, shared.RegisterLockKey(f.actor.BusinessID, f.actor.UserID), time.Minute)
	require.NoError(t, err)

	_, err = f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("10")})
	require.Equal(t, shared.KindConflict, shared.KindOf(err))

	release()
	_, err = f.service.Open(ctx, f.actor, cash.OpenInput{OpeningAmount: dec("10")})
	require.NoError(t, err)
}

func TestOpenContinuesWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	f := newRegisterFixture(t, cache.NewLocker(rdb, nil))
	mr.Close()

	_, err := f.service.Open(context.Background(), f.actor, cash.OpenInput{OpeningAmount: dec("10")})
	require.NoError(t, err)
}
