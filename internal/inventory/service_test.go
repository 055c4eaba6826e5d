package inventory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/store/memory"
)

type serviceFixture struct {
	store   *memory.Store
	audit   *shared.MemoryAuditLogger
	service *inventory.Service
	actor   shared.Actor
	product inventory.Product
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	store := memory.New()
	audit := shared.NewMemoryAuditLogger()
	actor := shared.Actor{BusinessID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleStock}
	product := store.AddProduct(inventory.Product{BusinessID: actor.BusinessID, Name: "Aceite", Stock: 4, MinStock: 5})
	service := inventory.NewService(store.Inventory(), inventory.NewLedger(inventory.OversellClamp, nil), audit, rbac.NewDefaultPolicy(), nil)
	return serviceFixture{store: store, audit: audit, service: service, actor: actor, product: product}
}

func TestReceiveStockRecordsMovementAndAudit(t *testing.T) {
	f := newServiceFixture(t)

	movement, err := f.service.ReceiveStock(context.Background(), f.actor, inventory.ReceiptInput{
		ProductID: f.product.ID,
		Quantity:  6,
		Reference: "remito-99",
	})
	require.NoError(t, err)
	require.Equal(t, inventory.MovementEntrada, movement.Type)
	require.Equal(t, 10, movement.NewStock)
	require.Equal(t, "Ingreso de mercadería", movement.Reason)

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "inventory:ENTRADA", entries[0].Action)
	require.Equal(t, f.product.ID.String(), entries[0].EntityID)
}

func TestReceiveStockRequiresPermission(t *testing.T) {
	f := newServiceFixture(t)
	cashier := f.actor
	cashier.Role = rbac.RoleCashier

	_, err := f.service.ReceiveStock(context.Background(), cashier, inventory.ReceiptInput{ProductID: f.product.ID, Quantity: 1})
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestAdjustRequiresReason(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Adjust(context.Background(), f.actor, inventory.AdjustmentInput{ProductID: f.product.ID, NewStock: 2})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	movement, err := f.service.Adjust(context.Background(), f.actor, inventory.AdjustmentInput{
		ProductID: f.product.ID,
		NewStock:  2,
		Reason:    "Rotura",
	})
	require.NoError(t, err)
	require.Equal(t, inventory.MovementAjuste, movement.Type)
	require.Equal(t, 2, movement.NewStock)
}

func TestStockCardAndLowStock(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.ReceiveStock(ctx, f.actor, inventory.ReceiptInput{ProductID: f.product.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.service.Adjust(ctx, f.actor, inventory.AdjustmentInput{ProductID: f.product.ID, NewStock: 9, Reason: "Conteo"})
	require.NoError(t, err)

	card, err := f.service.StockCard(ctx, f.actor, inventory.MovementFilter{ProductID: f.product.ID})
	require.NoError(t, err)
	require.Len(t, card, 2)
	require.Equal(t, inventory.MovementEntrada, card[0].Type)
	require.Equal(t, inventory.MovementAjuste, card[1].Type)

	low, err := f.service.LowStock(ctx, f.actor)
	require.NoError(t, err)
	require.Empty(t, low)

	_, err = f.service.Adjust(ctx, f.actor, inventory.AdjustmentInput{ProductID: f.product.ID, NewStock: 1, Reason: "Conteo"})
	require.NoError(t, err)
	low, err = f.service.LowStock(ctx, f.actor)
	require.NoError(t, err)
	require.Len(t, low, 1)
}

func TestStockCardValidatesFilter(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.StockCard(context.Background(), f.actor, inventory.MovementFilter{})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = f.service.StockCard(context.Background(), f.actor, inventory.MovementFilter{ProductID: uuid.New()})
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}
