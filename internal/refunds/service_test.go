package refunds_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/refunds"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/store/memory"
)

type countingMetrics struct {
	created map[string]int
}

func (m *countingMetrics) RefundCreated(refundType string, _ float64) { m.created[refundType]++ }

type RefundEngineSuite struct {
	suite.Suite

	ctx       context.Context
	store     *memory.Store
	audit     *shared.MemoryAuditLogger
	metrics   *countingMetrics
	registers *cash.Service
	sales     *sales.Service
	service   *refunds.Service
	actor     shared.Actor
	product   inventory.Product
}

func TestRefundEngineSuite(t *testing.T) {
	suite.Run(t, new(RefundEngineSuite))
}

func (s *RefundEngineSuite) SetupTest() {
	s.build(refunds.Config{})
}

func (s *RefundEngineSuite) build(cfg refunds.Config) {
	s.ctx = context.Background()
	s.store = memory.New()
	s.audit = shared.NewMemoryAuditLogger()
	s.metrics = &countingMetrics{created: map[string]int{}}
	s.actor = shared.Actor{BusinessID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleManager}

	authz := rbac.NewDefaultPolicy()
	inv := inventory.NewLedger(inventory.OversellClamp, nil)
	cashLedger := cash.NewLedger()
	creditLedger := credit.NewLedger()
	s.registers = cash.NewService(s.store.Cash(), cashLedger, nil, authz, nil, nil, nil, cash.ServiceConfig{})
	s.sales = sales.NewService(s.store.Sales(), inv, cashLedger, creditLedger, nil, authz, nil, nil, nil, sales.Config{})
	s.service = refunds.NewService(s.store.Refunds(), inv, cashLedger, creditLedger, s.audit, authz, s.metrics, nil, cfg)
	s.product = s.store.AddProduct(inventory.Product{
		BusinessID: s.actor.BusinessID,
		Name:       "Producto P",
		Stock:      20,
		Price:      decimal.NewFromInt(100),
	})
}

func (s *RefundEngineSuite) openFor(actor shared.Actor) cash.Register {
	register, err := s.registers.Open(s.ctx, actor, cash.OpenInput{})
	s.Require().NoError(err)
	return register
}

func (s *RefundEngineSuite) sell(qty int, method cash.PaymentMethod, payments ...sales.PaymentInput) sales.Sale {
	result, err := s.sales.CreateSale(s.ctx, s.actor, sales.CreateInput{
		Items:         []sales.ItemInput{{ProductID: s.product.ID, Quantity: qty, UnitPrice: decimal.NewFromInt(100)}},
		PaymentMethod: method,
		Total:         decimal.NewFromInt(int64(qty) * 100),
		Payments:      payments,
	})
	s.Require().NoError(err)
	return result.Sale
}

func (s *RefundEngineSuite) refund(sale sales.Sale, qty int, amount int64, restock bool) (refunds.Refund, error) {
	return s.service.CreateRefund(s.ctx, s.actor, refunds.CreateInput{
		SaleID:       sale.ID,
		Type:         refunds.TypeParcial,
		Reason:       "producto fallado de fábrica",
		Amount:       decimal.NewFromInt(amount),
		Items:        []refunds.ItemInput{{SaleItemID: sale.Items[0].ID, Quantity: qty}},
		RestockItems: restock,
	})
}

func (s *RefundEngineSuite) saleStatus(id uuid.UUID) sales.Status {
	sale, err := s.sales.GetSale(s.ctx, s.actor, id)
	s.Require().NoError(err)
	return sale.Status
}

func (s *RefundEngineSuite) stock() int {
	product, err := s.store.Inventory().GetProduct(s.ctx, s.actor.BusinessID, s.product.ID)
	s.Require().NoError(err)
	return product.Stock
}

func (s *RefundEngineSuite) assertKind(kind shared.Kind, err error) {
	s.Require().Error(err)
	s.Require().Equal(kind, shared.KindOf(err), err.Error())
}

func (s *RefundEngineSuite) TestQuantityCapAcrossRefunds() {
	register := s.openFor(s.actor)
	sale := s.sell(5, cash.PaymentEfectivo)
	s.Equal(15, s.stock())

	first, err := s.refund(sale, 3, 300, true)
	s.Require().NoError(err)
	s.Equal(&register.ID, first.RegisterID)
	s.Equal(cash.PaymentEfectivo, first.PaymentMethod)
	s.Equal("100", first.Items[0].UnitPrice.String())
	s.Equal("300", first.Items[0].Subtotal.String())
	s.Equal(18, s.stock())
	s.Equal(sales.StatusParcialmenteReembolsado, s.saleStatus(sale.ID))

	payout := s.store.CashMovements(first.ID.String())
	s.Require().Len(payout, 1)
	s.Equal(cash.MovementEgreso, payout[0].Type)
	s.Equal(cash.ConceptReembolso, payout[0].Concept)
	s.Equal("Reembolso venta #1", payout[0].Description)

	_, err = s.refund(sale, 3, 100, true)
	s.assertKind(shared.KindConflict, err)
	details := shared.AsError(err).Details
	s.Require().Len(details, 1)
	s.Equal("items[0].quantity", details[0].Field)
	s.Equal("máximo reembolsable: 2", details[0].Message)
	s.Equal(18, s.stock())

	last, err := s.refund(sale, 2, 200, true)
	s.Require().NoError(err)
	s.Equal(20, s.stock())
	s.Equal(sales.StatusReembolsado, s.saleStatus(sale.ID))

	_, err = s.refund(sale, 1, 1, false)
	s.assertKind(shared.KindConflict, err)

	list, err := s.service.ListRefunds(s.ctx, s.actor, sale.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID)
	s.Equal(last.ID, list[1].ID)
	s.Equal(2, s.metrics.created["PARCIAL"])
	s.Len(s.audit.Entries(), 2)
}

func (s *RefundEngineSuite) TestAmountCannotExceedRemainder() {
	s.openFor(s.actor)
	sale := s.sell(5, cash.PaymentEfectivo)

	_, err := s.refund(sale, 1, 600, false)
	s.assertKind(shared.KindConflict, err)
	details := shared.AsError(err).Details
	s.Require().Len(details, 1)
	s.Equal("refundAmount", details[0].Field)
	s.Contains(details[0].Message, "máximo reembolsable")

	_, err = s.refund(sale, 1, 450, false)
	s.Require().NoError(err)
	_, err = s.refund(sale, 1, 60, false)
	s.assertKind(shared.KindConflict, err)

	_, err = s.refund(sale, 1, 50, false)
	s.Require().NoError(err)
	s.Equal(sales.StatusReembolsado, s.saleStatus(sale.ID))
}

func (s *RefundEngineSuite) TestStrictAmountMatchesItemSubtotals() {
	s.build(refunds.Config{StrictAmount: true})
	s.openFor(s.actor)
	sale := s.sell(3, cash.PaymentEfectivo)

	input := refunds.CreateInput{
		SaleID: sale.ID,
		Type:   refunds.TypeParcial,
		Reason: "cliente devolvió dos unidades",
		Amount: decimal.NewFromInt(250),
		Items:  []refunds.ItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 2, Subtotal: decimal.NewFromInt(200)}},
	}
	_, err := s.service.CreateRefund(s.ctx, s.actor, input)
	s.assertKind(shared.KindValidation, err)

	input.Amount = decimal.NewFromInt(200)
	refund, err := s.service.CreateRefund(s.ctx, s.actor, input)
	s.Require().NoError(err)
	s.Equal("200", refund.Amount.String())
}

func (s *RefundEngineSuite) TestStrictAmountDefaultsSubtotalFromSalePrice() {
	s.build(refunds.Config{StrictAmount: true})
	s.openFor(s.actor)
	sale := s.sell(3, cash.PaymentEfectivo)

	_, err := s.refund(sale, 2, 150, false)
	s.assertKind(shared.KindValidation, err)

	refund, err := s.refund(sale, 2, 200, false)
	s.Require().NoError(err)
	s.Require().Len(refund.Items, 1)
	s.Equal("200", refund.Items[0].Subtotal.String())
	s.Equal(sales.StatusParcialmenteReembolsado, s.saleStatus(sale.ID))
}

func (s *RefundEngineSuite) TestDecoupledAmountIsAccepted() {
	s.openFor(s.actor)
	sale := s.sell(3, cash.PaymentEfectivo)

	refund, err := s.service.CreateRefund(s.ctx, s.actor, refunds.CreateInput{
		SaleID: sale.ID,
		Type:   refunds.TypeTotal,
		Reason: "devolución con cargo de reposición",
		Amount: decimal.NewFromInt(270),
		Items:  []refunds.ItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 3}},
	})
	s.Require().NoError(err)
	s.Equal("270", refund.Amount.String())
	s.Equal(17, s.stock())
	s.Equal(sales.StatusParcialmenteReembolsado, s.saleStatus(sale.ID))
}

func (s *RefundEngineSuite) TestCanceledSaleCannotBeRefunded() {
	s.openFor(s.actor)
	sale := s.sell(2, cash.PaymentEfectivo)
	_, err := s.sales.CancelSale(s.ctx, s.actor, sales.CancelInput{SaleID: sale.ID, Reason: "venta cargada dos veces"})
	s.Require().NoError(err)

	_, err = s.refund(sale, 1, 100, true)
	s.assertKind(shared.KindConflict, err)
	s.Equal(20, s.stock())

	balance, err := s.service.Balance(s.ctx, s.actor, sale.ID)
	s.Require().NoError(err)
	s.True(balance.RefundableAmount.IsZero())
	s.Equal(0, balance.Items[0].Refundable)
}

func (s *RefundEngineSuite) TestRefundedSaleCannotBeCanceled() {
	s.openFor(s.actor)
	sale := s.sell(2, cash.PaymentEfectivo)
	_, err := s.refund(sale, 1, 100, true)
	s.Require().NoError(err)

	_, err = s.sales.CancelSale(s.ctx, s.actor, sales.CancelInput{SaleID: sale.ID, Reason: "intento de anulación tardía"})
	s.assertKind(shared.KindConflict, err)
}

func (s *RefundEngineSuite) TestCreditSaleRefundLowersDebt() {
	client := s.store.AddClient(credit.Client{
		BusinessID:       s.actor.BusinessID,
		Name:             "Cliente CC",
		HasCreditAccount: true,
		CreditLimit:      decimal.NewFromInt(500),
	})
	result, err := s.sales.CreateSale(s.ctx, s.actor, sales.CreateInput{
		Items:         []sales.ItemInput{{ProductID: s.product.ID, Quantity: 10, UnitPrice: decimal.NewFromInt(100)}},
		PaymentMethod: cash.PaymentCuentaCorriente,
		ClientID:      &client.ID,
		Total:         decimal.NewFromInt(1000),
	})
	s.Require().NoError(err)

	refund, err := s.refund(result.Sale, 6, 600, false)
	s.Require().NoError(err)
	s.Nil(refund.RegisterID)
	s.Equal(cash.PaymentCuentaCorriente, refund.PaymentMethod)
	s.Empty(s.store.CashMovements(refund.ID.String()))

	updated, err := s.store.Credit().GetClient(s.ctx, s.actor.BusinessID, client.ID)
	s.Require().NoError(err)
	s.Equal("400", updated.CurrentDebt.String())
	s.Equal(credit.StatusActive, updated.Status)
}

func (s *RefundEngineSuite) TestPayoutRegisterResolution() {
	original := s.openFor(s.actor)
	sale := s.sell(4, cash.PaymentTarjetaDebito)

	colleague := shared.Actor{BusinessID: s.actor.BusinessID, UserID: uuid.New(), Role: rbac.RoleAdmin}
	refund, err := s.service.CreateRefund(s.ctx, colleague, refunds.CreateInput{
		SaleID: sale.ID,
		Type:   refunds.TypeParcial,
		Reason: "tarjeta cobrada de más",
		Amount: decimal.NewFromInt(100),
		Items:  []refunds.ItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
	})
	s.Require().NoError(err)
	s.Equal(&original.ID, refund.RegisterID)
	s.Equal(cash.PaymentTarjetaDebito, refund.PaymentMethod)

	_, err = s.registers.Close(s.ctx, s.actor, cash.CloseInput{})
	s.Require().NoError(err)
	_, err = s.refund(sale, 1, 100, false)
	s.assertKind(shared.KindConflict, err)

	own := s.openFor(colleague)
	refund, err = s.service.CreateRefund(s.ctx, colleague, refunds.CreateInput{
		SaleID: sale.ID,
		Type:   refunds.TypeParcial,
		Reason: "tarjeta cobrada de más",
		Amount: decimal.NewFromInt(100),
		Items:  []refunds.ItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
	})
	s.Require().NoError(err)
	s.Equal(&own.ID, refund.RegisterID)
}

func (s *RefundEngineSuite) TestMixedSaleIsPaidBackInCash() {
	s.openFor(s.actor)
	sale := s.sell(2, cash.PaymentMixto,
		sales.PaymentInput{Method: cash.PaymentEfectivo, Amount: decimal.NewFromInt(50)},
		sales.PaymentInput{Method: cash.PaymentMercadoPago, Amount: decimal.NewFromInt(150)},
	)

	refund, err := s.refund(sale, 1, 100, true)
	s.Require().NoError(err)
	s.Equal(cash.PaymentEfectivo, refund.PaymentMethod)
	movements := s.store.CashMovements(refund.ID.String())
	s.Require().Len(movements, 1)
	s.Equal(cash.PaymentEfectivo, movements[0].PaymentMethod)
}

func (s *RefundEngineSuite) TestRejectsInvalidRequests() {
	s.openFor(s.actor)
	sale := s.sell(2, cash.PaymentEfectivo)

	_, err := s.service.CreateRefund(s.ctx, s.actor, refunds.CreateInput{
		SaleID: sale.ID,
		Type:   refunds.TypeParcial,
		Reason: "breve",
		Amount: decimal.NewFromInt(100),
		Items:  []refunds.ItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
	})
	s.assertKind(shared.KindValidation, err)

	_, err = s.service.CreateRefund(s.ctx, s.actor, refunds.CreateInput{
		SaleID: sale.ID,
		Type:   "OTRO",
		Reason: "motivo suficientemente largo",
	})
	s.assertKind(shared.KindValidation, err)
	fields := make([]string, 0)
	for _, d := range shared.AsError(err).Details {
		fields = append(fields, d.Field)
	}
	s.ElementsMatch([]string{"type", "refundAmount", "items"}, fields)

	_, err = s.service.CreateRefund(s.ctx, s.actor, refunds.CreateInput{
		SaleID: sale.ID,
		Type:   refunds.TypeParcial,
		Reason: "motivo suficientemente largo",
		Amount: decimal.NewFromInt(100),
		Items:  []refunds.ItemInput{{SaleItemID: uuid.New(), Quantity: 1}},
	})
	s.assertKind(shared.KindNotFound, err)

	_, err = s.refund(sales.Sale{ID: uuid.New(), Items: sale.Items}, 1, 100, false)
	s.assertKind(shared.KindNotFound, err)

	cashier := s.actor
	cashier.Role = rbac.RoleCashier
	_, err = s.service.CreateRefund(s.ctx, cashier, refunds.CreateInput{
		SaleID: sale.ID,
		Type:   refunds.TypeParcial,
		Reason: "motivo suficientemente largo",
		Amount: decimal.NewFromInt(100),
		Items:  []refunds.ItemInput{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
	})
	s.assertKind(shared.KindForbidden, err)
	s.Equal(sales.StatusCompletado, s.saleStatus(sale.ID))
}

func (s *RefundEngineSuite) TestBalanceAndLookup() {
	s.openFor(s.actor)
	sale := s.sell(5, cash.PaymentEfectivo)
	refund, err := s.refund(sale, 2, 200, true)
	s.Require().NoError(err)

	balance, err := s.service.Balance(s.ctx, s.actor, sale.ID)
	s.Require().NoError(err)
	s.Equal("200", balance.RefundedAmount.String())
	s.Equal("300", balance.RefundableAmount.String())
	s.Require().Len(balance.Items, 1)
	s.Equal(5, balance.Items[0].Sold)
	s.Equal(2, balance.Items[0].Refunded)
	s.Equal(3, balance.Items[0].Refundable)

	got, err := s.service.GetRefund(s.ctx, s.actor, refund.ID)
	s.Require().NoError(err)
	s.Len(got.Items, 1)

	stranger := shared.Actor{BusinessID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleOwner}
	_, err = s.service.GetRefund(s.ctx, stranger, refund.ID)
	s.assertKind(shared.KindNotFound, err)
	_, err = s.service.Balance(s.ctx, stranger, sale.ID)
	s.assertKind(shared.KindNotFound, err)
}
