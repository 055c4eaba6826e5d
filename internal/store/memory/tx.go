package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/refunds"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Tx is a transaction over the store. It satisfies every TxRepository.
type Tx struct {
	st  *state
	now func() time.Time
}

var (
	_ sales.TxRepository         = (*Tx)(nil)
	_ refunds.TxRepository       = (*Tx)(nil)
	_ credit.PaymentTxRepository = (*Tx)(nil)
)

// GetProductForUpdate implements inventory.TxRepository.
func (t *Tx) GetProductForUpdate(_ context.Context, businessID, productID uuid.UUID) (inventory.Product, error) {
	p, ok := t.st.products[productID]
	if !ok || p.BusinessID != businessID {
		return inventory.Product{}, shared.ErrNotFound
	}
	return p, nil
}

// GetVariantForUpdate implements inventory.TxRepository.
func (t *Tx) GetVariantForUpdate(_ context.Context, businessID, productID, variantID uuid.UUID) (inventory.Variant, error) {
	v, ok := t.st.variants[variantID]
	if !ok || v.BusinessID != businessID || v.ProductID != productID {
		return inventory.Variant{}, shared.ErrNotFound
	}
	return v, nil
}

// UpdateProductStock implements inventory.TxRepository.
func (t *Tx) UpdateProductStock(_ context.Context, businessID, productID uuid.UUID, stock int) error {
	p, ok := t.st.products[productID]
	if !ok || p.BusinessID != businessID {
		return shared.ErrNotFound
	}
	p.Stock = stock
	p.UpdatedAt = t.now()
	t.st.products[productID] = p
	return nil
}

// UpdateVariantStock implements inventory.TxRepository.
func (t *Tx) UpdateVariantStock(_ context.Context, businessID, variantID uuid.UUID, stock int) error {
	v, ok := t.st.variants[variantID]
	if !ok || v.BusinessID != businessID {
		return shared.ErrNotFound
	}
	v.Stock = stock
	v.UpdatedAt = t.now()
	t.st.variants[variantID] = v
	return nil
}

// InsertStockMovement implements inventory.TxRepository.
func (t *Tx) InsertStockMovement(_ context.Context, movement inventory.StockMovement) error {
	t.st.stockMovements = append(t.st.stockMovements, movement)
	return nil
}

// GetClientForUpdate implements credit.TxRepository.
func (t *Tx) GetClientForUpdate(_ context.Context, businessID, clientID uuid.UUID) (credit.Client, error) {
	c, ok := t.st.clients[clientID]
	if !ok || c.BusinessID != businessID {
		return credit.Client{}, shared.ErrNotFound
	}
	return c, nil
}

// UpdateClientCredit implements credit.TxRepository.
func (t *Tx) UpdateClientCredit(_ context.Context, client credit.Client) error {
	current, ok := t.st.clients[client.ID]
	if !ok || current.BusinessID != client.BusinessID {
		return shared.ErrNotFound
	}
	current.CreditLimit = client.CreditLimit
	current.CurrentDebt = client.CurrentDebt
	current.HasCreditAccount = client.HasCreditAccount
	current.Status = client.Status
	current.UpdatedAt = client.UpdatedAt
	t.st.clients[client.ID] = current
	return nil
}

// InsertClientPayment implements credit.PaymentTxRepository.
func (t *Tx) InsertClientPayment(_ context.Context, payment credit.Payment) error {
	t.st.payments = append(t.st.payments, payment)
	return nil
}

// GetOpenRegisterForUpdate implements cash.TxRepository.
func (t *Tx) GetOpenRegisterForUpdate(_ context.Context, businessID, userID uuid.UUID) (cash.Register, error) {
	return t.st.openRegister(businessID, userID)
}

// GetRegisterForUpdate implements cash.TxRepository.
func (t *Tx) GetRegisterForUpdate(_ context.Context, businessID, registerID uuid.UUID) (cash.Register, error) {
	return t.st.register(businessID, registerID)
}

// InsertRegister implements cash.TxRepository.
func (t *Tx) InsertRegister(_ context.Context, register cash.Register) error {
	if register.Status == cash.RegisterOpen {
		if _, err := t.st.openRegister(register.BusinessID, register.UserID); err == nil {
			return shared.ErrAlreadyExists
		}
	}
	t.st.registers[register.ID] = register
	return nil
}

// CloseRegister implements cash.TxRepository.
func (t *Tx) CloseRegister(_ context.Context, register cash.Register) error {
	current, err := t.st.register(register.BusinessID, register.ID)
	if err != nil {
		return err
	}
	if current.Status != cash.RegisterOpen {
		return shared.ErrNotFound
	}
	t.st.registers[register.ID] = register
	return nil
}

// InsertCashMovement implements cash.TxRepository.
func (t *Tx) InsertCashMovement(_ context.Context, movement cash.Movement) error {
	t.st.cashMovements = append(t.st.cashMovements, movement)
	return nil
}

// AnnotateCashMovements implements cash.TxRepository.
func (t *Tx) AnnotateCashMovements(_ context.Context, businessID uuid.UUID, reference, note string) (int, error) {
	count := 0
	for i, m := range t.st.cashMovements {
		if m.BusinessID != businessID || m.Reference != reference || strings.HasSuffix(m.Description, note) {
			continue
		}
		t.st.cashMovements[i].Description = m.Description + note
		count++
	}
	return count, nil
}

// RegisterSalesTotals implements cash.TxRepository.
func (t *Tx) RegisterSalesTotals(_ context.Context, businessID, registerID uuid.UUID) (cash.MethodTotals, error) {
	return t.st.salesTotals(businessID, registerID), nil
}

// GetSaleForUpdate implements sales.SaleTxRepository.
func (t *Tx) GetSaleForUpdate(_ context.Context, businessID, saleID uuid.UUID) (sales.Sale, error) {
	return t.st.sale(businessID, saleID)
}

// UpdateSaleStatus implements sales.SaleTxRepository.
func (t *Tx) UpdateSaleStatus(_ context.Context, update sales.StatusUpdate) error {
	sale, err := t.st.sale(update.BusinessID, update.SaleID)
	if err != nil {
		return err
	}
	sale.Status = update.Status
	if update.Status == sales.StatusCancelado {
		sale.CancelReason = update.CancelReason
		sale.CanceledBy = update.CanceledBy
		sale.CanceledAt = update.CanceledAt
	}
	t.st.sales[sale.ID] = sale
	return nil
}

// NextTicketNumber implements sales.TxRepository.
func (t *Tx) NextTicketNumber(_ context.Context, businessID uuid.UUID) (int64, error) {
	t.st.tickets[businessID]++
	return t.st.tickets[businessID], nil
}

// InsertSale implements sales.TxRepository.
func (t *Tx) InsertSale(_ context.Context, sale sales.Sale) error {
	if _, ok := t.st.sales[sale.ID]; ok {
		return shared.ErrAlreadyExists
	}
	sale.Items = append([]sales.Item(nil), sale.Items...)
	sale.Payments = append([]sales.Payment(nil), sale.Payments...)
	t.st.sales[sale.ID] = sale
	t.st.saleOrder = append(t.st.saleOrder, sale.ID)
	return nil
}

// ReserveIdempotencyKey implements sales.TxRepository.
func (t *Tx) ReserveIdempotencyKey(_ context.Context, businessID uuid.UUID, key string, saleID uuid.UUID) error {
	k := idempotencyKey{businessID: businessID, key: key}
	if _, ok := t.st.idempotency[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	t.st.idempotency[k] = saleID
	return nil
}

// RefundedAmount implements refunds.HistoryReader.
func (t *Tx) RefundedAmount(_ context.Context, businessID, saleID uuid.UUID) (decimal.Decimal, error) {
	return t.st.refundedAmount(businessID, saleID), nil
}

// RefundedQuantities implements refunds.HistoryReader.
func (t *Tx) RefundedQuantities(_ context.Context, businessID, saleID uuid.UUID) (map[uuid.UUID]int, error) {
	return t.st.refundedQuantities(businessID, saleID), nil
}

// InsertRefund implements refunds.TxRepository.
func (t *Tx) InsertRefund(_ context.Context, refund refunds.Refund) error {
	refund.Items = append([]refunds.Item(nil), refund.Items...)
	t.st.refunds = append(t.st.refunds, refund)
	return nil
}

func (s *state) openRegister(businessID, userID uuid.UUID) (cash.Register, error) {
	for _, r := range s.registers {
		if r.BusinessID == businessID && r.UserID == userID && r.Status == cash.RegisterOpen {
			return r, nil
		}
	}
	return cash.Register{}, shared.ErrNotFound
}

func (s *state) register(businessID, registerID uuid.UUID) (cash.Register, error) {
	r, ok := s.registers[registerID]
	if !ok || r.BusinessID != businessID {
		return cash.Register{}, shared.ErrNotFound
	}
	return r, nil
}

func (s *state) sale(businessID, saleID uuid.UUID) (sales.Sale, error) {
	sale, ok := s.sales[saleID]
	if !ok || sale.BusinessID != businessID {
		return sales.Sale{}, shared.ErrNotFound
	}
	return sale, nil
}

func (s *state) salesTotals(businessID, registerID uuid.UUID) cash.MethodTotals {
	var totals cash.MethodTotals
	for _, id := range s.saleOrder {
		sale := s.sales[id]
		if sale.BusinessID != businessID || sale.RegisterID == nil || *sale.RegisterID != registerID {
			continue
		}
		if sale.Status == sales.StatusCancelado {
			continue
		}
		for _, p := range sale.Payments {
			totals.Add(p.Method, p.Amount)
		}
	}
	return totals
}

func (s *state) refundedAmount(businessID, saleID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.refunds {
		if r.BusinessID == businessID && r.SaleID == saleID {
			total = total.Add(r.Amount)
		}
	}
	return total
}

func (s *state) refundedQuantities(businessID, saleID uuid.UUID) map[uuid.UUID]int {
	out := map[uuid.UUID]int{}
	for _, r := range s.refunds {
		if r.BusinessID != businessID || r.SaleID != saleID {
			continue
		}
		for _, it := range r.Items {
			out[it.SaleItemID] += it.Quantity
		}
	}
	return out
}
