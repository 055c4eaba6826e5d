package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/refunds"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Tx is an open transaction. It satisfies every TxRepository.
type Tx struct {
	q pgx.Tx
}

var (
	_ sales.TxRepository         = (*Tx)(nil)
	_ refunds.TxRepository       = (*Tx)(nil)
	_ credit.PaymentTxRepository = (*Tx)(nil)
)

// GetProductForUpdate implements inventory.TxRepository.
func (t *Tx) GetProductForUpdate(ctx context.Context, businessID, productID uuid.UUID) (inventory.Product, error) {
	return getProduct(ctx, t.q, businessID, productID, true)
}

// GetVariantForUpdate implements inventory.TxRepository.
func (t *Tx) GetVariantForUpdate(ctx context.Context, businessID, productID, variantID uuid.UUID) (inventory.Variant, error) {
	var v inventory.Variant
	err := t.q.QueryRow(ctx, `SELECT id, business_id, product_id, name, stock, updated_at
FROM product_variants WHERE id=$1 AND business_id=$2 AND product_id=$3 FOR UPDATE`, variantID, businessID, productID).
		Scan(&v.ID, &v.BusinessID, &v.ProductID, &v.Name, &v.Stock, &v.UpdatedAt)
	if err != nil {
		return inventory.Variant{}, notFound(err, shared.ErrNotFound)
	}
	return v, nil
}

// UpdateProductStock implements inventory.TxRepository.
func (t *Tx) UpdateProductStock(ctx context.Context, businessID, productID uuid.UUID, stock int) error {
	return expectOne(t.q.Exec(ctx, `UPDATE products SET stock=$3, updated_at=NOW() WHERE id=$2 AND business_id=$1`, businessID, productID, stock))
}

// UpdateVariantStock implements inventory.TxRepository.
func (t *Tx) UpdateVariantStock(ctx context.Context, businessID, variantID uuid.UUID, stock int) error {
	return expectOne(t.q.Exec(ctx, `UPDATE product_variants SET stock=$3, updated_at=NOW() WHERE id=$2 AND business_id=$1`, businessID, variantID, stock))
}

// InsertStockMovement implements inventory.TxRepository.
func (t *Tx) InsertStockMovement(ctx context.Context, m inventory.StockMovement) error {
	_, err := t.q.Exec(ctx, `INSERT INTO stock_movements
(id, business_id, product_id, variant_id, type, quantity, previous_stock, new_stock, reason, reference, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.BusinessID, m.ProductID, m.VariantID, string(m.Type), m.Quantity, m.PreviousStock, m.NewStock,
		m.Reason, m.Reference, m.CreatedBy, m.CreatedAt)
	return err
}

// GetClientForUpdate implements credit.TxRepository.
func (t *Tx) GetClientForUpdate(ctx context.Context, businessID, clientID uuid.UUID) (credit.Client, error) {
	return getClient(ctx, t.q, businessID, clientID, true)
}

// UpdateClientCredit implements credit.TxRepository.
func (t *Tx) UpdateClientCredit(ctx context.Context, c credit.Client) error {
	return expectOne(t.q.Exec(ctx, `UPDATE clients
SET credit_limit=$3, current_debt=$4, has_credit_account=$5, status=$6, updated_at=$7
WHERE id=$2 AND business_id=$1`,
		c.BusinessID, c.ID, c.CreditLimit, c.CurrentDebt, c.HasCreditAccount, string(c.Status), c.UpdatedAt))
}

// InsertClientPayment implements credit.PaymentTxRepository.
func (t *Tx) InsertClientPayment(ctx context.Context, p credit.Payment) error {
	_, err := t.q.Exec(ctx, `INSERT INTO client_payments
(id, business_id, client_id, amount, payment_method, cash_register_id, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.BusinessID, p.ClientID, p.Amount, string(p.PaymentMethod), p.RegisterID, p.Notes, p.CreatedBy, p.CreatedAt)
	return err
}

// GetOpenRegisterForUpdate implements cash.TxRepository.
func (t *Tx) GetOpenRegisterForUpdate(ctx context.Context, businessID, userID uuid.UUID) (cash.Register, error) {
	return getOpenRegister(ctx, t.q, businessID, userID, true)
}

// GetRegisterForUpdate implements cash.TxRepository.
func (t *Tx) GetRegisterForUpdate(ctx context.Context, businessID, registerID uuid.UUID) (cash.Register, error) {
	return getRegister(ctx, t.q, businessID, registerID, true)
}

// InsertRegister implements cash.TxRepository.
func (t *Tx) InsertRegister(ctx context.Context, r cash.Register) error {
	_, err := t.q.Exec(ctx, `INSERT INTO cash_registers
(id, business_id, user_id, status, opening_amount, opening_notes, opened_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.BusinessID, r.UserID, string(r.Status), r.OpeningAmount, r.OpeningNotes, r.OpenedAt)
	if db.IsUniqueViolation(err, openRegisterIndex) {
		return shared.ErrAlreadyExists
	}
	return err
}

// CloseRegister implements cash.TxRepository.
func (t *Tx) CloseRegister(ctx context.Context, r cash.Register) error {
	return expectOne(t.q.Exec(ctx, `UPDATE cash_registers
SET status=$3, closing_amount=$4, expected_amount=$5, difference=$6,
    total_cash=$7, total_card=$8, total_transfer=$9, total_other=$10,
    closing_notes=$11, closed_at=$12
WHERE id=$2 AND business_id=$1 AND status='OPEN'`,
		r.BusinessID, r.ID, string(r.Status), r.ClosingAmount, r.ExpectedAmount, r.Difference,
		r.Totals.Cash, r.Totals.Card, r.Totals.Transfer, r.Totals.Other, r.ClosingNotes, r.ClosedAt))
}

// InsertCashMovement implements cash.TxRepository.
func (t *Tx) InsertCashMovement(ctx context.Context, m cash.Movement) error {
	_, err := t.q.Exec(ctx, `INSERT INTO cash_movements
(id, business_id, cash_register_id, type, concept, amount, payment_method, reference, description, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.BusinessID, m.RegisterID, string(m.Type), string(m.Concept), m.Amount, string(m.PaymentMethod),
		m.Reference, m.Description, m.CreatedBy, m.CreatedAt)
	return err
}

// AnnotateCashMovements implements cash.TxRepository.
func (t *Tx) AnnotateCashMovements(ctx context.Context, businessID uuid.UUID, reference, note string) (int, error) {
	tag, err := t.q.Exec(ctx, `UPDATE cash_movements SET description = description || $3
WHERE business_id=$1 AND reference=$2 AND right(description, length($3)) <> $3`, businessID, reference, note)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// RegisterSalesTotals implements cash.TxRepository.
func (t *Tx) RegisterSalesTotals(ctx context.Context, businessID, registerID uuid.UUID) (cash.MethodTotals, error) {
	return salesTotals(ctx, t.q, businessID, registerID)
}

// GetSaleForUpdate implements sales.SaleTxRepository.
func (t *Tx) GetSaleForUpdate(ctx context.Context, businessID, saleID uuid.UUID) (sales.Sale, error) {
	return getSale(ctx, t.q, businessID, saleID, true)
}

// UpdateSaleStatus implements sales.SaleTxRepository.
func (t *Tx) UpdateSaleStatus(ctx context.Context, u sales.StatusUpdate) error {
	if u.Status == sales.StatusCancelado {
		return expectOne(t.q.Exec(ctx, `UPDATE sales SET status=$3, cancel_reason=$4, canceled_by=$5, canceled_at=$6
WHERE id=$2 AND business_id=$1`, u.BusinessID, u.SaleID, string(u.Status), u.CancelReason, u.CanceledBy, u.CanceledAt))
	}
	return expectOne(t.q.Exec(ctx, `UPDATE sales SET status=$3 WHERE id=$2 AND business_id=$1`, u.BusinessID, u.SaleID, string(u.Status)))
}

// NextTicketNumber implements sales.TxRepository. The counter row stays
// locked until commit, so ticket numbers are gapless per business.
func (t *Tx) NextTicketNumber(ctx context.Context, businessID uuid.UUID) (int64, error) {
	var next int64
	err := t.q.QueryRow(ctx, `INSERT INTO ticket_counters (business_id, last_number) VALUES ($1, 1)
ON CONFLICT (business_id) DO UPDATE SET last_number = ticket_counters.last_number + 1
RETURNING last_number`, businessID).Scan(&next)
	return next, err
}

// InsertSale implements sales.TxRepository.
func (t *Tx) InsertSale(ctx context.Context, s sales.Sale) error {
	if _, err := t.q.Exec(ctx, `INSERT INTO sales
(id, business_id, ticket_number, cash_register_id, user_id, client_id, status, subtotal, discount, total, payment_method, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		s.ID, s.BusinessID, s.TicketNumber, s.RegisterID, s.UserID, s.ClientID, string(s.Status),
		s.Subtotal, s.Discount, s.Total, string(s.PaymentMethod), s.CreatedAt); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range s.Items {
		batch.Queue(`INSERT INTO sale_items (id, sale_id, position, product_id, variant_id, quantity, unit_price, subtotal)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, it.ID, s.ID, i, it.ProductID, it.VariantID, it.Quantity, it.UnitPrice, it.Subtotal)
	}
	for _, p := range s.Payments {
		batch.Queue(`INSERT INTO sale_payments (id, sale_id, payment_method, amount) VALUES ($1,$2,$3,$4)`,
			p.ID, s.ID, string(p.Method), p.Amount)
	}
	return t.q.SendBatch(ctx, batch).Close()
}

// ReserveIdempotencyKey implements sales.TxRepository.
func (t *Tx) ReserveIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string, saleID uuid.UUID) error {
	return shared.NewIdempotencyStore(t.q).CheckAndInsert(ctx, shared.IdempotencyKey{
		Key:        key,
		Module:     saleIdempotencyModule,
		BusinessID: businessID,
		ResourceID: saleID,
	})
}

// RefundedAmount implements refunds.HistoryReader.
func (t *Tx) RefundedAmount(ctx context.Context, businessID, saleID uuid.UUID) (decimal.Decimal, error) {
	return refundedAmount(ctx, t.q, businessID, saleID)
}

// RefundedQuantities implements refunds.HistoryReader.
func (t *Tx) RefundedQuantities(ctx context.Context, businessID, saleID uuid.UUID) (map[uuid.UUID]int, error) {
	return refundedQuantities(ctx, t.q, businessID, saleID)
}

// InsertRefund implements refunds.TxRepository.
func (t *Tx) InsertRefund(ctx context.Context, r refunds.Refund) error {
	if _, err := t.q.Exec(ctx, `INSERT INTO refunds
(id, business_id, sale_id, type, reason, refund_amount, restocked, payment_method, cash_register_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.BusinessID, r.SaleID, string(r.Type), r.Reason, r.Amount, r.RestockItems, string(r.PaymentMethod),
		r.RegisterID, r.CreatedBy, r.CreatedAt); err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	batch := &pgx.Batch{}
	for _, it := range r.Items {
		batch.Queue(`INSERT INTO refund_items (id, refund_id, sale_item_id, product_id, variant_id, quantity, unit_price, subtotal)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, it.ID, r.ID, it.SaleItemID, it.ProductID, it.VariantID, it.Quantity, it.UnitPrice, it.Subtotal)
	}
	return t.q.SendBatch(ctx, batch).Close()
}
