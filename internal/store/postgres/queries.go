package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/refunds"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const (
	productColumns      = `id, business_id, sku, name, stock, min_stock, cost, price, updated_at`
	clientColumns       = `id, business_id, name, email, has_credit_account, credit_limit, current_debt, status, updated_at`
	registerColumns     = `id, business_id, user_id, status, opening_amount, closing_amount, expected_amount, difference, total_cash, total_card, total_transfer, total_other, opening_notes, closing_notes, opened_at, closed_at`
	saleColumns         = `id, business_id, ticket_number, cash_register_id, user_id, client_id, status, subtotal, discount, total, payment_method, cancel_reason, canceled_by, canceled_at, created_at`
	cashMovementColumns = `id, business_id, cash_register_id, type, concept, amount, payment_method, reference, description, created_by, created_at`
	refundColumns       = `id, business_id, sale_id, type, reason, refund_amount, restocked, payment_method, cash_register_id, created_by, created_at`
)

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func getProduct(ctx context.Context, q shared.DBTX, businessID, productID uuid.UUID, forUpdate bool) (inventory.Product, error) {
	var p inventory.Product
	err := q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND business_id=$2`+lockClause(forUpdate), productID, businessID).
		Scan(&p.ID, &p.BusinessID, &p.SKU, &p.Name, &p.Stock, &p.MinStock, &p.Cost, &p.Price, &p.UpdatedAt)
	if err != nil {
		return inventory.Product{}, notFound(err, shared.ErrNotFound)
	}
	return p, nil
}

func scanClient(row pgx.Row) (credit.Client, error) {
	var c credit.Client
	err := row.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.HasCreditAccount, &c.CreditLimit, &c.CurrentDebt, &c.Status, &c.UpdatedAt)
	if err != nil {
		return credit.Client{}, notFound(err, shared.ErrNotFound)
	}
	return c, nil
}

func getClient(ctx context.Context, q shared.DBTX, businessID, clientID uuid.UUID, forUpdate bool) (credit.Client, error) {
	return scanClient(q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1 AND business_id=$2`+lockClause(forUpdate), clientID, businessID))
}

func scanRegister(row pgx.Row) (cash.Register, error) {
	var r cash.Register
	err := row.Scan(&r.ID, &r.BusinessID, &r.UserID, &r.Status, &r.OpeningAmount, &r.ClosingAmount, &r.ExpectedAmount, &r.Difference,
		&r.Totals.Cash, &r.Totals.Card, &r.Totals.Transfer, &r.Totals.Other, &r.OpeningNotes, &r.ClosingNotes, &r.OpenedAt, &r.ClosedAt)
	if err != nil {
		return cash.Register{}, notFound(err, shared.ErrNotFound)
	}
	return r, nil
}

func getOpenRegister(ctx context.Context, q shared.DBTX, businessID, userID uuid.UUID, forUpdate bool) (cash.Register, error) {
	return scanRegister(q.QueryRow(ctx, `SELECT `+registerColumns+` FROM cash_registers
WHERE business_id=$1 AND user_id=$2 AND status='OPEN'`+lockClause(forUpdate), businessID, userID))
}

func getRegister(ctx context.Context, q shared.DBTX, businessID, registerID uuid.UUID, forUpdate bool) (cash.Register, error) {
	return scanRegister(q.QueryRow(ctx, `SELECT `+registerColumns+` FROM cash_registers
WHERE id=$1 AND business_id=$2`+lockClause(forUpdate), registerID, businessID))
}

func salesTotals(ctx context.Context, q shared.DBTX, businessID, registerID uuid.UUID) (cash.MethodTotals, error) {
	totals := cash.MethodTotals{}
	rows, err := q.Query(ctx, `SELECT sp.payment_method, COALESCE(SUM(sp.amount), 0)
FROM sale_payments sp
JOIN sales s ON s.id = sp.sale_id
WHERE s.business_id=$1 AND s.cash_register_id=$2 AND s.status <> 'CANCELADO'
GROUP BY sp.payment_method`, businessID, registerID)
	if err != nil {
		return totals, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			method cash.PaymentMethod
			amount decimal.Decimal
		)
		if err := rows.Scan(&method, &amount); err != nil {
			return totals, err
		}
		totals.Add(method, amount)
	}
	return totals, rows.Err()
}

func scanCashMovements(rows pgx.Rows) ([]cash.Movement, error) {
	defer rows.Close()
	var out []cash.Movement
	for rows.Next() {
		var m cash.Movement
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.RegisterID, &m.Type, &m.Concept, &m.Amount, &m.PaymentMethod,
			&m.Reference, &m.Description, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (sales.Sale, error) {
	var s sales.Sale
	err := row.Scan(&s.ID, &s.BusinessID, &s.TicketNumber, &s.RegisterID, &s.UserID, &s.ClientID, &s.Status,
		&s.Subtotal, &s.Discount, &s.Total, &s.PaymentMethod, &s.CancelReason, &s.CanceledBy, &s.CanceledAt, &s.CreatedAt)
	if err != nil {
		return sales.Sale{}, notFound(err, shared.ErrNotFound)
	}
	return s, nil
}

func getSale(ctx context.Context, q shared.DBTX, businessID, saleID uuid.UUID, forUpdate bool) (sales.Sale, error) {
	sale, err := scanSale(q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 AND business_id=$2`+lockClause(forUpdate), saleID, businessID))
	if err != nil {
		return sales.Sale{}, err
	}
	list := []sales.Sale{sale}
	if err := loadSaleChildren(ctx, q, list); err != nil {
		return sales.Sale{}, err
	}
	return list[0], nil
}

// loadSaleChildren fills items and payments for every sale in list.
func loadSaleChildren(ctx context.Context, q shared.DBTX, list []sales.Sale) error {
	if len(list) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int, len(list))
	ids := make([]uuid.UUID, 0, len(list))
	for i, s := range list {
		index[s.ID] = i
		ids = append(ids, s.ID)
	}

	rows, err := q.Query(ctx, `SELECT id, sale_id, product_id, variant_id, quantity, unit_price, subtotal
FROM sale_items WHERE sale_id = ANY($1) ORDER BY sale_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load sale items: %w", err)
	}
	for rows.Next() {
		var it sales.Item
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.VariantID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			rows.Close()
			return err
		}
		i := index[it.SaleID]
		list[i].Items = append(list[i].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `SELECT id, sale_id, payment_method, amount FROM sale_payments WHERE sale_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("load sale payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p sales.Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount); err != nil {
			return err
		}
		i := index[p.SaleID]
		list[i].Payments = append(list[i].Payments, p)
	}
	return rows.Err()
}

func saleFilterClause(filter sales.ListFilter) (string, []any) {
	clauses := []string{"business_id=$1"}
	args := []any{filter.BusinessID}
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if filter.RegisterID != nil {
		add("cash_register_id=$%d", *filter.RegisterID)
	}
	if filter.ClientID != nil {
		add("client_id=$%d", *filter.ClientID)
	}
	if filter.Status != "" {
		add("status=$%d", string(filter.Status))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}
	return strings.Join(clauses, " AND "), args
}

func refundedAmount(ctx context.Context, q shared.DBTX, businessID, saleID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(refund_amount), 0) FROM refunds WHERE business_id=$1 AND sale_id=$2`, businessID, saleID).Scan(&total)
	return total, err
}

func refundedQuantities(ctx context.Context, q shared.DBTX, businessID, saleID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := q.Query(ctx, `SELECT ri.sale_item_id, SUM(ri.quantity)
FROM refund_items ri
JOIN refunds r ON r.id = ri.refund_id
WHERE r.business_id=$1 AND r.sale_id=$2
GROUP BY ri.sale_item_id`, businessID, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			id  uuid.UUID
			qty int
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}

func listRefunds(ctx context.Context, q shared.DBTX, where string, args ...any) ([]refunds.Refund, error) {
	rows, err := q.Query(ctx, `SELECT `+refundColumns+` FROM refunds WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	var (
		out   []refunds.Refund
		index = map[uuid.UUID]int{}
		ids   []uuid.UUID
	)
	for rows.Next() {
		var r refunds.Refund
		if err := rows.Scan(&r.ID, &r.BusinessID, &r.SaleID, &r.Type, &r.Reason, &r.Amount, &r.RestockItems,
			&r.PaymentMethod, &r.RegisterID, &r.CreatedBy, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[r.ID] = len(out)
		ids = append(ids, r.ID)
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil || len(out) == 0 {
		return out, err
	}

	items, err := q.Query(ctx, `SELECT id, refund_id, sale_item_id, product_id, variant_id, quantity, unit_price, subtotal
FROM refund_items WHERE refund_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var it refunds.Item
		if err := items.Scan(&it.ID, &it.RefundID, &it.SaleItemID, &it.ProductID, &it.VariantID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		i := index[it.RefundID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, items.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
