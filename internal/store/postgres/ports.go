package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/refunds"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Inventory returns the inventory repository view of the store.
func (s *Store) Inventory() inventory.RepositoryPort { return inventoryRepo{s} }

// Cash returns the cash repository view of the store.
func (s *Store) Cash() cash.RepositoryPort { return cashRepo{s} }

// Credit returns the credit repository view of the store.
func (s *Store) Credit() credit.RepositoryPort { return creditRepo{s} }

// Sales returns the sales repository view of the store.
func (s *Store) Sales() sales.RepositoryPort { return salesRepo{s} }

// Refunds returns the refunds repository view of the store.
func (s *Store) Refunds() refunds.RepositoryPort { return refundsRepo{s} }

type inventoryRepo struct{ s *Store }

func (r inventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r inventoryRepo) GetProduct(ctx context.Context, businessID, productID uuid.UUID) (inventory.Product, error) {
	return getProduct(ctx, r.s.pool, businessID, productID, false)
}

func (r inventoryRepo) ListStockMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.s.pool.Query(ctx, `SELECT * FROM (
  SELECT id, business_id, product_id, variant_id, type, quantity, previous_stock, new_stock, reason, reference, created_by, created_at
  FROM stock_movements
  WHERE business_id=$1 AND product_id=$2
    AND ($3::timestamptz IS NULL OR created_at >= $3)
    AND ($4::timestamptz IS NULL OR created_at <= $4)
  ORDER BY created_at DESC
  LIMIT $5
) m ORDER BY created_at`, filter.BusinessID, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []inventory.StockMovement
	for rows.Next() {
		var m inventory.StockMovement
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.ProductID, &m.VariantID, &m.Type, &m.Quantity, &m.PreviousStock,
			&m.NewStock, &m.Reason, &m.Reference, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r inventoryRepo) ListLowStock(ctx context.Context, businessID uuid.UUID) ([]inventory.Product, error) {
	rows, err := r.s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE business_id=$1 AND stock <= min_stock ORDER BY name`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []inventory.Product
	for rows.Next() {
		var p inventory.Product
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.SKU, &p.Name, &p.Stock, &p.MinStock, &p.Cost, &p.Price, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type cashRepo struct{ s *Store }

func (r cashRepo) WithTx(ctx context.Context, fn func(context.Context, cash.TxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r cashRepo) GetOpenRegister(ctx context.Context, businessID, userID uuid.UUID) (cash.Register, error) {
	return getOpenRegister(ctx, r.s.pool, businessID, userID, false)
}

func (r cashRepo) GetRegister(ctx context.Context, businessID, registerID uuid.UUID) (cash.Register, error) {
	return getRegister(ctx, r.s.pool, businessID, registerID, false)
}

func (r cashRepo) ListRegisterMovements(ctx context.Context, businessID, registerID uuid.UUID, page shared.PageRequest) ([]cash.Movement, int, error) {
	page = page.Normalize()
	var total int
	if err := r.s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cash_movements WHERE business_id=$1 AND cash_register_id=$2`,
		businessID, registerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.s.pool.Query(ctx, `SELECT `+cashMovementColumns+` FROM cash_movements
WHERE business_id=$1 AND cash_register_id=$2 ORDER BY created_at LIMIT $3 OFFSET $4`,
		businessID, registerID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	movements, err := scanCashMovements(rows)
	return movements, total, err
}

func (r cashRepo) AllRegisterMovements(ctx context.Context, businessID, registerID uuid.UUID) ([]cash.Movement, error) {
	rows, err := r.s.pool.Query(ctx, `SELECT `+cashMovementColumns+` FROM cash_movements
WHERE business_id=$1 AND cash_register_id=$2 ORDER BY created_at`, businessID, registerID)
	if err != nil {
		return nil, err
	}
	return scanCashMovements(rows)
}

func (r cashRepo) SalesTotals(ctx context.Context, businessID, registerID uuid.UUID) (cash.MethodTotals, error) {
	return salesTotals(ctx, r.s.pool, businessID, registerID)
}

type creditRepo struct{ s *Store }

func (r creditRepo) WithTx(ctx context.Context, fn func(context.Context, credit.PaymentTxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r creditRepo) GetClient(ctx context.Context, businessID, clientID uuid.UUID) (credit.Client, error) {
	return getClient(ctx, r.s.pool, businessID, clientID, false)
}

func (r creditRepo) ListClientPayments(ctx context.Context, businessID, clientID uuid.UUID) ([]credit.Payment, error) {
	rows, err := r.s.pool.Query(ctx, `SELECT id, business_id, client_id, amount, payment_method, cash_register_id, notes, created_by, created_at
FROM client_payments WHERE business_id=$1 AND client_id=$2 ORDER BY created_at DESC`, businessID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []credit.Payment
	for rows.Next() {
		var p credit.Payment
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.ClientID, &p.Amount, &p.PaymentMethod, &p.RegisterID, &p.Notes, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type salesRepo struct{ s *Store }

func (r salesRepo) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r salesRepo) GetSale(ctx context.Context, businessID, saleID uuid.UUID) (sales.Sale, error) {
	return getSale(ctx, r.s.pool, businessID, saleID, false)
}

func (r salesRepo) FindSaleByIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string) (sales.Sale, error) {
	saleID, err := shared.NewIdempotencyStore(r.s.pool).Lookup(ctx, saleIdempotencyModule, businessID, key)
	if err != nil {
		return sales.Sale{}, err
	}
	return r.GetSale(ctx, businessID, saleID)
}

func (r salesRepo) ListSales(ctx context.Context, filter sales.ListFilter) ([]sales.Sale, int, error) {
	page := shared.PageRequest{Page: filter.Page, PerPage: filter.PerPage}.Normalize()
	where, args := saleFilterClause(filter)

	var total int
	if err := r.s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}
	args = append(args, page.PerPage, page.Offset())
	rows, err := r.s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM sales WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		saleColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	var list []sales.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		list = append(list, sale)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := loadSaleChildren(ctx, r.s.pool, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

type refundsRepo struct{ s *Store }

func (r refundsRepo) WithTx(ctx context.Context, fn func(context.Context, refunds.TxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r refundsRepo) GetSale(ctx context.Context, businessID, saleID uuid.UUID) (sales.Sale, error) {
	return getSale(ctx, r.s.pool, businessID, saleID, false)
}

func (r refundsRepo) RefundedAmount(ctx context.Context, businessID, saleID uuid.UUID) (decimal.Decimal, error) {
	return refundedAmount(ctx, r.s.pool, businessID, saleID)
}

func (r refundsRepo) RefundedQuantities(ctx context.Context, businessID, saleID uuid.UUID) (map[uuid.UUID]int, error) {
	return refundedQuantities(ctx, r.s.pool, businessID, saleID)
}

func (r refundsRepo) GetRefund(ctx context.Context, businessID, refundID uuid.UUID) (refunds.Refund, error) {
	list, err := listRefunds(ctx, r.s.pool, "business_id=$1 AND id=$2", businessID, refundID)
	if err != nil {
		return refunds.Refund{}, err
	}
	if len(list) == 0 {
		return refunds.Refund{}, shared.ErrNotFound
	}
	return list[0], nil
}

func (r refundsRepo) ListRefunds(ctx context.Context, businessID, saleID uuid.UUID) ([]refunds.Refund, error) {
	return listRefunds(ctx, r.s.pool, "business_id=$1 AND sale_id=$2", businessID, saleID)
}
