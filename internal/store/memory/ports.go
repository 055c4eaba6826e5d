package memory

import (
	"context"
	"sort"

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

func (r inventoryRepo) GetProduct(_ context.Context, businessID, productID uuid.UUID) (inventory.Product, error) {
	var (
		p  inventory.Product
		ok bool
	)
	r.s.read(func(st *state) { p, ok = st.products[productID] })
	if !ok || p.BusinessID != businessID {
		return inventory.Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r inventoryRepo) ListStockMovements(_ context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	r.s.read(func(st *state) {
		for _, m := range st.stockMovements {
			if m.BusinessID != filter.BusinessID || m.ProductID != filter.ProductID {
				continue
			}
			if !filter.From.IsZero() && m.CreatedAt.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && m.CreatedAt.After(filter.To) {
				continue
			}
			out = append(out, m)
		}
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

func (r inventoryRepo) ListLowStock(_ context.Context, businessID uuid.UUID) ([]inventory.Product, error) {
	var out []inventory.Product
	r.s.read(func(st *state) {
		for _, p := range st.products {
			if p.BusinessID == businessID && p.Stock <= p.MinStock {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type cashRepo struct{ s *Store }

func (r cashRepo) WithTx(ctx context.Context, fn func(context.Context, cash.TxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r cashRepo) GetOpenRegister(_ context.Context, businessID, userID uuid.UUID) (cash.Register, error) {
	var (
		reg cash.Register
		err error
	)
	r.s.read(func(st *state) { reg, err = st.openRegister(businessID, userID) })
	return reg, err
}

func (r cashRepo) GetRegister(_ context.Context, businessID, registerID uuid.UUID) (cash.Register, error) {
	var (
		reg cash.Register
		err error
	)
	r.s.read(func(st *state) { reg, err = st.register(businessID, registerID) })
	return reg, err
}

func (r cashRepo) AllRegisterMovements(_ context.Context, businessID, registerID uuid.UUID) ([]cash.Movement, error) {
	var out []cash.Movement
	r.s.read(func(st *state) {
		for _, m := range st.cashMovements {
			if m.BusinessID == businessID && m.RegisterID == registerID {
				out = append(out, m)
			}
		}
	})
	return out, nil
}

func (r cashRepo) ListRegisterMovements(ctx context.Context, businessID, registerID uuid.UUID, page shared.PageRequest) ([]cash.Movement, int, error) {
	all, err := r.AllRegisterMovements(ctx, businessID, registerID)
	if err != nil {
		return nil, 0, err
	}
	page = page.Normalize()
	return paginate(all, page), len(all), nil
}

func (r cashRepo) SalesTotals(_ context.Context, businessID, registerID uuid.UUID) (cash.MethodTotals, error) {
	var totals cash.MethodTotals
	r.s.read(func(st *state) { totals = st.salesTotals(businessID, registerID) })
	return totals, nil
}

type creditRepo struct{ s *Store }

func (r creditRepo) WithTx(ctx context.Context, fn func(context.Context, credit.PaymentTxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r creditRepo) GetClient(_ context.Context, businessID, clientID uuid.UUID) (credit.Client, error) {
	var (
		c  credit.Client
		ok bool
	)
	r.s.read(func(st *state) { c, ok = st.clients[clientID] })
	if !ok || c.BusinessID != businessID {
		return credit.Client{}, shared.ErrNotFound
	}
	return c, nil
}

func (r creditRepo) ListClientPayments(_ context.Context, businessID, clientID uuid.UUID) ([]credit.Payment, error) {
	var out []credit.Payment
	r.s.read(func(st *state) {
		for i := len(st.payments) - 1; i >= 0; i-- {
			p := st.payments[i]
			if p.BusinessID == businessID && p.ClientID == clientID {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

type salesRepo struct{ s *Store }

func (r salesRepo) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r salesRepo) GetSale(_ context.Context, businessID, saleID uuid.UUID) (sales.Sale, error) {
	var (
		sale sales.Sale
		err  error
	)
	r.s.read(func(st *state) { sale, err = st.sale(businessID, saleID) })
	return sale, err
}

func (r salesRepo) FindSaleByIdempotencyKey(_ context.Context, businessID uuid.UUID, key string) (sales.Sale, error) {
	var (
		sale sales.Sale
		err  = shared.ErrNotFound
	)
	r.s.read(func(st *state) {
		if id, ok := st.idempotency[idempotencyKey{businessID: businessID, key: key}]; ok {
			sale, err = st.sale(businessID, id)
		}
	})
	return sale, err
}

func (r salesRepo) ListSales(_ context.Context, filter sales.ListFilter) ([]sales.Sale, int, error) {
	var matched []sales.Sale
	r.s.read(func(st *state) {
		for i := len(st.saleOrder) - 1; i >= 0; i-- {
			sale := st.sales[st.saleOrder[i]]
			if matchesSale(sale, filter) {
				matched = append(matched, sale)
			}
		}
	})
	page := shared.PageRequest{Page: filter.Page, PerPage: filter.PerPage}.Normalize()
	return paginate(matched, page), len(matched), nil
}

func matchesSale(sale sales.Sale, filter sales.ListFilter) bool {
	if sale.BusinessID != filter.BusinessID {
		return false
	}
	if filter.RegisterID != nil && (sale.RegisterID == nil || *sale.RegisterID != *filter.RegisterID) {
		return false
	}
	if filter.ClientID != nil && (sale.ClientID == nil || *sale.ClientID != *filter.ClientID) {
		return false
	}
	if filter.Status != "" && sale.Status != filter.Status {
		return false
	}
	if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && sale.CreatedAt.After(filter.To) {
		return false
	}
	return true
}

type refundsRepo struct{ s *Store }

func (r refundsRepo) WithTx(ctx context.Context, fn func(context.Context, refunds.TxRepository) error) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

func (r refundsRepo) GetSale(ctx context.Context, businessID, saleID uuid.UUID) (sales.Sale, error) {
	return salesRepo(r).GetSale(ctx, businessID, saleID)
}

func (r refundsRepo) RefundedAmount(_ context.Context, businessID, saleID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	r.s.read(func(st *state) { total = st.refundedAmount(businessID, saleID) })
	return total, nil
}

func (r refundsRepo) RefundedQuantities(_ context.Context, businessID, saleID uuid.UUID) (map[uuid.UUID]int, error) {
	var out map[uuid.UUID]int
	r.s.read(func(st *state) { out = st.refundedQuantities(businessID, saleID) })
	return out, nil
}

func (r refundsRepo) GetRefund(_ context.Context, businessID, refundID uuid.UUID) (refunds.Refund, error) {
	var (
		refund refunds.Refund
		err    = shared.ErrNotFound
	)
	r.s.read(func(st *state) {
		for _, rf := range st.refunds {
			if rf.ID == refundID && rf.BusinessID == businessID {
				refund, err = rf, nil
				return
			}
		}
	})
	return refund, err
}

func (r refundsRepo) ListRefunds(_ context.Context, businessID, saleID uuid.UUID) ([]refunds.Refund, error) {
	var out []refunds.Refund
	r.s.read(func(st *state) {
		for _, rf := range st.refunds {
			if rf.BusinessID == businessID && rf.SaleID == saleID {
				out = append(out, rf)
			}
		}
	})
	return out, nil
}

func paginate[T any](items []T, page shared.PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
