// Package memory is an in-process store implementing every repository port.
// A single mutex is held for the whole transaction, so transactions are
// serialized and a failed one is rolled back from a snapshot.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/refunds"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
)

// Store keeps all tenant data in memory.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

type state struct {
	products       map[uuid.UUID]inventory.Product
	variants       map[uuid.UUID]inventory.Variant
	stockMovements []inventory.StockMovement
	clients        map[uuid.UUID]credit.Client
	payments       []credit.Payment
	registers      map[uuid.UUID]cash.Register
	cashMovements  []cash.Movement
	sales          map[uuid.UUID]sales.Sale
	saleOrder      []uuid.UUID
	tickets        map[uuid.UUID]int64
	refunds        []refunds.Refund
	idempotency    map[idempotencyKey]uuid.UUID
}

type idempotencyKey struct {
	businessID uuid.UUID
	key        string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: state{
			products:    map[uuid.UUID]inventory.Product{},
			variants:    map[uuid.UUID]inventory.Variant{},
			clients:     map[uuid.UUID]credit.Client{},
			registers:   map[uuid.UUID]cash.Register{},
			sales:       map[uuid.UUID]sales.Sale{},
			tickets:     map[uuid.UUID]int64{},
			idempotency: map[idempotencyKey]uuid.UUID{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s state) clone() state {
	out := state{
		products:       make(map[uuid.UUID]inventory.Product, len(s.products)),
		variants:       make(map[uuid.UUID]inventory.Variant, len(s.variants)),
		stockMovements: append([]inventory.StockMovement(nil), s.stockMovements...),
		clients:        make(map[uuid.UUID]credit.Client, len(s.clients)),
		payments:       append([]credit.Payment(nil), s.payments...),
		registers:      make(map[uuid.UUID]cash.Register, len(s.registers)),
		cashMovements:  append([]cash.Movement(nil), s.cashMovements...),
		sales:          make(map[uuid.UUID]sales.Sale, len(s.sales)),
		saleOrder:      append([]uuid.UUID(nil), s.saleOrder...),
		tickets:        make(map[uuid.UUID]int64, len(s.tickets)),
		refunds:        append([]refunds.Refund(nil), s.refunds...),
		idempotency:    make(map[idempotencyKey]uuid.UUID, len(s.idempotency)),
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.variants {
		out.variants[k] = v
	}
	for k, v := range s.clients {
		out.clients[k] = v
	}
	for k, v := range s.registers {
		out.registers[k] = v
	}
	for k, v := range s.sales {
		out.sales[k] = v
	}
	for k, v := range s.tickets {
		out.tickets[k] = v
	}
	for k, v := range s.idempotency {
		out.idempotency[k] = v
	}
	return out
}

// withTx runs fn with exclusive access and restores the snapshot when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(context.Context, *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(ctx, &Tx{st: &s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

// AddProduct seeds a product. Zero IDs are generated.
func (s *Store) AddProduct(p inventory.Product) inventory.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	s.read(func(st *state) { st.products[p.ID] = p })
	return p
}

// AddVariant seeds a product variant.
func (s *Store) AddVariant(v inventory.Variant) inventory.Variant {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	s.read(func(st *state) { st.variants[v.ID] = v })
	return v
}

// AddClient seeds a client and derives its status.
func (s *Store) AddClient(c credit.Client) credit.Client {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Status = credit.DeriveStatus(c.CurrentDebt, c.CreditLimit)
	s.read(func(st *state) { st.clients[c.ID] = c })
	return c
}

// StockMovements returns every stock movement tagged with reference.
func (s *Store) StockMovements(reference string) []inventory.StockMovement {
	var out []inventory.StockMovement
	s.read(func(st *state) {
		for _, m := range st.stockMovements {
			if m.Reference == reference {
				out = append(out, m)
			}
		}
	})
	return out
}

// CashMovements returns every cash movement tagged with reference.
func (s *Store) CashMovements(reference string) []cash.Movement {
	var out []cash.Movement
	s.read(func(st *state) {
		for _, m := range st.cashMovements {
			if m.Reference == reference {
				out = append(out, m)
			}
		}
	})
	return out
}

// CountRegisters returns how many registers the user has, by status.
func (s *Store) CountRegisters(businessID, userID uuid.UUID) map[cash.RegisterStatus]int {
	out := map[cash.RegisterStatus]int{}
	s.read(func(st *state) {
		for _, r := range st.registers {
			if r.BusinessID == businessID && r.UserID == userID {
				out[r.Status]++
			}
		}
	})
	return out
}
