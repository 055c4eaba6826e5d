package sales

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

// SaleTxRepository holds the sale rows operations shared with refunds.
type SaleTxRepository interface {
	GetSaleForUpdate(ctx context.Context, businessID, saleID uuid.UUID) (Sale, error)
	UpdateSaleStatus(ctx context.Context, update StatusUpdate) error
}

// TxRepository spans every ledger a sale touches, inside one transaction.
type TxRepository interface {
	inventory.TxRepository
	credit.TxRepository
	cash.TxRepository
	SaleTxRepository
	NextTicketNumber(ctx context.Context, businessID uuid.UUID) (int64, error)
	InsertSale(ctx context.Context, sale Sale) error
	// ReserveIdempotencyKey returns shared.ErrIdempotencyConflict when key was already used.
	ReserveIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string, saleID uuid.UUID) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, businessID, saleID uuid.UUID) (Sale, error)
	FindSaleByIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string) (Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}
