package inventory

import (
	"context"

	"github.com/google/uuid"
)

// TxRepository exposes the row-locking operations the ledger runs inside a
// caller's transaction.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, businessID, productID uuid.UUID) (Product, error)
	GetVariantForUpdate(ctx context.Context, businessID, productID, variantID uuid.UUID) (Variant, error)
	UpdateProductStock(ctx context.Context, businessID, productID uuid.UUID, stock int) error
	UpdateVariantStock(ctx context.Context, businessID, variantID uuid.UUID, stock int) error
	InsertStockMovement(ctx context.Context, movement StockMovement) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, businessID, productID uuid.UUID) (Product, error)
	ListStockMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	ListLowStock(ctx context.Context, businessID uuid.UUID) ([]Product, error)
}
