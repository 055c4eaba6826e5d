package refunds

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
)

// HistoryReader reads what was already refunded on a sale.
type HistoryReader interface {
	RefundedAmount(ctx context.Context, businessID, saleID uuid.UUID) (decimal.Decimal, error)
	// RefundedQuantities maps sale item id to the quantity refunded so far.
	RefundedQuantities(ctx context.Context, businessID, saleID uuid.UUID) (map[uuid.UUID]int, error)
}

// TxRepository spans every ledger a refund touches, inside one transaction.
type TxRepository interface {
	inventory.TxRepository
	credit.TxRepository
	cash.TxRepository
	sales.SaleTxRepository
	HistoryReader
	InsertRefund(ctx context.Context, refund Refund) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	HistoryReader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, businessID, saleID uuid.UUID) (sales.Sale, error)
	GetRefund(ctx context.Context, businessID, refundID uuid.UUID) (Refund, error)
	ListRefunds(ctx context.Context, businessID, saleID uuid.UUID) ([]Refund, error)
}
