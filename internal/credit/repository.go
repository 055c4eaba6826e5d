package credit

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
)

// TxRepository exposes client rows inside a caller's transaction.
type TxRepository interface {
	GetClientForUpdate(ctx context.Context, businessID, clientID uuid.UUID) (Client, error)
	UpdateClientCredit(ctx context.Context, client Client) error
}

// PaymentTxRepository spans the client and cash ledgers for payments.
type PaymentTxRepository interface {
	TxRepository
	cash.TxRepository
	InsertClientPayment(ctx context.Context, payment Payment) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, PaymentTxRepository) error) error
	GetClient(ctx context.Context, businessID, clientID uuid.UUID) (Client, error)
	ListClientPayments(ctx context.Context, businessID, clientID uuid.UUID) ([]Payment, error)
}
