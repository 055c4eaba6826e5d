package cash

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TxRepository exposes register and movement operations inside a caller's
// transaction. Get*ForUpdate methods take a row lock.
type TxRepository interface {
	GetOpenRegisterForUpdate(ctx context.Context, businessID, userID uuid.UUID) (Register, error)
	GetRegisterForUpdate(ctx context.Context, businessID, registerID uuid.UUID) (Register, error)
	// InsertRegister returns shared.ErrAlreadyExists when the user already has an OPEN register.
	InsertRegister(ctx context.Context, register Register) error
	CloseRegister(ctx context.Context, register Register) error
	InsertCashMovement(ctx context.Context, movement Movement) error
	AnnotateCashMovements(ctx context.Context, businessID uuid.UUID, reference, note string) (int, error)
	RegisterSalesTotals(ctx context.Context, businessID, registerID uuid.UUID) (MethodTotals, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOpenRegister(ctx context.Context, businessID, userID uuid.UUID) (Register, error)
	GetRegister(ctx context.Context, businessID, registerID uuid.UUID) (Register, error)
	ListRegisterMovements(ctx context.Context, businessID, registerID uuid.UUID, page shared.PageRequest) ([]Movement, int, error)
	AllRegisterMovements(ctx context.Context, businessID, registerID uuid.UUID) ([]Movement, error)
	SalesTotals(ctx context.Context, businessID, registerID uuid.UUID) (MethodTotals, error)
}
