// Package postgres implements the repository ports on PostgreSQL. Every
// mutated row is locked with SELECT ... FOR UPDATE inside the caller's
// transaction.
package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

const (
	saleIdempotencyModule = "pos.sale"
	openRegisterIndex     = "cash_registers_one_open_per_user"
	maxTxAttempts         = 3
)

// Store wraps a connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New returns a Store on pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// withTx runs fn in a transaction, retrying deadlocks and serialization
// failures.
func (s *Store) withTx(ctx context.Context, fn func(context.Context, *Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			return fn(ctx, &Tx{q: tx})
		})
		if err == nil || !db.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		s.logger.Warn("retrying transaction", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	return err
}

func notFound(err error, target error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return target
	}
	return err
}
