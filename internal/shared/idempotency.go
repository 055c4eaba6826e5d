package shared

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IdempotencyKey binds a client supplied key to the resource it produced.
type IdempotencyKey struct {
	Key        string
	Module     string
	BusinessID uuid.UUID
	ResourceID uuid.UUID
}

// NormalizeIdempotencyKey trims the header value and caps its length.
func NormalizeIdempotencyKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if len(key) > 128 {
		return "", Validation("Idempotency-Key demasiado largo", FieldError{Field: "Idempotency-Key", Message: "máximo 128 caracteres"})
	}
	return key, nil
}

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	db DBTX
}

// NewIdempotencyStore constructs the store. db may be a pool or an open tx.
func NewIdempotencyStore(db DBTX) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// CheckAndInsert ensures key uniqueness per module and business.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key IdempotencyKey) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency store not initialised")
	}
	if key.Key == "" {
		return errors.New("idempotency key required")
	}
	if key.Module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, business_id, resource_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		key.Key, key.Module, key.BusinessID, key.ResourceID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Lookup returns the resource produced for a key, ErrNotFound when unseen.
func (s *IdempotencyStore) Lookup(ctx context.Context, module string, businessID uuid.UUID, key string) (uuid.UUID, error) {
	if s == nil || s.db == nil {
		return uuid.Nil, errors.New("idempotency store not initialised")
	}
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT resource_id FROM idempotency_keys WHERE module=$1 AND business_id=$2 AND key=$3`, module, businessID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return id, err
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
