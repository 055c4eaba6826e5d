package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Locker provides best-effort distributed mutual exclusion. The database
// remains the authority; a lock only narrows contention.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RegisterLockKey builds redis keys guarding a user's register lifecycle.
func RegisterLockKey(businessID, userID uuid.UUID) string {
	return fmt.Sprintf("pos:register:%s:%s:lock", businessID, userID)
}
