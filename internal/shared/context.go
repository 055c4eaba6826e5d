package shared

import (
	"context"

	"github.com/google/uuid"
)

// Actor is the authenticated caller resolved upstream. Every operation is
// scoped by BusinessID.
type Actor struct {
	UserID     uuid.UUID
	BusinessID uuid.UUID
	Role       string
}

// Valid reports whether the actor carries both identifiers.
func (a Actor) Valid() bool {
	return a.UserID != uuid.Nil && a.BusinessID != uuid.Nil
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok && actor.Valid()
}
