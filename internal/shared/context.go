package shared

import "context"

// Actor is the opaque attribution tag supplied by the identity layer.
// A zero ID marks a system-generated write.
type Actor struct {
	ID   int64
	Name string
}

// IsSystem reports whether no user is attached.
func (a Actor) IsSystem() bool { return a.ID == 0 }

type actorContextKey struct{}

// ContextWithActor stores the acting user in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
