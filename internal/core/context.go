package core

import "context"

type contextKey string

const ctxKeyOwnerID contextKey = "owner_id"

// AnonymousOwner is the owner recorded when no caller identity is known.
const AnonymousOwner = "anonymous"

// ContextWithOwnerID stores the caller's owner id for ownership stamping.
func ContextWithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKeyOwnerID, ownerID)
}

// OwnerIDFromContext returns the owner id, or AnonymousOwner if none is set.
func OwnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOwnerID).(string); ok && v != "" {
		return v
	}
	return AnonymousOwner
}
