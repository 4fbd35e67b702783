// Package ctxutil carries request-scoped values: the authenticated session
// and the request id.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	sessionKey   ctxKey = "session_user_id"
	requestIDKey ctxKey = "request_id"
)

// WithSession marks ctx as authenticated for userID.
func WithSession(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, sessionKey, userID)
}

// SessionFromCtx returns the authenticated user of ctx.
// Returns uuid.Nil and false if there is no session. The nil and max UUIDs
// never form a session.
func SessionFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(sessionKey).(uuid.UUID)
	if !ok || id == uuid.Nil || id == uuid.Max {
		return uuid.Nil, false
	}
	return id, true
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx extracts the request ID from the context.
// Returns an empty string if absent.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
