package utils

import "context"

type contextKey string

const SessionIDKey contextKey = "session_id"

// WithSessionID stores the cart session resolved by the session middleware.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionIDFromContext retrieves the session id safely
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok && id != ""
}
