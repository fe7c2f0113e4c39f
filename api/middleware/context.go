package middleware

import (
	"context"

	"github.com/angelmondragon/boutique-checkout/pkg/auth"
)

type contextKey string

const (
	ctxUsername  contextKey = "username"
	ctxSessionID contextKey = "session_id"
)

// UsernameFromContext returns the signed-in shopper, or the anonymous
// username when the request carried no identity.
func UsernameFromContext(ctx context.Context) string {
	if ctx == nil {
		return auth.AnonymousUsername
	}
	if v, ok := ctx.Value(ctxUsername).(string); ok && v != "" {
		return v
	}
	return auth.AnonymousUsername
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// WithUsername injects the shopper's username into the context.
func WithUsername(ctx context.Context, username string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUsername, username)
}

// WithSessionID injects the browser session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}
