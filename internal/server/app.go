package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"seaprocure/internal/auth"
	"seaprocure/internal/storage"
	"seaprocure/internal/websocket"
)

// ContextKey is the type used for request context keys.
type ContextKey string

const CtxClaims ContextKey = "claims"

// App holds shared dependencies for the application.
type App struct {
	DB      *sql.DB
	Hub     *websocket.Hub
	Perms   *auth.PermCache
	Tokens  *auth.Tokens
	Store   storage.Store
	Limiter *RateLimiter
	Logger  *slog.Logger
}

// WithClaims stores verified token claims on ctx.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, CtxClaims, c)
}

// ClaimsFrom returns the caller's claims set by RequireAuth.
func ClaimsFrom(r *http.Request) (*auth.Claims, bool) {
	c, ok := r.Context().Value(CtxClaims).(*auth.Claims)
	return c, ok && c != nil
}

// Username returns the caller's username, or "system" outside an
// authenticated request.
func Username(r *http.Request) string {
	if c, ok := ClaimsFrom(r); ok {
		return c.Subject
	}
	return "system"
}
