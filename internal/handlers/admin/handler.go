// Package admin serves authentication and role administration.
package admin

import (
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"seaprocure/internal/audit"
	"seaprocure/internal/auth"
	"seaprocure/internal/roles"
	"seaprocure/internal/server"
	"seaprocure/internal/websocket"
)

// Handler holds dependencies for admin handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	Tokens *auth.Tokens
	Perms  *auth.PermCache
	Roles  *roles.SQLStore
	Logger *slog.Logger
}

// New builds a Handler from the shared App.
func New(app *server.App) *Handler {
	return &Handler{
		DB:     app.DB,
		Hub:    app.Hub,
		Tokens: app.Tokens,
		Perms:  app.Perms,
		Roles:  &roles.SQLStore{DB: app.DB, Perms: app.Perms},
		Logger: app.Logger,
	}
}

func (h *Handler) audit(username string, e audit.Entry) {
	e.Username = username
	audit.Log(h.DB, h.Hub, h.Logger, e)
}

// GetClientIP extracts the client IP from the request.
func GetClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
