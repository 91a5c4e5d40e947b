package procurement

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"seaprocure/internal/audit"
	"seaprocure/internal/auth"
	"seaprocure/internal/models"
	"seaprocure/internal/server"
	"seaprocure/internal/storage"
	"seaprocure/internal/websocket"
)

// Handler holds dependencies for the RFQ, quotation, banking and payment
// handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	Store  storage.Store
	Logger *slog.Logger
}

// New builds a Handler from the shared App.
func New(app *server.App) *Handler {
	return &Handler{DB: app.DB, Hub: app.Hub, Store: app.Store, Logger: app.Logger}
}

func (h *Handler) audit(r *http.Request, e audit.Entry) {
	e.Username = server.Username(r)
	audit.Log(h.DB, h.Hub, h.Logger, e)
}

// caller returns the request claims. Routes are mounted behind RequireAuth,
// so a missing value means a wiring bug.
func caller(r *http.Request) *auth.Claims {
	if c, ok := server.ClaimsFrom(r); ok {
		return c
	}
	return &auth.Claims{}
}

// canSee reports whether the caller may read a quotation-scoped resource.
// Vendors only see their own quotations. The customer portal serves a
// single buyer organisation, so every customer user sees every quotation.
func canSee(c *auth.Claims, q models.Quotation) bool {
	return c.Portal != models.PortalVendor || q.VendorID == c.Subject
}

func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
