package admin

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"seaprocure/internal/audit"
	"seaprocure/internal/auth"
	"seaprocure/internal/database"
	"seaprocure/internal/models"
	"seaprocure/internal/response"
)

// Login authenticates a user and opens a session. The refresh token is
// bound to the session so Logout can revoke it.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	if req.Username == "" || req.Password == "" {
		response.Err(w, "Username and password required", 400)
		return
	}

	locked, err := auth.IsAccountLocked(h.DB, req.Username)
	if err == nil && locked {
		response.Err(w, "Account temporarily locked due to too many failed login attempts. Try again later.", 403)
		return
	}

	var u models.User
	var passwordHash string
	var active int
	err = h.DB.QueryRow("SELECT id, username, display_name, portal, role, password_hash, active FROM users WHERE username = ?",
		req.Username).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Portal, &u.Role, &passwordHash, &active)
	if errors.Is(err, sql.ErrNoRows) {
		response.Err(w, auth.ErrBadCredentials.Error(), 401)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := auth.CheckPassword(passwordHash, req.Password); err != nil {
		if err := auth.RecordFailedLogin(h.DB, req.Username); err != nil {
			h.Logger.Error("failed to record login failure", "username", req.Username, "error", err)
		}
		h.Logger.Warn("login failed", "username", req.Username, "ip", GetClientIP(r))
		response.Err(w, err.Error(), 401)
		return
	}
	if active == 0 {
		response.Err(w, "Account deactivated", 403)
		return
	}
	if err := auth.ResetFailedLogins(h.DB, req.Username); err != nil {
		h.Logger.Error("failed to reset login failures", "username", req.Username, "error", err)
	}

	now := time.Now().UTC()

	sid := uuid.NewString()
	_, err = h.DB.Exec("INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		sid, u.ID, now.Format(time.RFC3339), now.Add(h.Tokens.RefreshTTL).Format(time.RFC3339))
	if err != nil {
		response.Err(w, "Failed to create session", 500)
		return
	}
	h.DB.Exec("UPDATE users SET last_login = ? WHERE id = ?", database.Now(), u.ID)

	subject := auth.Subject{UserID: u.ID, Username: u.Username, Portal: u.Portal, Role: u.Role}
	access, err := h.Tokens.IssueAccess(subject)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	refresh, err := h.Tokens.IssueRefresh(subject, sid)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(u.Username, audit.Entry{Action: audit.ActionLogin, Module: audit.ModuleAuth, RecordID: u.Username,
		Summary: "Logged in to the " + u.Portal + " portal"})
	u.Permissions = h.Perms.GetRolePermissions(u.Portal, u.Role)
	response.JSON(w, models.LoginResponse{AccessToken: access, RefreshToken: refresh, User: u})
}

// Refresh exchanges a refresh token for a new access token while its
// session is neither revoked nor expired.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := response.DecodeBody(r, &req); err != nil || req.RefreshToken == "" {
		response.Err(w, "refreshToken required", 400)
		return
	}
	claims, err := h.Tokens.Parse(req.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		response.Err(w, err.Error(), 401)
		return
	}

	var revoked int
	var expiresAt string
	var active int
	err = h.DB.QueryRow(`SELECT s.revoked, s.expires_at, u.active FROM sessions s JOIN users u ON s.user_id = u.id
		WHERE s.id = ? AND u.id = ?`, claims.SessionID, claims.UserID).Scan(&revoked, &expiresAt, &active)
	if err != nil {
		response.Err(w, "Session not found", 401)
		return
	}
	exp, err := time.Parse(time.RFC3339, expiresAt)
	if revoked != 0 || active == 0 || err != nil || time.Now().After(exp) {
		response.Err(w, "Session expired", 401)
		return
	}

	// Role and portal are re-read so a role change applies on the next refresh.
	s := auth.Subject{UserID: claims.UserID, Username: claims.Subject}
	if err := h.DB.QueryRow("SELECT portal, role FROM users WHERE id = ?", claims.UserID).Scan(&s.Portal, &s.Role); err != nil {
		response.Err(w, "Session not found", 401)
		return
	}
	access, err := h.Tokens.IssueAccess(s)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, models.RefreshResponse{AccessToken: access})
}

// Logout revokes the session behind a refresh token. Unknown or expired
// tokens are accepted so logout is idempotent.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	response.DecodeBody(r, &req)
	if claims, err := h.Tokens.Parse(req.RefreshToken, auth.TokenTypeRefresh); err == nil {
		if _, err := h.DB.Exec("UPDATE sessions SET revoked = 1 WHERE id = ?", claims.SessionID); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		h.audit(claims.Subject, audit.Entry{Action: audit.ActionLogout, Module: audit.ModuleAuth, RecordID: claims.Subject,
			Summary: "Logged out"})
	}
	response.JSON(w, map[string]string{"status": "ok"})
}
