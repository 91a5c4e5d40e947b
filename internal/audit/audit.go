package audit

import (
	"database/sql"
	"log/slog"
	"strings"

	"seaprocure/internal/models"
	"seaprocure/internal/websocket"
)

// Action constants.
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionExport   = "EXPORT"
	ActionLogin    = "LOGIN"
	ActionLogout   = "LOGOUT"
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionFinalize = "FINALIZE"
)

// Modules recorded in the audit log and used as change event types.
const (
	ModuleAuth         = "auth"
	ModuleRFQ          = "rfq"
	ModuleQuotation    = "quotation"
	ModuleBanking      = "banking-details"
	ModulePaymentProof = "payment-proof"
	ModuleRoles        = "roles"
)

// Entry describes one mutation.
type Entry struct {
	Username    string
	Action      string
	Module      string
	RecordID    string
	Summary     string
	QuotationID string
	RFQID       string
}

// Log writes the audit row and broadcasts a change event. A failed insert
// is logged and does not fail the request.
func Log(db *sql.DB, hub *websocket.Hub, logger *slog.Logger, e Entry) {
	_, err := db.Exec("INSERT INTO audit_log (username, action, module, record_id, summary) VALUES (?, ?, ?, ?, ?)",
		e.Username, e.Action, e.Module, e.RecordID, e.Summary)
	if err != nil && logger != nil {
		logger.Error("audit log insert failed", "module", e.Module, "record", e.RecordID, "error", err)
	}
	if hub != nil {
		hub.Broadcast(models.ChangeEvent{
			Type:        e.Module + "_" + strings.ToLower(e.Action),
			ID:          e.RecordID,
			Action:      e.Action,
			QuotationID: e.QuotationID,
			RFQID:       e.RFQID,
		})
	}
}

// Recent returns the newest audit rows for a record, newest first.
func Recent(db *sql.DB, module, recordID string, limit int) ([]Row, error) {
	rows, err := db.Query(`SELECT id, username, action, module, record_id, summary, created_at
		FROM audit_log WHERE module = ? AND record_id = ? ORDER BY id DESC LIMIT ?`, module, recordID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Username, &r.Action, &r.Module, &r.RecordID, &r.Summary, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Row is a stored audit entry.
type Row struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"recordId"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"createdAt"`
}
