package procurement

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seaprocure/internal/audit"
	"seaprocure/internal/database"
	"seaprocure/internal/export"
	"seaprocure/internal/models"
	"seaprocure/internal/response"
	"seaprocure/internal/validation"
)

// GetQuotationForRFQ returns the quotation for an RFQ. Vendors get their
// own; 404 means none has been submitted yet.
func (h *Handler) GetQuotationForRFQ(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	vendorID := ""
	if c.Portal == models.PortalVendor {
		vendorID = c.Subject
	}
	q, err := h.quotationForRFQ(chi.URLParam(r, "id"), vendorID)
	if isNotFound(err) {
		response.Err(w, "no quotation for this RFQ", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, q)
}

// SubmitQuotation stores a vendor's quotation and moves the RFQ to pending.
// The total is recomputed from the items.
func (h *Handler) SubmitQuotation(w http.ResponseWriter, r *http.Request) {
	var req models.QuotationRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if req.Status == "" {
		req.Status = models.QuotationStatusSubmitted
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateQuotationRequest(ve, req)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	rfq, err := h.getRFQ(req.RFQID)
	if isNotFound(err) {
		response.Err(w, "RFQ not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if !validation.Contains(validation.OpenRFQStatuses, rfq.Status) {
		response.Err(w, fmt.Sprintf("RFQ is %s and no longer accepts quotations", rfq.Status), 409)
		return
	}

	vendorID := caller(r).Subject
	var total float64
	for _, it := range req.Items {
		total += it.QuotedPrice * it.OfferedQty
	}
	currency := req.Currency
	if currency == "" {
		currency = req.Metadata.Terms.Currency
	}
	if currency == "" {
		currency = "USD"
	}
	terms, err := json.Marshal(req.Metadata.Terms)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	id := database.NextID(tx, "QUO", "quotations", 4)
	now := database.Now()
	_, err = tx.Exec(`INSERT INTO quotations (id, quotation_number, rfq_id, vendor_id, title, description, status,
		total_amount, currency, terms, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, id, req.RFQID, vendorID, req.Title, req.Description, models.QuotationStatusSubmitted,
		total, currency, string(terms), now, now)
	if isConstraintErr(err) {
		response.Err(w, "a quotation for this RFQ already exists", 409)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for i, it := range req.Items {
		if _, err := tx.Exec(`INSERT INTO quotation_items (quotation_id, line, description, required_qty, quoted_price, offered_qty, offered_quality)
			VALUES (?,?,?,?,?,?,?)`, id, i+1, it.Description, it.RequiredQty, it.QuotedPrice, it.OfferedQty, it.OfferedQuality); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if _, err := tx.Exec("UPDATE rfqs SET status = ?, updated_at = ? WHERE id = ?", models.RFQStatusPending, now, req.RFQID); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	q, err := h.getQuotation(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.Entry{Action: audit.ActionCreate, Module: audit.ModuleQuotation, RecordID: id,
		QuotationID: id, RFQID: req.RFQID, Summary: fmt.Sprintf("Submitted quotation %s for %s", id, rfq.RFQNumber)})
	response.Created(w, q)
}

// FinalizeQuotation accepts a submitted quotation and completes its RFQ.
func (h *Handler) FinalizeQuotation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.QuotationStatusFinalized, audit.ActionFinalize, models.RFQStatusCompleted)
}

// RejectQuotation rejects a submitted quotation. The RFQ stays open for
// other vendors.
func (h *Handler) RejectQuotation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.QuotationStatusRejected, audit.ActionReject, "")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, to, action, rfqStatus string) {
	id := chi.URLParam(r, "id")
	q, err := h.getQuotation(id)
	if isNotFound(err) {
		response.Err(w, "quotation not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if q.Status != models.QuotationStatusSubmitted {
		response.Err(w, fmt.Sprintf("quotation is %s, only submitted quotations can be %s", q.Status, to), 409)
		return
	}

	now := database.Now()
	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE quotations SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, now, id, models.QuotationStatusSubmitted)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "quotation changed concurrently", 409)
		return
	}
	if rfqStatus != "" {
		if _, err := tx.Exec("UPDATE rfqs SET status = ?, updated_at = ? WHERE id = ?", rfqStatus, now, q.RFQID); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	q.Status = to
	q.UpdatedAt = now
	h.audit(r, audit.Entry{Action: action, Module: audit.ModuleQuotation, RecordID: id,
		QuotationID: id, RFQID: q.RFQID, Summary: fmt.Sprintf("Quotation %s %s", id, to)})
	response.JSON(w, q)
}

// ExportQuotation streams a quotation as CSV (default) or XLSX.
func (h *Handler) ExportQuotation(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatXLSX {
		response.Err(w, "format must be csv or xlsx", 400)
		return
	}

	id := chi.URLParam(r, "id")
	q, err := h.getQuotation(id)
	if isNotFound(err) || (err == nil && !canSee(caller(r), q)) {
		response.Err(w, "quotation not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.Log(h.DB, nil, h.Logger, audit.Entry{Username: caller(r).Subject, Action: audit.ActionExport,
		Module: audit.ModuleQuotation, RecordID: id, Summary: "Exported quotation as " + format})
	if err := export.Serve(w, q, format); err != nil {
		h.Logger.Error("quotation export failed", "quotation", id, "error", err)
	}
}
