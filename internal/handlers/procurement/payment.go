package procurement

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seaprocure/internal/audit"
	"seaprocure/internal/database"
	"seaprocure/internal/models"
	"seaprocure/internal/response"
	"seaprocure/internal/validation"
)

// GetPaymentProof returns the customer's payment proof for a quotation,
// including the shipping decision; 404 while none exists.
func (h *Handler) GetPaymentProof(w http.ResponseWriter, r *http.Request) {
	qid := chi.URLParam(r, "quotationId")
	if q, err := h.getQuotation(qid); err != nil || !canSee(caller(r), q) {
		response.Err(w, "payment proof not found", 404)
		return
	}
	p, err := h.getProof(qid)
	if isNotFound(err) {
		response.Err(w, "payment proof not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, p)
}

// UploadPaymentProof records the customer's payment. Allowed once, after
// the vendor has submitted banking details.
func (h *Handler) UploadPaymentProof(w http.ResponseWriter, r *http.Request) {
	f, err := parseForm(w, r)
	if err != nil {
		response.Err(w, "invalid form: "+err.Error(), 400)
		return
	}
	req := models.PaymentProofRequest{
		QuotationID:          f.get("quotationId"),
		Amount:               f.float("amount"),
		Currency:             f.get("currency"),
		PaymentDate:          f.get("paymentDate"),
		PaymentMethod:        f.get("paymentMethod"),
		TransactionReference: f.get("transactionReference"),
		Notes:                f.get("notes"),
	}
	ve := &validation.ValidationErrors{}
	validation.ValidatePaymentProof(ve, req)
	validateFiles(ve, f.files)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	q, err := h.getQuotation(req.QuotationID)
	if isNotFound(err) {
		response.Err(w, "quotation not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if _, err := h.getBanking(req.QuotationID); isNotFound(err) {
		response.Err(w, "vendor banking details are not available yet", 409)
		return
	} else if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if _, err := h.getProof(req.QuotationID); err == nil {
		response.Err(w, "payment proof already uploaded", 409)
		return
	}

	docs, err := h.storeFiles(r.Context(), ownerPaymentProof, req.QuotationID, f.files)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		h.discard(r.Context(), docs)
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO payment_proofs (quotation_id, status, amount, currency, payment_date, payment_method,
		transaction_reference, notes, uploaded_by, created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		req.QuotationID, models.PaymentStatusPending, req.Amount, req.Currency, req.PaymentDate, req.PaymentMethod,
		req.TransactionReference, req.Notes, caller(r).Subject, database.Now())
	if err == nil {
		err = insertDocuments(tx, ownerPaymentProof, req.QuotationID, docs)
	}
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		h.discard(r.Context(), docs)
		if isConstraintErr(err) {
			response.Err(w, "payment proof already uploaded", 409)
			return
		}
		response.Err(w, err.Error(), 500)
		return
	}

	p, err := h.getProof(req.QuotationID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.Entry{Action: audit.ActionCreate, Module: audit.ModulePaymentProof, RecordID: req.QuotationID,
		QuotationID: req.QuotationID, RFQID: q.RFQID,
		Summary: fmt.Sprintf("Payment proof %s %.2f %s", req.TransactionReference, req.Amount, req.Currency)})
	response.Created(w, p)
}

// ApprovePayment confirms receipt of a pending payment. It cannot be undone.
func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	qid := chi.URLParam(r, "quotationId")
	now := database.Now()
	h.updateProof(w, r, qid, audit.ActionApprove,
		func(p models.PaymentProof) string {
			if p.Status != models.PaymentStatusPending {
				return "payment is already " + p.Status
			}
			return ""
		},
		`UPDATE payment_proofs SET status = 'approved', approved_at = ?, approved_by = ?
			WHERE quotation_id = ? AND status = 'pending'`,
		now, caller(r).Subject, qid)
}

// SelectShippingOption records the customer's shipping decision after
// approval. For self-managed shipping the customer's AWB and contact are
// stored with it.
func (h *Handler) SelectShippingOption(w http.ResponseWriter, r *http.Request) {
	qid := chi.URLParam(r, "quotationId")
	var req models.ShippingOptionRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateShippingOption(ve, req)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	if req.ShippingOption != models.ShippingSelf {
		req.AWB, req.ContactName, req.ContactPhone, req.ContactEmail = "", "", "", ""
	}

	h.updateProof(w, r, qid, audit.ActionUpdate,
		func(p models.PaymentProof) string {
			if p.Status != models.PaymentStatusApproved {
				return "shipping can be selected only after the payment is approved"
			}
			if p.ShippingOption != "" {
				return "shipping option already selected: " + p.ShippingOption
			}
			return ""
		},
		`UPDATE payment_proofs SET shipping_option = ?, self_shipping_awb = ?, self_shipping_contact_name = ?,
			self_shipping_contact_phone = ?, self_shipping_contact_email = ?
			WHERE quotation_id = ? AND status = 'approved' AND shipping_option = ''`,
		req.ShippingOption, req.AWB, req.ContactName, req.ContactPhone, req.ContactEmail, qid)
}

// SubmitVendorShipping records the vendor's AWB and contact for
// vendor-managed shipping. Allowed once.
func (h *Handler) SubmitVendorShipping(w http.ResponseWriter, r *http.Request) {
	qid := chi.URLParam(r, "quotationId")
	var req models.VendorShippingRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateVendorShipping(ve, req)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	h.updateProof(w, r, qid, audit.ActionUpdate,
		func(p models.PaymentProof) string {
			if p.ShippingOption != models.ShippingVendorManaged {
				return "vendor shipping details need the vendor-managed shipping option"
			}
			if p.VendorShippingAWB != "" {
				return "vendor shipping details already submitted"
			}
			return ""
		},
		`UPDATE payment_proofs SET vendor_shipping_awb = ?, vendor_shipping_contact_name = ?,
			vendor_shipping_contact_phone = ?, vendor_shipping_contact_email = ?, vendor_shipping_submitted_at = ?
			WHERE quotation_id = ? AND shipping_option = 'vendor-managed' AND vendor_shipping_awb = ''`,
		req.AWB, req.ContactName, req.ContactPhone, req.ContactEmail, database.Now(), qid)
}

// updateProof applies a guarded update to a payment proof. check returns a
// conflict message when the proof is not in the right state; the WHERE
// clause of query repeats the guard so concurrent updates cannot both win.
func (h *Handler) updateProof(w http.ResponseWriter, r *http.Request, qid, action string,
	check func(models.PaymentProof) string, query string, args ...any) {

	q, err := h.getQuotation(qid)
	if isNotFound(err) || (err == nil && !canSee(caller(r), q)) {
		response.Err(w, "payment proof not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	p, err := h.getProof(qid)
	if isNotFound(err) {
		response.Err(w, "payment proof not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if msg := check(p); msg != "" {
		response.Err(w, msg, 409)
		return
	}

	var res sql.Result
	res, err = h.DB.Exec(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "payment proof changed concurrently", 409)
		return
	}

	updated, err := h.getProof(qid)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	summary := fmt.Sprintf("Payment %s for %s", updated.Status, qid)
	if updated.ShippingOption != "" {
		summary += ", shipping " + updated.ShippingOption
	}
	h.audit(r, audit.Entry{Action: action, Module: audit.ModulePaymentProof, RecordID: qid,
		QuotationID: qid, RFQID: q.RFQID, Summary: summary})
	response.JSON(w, updated)
}
