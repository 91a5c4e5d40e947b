package procurement

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seaprocure/internal/audit"
	"seaprocure/internal/database"
	"seaprocure/internal/models"
	"seaprocure/internal/response"
	"seaprocure/internal/validation"
)

// GetBankingDetails returns the vendor banking details of a quotation;
// 404 while none exist.
func (h *Handler) GetBankingDetails(w http.ResponseWriter, r *http.Request) {
	qid := chi.URLParam(r, "quotationId")
	if q, err := h.getQuotation(qid); err != nil || !canSee(caller(r), q) {
		response.Err(w, "banking details not found", 404)
		return
	}
	b, err := h.getBanking(qid)
	if isNotFound(err) {
		response.Err(w, "banking details not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, b)
}

// SubmitBankingDetails records where the customer should pay. Allowed once,
// and only for a finalized quotation of the calling vendor.
func (h *Handler) SubmitBankingDetails(w http.ResponseWriter, r *http.Request) {
	f, err := parseForm(w, r)
	if err != nil {
		response.Err(w, "invalid form: "+err.Error(), 400)
		return
	}
	b := models.BankingDetails{
		QuotationID:       f.get("quotationId"),
		BankName:          f.get("bankName"),
		AccountHolderName: f.get("accountHolderName"),
		AccountNumber:     f.get("accountNumber"),
		AccountType:       f.get("accountType"),
		Street:            f.get("street"),
		City:              f.get("city"),
		State:             f.get("state"),
		PostalCode:        f.get("postalCode"),
		Country:           f.get("country"),
		SwiftCode:         f.get("swiftCode"),
		IBAN:              f.get("iban"),
		RoutingNumber:     f.get("routingNumber"),
		Currency:          f.get("currency"),
		Notes:             f.get("notes"),
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateBankingDetails(ve, b)
	validateFiles(ve, f.files)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	c := caller(r)
	q, err := h.getQuotation(b.QuotationID)
	if isNotFound(err) || (err == nil && !canSee(c, q)) {
		response.Err(w, "quotation not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if q.Status != models.QuotationStatusFinalized {
		response.Err(w, fmt.Sprintf("quotation is %s, banking details need a finalized quotation", q.Status), 409)
		return
	}
	if _, err := h.getBanking(b.QuotationID); err == nil {
		response.Err(w, "banking details already submitted", 409)
		return
	}

	docs, err := h.storeFiles(r.Context(), ownerBanking, b.QuotationID, f.files)
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

	_, err = tx.Exec(`INSERT INTO banking_details (quotation_id, vendor_id, bank_name, account_holder_name, account_number,
		account_type, street, city, state, postal_code, country, swift_code, iban, routing_number, currency, notes, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.QuotationID, q.VendorID, b.BankName, b.AccountHolderName, b.AccountNumber, b.AccountType,
		b.Street, b.City, b.State, b.PostalCode, b.Country, b.SwiftCode, b.IBAN, b.RoutingNumber,
		b.Currency, b.Notes, database.Now())
	if err == nil {
		err = insertDocuments(tx, ownerBanking, b.QuotationID, docs)
	}
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		h.discard(r.Context(), docs)
		if isConstraintErr(err) {
			response.Err(w, "banking details already submitted", 409)
			return
		}
		response.Err(w, err.Error(), 500)
		return
	}

	saved, err := h.getBanking(b.QuotationID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.Entry{Action: audit.ActionCreate, Module: audit.ModuleBanking, RecordID: b.QuotationID,
		QuotationID: b.QuotationID, RFQID: q.RFQID,
		Summary: fmt.Sprintf("Banking details for %s with %d document(s)", b.QuotationID, len(docs))})
	response.Created(w, saved)
}
