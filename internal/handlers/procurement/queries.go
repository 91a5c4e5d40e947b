package procurement

import (
	"database/sql"
	"encoding/json"

	"seaprocure/internal/database"
	"seaprocure/internal/models"
)

const rfqColumns = `id, rfq_number, title, vessel, supply_port, brand, model, category, items, status, due_date, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRFQ(s scanner) (models.RFQ, error) {
	var rfq models.RFQ
	var items string
	err := s.Scan(&rfq.ID, &rfq.RFQNumber, &rfq.Title, &rfq.Vessel, &rfq.SupplyPort, &rfq.Brand,
		&rfq.Model, &rfq.Category, &items, &rfq.Status, &rfq.DueDate, &rfq.CreatedAt, &rfq.UpdatedAt)
	if err != nil {
		return rfq, err
	}
	if err := json.Unmarshal([]byte(items), &rfq.Metadata.Items); err != nil {
		return rfq, err
	}
	if rfq.Metadata.Items == nil {
		rfq.Metadata.Items = []models.RFQItem{}
	}
	return rfq, nil
}

func (h *Handler) getRFQ(id string) (models.RFQ, error) {
	return scanRFQ(h.DB.QueryRow("SELECT "+rfqColumns+" FROM rfqs WHERE id = ?", id))
}

const quotationColumns = `id, quotation_number, rfq_id, vendor_id, title, description, status, total_amount, currency, terms, created_at, updated_at`

// loadQuotation reads the quotation row matched by where, then its items.
func (h *Handler) loadQuotation(where string, args ...any) (models.Quotation, error) {
	var q models.Quotation
	var terms string
	err := h.DB.QueryRow("SELECT "+quotationColumns+" FROM quotations "+where, args...).
		Scan(&q.ID, &q.QuotationNumber, &q.RFQID, &q.VendorID, &q.Title, &q.Description, &q.Status,
			&q.TotalAmount, &q.Currency, &terms, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(terms), &q.Metadata.Terms); err != nil {
		return q, err
	}

	rows, err := h.DB.Query(`SELECT description, required_qty, quoted_price, offered_qty, offered_quality
		FROM quotation_items WHERE quotation_id = ? ORDER BY line`, q.ID)
	if err != nil {
		return q, err
	}
	defer rows.Close()
	q.Items = []models.QuotationItem{}
	for rows.Next() {
		var it models.QuotationItem
		if err := rows.Scan(&it.Description, &it.RequiredQty, &it.QuotedPrice, &it.OfferedQty, &it.OfferedQuality); err != nil {
			return q, err
		}
		q.Items = append(q.Items, it)
	}
	return q, rows.Err()
}

func (h *Handler) getQuotation(id string) (models.Quotation, error) {
	return h.loadQuotation("WHERE id = ?", id)
}

// quotationForRFQ returns the vendor's own quotation when vendorID is set,
// otherwise the most relevant one: finalized, then submitted, then newest.
func (h *Handler) quotationForRFQ(rfqID, vendorID string) (models.Quotation, error) {
	if vendorID != "" {
		return h.loadQuotation("WHERE rfq_id = ? AND vendor_id = ?", rfqID, vendorID)
	}
	return h.loadQuotation(`WHERE rfq_id = ?
		ORDER BY CASE status WHEN 'finalized' THEN 0 WHEN 'submitted' THEN 1 ELSE 2 END, created_at DESC
		LIMIT 1`, rfqID)
}

func (h *Handler) getBanking(qid string) (models.BankingDetails, error) {
	var b models.BankingDetails
	err := h.DB.QueryRow(`SELECT quotation_id, vendor_id, bank_name, account_holder_name, account_number, account_type,
		street, city, state, postal_code, country, swift_code, iban, routing_number, currency, notes, created_at
		FROM banking_details WHERE quotation_id = ?`, qid).
		Scan(&b.QuotationID, &b.VendorID, &b.BankName, &b.AccountHolderName, &b.AccountNumber, &b.AccountType,
			&b.Street, &b.City, &b.State, &b.PostalCode, &b.Country, &b.SwiftCode, &b.IBAN, &b.RoutingNumber,
			&b.Currency, &b.Notes, &b.CreatedAt)
	if err != nil {
		return b, err
	}
	b.Documents, err = h.documents(ownerBanking, qid)
	return b, err
}

func (h *Handler) getProof(qid string) (models.PaymentProof, error) {
	var p models.PaymentProof
	var approvedAt, vendorSubmittedAt sql.NullString
	err := h.DB.QueryRow(`SELECT quotation_id, status, amount, currency, payment_date, payment_method,
		transaction_reference, notes, approved_at, approved_by, shipping_option,
		self_shipping_awb, self_shipping_contact_name, self_shipping_contact_phone, self_shipping_contact_email,
		vendor_shipping_awb, vendor_shipping_contact_name, vendor_shipping_contact_phone, vendor_shipping_contact_email,
		vendor_shipping_submitted_at, created_at
		FROM payment_proofs WHERE quotation_id = ?`, qid).
		Scan(&p.QuotationID, &p.Status, &p.Amount, &p.Currency, &p.PaymentDate, &p.PaymentMethod,
			&p.TransactionReference, &p.Notes, &approvedAt, &p.ApprovedBy, &p.ShippingOption,
			&p.SelfShippingAWB, &p.SelfShippingContactName, &p.SelfShippingContactPhone, &p.SelfShippingContactEmail,
			&p.VendorShippingAWB, &p.VendorShippingContactName, &p.VendorShippingContactPhone, &p.VendorShippingContactEmail,
			&vendorSubmittedAt, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	p.ApprovedAt = database.StringPtr(approvedAt)
	p.VendorShippingSubmittedAt = database.StringPtr(vendorSubmittedAt)
	p.Documents, err = h.documents(ownerPaymentProof, qid)
	return p, err
}

func (h *Handler) documents(ownerType, qid string) ([]models.Document, error) {
	rows, err := h.DB.Query(`SELECT id, file_name, content_type, size, storage_key, uploaded_at
		FROM documents WHERE owner_type = ? AND quotation_id = ? ORDER BY uploaded_at, id`, ownerType, qid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.FileName, &d.ContentType, &d.Size, &d.StorageKey, &d.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
