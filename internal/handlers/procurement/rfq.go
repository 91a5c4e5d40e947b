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

// ListRFQs returns all RFQs, newest first. Drafts are visible to tech only.
func (h *Handler) ListRFQs(w http.ResponseWriter, r *http.Request) {
	query := "SELECT " + rfqColumns + " FROM rfqs"
	if caller(r).Portal != models.PortalTech {
		query += " WHERE status != 'draft'"
	}
	rows, err := h.DB.Query(query + " ORDER BY created_at DESC, id DESC")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.RFQ{}
	for rows.Next() {
		rfq, err := scanRFQ(rows)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		items = append(items, rfq)
	}
	response.JSON(w, items)
}

// GetRFQ returns a single RFQ with its items.
func (h *Handler) GetRFQ(w http.ResponseWriter, r *http.Request) {
	rfq, err := h.getRFQ(chi.URLParam(r, "id"))
	if isNotFound(err) || (err == nil && rfq.Status == models.RFQStatusDraft && caller(r).Portal != models.PortalTech) {
		response.Err(w, "RFQ not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, rfq)
}

// CreateRFQ creates a new RFQ. Status defaults to draft.
func (h *Handler) CreateRFQ(w http.ResponseWriter, r *http.Request) {
	var rfq models.RFQ
	if err := response.DecodeBody(r, &rfq); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "title", rfq.Title)
	validation.RequireField(ve, "supplyPort", rfq.SupplyPort)
	validation.ValidateEnum(ve, "status", rfq.Status, validation.ValidRFQStatuses)
	validation.ValidateDate(ve, "dueDate", rfq.DueDate)
	if len(rfq.Metadata.Items) == 0 {
		ve.Add("metadata.items", "at least one item is required")
	}
	for i, it := range rfq.Metadata.Items {
		validation.RequireField(ve, fmt.Sprintf("metadata.items[%d].description", i), it.Description)
		validation.ValidatePositiveFloat(ve, fmt.Sprintf("metadata.items[%d].quantity", i), it.Quantity)
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	if rfq.Status == "" {
		rfq.Status = models.RFQStatusDraft
	}
	rfq.ID = database.NextID(h.DB, "RFQ", "rfqs", 4)
	if rfq.RFQNumber == "" {
		rfq.RFQNumber = rfq.ID
	}
	inserted, err := database.InsertRFQ(h.DB, rfq, caller(r).Subject)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if !inserted {
		response.Err(w, "RFQ number already exists", 409)
		return
	}

	created, err := h.getRFQ(rfq.ID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.Entry{Action: audit.ActionCreate, Module: audit.ModuleRFQ, RecordID: created.ID,
		RFQID: created.ID, Summary: "Created RFQ " + created.RFQNumber})
	response.Created(w, created)
}
