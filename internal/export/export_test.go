package export

import (
	"bytes"
	"encoding/csv"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"

	"seaprocure/internal/models"
)

func sampleQuotation() models.Quotation {
	return models.Quotation{
		QuotationNumber: "QUO-2026-0001",
		RFQID:           "RFQ-1001",
		VendorID:        "vendor1",
		Title:           "Engine spares offer",
		Status:          models.QuotationStatusSubmitted,
		Currency:        "USD",
		TotalAmount:     250,
		Items: []models.QuotationItem{
			{Description: "Fuel injection valve", RequiredQty: 4, OfferedQty: 25, QuotedPrice: 10},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleQuotation()); err != nil {
		t.Fatal(err)
	}
	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	last := records[len(records)-1]
	if last[1] != "Fuel injection valve" || last[5] != "250" {
		t.Errorf("item row = %v", last)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleQuotation()); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("Quotation", "B1"); v != "QUO-2026-0001" {
		t.Errorf("Quotation!B1 = %q", v)
	}
	if v, _ := f.GetCellValue("Items", "A1"); v != "#" {
		t.Errorf("Items!A1 = %q", v)
	}
	if v, _ := f.GetCellValue("Items", "F2"); v != "250" {
		t.Errorf("Items!F2 = %q", v)
	}
}

func TestServeRejectsUnknownFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := Serve(rec, sampleQuotation(), "pdf"); err == nil {
		t.Error("expected error for pdf")
	}
	rec = httptest.NewRecorder()
	if err := Serve(rec, sampleQuotation(), FormatCSV); err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
}
