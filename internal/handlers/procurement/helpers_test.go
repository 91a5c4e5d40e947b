package procurement_test

import (
	"fmt"
	"net/http"
	"testing"

	"seaprocure/internal/api"
	"seaprocure/internal/models"
	"seaprocure/internal/server"
	"seaprocure/internal/testutil"
)

type env struct {
	t   *testing.T
	app *server.App
	h   http.Handler

	tech, vendor, customer string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	app := testutil.NewApp(t)
	return &env{
		t:        t,
		app:      app,
		h:        api.NewRouter(app),
		tech:     testutil.Token(t, app, "tech1"),
		vendor:   testutil.Token(t, app, "vendor1"),
		customer: testutil.Token(t, app, "customer1"),
	}
}

// addUser creates another admin on portal and returns its token.
func (e *env) addUser(username, portal string) string {
	e.t.Helper()
	_, err := e.app.DB.Exec(`INSERT INTO users (username, password_hash, display_name, portal, role)
		VALUES (?, 'x', ?, ?, 'admin')`, username, username, portal)
	if err != nil {
		e.t.Fatalf("insert %s user %s: %v", portal, username, err)
	}
	return testutil.Token(e.t, e.app, username)
}

func (e *env) addVendor(username string) string {
	return e.addUser(username, models.PortalVendor)
}

func quotationBody(rfqID string) models.QuotationRequest {
	return models.QuotationRequest{
		RFQID:    rfqID,
		Title:    "Spares offer",
		Currency: "USD",
		Items: []models.QuotationItem{
			{Description: "Fuel injection valve", RequiredQty: 4, QuotedPrice: 500, OfferedQty: 4},
			{Description: "Exhaust valve spindle", RequiredQty: 2, QuotedPrice: 250, OfferedQty: 2},
		},
		Metadata: models.QuotationMetadata{Terms: models.Terms{PaymentTerm: "30 days", DeliveryTerm: "CIF"}},
	}
}

func (e *env) submitQuotation(token, rfqID string) models.Quotation {
	e.t.Helper()
	w := testutil.Request(e.t, e.h, "POST", "/api/v1/vendor/quotation", token, quotationBody(rfqID))
	if w.Code != http.StatusCreated {
		e.t.Fatalf("submit quotation: %d %s", w.Code, w.Body.String())
	}
	return testutil.Decode[models.Quotation](e.t, w).Data
}

func (e *env) finalize(qid string) {
	e.t.Helper()
	w := testutil.Request(e.t, e.h, "POST", "/api/v1/tech/quotation/"+qid+"/finalize", e.tech, nil)
	if w.Code != http.StatusOK {
		e.t.Fatalf("finalize: %d %s", w.Code, w.Body.String())
	}
}

func bankingFields(qid string) map[string]string {
	return map[string]string{
		"quotationId":       qid,
		"bankName":          "Harbour Bank",
		"accountHolderName": "Marine Spares Trading",
		"accountNumber":     "0012345678",
		"accountType":       "business",
		"swiftCode":         "HARBSGSG",
		"currency":          "USD",
	}
}

func (e *env) submitBanking(qid string, files ...testutil.File) {
	e.t.Helper()
	w := testutil.Multipart(e.t, e.h, "/api/v1/vendor/banking-details", e.vendor, bankingFields(qid), files...)
	if w.Code != http.StatusCreated {
		e.t.Fatalf("banking details: %d %s", w.Code, w.Body.String())
	}
}

func proofFields(qid string) map[string]string {
	return map[string]string{
		"quotationId":          qid,
		"amount":               "2500",
		"currency":             "USD",
		"paymentDate":          "2026-10-01",
		"paymentMethod":        "wire",
		"transactionReference": "TRX-88123",
	}
}

func (e *env) uploadProof(qid string, files ...testutil.File) {
	e.t.Helper()
	w := testutil.Multipart(e.t, e.h, "/api/v1/customer/payment-proof", e.customer, proofFields(qid), files...)
	if w.Code != http.StatusCreated {
		e.t.Fatalf("payment proof: %d %s", w.Code, w.Body.String())
	}
}

func (e *env) approve(qid string) {
	e.t.Helper()
	w := testutil.Request(e.t, e.h, "POST", fmt.Sprintf("/api/v1/vendor/payment-proof/%s/approve", qid), e.vendor, nil)
	if w.Code != http.StatusOK {
		e.t.Fatalf("approve: %d %s", w.Code, w.Body.String())
	}
}

func pdf(name string) testutil.File {
	return testutil.File{Field: "documents", Name: name, Content: []byte("%PDF-1.4 test document")}
}
