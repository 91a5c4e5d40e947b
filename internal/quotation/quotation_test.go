package quotation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seaprocure/internal/models"
	"seaprocure/internal/query"
	"seaprocure/internal/result"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"   ", 0},
		{"abc", 0},
		{"12.5", 12.5},
		{" 4 ", 4},
		{"1,250.75", 1250.75},
		{"12,345,678", 12345678},
		{"-1,000", -1000},
		{"1,5", 0},
		{"12,50", 0},
		{"1,,0", 0},
		{",5", 0},
		{"1,2345", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"-inf", 0},
		{"1e400", 0},
		{"-3", -3},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseAmount(tt.in)
			assert.False(t, math.IsNaN(got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotal(t *testing.T) {
	assert.Equal(t, 0.0, Total(nil))
	assert.Equal(t, 0.0, Total([]Item{{QuotedPrice: "", OfferedQty: "5"}, {QuotedPrice: "10", OfferedQty: ""}}))
	assert.Equal(t, 250.0, Total([]Item{{QuotedPrice: "10", OfferedQty: "25"}}))
	assert.Equal(t, 0.0, Total([]Item{{QuotedPrice: "2,5", OfferedQty: "4"}}), "malformed grouping is not a number")
	assert.Equal(t, 2500.0, Total([]Item{
		{QuotedPrice: "500", OfferedQty: "4"},
		{QuotedPrice: "250", OfferedQty: "2"},
	}))
}

func TestBuild(t *testing.T) {
	rfq := &models.RFQ{ID: "RFQ-1001", RFQNumber: "RFQ-1001", Metadata: models.RFQMetadata{Items: []models.RFQItem{
		{Description: "Fuel injector nozzle", Quantity: 4, Unit: "pcs"},
		{Description: "Cylinder liner gasket", Quantity: 2, Unit: "set"},
	}}}
	d := NewDraft(rfq)
	require.Len(t, d.Items, 2)
	assert.Equal(t, "4", d.Items[0].OfferedQty)

	d.Items[0].QuotedPrice = "500"
	d.Items[1].QuotedPrice = "250"
	d.Items[1].OfferedQty = "3"
	d.Terms.PaymentTerm = "30 days"

	req, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, "RFQ-1001", req.RFQID)
	assert.Equal(t, "Quotation for RFQ-1001", req.Title)
	assert.Equal(t, models.QuotationStatusSubmitted, req.Status)
	assert.Equal(t, 2750.0, req.TotalAmount)
	assert.Equal(t, DefaultCurrency, req.Currency)
	assert.Equal(t, DefaultCurrency, req.Metadata.Terms.Currency)
	assert.Equal(t, "30 days", req.Metadata.Terms.PaymentTerm)
	assert.Equal(t, 2.0, req.Items[1].RequiredQty)
	assert.Equal(t, 3.0, req.Items[1].OfferedQty, "offering more than required is allowed")
}

func TestBuildRejectsEmptyDraft(t *testing.T) {
	_, err := (&Draft{RFQID: "RFQ-1001"}).Build()
	assert.ErrorIs(t, err, ErrNoItems)
	_, err = (&Draft{Items: []Item{{Description: "x"}}}).Build()
	assert.ErrorIs(t, err, ErrNoRFQ)
}

func TestLoadDraft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rfqId: RFQ-1001
title: Main engine spares
currency: EUR
terms:
  deliveryTerm: 14 days ex works
items:
  - description: Fuel injector nozzle
    requiredQty: 4
    quotedPrice: "500"
    offeredQty: "4"
  - description: Cylinder liner gasket
    requiredQty: 2
    quotedPrice: ""
    offeredQty: "2"
`), 0o644))

	d, err := LoadDraft(path)
	require.NoError(t, err)
	req, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, 2000.0, req.TotalAmount)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, "14 days ex works", req.Metadata.Terms.DeliveryTerm)
}

type fakeAPI struct {
	got models.QuotationRequest
	err error
}

func (f *fakeAPI) SubmitQuotation(_ context.Context, q models.QuotationRequest) (*models.Quotation, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = q
	return &models.Quotation{ID: "QUO-2026-0001", RFQID: q.RFQID, TotalAmount: q.TotalAmount, Status: q.Status}, nil
}

func TestSubmitInvalidatesQuotationLookup(t *testing.T) {
	cache := query.NewCache(time.Hour)
	key := query.QuotationForRFQKey("RFQ-1001")
	var submitted *models.Quotation
	lookup := func(context.Context) result.Lookup[models.Quotation] {
		if submitted == nil {
			return result.Missing[models.Quotation]()
		}
		return result.Found(submitted)
	}
	require.True(t, query.FetchLookup(context.Background(), cache, key, lookup).IsAbsent())

	api := &fakeAPI{}
	d := &Draft{RFQID: "RFQ-1001", Title: "Spares", Items: []Item{{Description: "Nozzle", QuotedPrice: "10", OfferedQty: "25"}}}
	q, err := Submit(context.Background(), api, cache, d)
	require.NoError(t, err)
	submitted = q
	assert.Equal(t, 250.0, api.got.TotalAmount)

	after := query.FetchLookup(context.Background(), cache, key, lookup)
	require.True(t, after.IsPresent())
	assert.Equal(t, "QUO-2026-0001", after.Value.ID)
}

func TestSubmitFailureKeepsCache(t *testing.T) {
	cache := query.NewCache(time.Hour)
	var invalidated bool
	cache.Subscribe(func([]string) { invalidated = true })

	api := &fakeAPI{err: errors.New("api: 409 quotation already submitted")}
	_, err := Submit(context.Background(), api, cache, &Draft{RFQID: "RFQ-1001", Title: "x", Items: []Item{{Description: "a"}}})
	assert.ErrorContains(t, err, "409")
	assert.False(t, invalidated)
}
