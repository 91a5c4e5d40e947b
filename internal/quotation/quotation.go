// Package quotation builds a vendor's quotation from form input and
// submits it.
package quotation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"seaprocure/internal/models"
	"seaprocure/internal/query"
)

var (
	ErrNoItems = errors.New("a quotation needs at least one item")
	ErrNoRFQ   = errors.New("rfqId is required")
)

// DefaultCurrency is used when neither the draft nor its terms name one.
const DefaultCurrency = "USD"

// thousands matches numbers grouped with commas, like 1,250.75.
var thousands = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseAmount reads a number typed by the user. Commas are accepted only
// as thousands separators. Blank or unparseable input counts as zero, as
// do NaN and infinities.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if thousands.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Item is one quotation line as entered: price and quantity are raw text.
type Item struct {
	Description    string  `yaml:"description"`
	RequiredQty    float64 `yaml:"requiredQty"`
	QuotedPrice    string  `yaml:"quotedPrice"`
	OfferedQty     string  `yaml:"offeredQty"`
	OfferedQuality string  `yaml:"offeredQuality"`
}

// Amount is price times offered quantity.
func (i Item) Amount() float64 {
	return ParseAmount(i.QuotedPrice) * ParseAmount(i.OfferedQty)
}

// Total sums Amount over items.
func Total(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Amount()
	}
	return sum
}

// Draft is a quotation being filled in.
type Draft struct {
	RFQID       string       `yaml:"rfqId"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Currency    string       `yaml:"currency"`
	Items       []Item       `yaml:"items"`
	Terms       models.Terms `yaml:"terms"`
}

// NewDraft starts a quotation for rfq with one line per requested item.
// Offered quantity defaults to the required quantity.
func NewDraft(rfq *models.RFQ) *Draft {
	d := &Draft{
		RFQID: rfq.ID,
		Title: "Quotation for " + rfq.RFQNumber,
	}
	for _, it := range rfq.Metadata.Items {
		d.Items = append(d.Items, Item{
			Description: it.Description,
			RequiredQty: it.Quantity,
			OfferedQty:  strconv.FormatFloat(it.Quantity, 'f', -1, 64),
		})
	}
	return d
}

// LoadDraft reads a draft from a YAML file.
func LoadDraft(path string) (*Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse quotation %s: %w", path, err)
	}
	return &d, nil
}

// Total is the draft's computed total.
func (d *Draft) Total() float64 { return Total(d.Items) }

// Build produces the submission body. totalAmount is always recomputed
// from the items.
func (d *Draft) Build() (models.QuotationRequest, error) {
	if strings.TrimSpace(d.RFQID) == "" {
		return models.QuotationRequest{}, ErrNoRFQ
	}
	if len(d.Items) == 0 {
		return models.QuotationRequest{}, ErrNoItems
	}

	currency := d.Currency
	if currency == "" {
		currency = d.Terms.Currency
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	terms := d.Terms
	if terms.Currency == "" {
		terms.Currency = currency
	}

	req := models.QuotationRequest{
		RFQID:       d.RFQID,
		Title:       d.Title,
		Description: d.Description,
		Status:      models.QuotationStatusSubmitted,
		TotalAmount: d.Total(),
		Currency:    currency,
		Metadata:    models.QuotationMetadata{Terms: terms},
	}
	for _, it := range d.Items {
		req.Items = append(req.Items, models.QuotationItem{
			Description:    it.Description,
			RequiredQty:    it.RequiredQty,
			QuotedPrice:    ParseAmount(it.QuotedPrice),
			OfferedQty:     ParseAmount(it.OfferedQty),
			OfferedQuality: it.OfferedQuality,
		})
	}
	return req, nil
}

// Submitter sends a quotation to the API.
type Submitter interface {
	SubmitQuotation(ctx context.Context, q models.QuotationRequest) (*models.Quotation, error)
}

// Submit builds and sends the draft, then invalidates the RFQ and the
// quotation lookup so the next read sees the new quotation.
func Submit(ctx context.Context, api Submitter, cache *query.Cache, d *Draft) (*models.Quotation, error) {
	req, err := d.Build()
	if err != nil {
		return nil, err
	}
	q, err := api.SubmitQuotation(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit quotation for %s: %w", d.RFQID, err)
	}
	if cache != nil {
		cache.Invalidate(query.RFQKey(d.RFQID), query.RFQsKey, query.QuotationForRFQKey(d.RFQID))
	}
	return q, nil
}
