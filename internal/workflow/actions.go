package workflow

import (
	"context"
	"errors"
	"fmt"

	"seaprocure/internal/apiclient"
	"seaprocure/internal/models"
	"seaprocure/internal/query"
	"seaprocure/internal/validation"
)

// ErrNotConfirmed is returned when the user declines an irreversible action.
var ErrNotConfirmed = errors.New("action not confirmed")

// Confirmer asks the user to confirm an action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// AlwaysConfirm confirms without asking.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// Writer is the write side of the procurement API.
type Writer interface {
	SubmitBankingDetails(ctx context.Context, b models.BankingDetails, files ...apiclient.Upload) (*models.BankingDetails, error)
	UploadPaymentProof(ctx context.Context, p models.PaymentProofRequest, files ...apiclient.Upload) (*models.PaymentProof, error)
	ApprovePayment(ctx context.Context, quotationID string) (*models.PaymentProof, error)
	SelectShippingOption(ctx context.Context, quotationID string, s models.ShippingOptionRequest) (*models.PaymentProof, error)
	SubmitVendorShippingDetails(ctx context.Context, quotationID string, s models.VendorShippingRequest) (*models.PaymentProof, error)
}

// Actions advance the workflow and invalidate what they change.
type Actions struct {
	API   Writer
	Cache *query.Cache
}

func NewActions(api Writer, cache *query.Cache) *Actions {
	if cache == nil {
		cache = query.NewCache(0)
	}
	return &Actions{API: api, Cache: cache}
}

// ApprovePaymentPrompt is shown before a payment is approved.
func ApprovePaymentPrompt(quotationID string) string {
	return fmt.Sprintf("Approve the payment for %s? This cannot be undone and the customer will be notified.", quotationID)
}

// ApprovePayment confirms the customer's payment. The confirmer is asked
// first; nothing is sent unless it agrees.
func (a *Actions) ApprovePayment(ctx context.Context, quotationID string, c Confirmer) (*models.PaymentProof, error) {
	ok, err := c.Confirm(ctx, ApprovePaymentPrompt(quotationID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConfirmed
	}
	p, err := a.API.ApprovePayment(ctx, quotationID)
	if err != nil {
		return nil, fmt.Errorf("approve payment for %s: %w", quotationID, err)
	}
	a.Cache.Invalidate(query.PaymentProofKey(quotationID))
	return p, nil
}

// SubmitVendorShipping sends the vendor's AWB and contact for a
// vendor-managed shipment. All four fields are checked before any request.
func (a *Actions) SubmitVendorShipping(ctx context.Context, quotationID string, s models.VendorShippingRequest) (*models.PaymentProof, error) {
	var ve validation.ValidationErrors
	validation.ValidateVendorShipping(&ve, s)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	p, err := a.API.SubmitVendorShippingDetails(ctx, quotationID, s)
	if err != nil {
		return nil, fmt.Errorf("submit vendor shipping for %s: %w", quotationID, err)
	}
	a.Cache.Invalidate(query.PaymentProofKey(quotationID))
	return p, nil
}

// SubmitBankingDetails sends the vendor's banking details for a finalized
// quotation along with optional supporting files.
func (a *Actions) SubmitBankingDetails(ctx context.Context, b models.BankingDetails, files ...apiclient.Upload) (*models.BankingDetails, error) {
	var ve validation.ValidationErrors
	validation.ValidateBankingDetails(&ve, b)
	if len(files) > validation.MaxFiles {
		ve.Add("documents", fmt.Sprintf("at most %d files are allowed", validation.MaxFiles))
	}
	for _, f := range files {
		validation.ValidateFileExtension(&ve, f.Name)
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	saved, err := a.API.SubmitBankingDetails(ctx, b, files...)
	if err != nil {
		return nil, fmt.Errorf("submit banking details for %s: %w", b.QuotationID, err)
	}
	a.Cache.Invalidate(query.BankingKey(b.QuotationID))
	return saved, nil
}

// UploadPaymentProof records the customer's payment.
func (a *Actions) UploadPaymentProof(ctx context.Context, p models.PaymentProofRequest, files ...apiclient.Upload) (*models.PaymentProof, error) {
	var ve validation.ValidationErrors
	validation.ValidatePaymentProof(&ve, p)
	for _, f := range files {
		validation.ValidateFileExtension(&ve, f.Name)
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	saved, err := a.API.UploadPaymentProof(ctx, p, files...)
	if err != nil {
		return nil, fmt.Errorf("upload payment proof for %s: %w", p.QuotationID, err)
	}
	a.Cache.Invalidate(query.PaymentProofKey(p.QuotationID))
	return saved, nil
}

// SelectShippingOption records the customer's shipping choice.
func (a *Actions) SelectShippingOption(ctx context.Context, quotationID string, s models.ShippingOptionRequest) (*models.PaymentProof, error) {
	var ve validation.ValidationErrors
	validation.ValidateShippingOption(&ve, s)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	p, err := a.API.SelectShippingOption(ctx, quotationID, s)
	if err != nil {
		return nil, fmt.Errorf("select shipping option for %s: %w", quotationID, err)
	}
	a.Cache.Invalidate(query.PaymentProofKey(quotationID))
	return p, nil
}
