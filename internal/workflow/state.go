// Package workflow derives the procurement state of an RFQ from the
// resources that describe it and performs the actions that advance it.
package workflow

import (
	"errors"
	"fmt"

	"seaprocure/internal/models"
	"seaprocure/internal/result"
)

// ErrUnknownStatus is returned when a resource reports a status this
// package does not know.
var ErrUnknownStatus = errors.New("unknown status")

// State is the position of one RFQ in the quotation, payment and shipping
// workflow.
type State int

const (
	Unknown State = iota
	NoQuotation
	Submitted
	Rejected
	Finalized
	AwaitingPayment
	PaymentReceived
	Approved
	ShippingSelected
	ShippingConfirmed
)

var labels = map[State]string{
	Unknown:           "Unknown",
	NoQuotation:       "No Quotation",
	Submitted:         "Quotation Submitted",
	Rejected:          "Quotation Rejected",
	Finalized:         "Finalized",
	AwaitingPayment:   "Awaiting Payment",
	PaymentReceived:   "Payment Received",
	Approved:          "Payment Confirmed",
	ShippingSelected:  "Awaiting Vendor Shipping Details",
	ShippingConfirmed: "Shipping Confirmed",
}

// String returns the label shown to users.
func (s State) String() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further action is expected.
func (s State) Terminal() bool {
	return s == Rejected || s == ShippingConfirmed
}

// NextAction tells a user of portal what to do next, or "" when they have
// nothing to do.
func (s State) NextAction(portal string) string {
	switch portal {
	case models.PortalVendor:
		switch s {
		case NoQuotation:
			return "Submit a quotation"
		case Submitted:
			return "Wait for the quotation to be reviewed"
		case Finalized:
			return "Submit banking details"
		case AwaitingPayment:
			return "Wait for the customer's payment"
		case PaymentReceived:
			return "Review the payment proof and approve the payment"
		case Approved:
			return "Wait for the customer to choose a shipping option"
		case ShippingSelected:
			return "Submit the AWB number and shipping contact"
		}
	case models.PortalCustomer:
		switch s {
		case NoQuotation, Submitted:
			return "Wait for quotations to be finalized"
		case Finalized:
			return "Wait for the vendor's banking details"
		case AwaitingPayment:
			return "Pay the vendor and upload the payment proof"
		case PaymentReceived:
			return "Wait for the vendor to confirm the payment"
		case Approved:
			return "Choose a shipping option"
		case ShippingSelected:
			return "Wait for the vendor's shipping details"
		}
	case models.PortalTech:
		switch s {
		case Submitted:
			return "Finalize or reject the quotation"
		case PaymentReceived:
			return "Approve the payment on the vendor's behalf if needed"
		}
	}
	return ""
}

// Snapshot is everything known about one RFQ at a point in time.
// Banking and Proof are only looked up once the quotation is finalized.
type Snapshot struct {
	RFQ       *models.RFQ
	Quotation result.Lookup[models.Quotation]
	Banking   result.Lookup[models.BankingDetails]
	Proof     result.Lookup[models.PaymentProof]
}

// QuotationID returns the quotation's id, or "" when there is none.
func (s Snapshot) QuotationID() string {
	if s.Quotation.IsPresent() {
		return s.Quotation.Value.ID
	}
	return ""
}

// Derive computes the state of a snapshot. A failed lookup is an error,
// never a missing resource. A present payment proof decides the state on
// its own, whatever the banking lookup says.
func Derive(s Snapshot) (State, error) {
	switch s.Quotation.Presence {
	case result.Absent:
		return NoQuotation, nil
	case result.Failed:
		return Unknown, fmt.Errorf("quotation: %w", s.Quotation.Err)
	}

	q := s.Quotation.Value
	switch q.Status {
	case models.QuotationStatusSubmitted:
		return Submitted, nil
	case models.QuotationStatusRejected:
		return Rejected, nil
	case models.QuotationStatusFinalized:
	default:
		return Unknown, fmt.Errorf("quotation %s status %q: %w", q.ID, q.Status, ErrUnknownStatus)
	}

	switch s.Proof.Presence {
	case result.Present:
		return deriveFromProof(s.Proof.Value)
	case result.Failed:
		return Unknown, fmt.Errorf("payment proof: %w", s.Proof.Err)
	}

	switch s.Banking.Presence {
	case result.Present:
		return AwaitingPayment, nil
	case result.Failed:
		return Unknown, fmt.Errorf("banking details: %w", s.Banking.Err)
	}
	return Finalized, nil
}

func deriveFromProof(p *models.PaymentProof) (State, error) {
	switch p.Status {
	case models.PaymentStatusPending:
		return PaymentReceived, nil
	case models.PaymentStatusApproved:
	default:
		return Unknown, fmt.Errorf("payment proof %s status %q: %w", p.QuotationID, p.Status, ErrUnknownStatus)
	}

	switch p.ShippingOption {
	case "":
		return Approved, nil
	case models.ShippingSelf:
		return ShippingConfirmed, nil
	case models.ShippingVendorManaged:
		if p.VendorShippingAWB == "" {
			return ShippingSelected, nil
		}
		return ShippingConfirmed, nil
	}
	return Unknown, fmt.Errorf("shipping option %q: %w", p.ShippingOption, ErrUnknownStatus)
}
