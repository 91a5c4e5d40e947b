package validation

// Common enum values - these MUST match DB CHECK constraints in the database package.
var (
	ValidRFQStatuses       = []string{"draft", "pending", "sent", "completed", "closed", "cancelled"}
	ValidQuotationStatuses = []string{"submitted", "finalized", "rejected"}
	ValidPaymentStatuses   = []string{"pending", "approved"}
	ValidShippingOptions   = []string{"self", "vendor-managed"}
	ValidPortals           = []string{"vendor", "customer", "tech"}
	ValidAccountTypes      = []string{"checking", "savings", "current", "business"}
	ValidPaymentMethods    = []string{"wire", "ach", "swift", "card", "cheque", "other"}
)

// OpenRFQStatuses are the RFQ statuses that still accept quotations.
var OpenRFQStatuses = []string{"draft", "pending", "sent"}

// Contains reports whether value is one of allowed.
func Contains(allowed []string, value string) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}
