package validation

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"seaprocure/internal/models"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// Err returns ve as an error, or nil when nothing was collected.
func (ve *ValidationErrors) Err() error {
	if !ve.HasErrors() {
		return nil
	}
	return ve
}

// RequireField checks a required string field is non-empty.
func RequireField(ve *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
	}
}

// ValidateEnum checks a field is one of allowed values.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value == "" {
		return
	}
	if Contains(allowed, value) {
		return
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateDate checks a field is a valid date (YYYY-MM-DD).
func ValidateDate(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	_, err := time.Parse("2006-01-02", value)
	if err != nil {
		ve.Add(field, "must be a valid date (YYYY-MM-DD)")
	}
}

// ValidatePositiveFloat checks a field is > 0.
func ValidatePositiveFloat(ve *ValidationErrors, field string, value float64) {
	if value <= 0 {
		ve.Add(field, "must be a positive number")
	}
}

// ValidateNonNegativeFloat checks a field is >= 0.
func ValidateNonNegativeFloat(ve *ValidationErrors, field string, value float64) {
	if value < 0 {
		ve.Add(field, "must be non-negative")
	}
}

// Maximum value constants to prevent overflow and ensure reasonable limits.
const (
	MaxQuantity     = 1000000.0
	MaxPrice        = 100000000.0
	MaxStringLength = 10000
	MaxItems        = 500
)

// ValidateMaxQuantity checks quantity doesn't exceed reasonable maximum.
func ValidateMaxQuantity(ve *ValidationErrors, field string, value float64) {
	if value > MaxQuantity {
		ve.Add(field, fmt.Sprintf("exceeds maximum allowed quantity of %.0f", MaxQuantity))
	}
}

// ValidateMaxPrice checks price doesn't exceed reasonable maximum.
func ValidateMaxPrice(ve *ValidationErrors, field string, value float64) {
	if value > MaxPrice {
		ve.Add(field, fmt.Sprintf("exceeds maximum allowed price of %.2f", MaxPrice))
	}
}

// ValidateEmail checks a field is a valid email (if non-empty).
func ValidateEmail(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	_, err := mail.ParseAddress(value)
	if err != nil {
		ve.Add(field, "must be a valid email address")
	}
}

// ValidateMaxLength checks string doesn't exceed max length.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len(value) > max {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// ValidateQuotationRequest checks a quotation submission.
// Offered quantities above the requested quantity are accepted.
func ValidateQuotationRequest(ve *ValidationErrors, q models.QuotationRequest) {
	RequireField(ve, "rfqId", q.RFQID)
	RequireField(ve, "title", q.Title)
	ValidateMaxLength(ve, "title", q.Title, 255)
	ValidateMaxLength(ve, "description", q.Description, MaxStringLength)
	ValidateEnum(ve, "status", q.Status, []string{models.QuotationStatusSubmitted})
	ValidateNonNegativeFloat(ve, "totalAmount", q.TotalAmount)
	if len(q.Items) == 0 {
		ve.Add("items", "at least one item is required")
	}
	if len(q.Items) > MaxItems {
		ve.Add("items", fmt.Sprintf("at most %d items are allowed", MaxItems))
	}
	for i, it := range q.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		RequireField(ve, prefix+"description", it.Description)
		ValidateNonNegativeFloat(ve, prefix+"quotedPrice", it.QuotedPrice)
		ValidateNonNegativeFloat(ve, prefix+"offeredQty", it.OfferedQty)
		ValidateNonNegativeFloat(ve, prefix+"requiredQty", it.RequiredQty)
		ValidateMaxPrice(ve, prefix+"quotedPrice", it.QuotedPrice)
		ValidateMaxQuantity(ve, prefix+"offeredQty", it.OfferedQty)
	}
}

// ValidateBankingDetails checks the mandatory banking fields.
func ValidateBankingDetails(ve *ValidationErrors, b models.BankingDetails) {
	RequireField(ve, "quotationId", b.QuotationID)
	RequireField(ve, "bankName", b.BankName)
	RequireField(ve, "accountHolderName", b.AccountHolderName)
	RequireField(ve, "accountNumber", b.AccountNumber)
	ValidateEnum(ve, "accountType", b.AccountType, ValidAccountTypes)
	ValidateMaxLength(ve, "notes", b.Notes, MaxStringLength)
	if b.SwiftCode != "" && (len(b.SwiftCode) != 8 && len(b.SwiftCode) != 11) {
		ve.Add("swiftCode", "must be 8 or 11 characters")
	}
	ValidateMaxLength(ve, "iban", b.IBAN, 34)
}

// ValidatePaymentProof checks a payment proof upload.
func ValidatePaymentProof(ve *ValidationErrors, p models.PaymentProofRequest) {
	RequireField(ve, "quotationId", p.QuotationID)
	ValidatePositiveFloat(ve, "amount", p.Amount)
	RequireField(ve, "currency", p.Currency)
	RequireField(ve, "paymentDate", p.PaymentDate)
	ValidateDate(ve, "paymentDate", p.PaymentDate)
	ValidateEnum(ve, "paymentMethod", p.PaymentMethod, ValidPaymentMethods)
	RequireField(ve, "transactionReference", p.TransactionReference)
}

// ValidateShippingOption checks the customer's shipping choice. Self-managed
// shipping requires the customer's AWB and contact.
func ValidateShippingOption(ve *ValidationErrors, s models.ShippingOptionRequest) {
	RequireField(ve, "shippingOption", s.ShippingOption)
	ValidateEnum(ve, "shippingOption", s.ShippingOption, ValidShippingOptions)
	if s.ShippingOption == models.ShippingSelf {
		RequireField(ve, "selfShippingAwb", s.AWB)
		RequireField(ve, "selfShippingContactName", s.ContactName)
		RequireField(ve, "selfShippingContactPhone", s.ContactPhone)
		RequireField(ve, "selfShippingContactEmail", s.ContactEmail)
		ValidateEmail(ve, "selfShippingContactEmail", s.ContactEmail)
	}
}

// ValidateVendorShipping checks the vendor-managed shipping submission.
// All four fields are mandatory.
func ValidateVendorShipping(ve *ValidationErrors, s models.VendorShippingRequest) {
	RequireField(ve, "vendorShippingAwb", s.AWB)
	RequireField(ve, "vendorShippingContactName", s.ContactName)
	RequireField(ve, "vendorShippingContactPhone", s.ContactPhone)
	RequireField(ve, "vendorShippingContactEmail", s.ContactEmail)
	ValidateEmail(ve, "vendorShippingContactEmail", s.ContactEmail)
}

// File upload validation constants.
const (
	MaxFileSize = 20 * 1024 * 1024
	MaxFiles    = 10
)

// AllowedExtensions is the whitelist of proof document extensions.
var AllowedExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp",
	".doc", ".docx", ".xls", ".xlsx", ".csv", ".txt",
}

// ValidateFileUpload validates uploaded file size, type, and name.
func ValidateFileUpload(ve *ValidationErrors, filename string, size int64) {
	if size == 0 {
		ve.Add("file", "cannot be empty (0 bytes)")
		return
	}
	if size > MaxFileSize {
		ve.Add("file", fmt.Sprintf("exceeds maximum size of %d MB (got %d MB)",
			MaxFileSize/(1024*1024), size/(1024*1024)))
		return
	}

	ValidateFilename(ve, filename)
	ValidateFileExtension(ve, filename)
}

// ValidateFilename checks for path traversal and malicious characters.
func ValidateFilename(ve *ValidationErrors, filename string) {
	if filename == "" {
		ve.Add("filename", "is required")
		return
	}

	if strings.Contains(filename, "..") {
		ve.Add("filename", "contains invalid path traversal sequence (..)")
	}
	if strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\") {
		ve.Add("filename", "cannot be an absolute path")
	}
	if strings.Contains(filename, "\x00") {
		ve.Add("filename", "contains null bytes")
	}
	if strings.ContainsAny(filename, "\r\n") {
		ve.Add("filename", "contains line breaks")
	}
}

// ValidateFileExtension checks if file extension is allowed.
func ValidateFileExtension(ve *ValidationErrors, filename string) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ve.Add("filename", "must have a file extension")
		return
	}
	if !Contains(AllowedExtensions, ext) {
		ve.Add("filename", fmt.Sprintf("file type not in allowed list: %s", ext))
	}
}

// SanitizeFilename removes dangerous characters and path components.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")

	replacements := map[string]string{
		"..": "_", "/": "_", "\\": "_", "|": "_", "&": "_", ";": "_",
		"$": "_", "`": "_", "<": "_", ">": "_", "*": "_", "?": "_",
		"\r": "", "\n": "", "\t": "_",
	}
	for old, new := range replacements {
		filename = strings.ReplaceAll(filename, old, new)
	}

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		nameWithoutExt := filename[:len(filename)-len(ext)]
		if len(nameWithoutExt) > 200 {
			nameWithoutExt = nameWithoutExt[:200]
		}
		filename = nameWithoutExt + ext
	}
	return filename
}
