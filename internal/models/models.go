package models

// Envelope is the standard JSON envelope for all API responses.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Portals served by the API. Each has its own path prefix under /api/v1/.
const (
	PortalVendor   = "vendor"
	PortalCustomer = "customer"
	PortalTech     = "tech"
)

// AllPortals lists every portal.
var AllPortals = []string{PortalVendor, PortalCustomer, PortalTech}

// RFQ statuses as observed in the portals.
const (
	RFQStatusDraft     = "draft"
	RFQStatusPending   = "pending"
	RFQStatusSent      = "sent"
	RFQStatusCompleted = "completed"
	RFQStatusClosed    = "closed"
	RFQStatusCancelled = "cancelled"
)

// Quotation statuses.
const (
	QuotationStatusSubmitted = "submitted"
	QuotationStatusFinalized = "finalized"
	QuotationStatusRejected  = "rejected"
)

// Payment proof statuses.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
)

// Shipping options chosen by the customer after approval.
const (
	ShippingSelf          = "self"
	ShippingVendorManaged = "vendor-managed"
)

type RFQItem struct {
	Description   string  `json:"description"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	PartNumber    string  `json:"partNumber,omitempty"`
	DrawingNumber string  `json:"drawingNumber,omitempty"`
}

type RFQMetadata struct {
	Items []RFQItem `json:"items"`
}

type RFQ struct {
	ID         string      `json:"id"`
	RFQNumber  string      `json:"rfqNumber"`
	Title      string      `json:"title"`
	Vessel     string      `json:"vessel,omitempty"`
	SupplyPort string      `json:"supplyPort"`
	Brand      string      `json:"brand,omitempty"`
	Model      string      `json:"model,omitempty"`
	Category   string      `json:"category,omitempty"`
	Metadata   RFQMetadata `json:"metadata"`
	Status     string      `json:"status"`
	DueDate    string      `json:"dueDate,omitempty"`
	CreatedAt  string      `json:"createdAt"`
	UpdatedAt  string      `json:"updatedAt"`
}

type QuotationItem struct {
	Description    string  `json:"description"`
	RequiredQty    float64 `json:"requiredQty"`
	QuotedPrice    float64 `json:"quotedPrice"`
	OfferedQty     float64 `json:"offeredQty"`
	OfferedQuality string  `json:"offeredQuality,omitempty"`
}

// Terms are the commercial terms attached to a quotation.
type Terms struct {
	CreditType    string `json:"creditType,omitempty" yaml:"creditType"`
	PaymentTerm   string `json:"paymentTerm,omitempty" yaml:"paymentTerm"`
	InsuranceTerm string `json:"insuranceTerm,omitempty" yaml:"insuranceTerm"`
	TaxTerm       string `json:"taxTerm,omitempty" yaml:"taxTerm"`
	TransportTerm string `json:"transportTerm,omitempty" yaml:"transportTerm"`
	DeliveryTerm  string `json:"deliveryTerm,omitempty" yaml:"deliveryTerm"`
	PackingTerm   string `json:"packingTerm,omitempty" yaml:"packingTerm"`
	Currency      string `json:"currency,omitempty" yaml:"currency"`
}

type QuotationMetadata struct {
	Terms Terms `json:"terms"`
}

type Quotation struct {
	ID              string            `json:"id"`
	QuotationNumber string            `json:"quotationNumber"`
	RFQID           string            `json:"rfqId"`
	VendorID        string            `json:"vendorId"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Status          string            `json:"status"`
	TotalAmount     float64           `json:"totalAmount"`
	Currency        string            `json:"currency"`
	Items           []QuotationItem   `json:"items"`
	Metadata        QuotationMetadata `json:"metadata"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
}

// QuotationRequest is the body of a quotation submission.
type QuotationRequest struct {
	RFQID       string            `json:"rfqId"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status"`
	TotalAmount float64           `json:"totalAmount"`
	Currency    string            `json:"currency"`
	Items       []QuotationItem   `json:"items"`
	Metadata    QuotationMetadata `json:"metadata"`
}

// Document is an uploaded proof file.
type Document struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	StorageKey  string `json:"storageKey"`
	UploadedAt  string `json:"uploadedAt"`
}

type BankingDetails struct {
	QuotationID       string     `json:"quotationId" yaml:"quotationId"`
	VendorID          string     `json:"vendorId,omitempty" yaml:"-"`
	BankName          string     `json:"bankName" yaml:"bankName"`
	AccountHolderName string     `json:"accountHolderName" yaml:"accountHolderName"`
	AccountNumber     string     `json:"accountNumber" yaml:"accountNumber"`
	AccountType       string     `json:"accountType,omitempty" yaml:"accountType"`
	Street            string     `json:"street,omitempty" yaml:"street"`
	City              string     `json:"city,omitempty" yaml:"city"`
	State             string     `json:"state,omitempty" yaml:"state"`
	PostalCode        string     `json:"postalCode,omitempty" yaml:"postalCode"`
	Country           string     `json:"country,omitempty" yaml:"country"`
	SwiftCode         string     `json:"swiftCode,omitempty" yaml:"swiftCode"`
	IBAN              string     `json:"iban,omitempty" yaml:"iban"`
	RoutingNumber     string     `json:"routingNumber,omitempty" yaml:"routingNumber"`
	Currency          string     `json:"currency,omitempty" yaml:"currency"`
	Notes             string     `json:"notes,omitempty" yaml:"notes"`
	Documents         []Document `json:"documents" yaml:"-"`
	CreatedAt         string     `json:"createdAt,omitempty" yaml:"-"`
}

type PaymentProof struct {
	QuotationID          string     `json:"quotationId"`
	Status               string     `json:"status"`
	Amount               float64    `json:"amount"`
	Currency             string     `json:"currency"`
	PaymentDate          string     `json:"paymentDate"`
	PaymentMethod        string     `json:"paymentMethod"`
	TransactionReference string     `json:"transactionReference"`
	Notes                string     `json:"notes,omitempty"`
	Documents            []Document `json:"documents"`
	ApprovedAt           *string    `json:"approvedAt"`
	ApprovedBy           string     `json:"approvedBy,omitempty"`

	ShippingOption string `json:"shippingOption,omitempty"`

	SelfShippingAWB          string `json:"selfShippingAwb,omitempty"`
	SelfShippingContactName  string `json:"selfShippingContactName,omitempty"`
	SelfShippingContactPhone string `json:"selfShippingContactPhone,omitempty"`
	SelfShippingContactEmail string `json:"selfShippingContactEmail,omitempty"`

	VendorShippingAWB          string  `json:"vendorShippingAwb,omitempty"`
	VendorShippingContactName  string  `json:"vendorShippingContactName,omitempty"`
	VendorShippingContactPhone string  `json:"vendorShippingContactPhone,omitempty"`
	VendorShippingContactEmail string  `json:"vendorShippingContactEmail,omitempty"`
	VendorShippingSubmittedAt  *string `json:"vendorShippingSubmittedAt"`

	CreatedAt string `json:"createdAt"`
}

// PaymentProofRequest carries the non-file fields of a payment proof upload.
type PaymentProofRequest struct {
	QuotationID          string  `json:"quotationId"`
	Amount               float64 `json:"amount"`
	Currency             string  `json:"currency"`
	PaymentDate          string  `json:"paymentDate"`
	PaymentMethod        string  `json:"paymentMethod"`
	TransactionReference string  `json:"transactionReference"`
	Notes                string  `json:"notes,omitempty"`
}

// ShippingOptionRequest is the customer's shipping decision.
type ShippingOptionRequest struct {
	ShippingOption string `json:"shippingOption"`
	AWB            string `json:"selfShippingAwb,omitempty"`
	ContactName    string `json:"selfShippingContactName,omitempty"`
	ContactPhone   string `json:"selfShippingContactPhone,omitempty"`
	ContactEmail   string `json:"selfShippingContactEmail,omitempty"`
}

// VendorShippingRequest is the vendor's AWB and contact submission.
type VendorShippingRequest struct {
	AWB          string `json:"vendorShippingAwb"`
	ContactName  string `json:"vendorShippingContactName"`
	ContactPhone string `json:"vendorShippingContactPhone"`
	ContactEmail string `json:"vendorShippingContactEmail"`
}

// Role maps permission names to flags for one portal.
type Role struct {
	Name        string          `json:"name" yaml:"name"`
	Portal      string          `json:"portal" yaml:"portal"`
	Permissions map[string]bool `json:"permissions" yaml:"permissions"`
}

// User is an authenticated principal of one portal.
type User struct {
	ID          int      `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Portal      string   `json:"portal"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// ChangeEvent is broadcast on the websocket feed after every mutation.
type ChangeEvent struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Action      string `json:"action"`
	QuotationID string `json:"quotationId,omitempty"`
	RFQID       string `json:"rfqId,omitempty"`
}
