package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"seaprocure/internal/models"
	"seaprocure/internal/result"
)

// Upload is a file attached to a multipart submission.
type Upload struct {
	Name    string
	Content io.Reader
}

const documentsField = "documents"

func (c *Client) portalPath(format string, args ...interface{}) string {
	return "/api/v1/" + c.Portal + fmt.Sprintf(format, args...)
}

// call sends a JSON request through Do and decodes the envelope into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// lookup fetches an optional resource. 404 means absent; anything else
// that is not a 2xx is a failure.
func lookup[T any](ctx context.Context, c *Client, path string) result.Lookup[T] {
	var v T
	err := c.call(ctx, http.MethodGet, path, nil, &v)
	switch {
	case err == nil:
		return result.Found(&v)
	case IsStatus(err, http.StatusNotFound):
		return result.Missing[T]()
	default:
		return result.Failure[T](err)
	}
}

// multipartBody encodes fields and files. The returned bytes are reused
// for the retry after a token refresh.
func multipartBody(fields map[string]string, files []Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(documentsField, f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (c *Client) upload(ctx context.Context, path string, fields map[string]string, files []Upload, out interface{}) error {
	data, contentType, err := multipartBody(fields, files)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// Login authenticates and stores the issued tokens.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	data, err := json.Marshal(models.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/auth/login", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	var out models.LoginResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	if err := c.Tokens.SetTokens(out.AccessToken, out.RefreshToken); err != nil {
		return nil, fmt.Errorf("storing tokens: %w", err)
	}
	return &out, nil
}

// Logout revokes the refresh token on the server and forgets both tokens.
func (c *Client) Logout(ctx context.Context) error {
	_, refresh := c.Tokens.Tokens()
	if refresh != "" {
		if err := c.call(ctx, http.MethodPost, "/api/v1/auth/logout", models.RefreshRequest{RefreshToken: refresh}, nil); err != nil {
			c.Logger.Warn("logout request failed", "error", err)
		}
	}
	return c.Tokens.Clear()
}

// Refresh forces a token refresh regardless of the current token.
func (c *Client) Refresh(ctx context.Context) error {
	used, _ := c.Tokens.Tokens()
	_, err := c.refresh(ctx, used)
	return err
}

func (c *Client) ListRFQs(ctx context.Context) ([]models.RFQ, error) {
	var out []models.RFQ
	err := c.call(ctx, http.MethodGet, c.portalPath("/rfq"), nil, &out)
	return out, err
}

func (c *Client) GetRFQ(ctx context.Context, id string) (*models.RFQ, error) {
	var out models.RFQ
	if err := c.call(ctx, http.MethodGet, c.portalPath("/rfq/%s", url.PathEscape(id)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRFQ is available on the tech portal only.
func (c *Client) CreateRFQ(ctx context.Context, rfq models.RFQ) (*models.RFQ, error) {
	var out models.RFQ
	if err := c.call(ctx, http.MethodPost, c.portalPath("/rfq"), rfq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQuotationForRFQ returns the caller's quotation for an RFQ, or the
// finalized one for customer and tech callers.
func (c *Client) GetQuotationForRFQ(ctx context.Context, rfqID string) result.Lookup[models.Quotation] {
	return lookup[models.Quotation](ctx, c, c.portalPath("/quotation/rfq/%s", url.PathEscape(rfqID)))
}

func (c *Client) SubmitQuotation(ctx context.Context, q models.QuotationRequest) (*models.Quotation, error) {
	var out models.Quotation
	if err := c.call(ctx, http.MethodPost, c.portalPath("/quotation"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinalizeQuotation(ctx context.Context, id string) (*models.Quotation, error) {
	return c.quotationAction(ctx, id, "finalize")
}

func (c *Client) RejectQuotation(ctx context.Context, id string) (*models.Quotation, error) {
	return c.quotationAction(ctx, id, "reject")
}

func (c *Client) quotationAction(ctx context.Context, id, action string) (*models.Quotation, error) {
	var out models.Quotation
	if err := c.call(ctx, http.MethodPost, c.portalPath("/quotation/%s/%s", url.PathEscape(id), action), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportQuotation downloads a quotation as xlsx or csv.
func (c *Client) ExportQuotation(ctx context.Context, id, format string) ([]byte, error) {
	path := c.portalPath("/quotation/%s/export?format=%s", url.PathEscape(id), url.QueryEscape(format))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decode(resp, nil)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) SubmitBankingDetails(ctx context.Context, b models.BankingDetails, files ...Upload) (*models.BankingDetails, error) {
	fields := map[string]string{
		"quotationId":       b.QuotationID,
		"bankName":          b.BankName,
		"accountHolderName": b.AccountHolderName,
		"accountNumber":     b.AccountNumber,
		"accountType":       b.AccountType,
		"street":            b.Street,
		"city":              b.City,
		"state":             b.State,
		"postalCode":        b.PostalCode,
		"country":           b.Country,
		"swiftCode":         b.SwiftCode,
		"iban":              b.IBAN,
		"routingNumber":     b.RoutingNumber,
		"currency":          b.Currency,
		"notes":             b.Notes,
	}
	var out models.BankingDetails
	if err := c.upload(ctx, c.portalPath("/banking-details"), fields, files, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBankingDetails(ctx context.Context, quotationID string) result.Lookup[models.BankingDetails] {
	return lookup[models.BankingDetails](ctx, c, c.portalPath("/banking-details/quotation/%s", url.PathEscape(quotationID)))
}

func (c *Client) GetPaymentProof(ctx context.Context, quotationID string) result.Lookup[models.PaymentProof] {
	return lookup[models.PaymentProof](ctx, c, c.portalPath("/payment-proof/quotation/%s", url.PathEscape(quotationID)))
}

func (c *Client) UploadPaymentProof(ctx context.Context, p models.PaymentProofRequest, files ...Upload) (*models.PaymentProof, error) {
	fields := map[string]string{
		"quotationId":          p.QuotationID,
		"amount":               strconv.FormatFloat(p.Amount, 'f', -1, 64),
		"currency":             p.Currency,
		"paymentDate":          p.PaymentDate,
		"paymentMethod":        p.PaymentMethod,
		"transactionReference": p.TransactionReference,
		"notes":                p.Notes,
	}
	var out models.PaymentProof
	if err := c.upload(ctx, c.portalPath("/payment-proof"), fields, files, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ApprovePayment(ctx context.Context, quotationID string) (*models.PaymentProof, error) {
	var out models.PaymentProof
	if err := c.call(ctx, http.MethodPost, c.portalPath("/payment-proof/%s/approve", url.PathEscape(quotationID)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SelectShippingOption(ctx context.Context, quotationID string, s models.ShippingOptionRequest) (*models.PaymentProof, error) {
	var out models.PaymentProof
	if err := c.call(ctx, http.MethodPost, c.portalPath("/payment-proof/%s/shipping-option", url.PathEscape(quotationID)), s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitVendorShippingDetails(ctx context.Context, quotationID string, s models.VendorShippingRequest) (*models.PaymentProof, error) {
	var out models.PaymentProof
	if err := c.call(ctx, http.MethodPost, c.portalPath("/payment-proof/%s/vendor-shipping", url.PathEscape(quotationID)), s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Role endpoints live on the tech portal and make Client a roles.Store.

func (c *Client) ListRoles(ctx context.Context, portal string) ([]models.Role, error) {
	var out []models.Role
	err := c.call(ctx, http.MethodGet, "/api/v1/tech/roles?portal="+url.QueryEscape(portal), nil, &out)
	return out, err
}

func (c *Client) SaveRole(ctx context.Context, role models.Role) error {
	body := map[string]interface{}{"permissions": role.Permissions}
	return c.call(ctx, http.MethodPut, rolePath(role.Portal, role.Name), body, nil)
}

func (c *Client) DeleteRole(ctx context.Context, portal, name string) error {
	return c.call(ctx, http.MethodDelete, rolePath(portal, name), nil, nil)
}

// RenameRole makes Client a roles.Renamer, so users follow the role.
func (c *Client) RenameRole(ctx context.Context, from string, role models.Role) error {
	body := map[string]string{"name": role.Name}
	if err := c.call(ctx, http.MethodPost, rolePath(role.Portal, from)+"/rename", body, nil); err != nil {
		return err
	}
	// Persist any flag edits made in the same draft.
	return c.SaveRole(ctx, role)
}

func rolePath(portal, name string) string {
	return "/api/v1/tech/roles/" + url.PathEscape(portal) + "/" + url.PathEscape(name)
}
