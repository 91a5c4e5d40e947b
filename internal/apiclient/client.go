// Package apiclient is the authenticated client of the procurement API.
//
// Every request carries the stored bearer token. A 401 triggers one token
// refresh, shared by all requests that fail at the same time, and a single
// retry of the original request. When the refresh itself fails the stored
// tokens are cleared and ErrLoginRequired is returned.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"seaprocure/internal/models"
)

// ErrLoginRequired means the session is gone and the user must log in again.
var ErrLoginRequired = errors.New("login required")

// APIError is a non-2xx response decoded from the API envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one portal of the API.
type Client struct {
	BaseURL string
	Portal  string
	HTTP    *http.Client
	Tokens  TokenStore
	Logger  *slog.Logger

	// OnLoginRequired runs after a failed refresh has cleared the tokens.
	OnLoginRequired func()

	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.HTTP = hc } }
func WithLogger(l *slog.Logger) Option      { return func(c *Client) { c.Logger = l } }
func WithLoginRequired(fn func()) Option    { return func(c *Client) { c.OnLoginRequired = fn } }

// New creates a client for portal at baseURL.
func New(baseURL, portal string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Portal:  portal,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Tokens:  tokens,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req with the current access token. On 401 it refreshes once
// and retries once; the retry resends the body through req.GetBody.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := replayable(req); err != nil {
		return nil, err
	}

	used, _ := c.Tokens.Tokens()
	setBearer(req, used)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	token, err := c.refresh(req.Context(), used)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	setBearer(retry, token)
	return c.HTTP.Do(retry)
}

// refresh returns a usable access token after a 401 seen with token used.
// If another request already rotated the token it is returned as is;
// otherwise one refresh call is made no matter how many callers wait.
func (c *Client) refresh(ctx context.Context, used string) (string, error) {
	if current, _ := c.Tokens.Tokens(); current != "" && current != used {
		return current, nil
	}

	v, err, _ := c.refreshes.Do("refresh", func() (interface{}, error) {
		current, refreshToken := c.Tokens.Tokens()
		if current != "" && current != used {
			return current, nil
		}
		if refreshToken == "" {
			// Tokens cleared since used was sent means a failed refresh already asked for login.
			if used == "" || current != "" {
				c.loginRequired(ErrLoginRequired)
			}
			return "", ErrLoginRequired
		}
		// Waiters share this call, so one caller's cancellation must not fail the rest.
		access, err := c.requestRefresh(context.WithoutCancel(ctx), refreshToken)
		if err == nil {
			err = c.Tokens.SetTokens(access, refreshToken)
		}
		if err != nil {
			// Runs once per shared refresh, not once per waiter.
			c.loginRequired(err)
			return "", err
		}
		return access, nil
	})
	if err != nil {
		return "", ErrLoginRequired
	}
	return v.(string), nil
}

func (c *Client) requestRefresh(ctx context.Context, refreshToken string) (string, error) {
	data, err := json.Marshal(models.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/auth/refresh", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	var out models.RefreshResponse
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("refresh returned no access token")
	}
	return out.AccessToken, nil
}

func (c *Client) loginRequired(cause error) {
	c.Logger.Warn("session expired, login required", "error", cause)
	if err := c.Tokens.Clear(); err != nil {
		c.Logger.Error("failed to clear tokens", "error", err)
	}
	if c.OnLoginRequired != nil {
		c.OnLoginRequired()
	}
}

func setBearer(req *http.Request, token string) {
	if token == "" {
		req.Header.Del("Authorization")
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// replayable makes sure a request with a body can be sent twice.
func replayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil }
	req.Body, _ = req.GetBody()
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// decode reads the envelope of resp into out. Non-2xx responses become
// *APIError.
func decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env models.Envelope[json.RawMessage]
		_ = json.Unmarshal(data, &env)
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if out == nil {
		return nil
	}
	env := models.Envelope[json.RawMessage]{}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
