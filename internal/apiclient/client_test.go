package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seaprocure/internal/apiclient"
	"seaprocure/internal/models"
	"seaprocure/internal/testutil"
)

func writeJSON(w http.ResponseWriter, status int, env interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	const n = 8
	var refreshes atomic.Int32
	var arrived sync.WaitGroup
	arrived.Add(n)
	release := make(chan struct{})
	go func() { arrived.Wait(); close(release) }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/auth/refresh":
			refreshes.Add(1)
			var body models.RefreshRequest
			json.NewDecoder(r.Body).Decode(&body)
			if body.RefreshToken != "refresh-1" {
				fail(w, http.StatusUnauthorized, "bad refresh token")
				return
			}
			ok(w, models.RefreshResponse{AccessToken: "access-2"})
		case r.Header.Get("Authorization") == "Bearer access-1":
			// Hold every stale request until all n have arrived.
			arrived.Done()
			<-release
			fail(w, http.StatusUnauthorized, "token expired")
		case r.Header.Get("Authorization") == "Bearer access-2":
			ok(w, []models.RFQ{{ID: "RFQ-1001"}})
		default:
			fail(w, http.StatusUnauthorized, "missing token")
		}
	}))
	defer srv.Close()

	tokens := apiclient.NewMemoryTokenStore("access-1", "refresh-1")
	c := apiclient.New(srv.URL, models.PortalVendor, tokens)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			list, err := c.ListRFQs(context.Background())
			if err == nil && len(list) != 1 {
				err = errors.New("unexpected list")
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), refreshes.Load())
	access, refresh := tokens.Tokens()
	assert.Equal(t, "access-2", access)
	assert.Equal(t, "refresh-1", refresh)
}

func TestRetryResendsBody(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			ok(w, models.RefreshResponse{AccessToken: "fresh"})
			return
		}
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			fail(w, http.StatusUnauthorized, "expired")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": models.Quotation{ID: "QUO-2026-0001"}})
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL, models.PortalVendor, apiclient.NewMemoryTokenStore("stale", "r"))
	q, err := c.SubmitQuotation(context.Background(), models.QuotationRequest{RFQID: "RFQ-1001", Title: "Spares"})
	require.NoError(t, err)
	assert.Equal(t, "QUO-2026-0001", q.ID)

	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Contains(t, bodies[1], `"rfqId":"RFQ-1001"`)
}

func TestFailedRefreshRequiresLogin(t *testing.T) {
	var protected atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			fail(w, http.StatusUnauthorized, "session revoked")
			return
		}
		protected.Add(1)
		fail(w, http.StatusUnauthorized, "expired")
	}))
	defer srv.Close()

	var hooked atomic.Bool
	tokens := apiclient.NewMemoryTokenStore("a", "r")
	c := apiclient.New(srv.URL, models.PortalCustomer, tokens,
		apiclient.WithLoginRequired(func() { hooked.Store(true) }))

	_, err := c.GetRFQ(context.Background(), "RFQ-1001")
	assert.ErrorIs(t, err, apiclient.ErrLoginRequired)
	assert.True(t, hooked.Load())
	assert.Equal(t, int32(1), protected.Load(), "no retry after a failed refresh")

	access, refresh := tokens.Tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestConcurrentFailedRefreshSignalsLoginOnce(t *testing.T) {
	const n = 8
	var refreshes atomic.Int32
	var arrived sync.WaitGroup
	arrived.Add(n)
	release := make(chan struct{})
	go func() { arrived.Wait(); close(release) }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			refreshes.Add(1)
			fail(w, http.StatusUnauthorized, "session revoked")
			return
		}
		arrived.Done()
		<-release
		fail(w, http.StatusUnauthorized, "expired")
	}))
	defer srv.Close()

	var hooks atomic.Int32
	c := apiclient.New(srv.URL, models.PortalVendor, apiclient.NewMemoryTokenStore("a", "r"),
		apiclient.WithLogger(testutil.DiscardLogger()),
		apiclient.WithLoginRequired(func() { hooks.Add(1) }))

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListRFQs(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, apiclient.ErrLoginRequired)
	}
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(1), hooks.Load(), "login prompt raised once for the whole burst")
}

func TestNoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fail(w, http.StatusInternalServerError, "database is locked")
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL, models.PortalVendor, apiclient.NewMemoryTokenStore("a", "r"))
	_, err := c.GetRFQ(context.Background(), "RFQ-1001")

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "database is locked", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookupsSeparateAbsenceFromFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/QUO-404"):
			fail(w, http.StatusNotFound, "payment proof not found")
		case strings.HasSuffix(r.URL.Path, "/QUO-500"):
			fail(w, http.StatusInternalServerError, "boom")
		case strings.HasSuffix(r.URL.Path, "/QUO-BAD"):
			w.Write([]byte("<html>proxy error</html>"))
		case strings.Contains(r.URL.Path, "/quotation/rfq/"):
			ok(w, models.Quotation{ID: "QUO-2026-0001", Status: models.QuotationStatusFinalized})
		default:
			ok(w, models.PaymentProof{QuotationID: "QUO-1", Status: models.PaymentStatusPending})
		}
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL, models.PortalCustomer, apiclient.NewMemoryTokenStore("a", "r"))
	ctx := context.Background()

	proof := c.GetPaymentProof(ctx, "QUO-404")
	assert.True(t, proof.IsAbsent())
	assert.Nil(t, proof.Value)
	assert.NoError(t, proof.Err)

	proof = c.GetPaymentProof(ctx, "QUO-500")
	assert.True(t, proof.IsFailed())
	assert.True(t, apiclient.IsStatus(proof.Err, http.StatusInternalServerError))

	proof = c.GetPaymentProof(ctx, "QUO-BAD")
	assert.True(t, proof.IsFailed(), "undecodable bodies are failures, not absence")

	proof = c.GetPaymentProof(ctx, "QUO-1")
	require.True(t, proof.IsPresent())
	assert.Equal(t, models.PaymentStatusPending, proof.Value.Status)

	q := c.GetQuotationForRFQ(ctx, "RFQ-1001")
	require.True(t, q.IsPresent())
	assert.Equal(t, "QUO-2026-0001", q.Value.ID)

	banking := c.GetBankingDetails(ctx, "QUO-404")
	assert.True(t, banking.IsAbsent())
}

func TestLookupNetworkErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := apiclient.New(url, models.PortalVendor, apiclient.NewMemoryTokenStore("a", "r"))
	q := c.GetQuotationForRFQ(context.Background(), "RFQ-1001")
	assert.True(t, q.IsFailed())
	assert.Error(t, q.Err)
}

func TestCancelledContextAbortsRequest(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	c := apiclient.New(srv.URL, models.PortalVendor, apiclient.NewMemoryTokenStore("a", "r"))
	done := make(chan error, 1)
	go func() {
		_, err := c.ListRFQs(ctx)
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMultipartUploadCarriesFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
		files := r.MultipartForm.File["documents"]
		if r.FormValue("bankName") != "Harbour Bank" || len(files) != 1 || files[0].Filename != "letter.pdf" {
			fail(w, http.StatusBadRequest, "unexpected form")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true,
			"data": models.BankingDetails{QuotationID: r.FormValue("quotationId"), BankName: "Harbour Bank"}})
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL, models.PortalVendor, apiclient.NewMemoryTokenStore("a", "r"))
	b, err := c.SubmitBankingDetails(context.Background(),
		models.BankingDetails{QuotationID: "QUO-1", BankName: "Harbour Bank", AccountHolderName: "Marine Spares", AccountNumber: "001"},
		apiclient.Upload{Name: "letter.pdf", Content: strings.NewReader("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "QUO-1", b.QuotationID)
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portalctl", "tokens.yaml")
	s := apiclient.NewFileTokenStore(path)

	access, refresh := s.Tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)

	require.NoError(t, s.SetTokens("a1", "r1"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	access, refresh = apiclient.NewFileTokenStore(path).Tokens()
	assert.Equal(t, "a1", access)
	assert.Equal(t, "r1", refresh)

	require.NoError(t, s.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Clear(), "clearing twice is fine")
}
