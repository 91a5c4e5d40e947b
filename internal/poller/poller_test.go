package poller

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seaprocure/internal/models"
	"seaprocure/internal/query"
	"seaprocure/internal/result"
	"seaprocure/internal/websocket"
	"seaprocure/internal/workflow"
)

// fakeAPI serves one finalized quotation whose payment proof the test
// changes between fetches.
type fakeAPI struct {
	mu      sync.Mutex
	proof   *models.PaymentProof
	banking bool
	fetches atomic.Int32
}

func (f *fakeAPI) setProof(p *models.PaymentProof) {
	f.mu.Lock()
	f.proof = p
	f.mu.Unlock()
}

func (f *fakeAPI) GetRFQ(_ context.Context, id string) (*models.RFQ, error) {
	f.fetches.Add(1)
	return &models.RFQ{ID: id, Status: models.RFQStatusCompleted}, nil
}

func (f *fakeAPI) GetQuotationForRFQ(context.Context, string) result.Lookup[models.Quotation] {
	return result.Found(&models.Quotation{ID: "QUO-2026-0001", RFQID: "RFQ-1001", Status: models.QuotationStatusFinalized})
}

func (f *fakeAPI) GetBankingDetails(context.Context, string) result.Lookup[models.BankingDetails] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.banking {
		return result.Missing[models.BankingDetails]()
	}
	return result.Found(&models.BankingDetails{QuotationID: "QUO-2026-0001"})
}

func (f *fakeAPI) GetPaymentProof(context.Context, string) result.Lookup[models.PaymentProof] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.proof == nil {
		return result.Missing[models.PaymentProof]()
	}
	p := *f.proof
	return result.Found(&p)
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
	ch      chan Update
}

func newRecorder() *recorder { return &recorder{ch: make(chan Update, 100)} }

func (r *recorder) record(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	r.ch <- u
}

func (r *recorder) next(t *testing.T) Update {
	t.Helper()
	select {
	case u := <-r.ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return Update{}
	}
}

func (r *recorder) drain() {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

func start(t *testing.T, api *fakeAPI, interval time.Duration) (*Panel, *recorder, context.CancelFunc, chan error) {
	t.Helper()
	p := NewPanel(workflow.NewLoader(api, query.NewCache(0)), interval, nil)
	rec := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, "RFQ-1001", rec.record) }()
	t.Cleanup(cancel)
	return p, rec, cancel, done
}

func TestShouldPoll(t *testing.T) {
	polling := []workflow.State{workflow.Finalized, workflow.AwaitingPayment, workflow.Approved}
	idle := []workflow.State{workflow.NoQuotation, workflow.Submitted, workflow.Rejected,
		workflow.PaymentReceived, workflow.ShippingSelected, workflow.ShippingConfirmed, workflow.Unknown}
	for _, s := range polling {
		assert.True(t, ShouldPoll(s), s.String())
	}
	for _, s := range idle {
		assert.False(t, ShouldPoll(s), s.String())
	}
}

func TestPollingStopsOnceShippingChosen(t *testing.T) {
	api := &fakeAPI{banking: true, proof: &models.PaymentProof{QuotationID: "QUO-2026-0001", Status: models.PaymentStatusApproved}}
	_, rec, _, _ := start(t, api, 10*time.Millisecond)

	u := rec.next(t)
	assert.Equal(t, TriggerMount, u.Trigger)
	assert.Equal(t, workflow.Approved, u.State)
	assert.True(t, u.Polling)

	u = rec.next(t)
	assert.Equal(t, TriggerInterval, u.Trigger)

	api.setProof(&models.PaymentProof{QuotationID: "QUO-2026-0001", Status: models.PaymentStatusApproved,
		ShippingOption: models.ShippingVendorManaged})
	for {
		u = rec.next(t)
		if u.State == workflow.ShippingSelected {
			break
		}
	}
	assert.False(t, u.Polling)

	rec.drain()
	before := api.fetches.Load()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, before, api.fetches.Load(), "no periodic fetch after shipping is chosen")
}

func TestTriggersFetchWhenNotPolling(t *testing.T) {
	api := &fakeAPI{banking: true, proof: &models.PaymentProof{QuotationID: "QUO-2026-0001",
		Status: models.PaymentStatusApproved, ShippingOption: models.ShippingSelf}}
	p, rec, cancel, done := start(t, api, 10*time.Millisecond)

	u := rec.next(t)
	assert.Equal(t, workflow.ShippingConfirmed, u.State)
	assert.False(t, u.Polling)

	for _, trig := range []Trigger{TriggerFocus, TriggerVisibility, TriggerReconnect} {
		p.Notify(trig)
		u = rec.next(t)
		assert.Equal(t, trig, u.Trigger)
	}
	assert.Equal(t, int32(4), api.fetches.Load())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestInvalidationRefetches(t *testing.T) {
	api := &fakeAPI{}
	p, rec, _, _ := start(t, api, time.Hour)

	u := rec.next(t)
	assert.Equal(t, workflow.Finalized, u.State)

	p.Loader.Cache.Invalidate(query.RFQsKey)
	p.Loader.Cache.Invalidate(query.BankingKey("QUO-2026-0001"))
	u = rec.next(t)
	assert.Equal(t, TriggerInvalidate, u.Trigger)
	select {
	case extra := <-rec.ch:
		t.Fatalf("unrelated key caused a fetch: %v", extra.Trigger)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestPushFromChangeFeed(t *testing.T) {
	hub := websocket.NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	api := &fakeAPI{}
	p, rec, _, _ := start(t, api, time.Hour)
	assert.Equal(t, workflow.Finalized, rec.next(t).State)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := &websocket.Listener{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Backoff: 10 * time.Millisecond}
	go p.Follow(ctx, l)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(models.ChangeEvent{Type: "payment_proof", ID: "QUO-2099-0001", Action: "create", RFQID: "RFQ-2099"})
	select {
	case u := <-rec.ch:
		t.Fatalf("event for another RFQ caused a fetch: %v", u.Trigger)
	case <-time.After(50 * time.Millisecond):
	}

	api.mu.Lock()
	api.banking = true
	api.mu.Unlock()
	hub.Broadcast(models.ChangeEvent{Type: "banking", ID: "QUO-2026-0001", Action: "create",
		QuotationID: "QUO-2026-0001", RFQID: "RFQ-1001"})

	u := rec.next(t)
	assert.Contains(t, []Trigger{TriggerPush, TriggerInvalidate}, u.Trigger)
	assert.Equal(t, workflow.AwaitingPayment, u.State)
}
