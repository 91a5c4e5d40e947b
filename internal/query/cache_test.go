package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seaprocure/internal/models"
	"seaprocure/internal/result"
)

func TestZeroStaleTimeAlwaysFetches(t *testing.T) {
	c := NewCache(0)
	var calls int
	fn := func(context.Context) (int, error) { calls++; return calls, nil }

	v, err := Fetch(context.Background(), c, RFQKey("RFQ-1001"), fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, _ = Fetch(context.Background(), c, RFQKey("RFQ-1001"), fn)
	assert.Equal(t, 2, v)
}

func TestStaleTimeServesCachedValue(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var calls int
	fn := func(context.Context) (int, error) { calls++; return calls, nil }

	Fetch(context.Background(), c, RFQsKey, fn)
	v, _ := Fetch(context.Background(), c, RFQsKey, fn)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	v, _ = Fetch(context.Background(), c, RFQsKey, fn)
	assert.Equal(t, 2, v)
}

// A quotation lookup that was absent must not stay absent once a
// quotation is submitted and the key invalidated.
func TestNoStaleAbsenceAfterInvalidate(t *testing.T) {
	c := NewCache(time.Hour)
	key := QuotationForRFQKey("RFQ-1001")
	var submitted atomic.Bool
	lookup := func(context.Context) result.Lookup[models.Quotation] {
		if !submitted.Load() {
			return result.Missing[models.Quotation]()
		}
		return result.Found(&models.Quotation{ID: "QUO-2026-0001", RFQID: "RFQ-1001"})
	}

	first := FetchLookup(context.Background(), c, key, lookup)
	again := FetchLookup(context.Background(), c, key, lookup)
	assert.True(t, first.IsAbsent())
	assert.True(t, again.IsAbsent(), "existence checks are idempotent")

	submitted.Store(true)
	c.Invalidate(key)

	after := FetchLookup(context.Background(), c, key, lookup)
	require.True(t, after.IsPresent())
	assert.Equal(t, "QUO-2026-0001", after.Value.ID)
}

func TestFailedLookupIsNotCached(t *testing.T) {
	c := NewCache(time.Hour)
	key := PaymentProofKey("QUO-1")
	var calls int
	fn := func(context.Context) result.Lookup[models.PaymentProof] {
		calls++
		if calls == 1 {
			return result.Failure[models.PaymentProof](errors.New("connection reset"))
		}
		return result.Missing[models.PaymentProof]()
	}

	l := FetchLookup(context.Background(), c, key, fn)
	assert.True(t, l.IsFailed())
	assert.EqualError(t, l.Err, "connection reset")

	l = FetchLookup(context.Background(), c, key, fn)
	assert.True(t, l.IsAbsent())
	assert.Equal(t, 2, calls)
}

func TestConcurrentFetchesShareOneCall(t *testing.T) {
	c := NewCache(0)
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "RFQ-1001", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, RFQKey("RFQ-1001"), fn)
			assert.NoError(t, err)
			assert.Equal(t, "RFQ-1001", v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidateDuringFetchStartsNewFetch(t *testing.T) {
	c := NewCache(time.Hour)
	key := BankingKey("QUO-1")
	started := make(chan struct{})
	release := make(chan struct{})

	go Fetch(context.Background(), c, key, func(context.Context) (string, error) {
		close(started)
		<-release
		return "old", nil
	})
	<-started
	c.Invalidate(key)

	v, err := Fetch(context.Background(), c, key, func(context.Context) (string, error) { return "new", nil })
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	close(release)
	time.Sleep(10 * time.Millisecond)
	cached, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, "new", cached, "the superseded fetch is not stored")
}

func TestSubscribe(t *testing.T) {
	c := NewCache(0)
	var got [][]string
	unsubscribe := c.Subscribe(func(keys []string) { got = append(got, keys) })

	c.Invalidate(RFQKey("RFQ-1001"), RFQsKey)
	c.Invalidate()
	unsubscribe()
	c.Invalidate(RFQsKey)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"rfq/RFQ-1001", "rfqs"}, got[0])
}
