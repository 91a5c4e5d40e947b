// Package query caches fetched API resources by key and tells subscribers
// when keys are invalidated so they can fetch again.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"seaprocure/internal/result"
)

// Resource keys.
const RFQsKey = "rfqs"

func RFQKey(id string) string                   { return "rfq/" + id }
func QuotationForRFQKey(rfqID string) string    { return "quotation/rfq/" + rfqID }
func BankingKey(quotationID string) string      { return "banking/" + quotationID }
func PaymentProofKey(quotationID string) string { return "payment-proof/" + quotationID }

type entry struct {
	value     interface{}
	fetchedAt time.Time
}

// Cache holds fetched values. With a zero stale time, the default, every
// Fetch goes to the network and the cache only dedupes concurrent fetches.
type Cache struct {
	StaleTime time.Duration

	mu      sync.Mutex
	entries map[string]entry
	gen     map[string]uint64
	subs    map[int]func(keys []string)
	nextSub int
	flight  singleflight.Group
	now     func() time.Time
}

func NewCache(staleTime time.Duration) *Cache {
	return &Cache{
		StaleTime: staleTime,
		entries:   map[string]entry{},
		gen:       map[string]uint64{},
		subs:      map[int]func([]string){},
		now:       time.Now,
	}
}

// Fetch returns the cached value for key if it is still fresh, otherwise
// calls fn. Concurrent fetches of one key share a call unless the key was
// invalidated in between.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := c.fresh(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	gen := c.generation(key)
	v, err, _ := c.flight.Do(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, gen, val)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// FetchLookup is Fetch for optional resources. Present and Absent results
// are cached; Failed results are returned but never stored.
func FetchLookup[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) result.Lookup[T]) result.Lookup[T] {
	l, err := Fetch(ctx, c, key, func(ctx context.Context) (result.Lookup[T], error) {
		l := fn(ctx)
		if l.IsFailed() {
			return l, l.Err
		}
		return l, nil
	})
	if err != nil {
		return result.Failure[T](err)
	}
	return l
}

// Peek returns the cached value for key regardless of age.
func (c *Cache) Peek(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.value, ok
}

// Invalidate drops keys and notifies subscribers. Fetches already in
// flight for these keys will not be cached or shared with later callers.
func (c *Cache) Invalidate(keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
		c.gen[k]++
	}
	subs := make([]func([]string), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(keys)
	}
}

// Subscribe registers fn to be called with the invalidated keys. The
// returned function removes the subscription.
func (c *Cache) Subscribe(fn func(keys []string)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cache) fresh(key string) (interface{}, bool) {
	if c.StaleTime <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.StaleTime {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}

func (c *Cache) store(key string, gen uint64, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[key] != gen {
		return
	}
	c.entries[key] = entry{value: v, fetchedAt: c.now()}
}
