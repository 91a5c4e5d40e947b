// Package poller keeps a workflow snapshot of one RFQ current. It fetches
// on start, on explicit triggers, on cache invalidation and, while the
// workflow is waiting on the other party, on a fixed interval.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"seaprocure/internal/models"
	"seaprocure/internal/websocket"
	"seaprocure/internal/workflow"
)

// DefaultInterval between periodic fetches.
const DefaultInterval = 10 * time.Second

// Trigger is the reason for a fetch.
type Trigger int

const (
	TriggerMount Trigger = iota
	TriggerInterval
	TriggerFocus
	TriggerVisibility
	TriggerReconnect
	TriggerPush
	TriggerInvalidate
)

func (t Trigger) String() string {
	switch t {
	case TriggerMount:
		return "mount"
	case TriggerInterval:
		return "interval"
	case TriggerFocus:
		return "focus"
	case TriggerVisibility:
		return "visibility"
	case TriggerReconnect:
		return "reconnect"
	case TriggerPush:
		return "push"
	case TriggerInvalidate:
		return "invalidate"
	}
	return "unknown"
}

// Update is delivered after every fetch.
type Update struct {
	Trigger  Trigger
	Snapshot workflow.Snapshot
	State    workflow.State
	Err      error
	Polling  bool
	At       time.Time
}

// ShouldPoll reports whether state is waiting on something the other
// party does without this client's involvement. Polling ends once a
// shipping option is chosen.
func ShouldPoll(state workflow.State) bool {
	switch state {
	case workflow.Finalized, workflow.AwaitingPayment, workflow.Approved:
		return true
	}
	return false
}

// Panel watches one RFQ.
type Panel struct {
	Loader   *workflow.Loader
	Interval time.Duration
	Logger   *slog.Logger

	triggers chan Trigger

	mu          sync.Mutex
	rfqID       string
	quotationID string
}

func NewPanel(loader *workflow.Loader, interval time.Duration, logger *slog.Logger) *Panel {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{
		Loader:   loader,
		Interval: interval,
		Logger:   logger,
		triggers: make(chan Trigger, 1),
	}
}

// Notify asks the panel to fetch again. Triggers arriving while one is
// already pending are merged into it.
func (p *Panel) Notify(t Trigger) {
	select {
	case p.triggers <- t:
	default:
	}
}

// Run fetches rfqID until ctx is cancelled, passing every result to
// onUpdate. It returns ctx.Err().
func (p *Panel) Run(ctx context.Context, rfqID string, onUpdate func(Update)) error {
	p.mu.Lock()
	p.rfqID, p.quotationID = rfqID, ""
	p.mu.Unlock()

	unsubscribe := p.Loader.Cache.Subscribe(func(keys []string) {
		if p.dependsOn(keys) {
			p.Notify(TriggerInvalidate)
		}
	})
	defer unsubscribe()

	var (
		ticker  *time.Ticker
		tick    <-chan time.Time
		polling bool
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	fetch := func(t Trigger) {
		u := p.fetch(ctx, rfqID, t)
		if ctx.Err() != nil {
			return
		}
		// A failed fetch keeps the previous polling decision.
		if u.Err == nil {
			polling = ShouldPoll(u.State)
		}
		u.Polling = polling
		switch {
		case polling && ticker == nil:
			ticker = time.NewTicker(p.Interval)
			tick = ticker.C
		case !polling && ticker != nil:
			ticker.Stop()
			ticker, tick = nil, nil
		}
		onUpdate(u)
	}

	fetch(TriggerMount)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-p.triggers:
			fetch(t)
		case <-tick:
			fetch(TriggerInterval)
		}
	}
}

func (p *Panel) fetch(ctx context.Context, rfqID string, t Trigger) Update {
	u := Update{Trigger: t, At: time.Now()}
	snap, err := p.Loader.Load(ctx, rfqID)
	if err != nil {
		u.State, u.Err = workflow.Unknown, err
		p.Logger.Warn("poll failed", "rfq", rfqID, "trigger", t.String(), "error", err)
		return u
	}
	u.Snapshot = snap
	u.State, u.Err = workflow.Derive(snap)
	if u.Err != nil {
		p.Logger.Warn("cannot derive state", "rfq", rfqID, "trigger", t.String(), "error", u.Err)
	}

	p.mu.Lock()
	p.quotationID = snap.QuotationID()
	p.mu.Unlock()
	return u
}

func (p *Panel) dependsOn(keys []string) bool {
	p.mu.Lock()
	deps := workflow.Keys(p.rfqID, p.quotationID)
	p.mu.Unlock()
	for _, k := range keys {
		for _, d := range deps {
			if k == d {
				return true
			}
		}
	}
	return false
}

// Relevant reports whether a change event concerns the watched RFQ.
func (p *Panel) Relevant(evt models.ChangeEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rfqID == "" {
		return false
	}
	return evt.RFQID == p.rfqID || evt.ID == p.rfqID ||
		(p.quotationID != "" && (evt.QuotationID == p.quotationID || evt.ID == p.quotationID))
}

// Follow wires a change feed listener to the panel: relevant events
// invalidate the RFQ's cache keys and trigger a push fetch, and every
// reconnect triggers a fetch. It blocks like l.Run.
func (p *Panel) Follow(ctx context.Context, l *websocket.Listener) error {
	l.OnEvent = func(evt models.ChangeEvent) {
		if !p.Relevant(evt) {
			return
		}
		p.mu.Lock()
		keys := workflow.Keys(p.rfqID, p.quotationID)
		p.mu.Unlock()
		p.Loader.Cache.Invalidate(keys...)
		p.Notify(TriggerPush)
	}
	l.OnReconnect = func() { p.Notify(TriggerReconnect) }
	return l.Run(ctx)
}
