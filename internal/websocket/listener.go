package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"

	"seaprocure/internal/models"
)

// Listener follows a change feed and re-dials after disconnects.
type Listener struct {
	URL    string
	Header http.Header
	// Backoff between dial attempts. Defaults to 2s.
	Backoff time.Duration
	Dialer  *ws.Dialer
	Logger  *slog.Logger

	OnEvent func(models.ChangeEvent)
	// OnReconnect runs after every successful dial except the first.
	OnReconnect func()
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	dialer := l.Dialer
	if dialer == nil {
		dialer = ws.DefaultDialer
	}
	backoff := l.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	connected := false
	for {
		conn, _, err := dialer.DialContext(ctx, l.URL, l.Header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Debug("ws: dial failed", "url", l.URL, "error", err)
		} else {
			if connected && l.OnReconnect != nil {
				l.OnReconnect()
			}
			connected = true
			l.read(ctx, conn, logger)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (l *Listener) read(ctx context.Context, conn *ws.Conn, logger *slog.Logger) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var evt models.ChangeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			logger.Debug("ws: bad event", "error", err)
			continue
		}
		if l.OnEvent != nil {
			l.OnEvent(evt)
		}
	}
}
