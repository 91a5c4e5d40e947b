package server

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"seaprocure/internal/database"
)

func TestPurgeSessions(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := database.Seed(db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	insert := func(id string, expires time.Time, revoked int) {
		_, err := db.Exec(`INSERT INTO sessions (id, user_id, expires_at, revoked)
			VALUES (?, (SELECT id FROM users WHERE username = 'vendor1'), ?, ?)`, id, expires.Format(time.RFC3339), revoked)
		if err != nil {
			t.Fatal(err)
		}
	}
	insert("live", now.Add(time.Hour), 0)
	insert("expired", now.Add(-time.Hour), 0)
	insert("revoked", now.Add(time.Hour), 1)

	n, err := PurgeSessions(db, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("purged %d sessions, want 2", n)
	}
	var left string
	db.QueryRow("SELECT id FROM sessions").Scan(&left)
	if left != "live" {
		t.Errorf("remaining session = %q, want live", left)
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter()
	rl.Window = 50 * time.Millisecond
	rl.CheckRateLimit("10.0.0.1", 5, rl.Window)
	time.Sleep(80 * time.Millisecond)
	rl.CheckRateLimit("10.0.0.2", 5, rl.Window)

	rl.Prune()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.requests["10.0.0.1"]; ok {
		t.Error("stale key survived Prune")
	}
	if _, ok := rl.requests["10.0.0.2"]; !ok {
		t.Error("live key was pruned")
	}
}

func TestStartMaintenanceRejectsBadSchedule(t *testing.T) {
	app := &App{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Limiter: NewRateLimiter()}
	if _, err := StartMaintenance(app, "not a schedule"); err == nil {
		t.Fatal("expected schedule parse error")
	}
	c, err := StartMaintenance(app, "")
	if err != nil {
		t.Fatal(err)
	}
	<-c.Stop().Done()
}
