package server

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultMaintenanceSchedule runs housekeeping once an hour.
const DefaultMaintenanceSchedule = "@every 1h"

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// StartMaintenance schedules session purging and rate limiter pruning.
// The caller stops the returned scheduler on shutdown.
func StartMaintenance(app *App, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultMaintenanceSchedule
	}
	logger := cronLogger{l: app.Logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(schedule, func() {
		n, err := PurgeSessions(app.DB, time.Now())
		if err != nil {
			app.Logger.Error("session purge failed", "error", err)
			return
		}
		app.Limiter.Prune()
		app.Logger.Info("maintenance done", "sessions_purged", n)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule maintenance %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}

// PurgeSessions deletes sessions that expired before now or were revoked.
func PurgeSessions(db *sql.DB, now time.Time) (int64, error) {
	res, err := db.Exec("DELETE FROM sessions WHERE expires_at < ? OR revoked = 1", now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
