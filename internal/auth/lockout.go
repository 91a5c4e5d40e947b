package auth

import (
	"database/sql"
	"errors"
	"time"
)

const (
	MaxFailedLoginAttempts = 10
	AccountLockoutDuration = 15 * time.Minute
)

// ErrAccountLocked is returned by login while the lockout window is open.
var ErrAccountLocked = errors.New("account locked due to too many failed login attempts")

// RecordFailedLogin bumps the failure counter and opens a lockout window
// once it reaches MaxFailedLoginAttempts.
func RecordFailedLogin(db *sql.DB, username string) error {
	lockUntil := time.Now().Add(AccountLockoutDuration).UTC().Format(time.RFC3339)
	_, err := db.Exec(`
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= ? THEN ?
		        ELSE locked_until
		    END
		WHERE username = ?`, MaxFailedLoginAttempts, lockUntil, username)
	return err
}

// ResetFailedLogins clears the counter after a successful login.
func ResetFailedLogins(db *sql.DB, username string) error {
	_, err := db.Exec(`
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL
		WHERE username = ?`, username)
	return err
}

// IsAccountLocked reports whether username is inside a lockout window.
// An expired window is cleared as a side effect.
func IsAccountLocked(db *sql.DB, username string) (bool, error) {
	var lockedUntil sql.NullString
	err := db.QueryRow("SELECT locked_until FROM users WHERE username = ?", username).Scan(&lockedUntil)
	if err != nil {
		return false, err
	}
	if !lockedUntil.Valid {
		return false, nil
	}

	lockTime, err := time.Parse(time.RFC3339, lockedUntil.String)
	if err != nil {
		return false, nil
	}
	if time.Now().Before(lockTime) {
		return true, nil
	}

	return false, ResetFailedLogins(db, username)
}
