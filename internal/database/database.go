// Package database opens the SQLite store and applies the schema.
package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database at path and runs migrations.
// ":memory:" yields a single-connection in-memory database.
func Open(path string) (*sql.DB, error) {
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	dsn := path
	if !memory {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if memory {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		// SQLite can handle 1 writer + multiple readers with WAL mode
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(0)

		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy_timeout: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		display_name TEXT DEFAULT '',
		portal TEXT NOT NULL CHECK(portal IN ('vendor','customer','tech')),
		role TEXT NOT NULL DEFAULT 'admin',
		active INTEGER DEFAULT 1,
		failed_login_attempts INTEGER DEFAULT 0,
		locked_until TEXT,
		last_login DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL,
		revoked INTEGER DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS rfqs (
		id TEXT PRIMARY KEY,
		rfq_number TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		vessel TEXT DEFAULT '',
		supply_port TEXT DEFAULT '',
		brand TEXT DEFAULT '',
		model TEXT DEFAULT '',
		category TEXT DEFAULT '',
		items TEXT NOT NULL DEFAULT '[]',
		status TEXT DEFAULT 'draft' CHECK(status IN ('draft','pending','sent','completed','closed','cancelled')),
		due_date TEXT DEFAULT '',
		created_by TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS quotations (
		id TEXT PRIMARY KEY,
		quotation_number TEXT UNIQUE NOT NULL,
		rfq_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT DEFAULT '',
		status TEXT DEFAULT 'submitted' CHECK(status IN ('submitted','finalized','rejected')),
		total_amount REAL DEFAULT 0,
		currency TEXT DEFAULT 'USD',
		terms TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (rfq_id, vendor_id),
		FOREIGN KEY (rfq_id) REFERENCES rfqs(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS quotation_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quotation_id TEXT NOT NULL,
		line INTEGER NOT NULL,
		description TEXT DEFAULT '',
		required_qty REAL DEFAULT 0 CHECK(required_qty >= 0),
		quoted_price REAL DEFAULT 0 CHECK(quoted_price >= 0),
		offered_qty REAL DEFAULT 0 CHECK(offered_qty >= 0),
		offered_quality TEXT DEFAULT '',
		FOREIGN KEY (quotation_id) REFERENCES quotations(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS banking_details (
		quotation_id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		bank_name TEXT NOT NULL,
		account_holder_name TEXT NOT NULL,
		account_number TEXT NOT NULL,
		account_type TEXT DEFAULT '',
		street TEXT DEFAULT '', city TEXT DEFAULT '', state TEXT DEFAULT '',
		postal_code TEXT DEFAULT '', country TEXT DEFAULT '',
		swift_code TEXT DEFAULT '', iban TEXT DEFAULT '', routing_number TEXT DEFAULT '',
		currency TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (quotation_id) REFERENCES quotations(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS payment_proofs (
		quotation_id TEXT PRIMARY KEY,
		status TEXT DEFAULT 'pending' CHECK(status IN ('pending','approved')),
		amount REAL DEFAULT 0,
		currency TEXT DEFAULT '',
		payment_date TEXT DEFAULT '',
		payment_method TEXT DEFAULT '',
		transaction_reference TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		uploaded_by TEXT DEFAULT '',
		approved_at TEXT,
		approved_by TEXT DEFAULT '',
		shipping_option TEXT DEFAULT '' CHECK(shipping_option IN ('','self','vendor-managed')),
		self_shipping_awb TEXT DEFAULT '',
		self_shipping_contact_name TEXT DEFAULT '',
		self_shipping_contact_phone TEXT DEFAULT '',
		self_shipping_contact_email TEXT DEFAULT '',
		vendor_shipping_awb TEXT DEFAULT '',
		vendor_shipping_contact_name TEXT DEFAULT '',
		vendor_shipping_contact_phone TEXT DEFAULT '',
		vendor_shipping_contact_email TEXT DEFAULT '',
		vendor_shipping_submitted_at TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (quotation_id) REFERENCES quotations(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		owner_type TEXT NOT NULL CHECK(owner_type IN ('banking','payment-proof')),
		quotation_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		content_type TEXT DEFAULT '',
		size INTEGER DEFAULT 0,
		storage_key TEXT NOT NULL,
		uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS role_permissions (
		portal TEXT NOT NULL,
		role TEXT NOT NULL,
		permission TEXT NOT NULL,
		granted INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (portal, role, permission)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT DEFAULT '',
		action TEXT NOT NULL,
		module TEXT NOT NULL,
		record_id TEXT DEFAULT '',
		summary TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_rfqs_status ON rfqs(status)",
	"CREATE INDEX IF NOT EXISTS idx_quotations_rfq_id ON quotations(rfq_id)",
	"CREATE INDEX IF NOT EXISTS idx_quotation_items_quotation_id ON quotation_items(quotation_id)",
	"CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_type, quotation_id)",
	"CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)",
	"CREATE INDEX IF NOT EXISTS idx_audit_log_module_record ON audit_log(module, record_id)",
}

// Migrate creates every table and index. It is idempotent.
func Migrate(db *sql.DB) error {
	for _, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("migration: %w\nSQL: %s", err, ddl)
		}
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("index creation: %w\nSQL: %s", err, idx)
		}
	}
	return nil
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextID returns the next "PREFIX-YYYY-NNNN" identifier for table. table
// is always a package constant, never user input.
func NextID(q Querier, prefix, table string, digits int) string {
	year := time.Now().Format("2006")
	pattern := prefix + "-" + year + "-%"
	var maxID sql.NullString
	q.QueryRow("SELECT id FROM "+table+" WHERE id LIKE ? ORDER BY id DESC LIMIT 1", pattern).Scan(&maxID)

	next := 1
	if maxID.Valid {
		parts := strings.Split(maxID.String, "-")
		if len(parts) >= 3 {
			if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
				next = n + 1
			}
		}
	}
	return fmt.Sprintf("%s-%s-%0*d", prefix, year, digits, next)
}

// NullString maps nil to SQL NULL.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StringPtr maps SQL NULL to nil.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// Now is the timestamp format stored in TEXT columns.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
