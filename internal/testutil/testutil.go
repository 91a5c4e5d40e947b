package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seaprocure/internal/auth"
	"seaprocure/internal/database"
	"seaprocure/internal/models"
	"seaprocure/internal/server"
	"seaprocure/internal/storage"
	"seaprocure/internal/websocket"
)

// SetupTestDB creates a migrated in-memory SQLite database with default
// roles, demo users and RFQ-1001.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := auth.SeedDefaultPermissions(db); err != nil {
		t.Fatalf("Failed to seed permissions: %v", err)
	}
	if err := database.Seed(db, DiscardLogger()); err != nil {
		t.Fatalf("Failed to seed DB: %v", err)
	}
	return db
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewApp wires an App around a fresh test database and a temp-dir store.
func NewApp(t *testing.T) *server.App {
	t.Helper()
	db := SetupTestDB(t)

	pc := auth.NewPermCache()
	if err := pc.Refresh(db); err != nil {
		t.Fatalf("Failed to load permissions: %v", err)
	}
	store, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	logger := DiscardLogger()
	return &server.App{
		DB:      db,
		Hub:     websocket.NewHub(logger),
		Perms:   pc,
		Tokens:  auth.NewTokens("test-secret", 15*time.Minute, 24*time.Hour),
		Store:   store,
		Limiter: server.NewRateLimiter(),
		Logger:  logger,
	}
}

// Token issues an access token for a seeded user.
func Token(t *testing.T, app *server.App, username string) string {
	t.Helper()
	var s auth.Subject
	err := app.DB.QueryRow("SELECT id, username, portal, role FROM users WHERE username = ?", username).
		Scan(&s.UserID, &s.Username, &s.Portal, &s.Role)
	if err != nil {
		t.Fatalf("unknown test user %s: %v", username, err)
	}
	tok, err := app.Tokens.IssueAccess(s)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// Request performs a JSON request against h. body may be nil.
func Request(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// File is one multipart upload.
type File struct {
	Field, Name string
	Content     []byte
}

// Multipart performs a multipart/form-data request against h.
func Multipart(t *testing.T, h http.Handler, path, token string, fields map[string]string, files ...File) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.Field, f.Name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(f.Content)
	}
	mw.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// Decode parses the response envelope.
func Decode[T any](t *testing.T, w *httptest.ResponseRecorder) models.Envelope[T] {
	t.Helper()
	var env models.Envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope (status %d): %v\n%s", w.Code, err, w.Body.String())
	}
	return env
}
