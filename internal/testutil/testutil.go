// Package testutil holds helpers shared by package tests: a throwaway SQLite
// database with the full schema and small HTTP request/response helpers.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"attendance-backend/internal/platform/config"
	"attendance-backend/internal/platform/db"
)

// SetupTestDB creates a fresh file-backed SQLite database with the schema
// applied. It is closed when the test ends.
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	d, err := db.Connect(config.DatabaseConfig{
		Driver:       "sqlite",
		URL:          "file:" + filepath.Join(t.TempDir(), "attendance.db"),
		QueryTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return d
}

// CountRows runs a COUNT query and returns the result.
func CountRows(t *testing.T, d *db.DB, q string, args ...any) int {
	t.Helper()
	var n int
	if err := d.Get(context.Background(), &n, q, args...); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return n
}

// ExecSQL runs a statement that tests use to arrange fixtures.
func ExecSQL(t *testing.T, d *db.DB, q string, args ...any) {
	t.Helper()
	err := d.WithConn(context.Background(), func(ctx context.Context, conn *sqlx.Conn) error {
		_, err := d.Exec(ctx, conn, q, args...)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to execute %q: %v", q, err)
	}
}

// MakeRequest creates a JSON request; a nil body sends no body.
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// MakeFormRequest creates a url-encoded request.
func MakeFormRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeBody decodes the JSON envelope of a response.
func DecodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode JSON response: %v (body %q)", err, w.Body.String())
	}
	return body
}
