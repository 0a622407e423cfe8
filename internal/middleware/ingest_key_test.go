package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestIngestKeyMiddleware_NoKey(t *testing.T) {
	m := NewIngestKeyMiddleware("scraper-key")
	handler := m.WrapFunc(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestIngestKeyMiddleware_InvalidKey(t *testing.T) {
	m := NewIngestKeyMiddleware("scraper-key")
	handler := m.WrapFunc(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestIngestKeyMiddleware_ValidKey_XAPIKey(t *testing.T) {
	m := NewIngestKeyMiddleware("scraper-key")
	handler := m.WrapFunc(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", nil)
	req.Header.Set("X-API-Key", "scraper-key")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestIngestKeyMiddleware_ValidKey_AuthorizationHeader(t *testing.T) {
	m := NewIngestKeyMiddleware("scraper-key")
	handler := m.WrapFunc(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", nil)
	req.Header.Set("Authorization", "ApiKey scraper-key")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestIngestKeyMiddleware_NoConfiguredKeys(t *testing.T) {
	m := NewIngestKeyMiddleware("")
	handler := m.WrapFunc(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with no configured keys, got %d", rec.Code)
	}
}

func TestIngestKeyMiddleware_AddKey(t *testing.T) {
	m := NewIngestKeyMiddleware("first-key")
	m.AddKey("second-key")
	handler := m.WrapFunc(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", nil)
	req.Header.Set("X-API-Key", "second-key")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}
