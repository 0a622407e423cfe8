package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/roadwatch/roadwatch/internal/api"
)

// IngestKeyMiddleware authenticates machine submitters (scrapers, upload
// bots) by API key. It guards only the submission endpoint; the operator
// surface uses JWT instead. With no keys configured the middleware
// rejects everything, so a submit route is never silently open.
type IngestKeyMiddleware struct {
	mu   sync.RWMutex
	keys []string
}

// NewIngestKeyMiddleware creates the middleware with the initial key set.
// Empty strings are ignored.
func NewIngestKeyMiddleware(keys ...string) *IngestKeyMiddleware {
	m := &IngestKeyMiddleware{}
	for _, k := range keys {
		if k != "" {
			m.keys = append(m.keys, k)
		}
	}
	return m
}

// AddKey registers an additional valid key at runtime.
func (m *IngestKeyMiddleware) AddKey(key string) {
	if key == "" {
		return
	}
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()
}

// WrapFunc wraps an http.HandlerFunc with ingest key authentication.
func (m *IngestKeyMiddleware) WrapFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := m.extractKey(r)
		if key == "" {
			m.unauthorized(w, "Missing API key")
			return
		}

		m.mu.RLock()
		keys := m.keys
		m.mu.RUnlock()

		if !validKey(key, keys) {
			log.Printf("IngestKeyMiddleware: Invalid API key attempt from %s", r.RemoteAddr)
			m.unauthorized(w, "Invalid API key")
			return
		}

		next(w, r)
	}
}

// extractKey reads the key from X-API-Key or an "ApiKey" Authorization
// header.
func (m *IngestKeyMiddleware) extractKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "ApiKey ") {
		return strings.TrimPrefix(auth, "ApiKey ")
	}
	return ""
}

// validKey compares against every configured key in constant time.
func validKey(provided string, keys []string) bool {
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(k)) == 1 {
			return true
		}
	}
	return false
}

func (m *IngestKeyMiddleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "ApiKey realm=\"ingest\"")
	api.RespondError(w, http.StatusUnauthorized, message)
}
