package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/logging"
)

func rateLimitedRequest(t *testing.T, rl *RateLimiter, userID string) int {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := NewRateLimitMiddleware(logging.Discard(), rl)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	meta := &RequestMetadata{IP: "127.0.0.1", UserID: userID}
	ctx := context.WithValue(req.Context(), reqMetaKey, meta)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	return rec.Code
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	defer rl.Stop()

	if code := rateLimitedRequest(t, rl, "user-1"); code != http.StatusOK {
		t.Fatalf("request 1: %d", code)
	}
	if code := rateLimitedRequest(t, rl, "user-1"); code != http.StatusOK {
		t.Fatalf("request 2: %d", code)
	}
	if code := rateLimitedRequest(t, rl, "user-1"); code != http.StatusTooManyRequests {
		t.Fatalf("request 3 should be limited, got %d", code)
	}
	// Other users are unaffected.
	if code := rateLimitedRequest(t, rl, "user-2"); code != http.StatusOK {
		t.Fatalf("unrelated user limited: %d", code)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		if code := rateLimitedRequest(t, rl, "user-1"); code != http.StatusOK {
			t.Fatalf("request %d limited with disabled limiter: %d", i, code)
		}
	}
}

func TestRateLimiterRequiresIdentity(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	defer rl.Stop()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := NewRateLimitMiddleware(logging.Discard(), rl)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("missing identity should be a server error, got %d", rec.Code)
	}
}
