package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	UserIdentity(h).ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	h := rl.Handler(okHandler())

	for i := range 10 {
		if rec := doRequest(h, "192.168.1.1:5000", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	h := rl.Handler(okHandler())

	for range 5 {
		doRequest(h, "192.168.1.1:5000", "")
	}
	rec := doRequest(h, "192.168.1.1:5000", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimiterSetsHeaders(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rec := doRequest(rl.Handler(okHandler()), "192.168.1.1:5000", "")

	if rec.Header().Get("X-RateLimit-Limit") != "10" {
		t.Errorf("expected limit 10, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Errorf("expected remaining 9, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimiterSeparatesUsersBehindOneIP(t *testing.T) {
	rl := NewRateLimiter(10, 2)
	h := rl.Handler(okHandler())

	for range 2 {
		doRequest(h, "10.0.0.1:1", "agent-1")
	}
	if rec := doRequest(h, "10.0.0.1:1", "agent-1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("agent-1: expected 429, got %d", rec.Code)
	}
	if rec := doRequest(h, "10.0.0.1:1", "agent-2"); rec.Code != http.StatusOK {
		t.Fatalf("agent-2: expected 200, got %d", rec.Code)
	}
	if rec := doRequest(h, "10.0.0.1:1", ""); rec.Code != http.StatusOK {
		t.Fatalf("anonymous: expected 200, got %d", rec.Code)
	}
}

func TestRateLimiterRefillsAndCleansUp(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	if _, _, ok := rl.allow("ip:a"); !ok {
		t.Fatal("first request must pass")
	}
	if _, wait, ok := rl.allow("ip:a"); ok || wait <= 0 {
		t.Fatalf("second request must wait, ok=%v wait=%v", ok, wait)
	}

	now = now.Add(time.Second)
	if _, _, ok := rl.allow("ip:a"); !ok {
		t.Fatal("token should have refilled after one second")
	}

	now = now.Add(time.Hour)
	rl.cleanup(time.Minute)
	if rl.Len() != 0 {
		t.Fatalf("expected idle bucket removed, got %d", rl.Len())
	}
}
