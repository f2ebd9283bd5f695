package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adraryacine/adel-computer-sub000/internal/platform/auth"
)

func TestSimpleRateLimiterAllowsWithinWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := newSimpleRateLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("user-1") || !limiter.Allow("user-1") {
		t.Fatalf("expected first two requests allowed")
	}
	if limiter.Allow("user-1") {
		t.Fatalf("expected third request denied")
	}
	if !limiter.Allow("user-2") {
		t.Fatalf("expected separate key unaffected")
	}

	now = now.Add(2 * time.Minute)
	if !limiter.Allow("user-1") {
		t.Fatalf("expected window reset to allow requests again")
	}
}

func TestSimpleRateLimiterNilOnBadInput(t *testing.T) {
	if limiter := newSimpleRateLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
	if limiter := newSimpleRateLimiter(5, 0, nil); limiter != nil {
		t.Fatalf("expected nil limiter for zero window")
	}
}

func TestRateLimitMiddlewareRejectsOverLimit(t *testing.T) {
	mw := RateLimitMiddleware(1, time.Minute)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected first request through, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", rr.Code)
	}
}
