package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeCounterStore struct {
	counts map[string]int64
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: map[string]int64{}}
}

func (s *fakeCounterStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	return s.counts[key], nil
}

func loginRequest(body, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.RemoteAddr = ip + ":51234"
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRateLimitBlocksIPAfterLimit(t *testing.T) {
	store := newFakeCounterStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 3, 0)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(`{}`, "10.0.0.9"))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{}`, "10.0.0.9"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth attempt: status = %d, want 429", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{}`, "10.0.0.10"))
	if rec.Code != http.StatusOK {
		t.Fatalf("other address: status = %d, want 200", rec.Code)
	}
}

func TestAuthRateLimitTracksEmailAcrossAddresses(t *testing.T) {
	store := newFakeCounterStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	body := `{"email":"Reader@Example.COM","password":"x"}`
	for i, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(body, ip))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{"email":"reader@example.com"}`, "10.0.0.3"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt: status = %d, want 429", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{"email":"other@example.com"}`, "10.0.0.3"))
	if rec.Code != http.StatusOK {
		t.Fatalf("other email: status = %d, want 200", rec.Code)
	}
}

func TestAuthRateLimitPreservesBodyForHandler(t *testing.T) {
	store := newFakeCounterStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 5)

	var seen string
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		seen = string(raw)
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"email":"reader@example.com","password":"hunter22"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(body, "10.0.0.1"))

	if seen != body {
		t.Fatalf("handler saw %q, want the original body", seen)
	}
}

func TestAuthRateLimitFailsClosedOnStoreErrors(t *testing.T) {
	store := newFakeCounterStore()
	store.err = errors.New("redis down")
	policy := NewAuthRateLimitPolicy("login", time.Minute, 3, 0)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{}`, "10.0.0.1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeCounterStore()
	policy := NewAuthRateLimitPolicy("login", 0, 0, 0)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(`{}`, "10.0.0.1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i+1, rec.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("disabled policy touched the store: %v", store.counts)
	}
}

func TestClientIPPrefersForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	if got := ClientIP(req); got != "10.0.0.1" {
		t.Fatalf("remote addr: got %q", got)
	}

	req.Header.Set("X-Real-IP", "203.0.113.7")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("x-real-ip: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if got := ClientIP(req); got != "198.51.100.4" {
		t.Fatalf("x-forwarded-for: got %q", got)
	}
}
