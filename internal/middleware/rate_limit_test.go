package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithClaims(userID string) *http.Request {
	req := httptest.NewRequest("GET", "/portal/accounts", nil)
	claims := &models.TokenClaims{UserID: userID, Type: "access"}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

func TestRateLimitByUser_Returns429AfterLimit(t *testing.T) {
	limited := RateLimitByUser(RateLimitConfig{RequestsPerMinute: 3})(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, requestWithClaims("user-a"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	limited.ServeHTTP(w, requestWithClaims("user-a"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("over-limit request: got status %d, want 429", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("limit response Content-Type: got %q, want application/json", ct)
	}
}

func TestRateLimitByUser_IsolatesUserBuckets(t *testing.T) {
	limited := RateLimitByUser(RateLimitConfig{RequestsPerMinute: 2})(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, requestWithClaims("user-a"))
		if w.Code != http.StatusOK {
			t.Fatalf("user-a request %d: got status %d, want 200", i+1, w.Code)
		}
	}

	// user-a is exhausted, user-b is not
	w := httptest.NewRecorder()
	limited.ServeHTTP(w, requestWithClaims("user-a"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("user-a over limit: got status %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	limited.ServeHTTP(w, requestWithClaims("user-b"))
	if w.Code != http.StatusOK {
		t.Errorf("user-b first request: got status %d, want 200", w.Code)
	}
}

func TestRateLimitByUser_FallsBackToIPWithoutClaims(t *testing.T) {
	limited := RateLimitByUser(RateLimitConfig{RequestsPerMinute: 2})(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/portal/login-url", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		limited.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("anonymous request %d: got status %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/portal/login-url", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	limited.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("anonymous over limit: got status %d, want 429", w.Code)
	}
}

func TestRateLimitByIP_EnforcesLimit(t *testing.T) {
	limited := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "198.51.100.9:4321"
	limited.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: got status %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "198.51.100.9:4321"
	limited.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got status %d, want 429", w.Code)
	}
}
