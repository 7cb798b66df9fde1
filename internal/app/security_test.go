package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiterWindow(t *testing.T) {
	l := NewIPRateLimiter(2, 50*time.Millisecond)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Fatal("third request in window should be blocked")
	}
	// Separate keys have separate budgets.
	if !l.Allow("b") {
		t.Fatal("different key should not share the budget")
	}

	time.Sleep(60 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatal("budget should reset after the window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewIPRateLimiter(1, time.Minute)
	handler := RateLimitMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}

	// Same ip, different path: separate bucket.
	other := httptest.NewRequest(http.MethodGet, "/api/v1/seeds", nil)
	other.RemoteAddr = "10.0.0.1:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("other path status = %d, want 200", rec.Code)
	}
}

func TestOperatorGateDisabledWhenEmpty(t *testing.T) {
	gate, err := NewOperatorGate("  ")
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	if gate.Enabled() {
		t.Fatal("blank code should disable the gate")
	}
	if !gate.Check("anything") {
		t.Fatal("disabled gate should pass every request")
	}
}

func TestOperatorGateCheck(t *testing.T) {
	gate, err := NewOperatorGate("open-sesame")
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	if !gate.Enabled() {
		t.Fatal("gate should be enabled")
	}
	if !gate.Check("open-sesame") {
		t.Fatal("correct code rejected")
	}
	if !gate.Check("  open-sesame  ") {
		t.Fatal("surrounding whitespace should be tolerated")
	}
	if gate.Check("wrong") || gate.Check("") {
		t.Fatal("wrong code accepted")
	}
}

func TestOperatorGateMiddleware(t *testing.T) {
	gate, err := NewOperatorGate("hunter2")
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header status = %d, want 401", rec.Code)
	}

	req.Header.Set("X-Operator-Code", "hunter2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid code status = %d, want 200", rec.Code)
	}
}
