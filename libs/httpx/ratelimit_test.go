package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), rl.Middleware())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/slots", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw.Code
	}

	if send("10.0.0.1") != http.StatusOK || send("10.0.0.1") != http.StatusOK {
		t.Fatal("expected burst of two to pass")
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other client should not be limited, got %d", code)
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	now := time.Now()
	if !rl.allow("k", now) {
		t.Fatal("first request should pass")
	}
	if rl.allow("k", now) {
		t.Fatal("second request in the same instant should be limited")
	}
	if !rl.allow("k", now.Add(1100*time.Millisecond)) {
		t.Fatal("bucket should refill after the window")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), WithRequestID)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK || rw.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("unexpected response %d %q", rw.Code, rw.Header().Get(RequestIDHeader))
	}
}

func TestCORSPreflight(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://app.timely.local"},
		AllowedMethods: []string{"GET", "POST"},
		MaxAge:         10 * time.Minute,
	}))

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/api/v1/slots", nil)
	req.Header.Set("Origin", "https://app.timely.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "https://app.timely.local" || rw.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected CORS headers %v", rw.Header())
	}
}

func TestRequestIDReplacesUnsafeIncomingID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set(RequestIDHeader, "bad id\n")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if seen == "" || seen == "bad id\n" || rw.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected a fresh id, got %q", seen)
	}
	if req.Header.Get(RequestIDHeader) != seen {
		t.Fatal("request header should carry the id upstream")
	}
}

func TestCORSWildcardSubdomain(t *testing.T) {
	h := Chain(http.NotFoundHandler(), WithCORS(CORSPolicy{AllowedOrigins: []string{"https://*.timely.dev"}}))

	cases := map[string]string{
		"https://app.timely.dev": "https://app.timely.dev",
		"https://timely.dev":     "",
		"http://app.timely.dev":  "",
		"https://evil.dev":       "",
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/slots", nil)
		req.Header.Set("Origin", origin)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		if got := rw.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Fatalf("origin %s: expected %q, got %q", origin, want, got)
		}
	}
}

func TestChainSkipsNilAndRecovers(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), nil, WithRecover(slog.New(slog.NewTextHandler(io.Discard, nil))), WithTimeout(0))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	if retryAfterSeconds(0) != 1 || retryAfterSeconds(1500*time.Millisecond) != 2 || retryAfterSeconds(3*time.Second) != 3 {
		t.Fatal("unexpected Retry-After rounding")
	}
}
