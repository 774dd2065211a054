package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashita-ai/kotae/internal/model"
)

type scriptedLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *scriptedLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func (s *scriptedLimiter) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func doRequest(t *testing.T, h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chats", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareAllows(t *testing.T) {
	lim := &scriptedLimiter{allow: true}
	h := Middleware(lim, IPKeyFunc, nil)(okHandler())

	rec := doRequest(t, h, "10.0.0.1:4321")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(lim.keys) != 1 || lim.keys[0] != "10.0.0.1" {
		t.Fatalf("expected limiter keyed by client IP, got %v", lim.keys)
	}
}

func TestMiddlewareDenies(t *testing.T) {
	lim := &scriptedLimiter{allow: false}
	reqID := func(*http.Request) string { return "req-42" }
	h := Middleware(lim, IPKeyFunc, reqID)(okHandler())

	rec := doRequest(t, h, "10.0.0.1:4321")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	var apiErr model.APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Error.Code != model.ErrCodeRateLimited {
		t.Fatalf("expected code %s, got %s", model.ErrCodeRateLimited, apiErr.Error.Code)
	}
	if apiErr.Meta.RequestID != "req-42" {
		t.Fatalf("expected request ID in error meta, got %q", apiErr.Meta.RequestID)
	}
}

func TestMiddlewareFailsOpenOnLimiterError(t *testing.T) {
	lim := &scriptedLimiter{allow: false, err: errors.New("limiter down")}
	h := Middleware(lim, IPKeyFunc, nil)(okHandler())

	rec := doRequest(t, h, "10.0.0.1:4321")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected fail-open 204, got %d", rec.Code)
	}
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	h := Middleware(nil, IPKeyFunc, nil)(okHandler())
	rec := doRequest(t, h, "10.0.0.1:4321")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestMiddlewareSkipsEmptyKey(t *testing.T) {
	lim := &scriptedLimiter{allow: false}
	empty := func(*http.Request) string { return "" }
	h := Middleware(lim, empty, nil)(okHandler())

	rec := doRequest(t, h, "10.0.0.1:4321")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 when key is empty, got %d", rec.Code)
	}
	if len(lim.keys) != 0 {
		t.Fatalf("limiter should not be consulted for empty key, saw %v", lim.keys)
	}
}

func TestIPKeyFunc(t *testing.T) {
	cases := []struct {
		remoteAddr string
		want       string
	}{
		{"192.168.1.10:54321", "192.168.1.10"},
		{"[::1]:8080", "::1"},
		{"garbage", "garbage"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if got := IPKeyFunc(req); got != tc.want {
			t.Errorf("IPKeyFunc(%q) = %q, want %q", tc.remoteAddr, got, tc.want)
		}
	}
}
