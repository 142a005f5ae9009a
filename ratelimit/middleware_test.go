package ratelimit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"resource-ratelimit/ratelimit/domain"
)

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	l := New(Options{
		Defaults:            domain.Config{Points: 1, Duration: 60},
		AddRateLimitHeaders: true,
	})

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := l.Middleware()(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/notes", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "ip:10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=ip:10.0.0.1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining=0, got %q", got)
	}

	// 2) segunda deve bloquear sem rodar o handler
	r2 := httptest.NewRequest(http.MethodGet, "http://example/notes", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if body := w2.Body.String(); !strings.Contains(body, domain.TooManyRequestsMessage) {
		t.Fatalf("expected fixed message in body, got %q", body)
	}

	retryAfter, err := strconv.Atoi(strings.TrimSpace(w2.Header().Get("Retry-After")))
	if err != nil || retryAfter < 1 {
		t.Fatalf("expected integer Retry-After >= 1, got %q", w2.Header().Get("Retry-After"))
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_CustomKeyFuncSeparatesClients(t *testing.T) {
	l := New(Options{
		Defaults: domain.Config{Points: 1, Duration: 60},
		KeyFunc: func(r *http.Request) string {
			return "api:" + r.Header.Get("X-Api-Key")
		},
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := l.Middleware()(next)

	// duas chaves diferentes => ambas passam, cada uma com sua cota
	for _, key := range []string{"k1", "k2"} {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("X-Api-Key", key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for key %s, got %d", key, w.Code)
		}
	}
}

func TestMiddleware_BackendErrorIs500(t *testing.T) {
	l := New(Options{Consumer: erroringConsumer{err: io.ErrUnexpectedEOF}})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run on backend failure")
	})
	h := l.Middleware()(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for backend failure, got %d", w.Code)
	}
}
