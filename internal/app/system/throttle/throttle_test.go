package throttle

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestLimiter_PerKeyBuckets(t *testing.T) {
	l := New(rate.Every(time.Hour), 2)

	for i := 0; i < 2; i++ {
		if !l.Allow("1.1.1.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("1.1.1.1") {
		t.Error("third request should be throttled")
	}
	if !l.Allow("2.2.2.2") {
		t.Error("other client should have its own bucket")
	}
}

func TestLimiter_MapIsBounded(t *testing.T) {
	l := New(rate.Every(time.Hour), 1)
	l.maxKeys = 3

	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("a should be exhausted")
	}
	l.Allow("b")
	l.Allow("c")
	l.Allow("d") // resets the map

	if len(l.limiters) != 1 {
		t.Errorf("tracked keys = %d, want 1 after reset", len(l.limiters))
	}
	if !l.Allow("a") {
		t.Error("a should start fresh after the map reset")
	}
}

func TestPerHour(t *testing.T) {
	l := PerHour(10)
	if l.burst != 10 {
		t.Errorf("burst = %d, want 10", l.burst)
	}
	if l.limit != rate.Every(6*time.Minute) {
		t.Errorf("limit = %v, want one token per 6m", l.limit)
	}
}

func TestMiddleware(t *testing.T) {
	l := New(rate.Every(time.Hour), 1)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := l.Middleware(func(r *http.Request) string { return "9.9.9.9" }, nil, zap.NewNop())(ok)

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/login", nil))
		return rec
	}

	if rec := do(http.MethodPost); rec.Code != http.StatusOK {
		t.Fatalf("first POST = %d, want 200", rec.Code)
	}
	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d, want 429", rec.Code)
	}
	if secs, err := strconv.Atoi(rec.Header().Get("Retry-After")); err != nil || secs < 1 {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if rec := do(http.MethodGet); rec.Code != http.StatusOK {
		t.Errorf("GET while throttled = %d, want 200", rec.Code)
	}
}

func TestMiddleware_CustomHandler(t *testing.T) {
	l := New(rate.Every(time.Hour), 0)
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})
	h := l.Middleware(nil, page, zap.NewNop())(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodPost, "/signup", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests || rec.Body.String() != "slow down" {
		t.Errorf("got %d %q, want custom 429 page", rec.Code, rec.Body.String())
	}
}
