package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, rate float64, burst int, opts ...Option) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(rate, burst, append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(l.Stop)
	return l, clock
}

func TestRequestsWithinBurstAreAllowed(t *testing.T) {
	burst := 5
	limiter, _ := newTestLimiter(t, 1, burst)

	for i := 0; i < burst; i++ {
		if ok, _ := limiter.allow("192.168.1.1"); !ok {
			t.Errorf("request %d within burst of %d should be allowed", i+1, burst)
		}
	}
	if ok, wait := limiter.allow("192.168.1.1"); ok || wait <= 0 {
		t.Errorf("request exceeding burst should be denied with a wait, got ok=%v wait=%v", ok, wait)
	}
}

func TestTokensReplenishOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(t, 10, 2)

	limiter.allow("192.168.1.1")
	limiter.allow("192.168.1.1")
	if ok, _ := limiter.allow("192.168.1.1"); ok {
		t.Fatal("expected request to be denied after exhausting burst")
	}

	clock.Advance(150 * time.Millisecond)

	if ok, _ := limiter.allow("192.168.1.1"); !ok {
		t.Error("expected request to be allowed after token replenishment")
	}
}

func TestTokensDoNotExceedBurst(t *testing.T) {
	limiter, clock := newTestLimiter(t, 100, 2)

	limiter.allow("a")
	clock.Advance(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		if ok, _ := limiter.allow("a"); ok {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("expected 2 allowed after idle period, got %d", allowed)
	}
}

func TestDifferentKeysHaveIndependentLimits(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 1)

	limiter.allow("10.0.0.1")
	if ok, _ := limiter.allow("10.0.0.1"); ok {
		t.Error("expected second request from first IP to be denied")
	}
	if ok, _ := limiter.allow("10.0.0.2"); !ok {
		t.Error("expected first request from second IP to be allowed")
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	limiter, clock := newTestLimiter(t, 1, 1)

	limiter.allow("old")
	clock.Advance(idleAfter + time.Second)
	limiter.allow("fresh")
	limiter.sweep()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.buckets["old"]; ok {
		t.Error("expected idle bucket to be swept")
	}
	if _, ok := limiter.buckets["fresh"]; !ok {
		t.Error("expected active bucket to remain")
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	limiter, _ := newTestLimiter(t, 0.5, 1)
	called := 0
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/watch/abc", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != want {
			t.Fatalf("request %d: expected status %d, got %d", i, want, rec.Code)
		}
		if want == http.StatusTooManyRequests {
			if rec.Header().Get("Retry-After") != "2" {
				t.Errorf("expected Retry-After 2, got %q", rec.Header().Get("Retry-After"))
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != "too many requests" {
				t.Errorf("unexpected body %v", body)
			}
		}
	}
	if called != 1 {
		t.Errorf("expected next handler called once, got %d", called)
	}
}

func TestMiddlewareForwardedForIsPerClient(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected %s to be allowed, got %d", ip, rec.Code)
		}
	}
}

func TestByURLParam(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 1, WithKey(ByURLParam("id")))
	r := chi.NewRouter()
	r.With(limiter.Middleware).Post("/api/sessions/{id}/play", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	codes := make([]int, 0, 3)
	for _, id := range []string{"s1", "s1", "s2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/play", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusNoContent {
		t.Errorf("unexpected status sequence %v", codes)
	}
}
