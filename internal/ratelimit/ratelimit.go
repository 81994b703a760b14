// Package ratelimit implements per-key token buckets for HTTP handlers.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sendrec/ivplayer/internal/httputil"
)

const (
	sweepInterval = 5 * time.Minute
	idleAfter     = 10 * time.Minute
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(r *http.Request) string

// ByClientIP keys buckets by the caller's address.
func ByClientIP(r *http.Request) string {
	return httputil.ClientIP(r)
}

// ByURLParam keys buckets by a chi route parameter, such as a session id.
func ByURLParam(name string) KeyFunc {
	return func(r *http.Request) string {
		return name + ":" + chi.URLParam(r, name)
	}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	key     KeyFunc
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type Option func(*Limiter)

func WithKey(fn KeyFunc) Option {
	return func(l *Limiter) { l.key = fn }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(requestsPerSecond float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    requestsPerSecond,
		burst:   float64(burst),
		key:     ByClientIP,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.cleanup()
	return l
}

func (l *Limiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{tokens: l.burst - 1, lastSeen: now}
		return true, 0
	}

	elapsed := now.Sub(b.lastSeen).Seconds()
	b.lastSeen = now
	b.tokens += elapsed * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
		return false, wait
	}

	b.tokens--
	return true, 0
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleAfter {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the background sweep.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.allow(l.key(r))
		if !ok {
			retry := int(wait.Seconds() + 0.999)
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
