package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is token bucket rate limiting middleware. Callers with a
// forwarded identity get a bucket per user; anonymous callers share one
// per client IP.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       float64 // tokens per second
	burst      int     // max tokens
	maxBuckets int     // max tracked keys
	now        func() time.Time
}

type bucket struct {
	tokens    float64
	updatedAt time.Time
}

// NewRateLimiter creates a rate limiter with the given sustained rate
// (requests per second) and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		burst:      burst,
		maxBuckets: 100000,
		now:        time.Now,
	}
}

// Handler returns HTTP middleware that enforces the limit. It must run
// after UserIdentity to see the caller.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, retryAfter, allowed := rl.allow(limitKey(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow takes one token for key. It returns the tokens left, the seconds
// until the next token and whether the request may proceed.
func (rl *RateLimiter) allow(key string) (remaining int, retryAfter float64, allowed bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= rl.maxBuckets {
			return 0, 1 / rl.rate, false
		}
		b = &bucket{tokens: float64(rl.burst), updatedAt: now}
		rl.buckets[key] = b
	}

	b.tokens = math.Min(float64(rl.burst), b.tokens+now.Sub(b.updatedAt).Seconds()*rl.rate)
	b.updatedAt = now

	if b.tokens < 1 {
		return 0, (1 - b.tokens) / rl.rate, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// StartCleanup spawns a goroutine that drops buckets idle for longer than
// maxIdle every interval. The returned function stops it.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for key, b := range rl.buckets {
		if b.updatedAt.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// limitKey picks the bucket for r. Proxy headers are not trusted for the
// IP since clients can spoof them.
func limitKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
