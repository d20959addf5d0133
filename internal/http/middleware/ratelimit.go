// In-memory token-bucket rate limiting, keyed per user or client IP, for
// edge-level abuse control on the ingest and notification endpoints. Idle
// buckets are swept opportunistically so the map stays bounded, and replayed
// idempotent deliveries can bypass the limiter entirely. Process-local only:
// a horizontally scaled deployment would need a shared limiter for global
// enforcement.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc names the bucket a request draws tokens from, stable for the
// duration of the request ("user:<id>", "ip:<addr>").
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the user identity stashed under "userID" by upstream
// middleware and falls back to the client IP. The prefixes keep the user and
// IP namespaces from colliding.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// sweepEvery is how many bucket lookups pass between idle-bucket sweeps.
const sweepEvery = 5000

// bucket pairs one token bucket with the last time its key was seen.
type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter hands out tokens from per-key buckets created on demand in a
// mutex-guarded map; buckets idle past the TTL are evicted during periodic
// sweeps. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	ttl     time.Duration
	sweepN  uint64
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn.
//
//   - rps:   tokens replenished per second (0 allows no requests; use >0).
//   - burst: maximum burst size; values <= 0 are coerced to 1.
//   - keyFn: function that maps a request to a bucket identity.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		ttl:     10 * time.Minute, // idle eviction horizon
	}
}

// bucketFor returns the limiter for key, creating it on first sight, and
// refreshes its last-seen stamp. Every sweepEvery lookups it first walks the
// map and drops buckets idle past the TTL, so even the bucket being fetched
// can be replaced when stale.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepN++
	if rl.sweepN >= sweepEvery {
		rl.sweepN = 0
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request for
// rate-limit bypass (i.e., it replays a previously completed ingest batch).
//
// When true, Handler() skips limiting so replays are served without consuming
// tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass) // set by IdempotencyValidator
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns a Gin middleware that enforces per-key token-bucket limits.
//
// Replayed ingest batches (IsRateBypass) pass without consuming a token.
// Everything else draws one token from its key's bucket; an empty bucket
// aborts the request with 429, a Retry-After: 1 header, and the standard
// error envelope carrying code "rate_limited" and the request id.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.bucketFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
