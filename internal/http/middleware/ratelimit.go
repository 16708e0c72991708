// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a per-caller token-bucket rate limiter. Buckets are
// golang.org/x/time/rate limiters kept in a go-cache store whose idle expiry
// bounds memory without a hand-rolled sweep.
//
// Callers holding an anonymous session share their client IP's bucket:
// anonymous tokens are free to mint, so keying them by user would let one
// client multiply its allowance. Idempotent replays bypass the limiter.
//
// The limiter is process-local. It guards the AI backend from bursts; the
// daily message quota is enforced separately by the services.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// bucketIdleTTL is how long an unused bucket survives.
const bucketIdleTTL = 10 * time.Minute

// KeyFunc maps a request to its bucket key. Keys are prefixed with their
// kind ("user:" or "ip:"), which also labels the rejection metric.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys verified and header identities by user and everyone
// else, anonymous sessions included, by client IP.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetString("userID"); uid != "" && !isAnonymousCaller(c) {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimiter hands out one token bucket per key. Safe for concurrent use.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	keyFn   KeyFunc
	buckets *cache.Cache
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to burst.
// A burst <= 0 is treated as 1.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: cache.New(bucketIdleTTL, bucketIdleTTL/2),
	}
}

// bucket returns the limiter for key, creating it on first use. Every access
// pushes the idle expiry forward.
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	if v, found := rl.buckets.Get(key); found {
		lim := v.(*rate.Limiter)
		rl.buckets.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	if err := rl.buckets.Add(key, lim, cache.DefaultExpiration); err != nil {
		// lost the race to another request for the same key
		if v, found := rl.buckets.Get(key); found {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator exempted this request.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// Handler returns the limiting middleware. Rejected requests get 429 with a
// Retry-After rounded up to whole seconds. CORS preflights are never limited.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		key := rl.keyFn(c)
		res := rl.bucket(key).Reserve()
		delay := res.Delay()
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.Cancel()

		kind, _, _ := strings.Cut(key, ":")
		rateLimited.WithLabelValues(kind).Inc()

		retry := 1
		if res.OK() {
			retry = int(math.Ceil(delay.Seconds()))
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "too many requests, slow down",
		})
	}
}
