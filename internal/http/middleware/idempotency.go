// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on message sends. A send that
// carries a key the caller already used for the same chat is a replay: the
// message handler serves the stored pair instead of calling the AI backend a
// second time, and the rate limiter lets it through without spending a token.
//
// The middleware only marks the request. Replay records live in the database
// and the lookup is injected so this package stays free of persistence.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key of a message send.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen = 128
)

// defaultIdemPattern accepts UUIDs and other token-like keys.
var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~:\-]+$`)

// GetIdempotencyKey returns the key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether the lookup found a stored pair for this send.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length after trimming. Values <= 0 default to 128.
	MaxLen int
	// Pattern restricts the key alphabet. Nil uses a token pattern that
	// admits UUIDs.
	Pattern *regexp.Regexp
	// Routes lists the route templates (as returned by c.FullPath) that honor
	// the header. Empty means every POST route.
	Routes []string
}

// ReplayLookup reports whether a still-valid stored pair exists for
// (userID, chatID, key). Expiry is the lookup's concern.
type ReplayLookup func(ctx context.Context, userID, chatID, key string, now time.Time) (bool, error)

// IdempotencyValidator returns a middleware that validates and stashes the
// Idempotency-Key of POST requests to the configured routes.
//
// An absent header, another method or another route passes through untouched.
// A malformed key aborts with 400. A lookup error is logged and the request
// proceeds as a first send; the send itself is still idempotent at the store.
func IdempotencyValidator(opts IdempotencyOptions, lookup ReplayLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}
	var routes map[string]bool
	if len(opts.Routes) > 0 {
		routes = make(map[string]bool, len(opts.Routes))
		for _, r := range opts.Routes {
			routes[r] = true
		}
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || (routes != nil && !routes[c.FullPath()]) {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "invalid_idempotency_key",
				"message":    "Idempotency-Key must be at most " + strconv.Itoa(maxLen) + " token characters",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := callerID(c)
			chatID := c.Param("id")
			found, err := lookup(c.Request.Context(), uid, chatID, key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("chat_id", chatID).Msg("idempotency lookup failed")
			case found:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
				idempotentReplays.Inc()
			}
		}

		c.Next()
	}
}
