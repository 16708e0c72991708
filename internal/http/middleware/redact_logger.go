// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access log of the tutor API. It
// never logs bodies: chat messages, uploads and contact forms stay out of the
// logs entirely. What it does log is scrubbed first:
//
//   - credential headers (Authorization, Cookie, Set-Cookie, plus configured
//     ones such as X-User-ID) are replaced wholesale
//   - configured query parameters (the topic search text) are replaced
//   - e-mail addresses, phone numbers and JWTs left in the query string or
//     in other header values are masked by pattern
//
// It also attaches the request-scoped logger returned by LoggerFrom.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	redacted = "[REDACTED]"

	defaultMaxQueryLen = 1024
)

var (
	jwtRE   = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)
	emailRE = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+(?:@|%40)[a-z0-9.\-]+\.[a-z]{2,}`)
	// a phone number may not be glued to letters or hyphens, so the digit
	// runs inside UUIDs and dates never match
	phoneRE = regexp.MustCompile(`(^|[^0-9A-Za-z_\-])((?:\+|%2B)?\(?\d{2,4}\)?(?:[ .\-]?\d){7,12})($|[^0-9A-Za-z_\-])`)
)

// scrub masks tokens, e-mail addresses and phone numbers in s. Tokens go
// first since their base64 segments could otherwise be split by the looser
// patterns.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = jwtRE.ReplaceAllString(s, "[REDACTED:token]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "${1}[REDACTED:phone]${3}")
}

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are masked in addition to Authorization, Cookie and
	// Set-Cookie. Case-insensitive.
	MaskHeaders []string
	// MaskQuery names query parameters whose values are always masked.
	MaskQuery []string
	// MaxQueryLen caps the logged query string in bytes. Values <= 0 default
	// to 1024.
	MaxQueryLen int
}

// RedactingLogger returns the access-log middleware. One event per request,
// at info, warn for 4xx and error for 5xx or when handlers recorded errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]bool{"authorization": true, "cookie": true, "set-cookie": true}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = true
		}
	}
	maskQuery := make(map[string]bool, len(opts.MaskQuery))
	for _, q := range opts.MaskQuery {
		maskQuery[q] = true
	}
	maxQuery := opts.MaxQueryLen
	if maxQuery <= 0 {
		maxQuery = defaultMaxQueryLen
	}

	return func(c *gin.Context) {
		start := time.Now()
		route := routeLabel(c)

		lg := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("route", route).
			Logger()
		c.Set(loggerKey, &lg)

		query := redactQuery(c.Request.URL.RawQuery, maskQuery, maxQuery)
		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if maskHeaders[strings.ToLower(k)] {
				headers[k] = redacted
				continue
			}
			headers[k] = scrub(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		ev := lg.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = lg.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = lg.Warn()
		}
		if ut := c.GetString("userType"); ut != "" {
			ev = ev.Str("user_type", ut)
		}
		if IsReplay(c) {
			ev = ev.Bool("replay", true)
		}
		ev.Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// redactQuery masks the values of the named parameters, scrubs the rest and
// truncates the result to max bytes.
func redactQuery(raw string, mask map[string]bool, max int) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		k, _, _ := strings.Cut(p, "=")
		if mask[k] {
			parts[i] = k + "=" + redacted
			continue
		}
		parts[i] = scrub(p)
	}
	out := strings.Join(parts, "&")
	if len(out) > max {
		out = out[:max] + "..."
	}
	return out
}
