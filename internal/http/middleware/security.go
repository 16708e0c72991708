// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, the response hardening of the tutor API.
// Besides the usual browser headers it decides cacheability: chat histories,
// drafts and profiles are per-user, so responses to identified callers are
// marked private and must be revalidated through their ETag.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultHSTSMaxAge = 180 * 24 * time.Hour

	// apiCSP forbids every fetch: API responses are JSON and never rendered.
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days when <= 0.
	HSTSMaxAge time.Duration
	// NoStore forbids caching of every response.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// DocsPrefix is exempt from the API Content-Security-Policy so the
	// Swagger UI can load its assets. Empty applies the CSP everywhere.
	DocsPrefix string
}

// SecurityHeaders returns the hardening middleware. Mount it after Auth so it
// can tell identified callers apart.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if opt.DocsPrefix == "" || !strings.HasPrefix(c.Request.URL.Path, opt.DocsPrefix) {
			h.Set("Content-Security-Policy", apiCSP)
		}
		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		switch {
		case opt.NoStore:
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		case c.Request.Method == http.MethodGet && identified(c):
			h.Set("Cache-Control", "private, no-cache")
			h.Add("Vary", "Authorization")
			h.Add("Vary", HeaderUserID)
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		c.Next()
	}
}

// identified reports whether the caller presented a token or an identity header.
func identified(c *gin.Context) bool {
	return c.GetString("userID") != "" || c.GetHeader("Authorization") != ""
}

// isHTTPS reports whether the request arrived over TLS, directly or through a
// proxy that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
