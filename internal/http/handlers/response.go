// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers. Every failure leaves through
// failFields, so clients always receive the same envelope:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "chat not found"
//	}
//
// Validation failures add a "fields" object keyed by JSON field name.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID for correlating with server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see the ErrCode constants
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to show to students
	Message string `json:"message" example:"chat not found"`
	// Per-field messages for validation failures
	Fields map[string]string `json:"fields,omitempty" example:"course_name:required"`
}

func fail(c *gin.Context, status int, code, msg string) {
	failFields(c, status, code, msg, nil)
}

// failFields aborts with the envelope. Server-side failures are logged on
// the request logger together with the route and the caller's identity kind,
// so a 502 from the AI backend can be traced without the student's text.
func failFields(c *gin.Context, status int, code, msg string, fields map[string]string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("route", c.FullPath()).
			Bool("anonymous", isAnonymous(c)).
			Str("error", msg).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Fields:    fields,
	})
}

// Fail lets the router answer with the same envelope, e.g. for NoRoute.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// setQuotaRetryAfter tells a client over its message quota how long until
// the usage window restarts. Seconds are rounded up; an unknown reset time
// sends no header.
func setQuotaRetryAfter(c *gin.Context, now, resetAt time.Time) {
	if resetAt.IsZero() {
		return
	}
	wait := resetAt.Sub(now)
	secs := int(wait / time.Second)
	if wait%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
}
