// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds request correlation and panic recovery:
//
//   - RequestID() propagates or mints the X-Request-ID correlation id.
//   - Recovery() turns panics into the API's JSON 500 envelope.
//   - LoggerFrom() returns the request-scoped zerolog.Logger attached by
//     RedactingLogger, so handlers and services log with the request's id,
//     route and caller.
//
// Mount order: RequestID, RedactingLogger, Recovery.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
)

// inboundRequestID bounds what a client may supply as X-Request-ID; anything
// else is replaced so ids stay safe to echo into headers and logs.
var inboundRequestID = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)

// RequestID reuses a well-formed inbound X-Request-ID or mints a UUID, stores
// it under "requestID" and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !inboundRequestID.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Recovery converts a panic into a 500 with the standard error envelope and
// logs the stack through the request logger. When the handler already wrote
// a response only the status is forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := c.GetString(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger tagged
// with the request id when RedactingLogger is not mounted. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, found := c.Get(loggerKey); found {
		if lg, ok := v.(*zerolog.Logger); ok && lg != nil {
			return lg
		}
	}
	l := log.With().Str("request_id", c.GetString(requestIDKey)).Logger()
	return &l
}
