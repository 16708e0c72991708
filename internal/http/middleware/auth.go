// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity. A bearer session token, when
// present, must verify; its claims become the request identity. Without a
// token the X-User-ID header is honored so local tools and tests can act as
// any user.
//
// Context keys set for downstream middleware and handlers:
//   - "userID"   (string) the caller's user id
//   - "userType" (string) "anonymous" or "verified", empty for header identities
//   - "verified" (bool)   whether the backend verified the user
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/auth"
)

// HeaderUserID is the development identity header.
const HeaderUserID = "X-User-ID"

// TokenParser verifies a session token. *auth.Tokens implements it.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Auth returns a middleware that resolves the caller's identity from a bearer
// token or the X-User-ID header. An invalid token aborts with 401.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, found := bearerToken(c.GetHeader("Authorization")); found && tokens != nil {
			claims, err := tokens.Parse(raw)
			if err != nil {
				c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       "unauthorized",
					"message":    "invalid or expired token",
				})
				return
			}
			c.Set("userID", claims.UID)
			c.Set("userType", claims.Type)
			c.Set("verified", claims.Verified)
			c.Next()
			return
		}

		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			c.Set("userID", uid)
		}
		c.Next()
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" value.
func bearerToken(h string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// defaultUserID names callers that sent neither a token nor X-User-ID.
// Handlers fall back to the same value.
const defaultUserID = "demo-user"

// callerID returns the identity resolved by Auth, or defaultUserID.
func callerID(c *gin.Context) string {
	if s := c.GetString("userID"); s != "" {
		return s
	}
	return defaultUserID
}

// isAnonymousCaller reports whether the caller holds an anonymous session token.
func isAnonymousCaller(c *gin.Context) bool {
	return c.GetString("userType") == auth.TypeAnonymous
}
