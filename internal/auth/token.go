// Package auth issues and verifies the signed session tokens that replace the
// browser-held verification state. A token carries the user id, the user type
// (anonymous or verified) and the verification flag.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User types carried in tokens.
const (
	TypeAnonymous = "anonymous"
	TypeVerified  = "verified"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload.
type Claims struct {
	UID      string `json:"uid"`
	Type     string `json:"type"`
	Verified bool   `json:"verified"`
	jwt.RegisteredClaims
}

// Tokens signs and parses HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string

	// Now is the clock used for issuing; tests override it.
	Now func() time.Time
}

// NewTokens builds a token issuer.
func NewTokens(secret string, ttl time.Duration, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, issuer: issuer, Now: time.Now}
}

// Issue signs a token for uid and returns it with its expiry.
func (t *Tokens) Issue(uid, typ string, verified bool) (string, time.Time, error) {
	now := t.Now().UTC()
	exp := now.Add(t.ttl)
	claims := Claims{
		UID:      uid,
		Type:     typ,
		Verified: verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies a token and returns its claims.
func (t *Tokens) Parse(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UID == "" {
		return nil, fmt.Errorf("%w: missing uid", ErrInvalidToken)
	}
	return &claims, nil
}
