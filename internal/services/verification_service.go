// Package services – VerificationService
//
// VerificationService turns the AI backend's user check into a signed session
// token, and mints tokens for anonymous visitors. The token carries the user
// id, the user type and the verification flag.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-tutor-backend/internal/auth"
	"github.com/tbourn/go-tutor-backend/internal/upstream"
)

// UserValidator checks a user against the AI backend.
type UserValidator interface {
	Validate(ctx context.Context, user string) (string, error)
}

// TokenIssuer signs session tokens. *auth.Tokens implements it.
type TokenIssuer interface {
	Issue(uid, typ string, verified bool) (string, time.Time, error)
}

// Session is an issued session token and what it asserts.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"uid"`
	Type      string    `json:"type"`
	Verified  bool      `json:"verified"`
	Message   string    `json:"message,omitempty"`
}

// VerificationService implements the identity use-cases.
type VerificationService struct {
	Backend UserValidator
	Tokens  TokenIssuer
}

// Anonymous mints a new anonymous user id and its token.
func (s *VerificationService) Anonymous(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.issue(uuid.NewString(), auth.TypeAnonymous, false, "")
}

// Verify validates user with the backend and issues a verified token.
// Rejections by the backend yield ErrUnauthorized; other failures are
// wrapped in ErrUpstreamFailure.
func (s *VerificationService) Verify(ctx context.Context, user string) (*Session, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, &ValidationError{Fields: map[string]string{"user": "user is a required field"}}
	}

	msg, err := s.Backend.Validate(ctx, user)
	if err != nil {
		var uerr *upstream.Error
		if errors.As(err, &uerr) && (uerr.Status == http.StatusUnauthorized || uerr.Status == http.StatusForbidden || uerr.Status == http.StatusNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	return s.issue(user, auth.TypeVerified, true, msg)
}

func (s *VerificationService) issue(uid, typ string, verified bool, msg string) (*Session, error) {
	tok, exp, err := s.Tokens.Issue(uid, typ, verified)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, UserID: uid, Type: typ, Verified: verified, Message: msg}, nil
}
