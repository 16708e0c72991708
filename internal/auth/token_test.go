package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse_RoundTrip(t *testing.T) {
	tk := NewTokens("secret-123", time.Hour, "tutor")
	tok, exp, err := tk.Issue("u1", TypeVerified, true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry should be in the future: %v", exp)
	}
	c, err := tk.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.UID != "u1" || c.Type != TypeVerified || !c.Verified || c.Subject != "u1" {
		t.Fatalf("unexpected claims: %+v", c)
	}
}

func TestParse_RejectsExpiredForeignAndTampered(t *testing.T) {
	tk := NewTokens("secret-123", time.Minute, "tutor")
	tk.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := tk.Issue("u1", TypeAnonymous, false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tk.Now = time.Now
	if _, err := tk.Parse(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token should be invalid, got %v", err)
	}

	other := NewTokens("other-secret", time.Hour, "tutor")
	foreign, _, _ := other.Issue("u1", TypeAnonymous, false)
	if _, err := tk.Parse(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign signature should be invalid, got %v", err)
	}

	wrongIss := NewTokens("secret-123", time.Hour, "someone-else")
	tok, _, _ := wrongIss.Issue("u1", TypeAnonymous, false)
	if _, err := tk.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong issuer should be invalid, got %v", err)
	}

	if _, err := tk.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage should be invalid, got %v", err)
	}
}

func TestParse_RejectsNoneAlgAndMissingUID(t *testing.T) {
	tk := NewTokens("secret-123", time.Hour, "tutor")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		Issuer: "tutor", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	s, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := tk.Parse(s); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none should be rejected, got %v", err)
	}

	tok, _, _ := tk.Issue("", TypeAnonymous, false)
	if _, err := tk.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("missing uid should be rejected, got %v", err)
	}
}
