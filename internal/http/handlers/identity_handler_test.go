package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-tutor-backend/internal/auth"
	"github.com/tbourn/go-tutor-backend/internal/services"
	"github.com/tbourn/go-tutor-backend/internal/upstream"
)

func TestCreateAnonymousUser(t *testing.T) {
	e := newTestEnv(t, 0, nil)

	w := e.call(http.MethodPost, "/users/anonymous", "", "")
	var s services.Session
	decodeJSON(t, w, &s)
	if w.Code != http.StatusCreated || s.Token == "" || s.UserID == "" || s.Type != auth.TypeAnonymous || s.Verified {
		t.Fatalf("anonymous -> %d %+v", w.Code, s)
	}

	claims, err := auth.NewTokens("secret", 0, "test").Parse(s.Token)
	if err != nil || claims.UID != s.UserID {
		t.Fatalf("token does not carry the uid: %+v %v", claims, err)
	}
}

func TestVerifyUser(t *testing.T) {
	e := newTestEnv(t, 0, nil)

	w := e.call(http.MethodPost, "/auth/verify", "", `{"user":"student-42"}`)
	var s services.Session
	decodeJSON(t, w, &s)
	if w.Code != http.StatusOK || s.UserID != "student-42" || !s.Verified || s.Message != "User is valid" {
		t.Fatalf("verify -> %d %+v", w.Code, s)
	}

	if w = e.call(http.MethodPost, "/auth/verify", "", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing user -> %d", w.Code)
	}

	e.backend.validErr = &upstream.Error{Endpoint: upstream.EndpointValid, Status: http.StatusUnauthorized}
	if w = e.call(http.MethodPost, "/auth/verify", "", `{"user":"intruder"}`); w.Code != http.StatusUnauthorized || errorCode(t, w) != ErrCodeUnauthorized {
		t.Fatalf("rejected -> %d %s", w.Code, w.Body.String())
	}

	e.backend.validErr = &upstream.Error{Endpoint: upstream.EndpointValid, Status: http.StatusServiceUnavailable}
	if w = e.call(http.MethodPost, "/auth/verify", "", `{"user":"student-42"}`); w.Code != http.StatusBadGateway || errorCode(t, w) != ErrCodeUpstream {
		t.Fatalf("backend down -> %d %s", w.Code, w.Body.String())
	}
}

func TestGetUsage(t *testing.T) {
	e := newTestEnv(t, 3, nil)

	w := e.call(http.MethodGet, "/usage", "u1", "")
	var st services.UsageStatus
	decodeJSON(t, w, &st)
	if w.Code != http.StatusOK || st.Limit != 3 || st.Used != 0 || st.Remaining != 3 || st.Unlimited {
		t.Fatalf("usage -> %d %+v", w.Code, st)
	}
}
