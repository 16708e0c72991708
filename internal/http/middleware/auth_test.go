package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/auth"
)

func authRouter(tokens TokenParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(tokens))
	r.GET("/who", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"uid":      c.GetString("userID"),
			"type":     c.GetString("userType"),
			"verified": c.GetBool("verified"),
		})
	})
	return r
}

func doWho(t *testing.T, r *gin.Engine, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuth_BearerTokenSetsIdentity(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour, "test")
	tok, _, err := tokens.Issue("anon-1", auth.TypeAnonymous, false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	r := authRouter(tokens)

	w, body := doWho(t, r, map[string]string{
		"Authorization": "Bearer " + tok,
		HeaderUserID:    "someone-else",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if body["uid"] != "anon-1" || body["type"] != auth.TypeAnonymous || body["verified"] != false {
		t.Fatalf("token identity must win over the header: %v", body)
	}
}

func TestAuth_InvalidTokenIs401(t *testing.T) {
	r := authRouter(auth.NewTokens("secret", time.Hour, "test"))
	other, _, _ := auth.NewTokens("other-secret", time.Hour, "test").Issue("u1", auth.TypeVerified, true)

	for _, tok := range []string{"garbage", other} {
		w, body := doWho(t, r, map[string]string{"Authorization": "Bearer " + tok})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status=%d", tok, w.Code)
		}
		if body["code"] != "unauthorized" || w.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("unexpected 401 shape: %v", body)
		}
	}
}

func TestAuth_HeaderFallbackAndAnonymousCaller(t *testing.T) {
	r := authRouter(auth.NewTokens("secret", time.Hour, "test"))

	_, body := doWho(t, r, map[string]string{HeaderUserID: "  user123 "})
	if body["uid"] != "user123" || body["type"] != "" {
		t.Fatalf("header identity: %v", body)
	}

	_, body = doWho(t, r, map[string]string{"Authorization": "Basic abc"})
	if body["uid"] != "" {
		t.Fatalf("non-bearer schemes are ignored: %v", body)
	}
}

func Test_bearerToken(t *testing.T) {
	cases := []struct {
		in   string
		tok  string
		want bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		tok, found := bearerToken(tc.in)
		if tok != tc.tok || found != tc.want {
			t.Fatalf("bearerToken(%q) = %q,%v; want %q,%v", tc.in, tok, found, tc.tok, tc.want)
		}
	}
}
