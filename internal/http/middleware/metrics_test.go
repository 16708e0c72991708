package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/chats/:id/messages", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.POST("/chats/:id/attachments", func(c *gin.Context) { c.Status(http.StatusCreated) })

	okLabel := httpReqs.WithLabelValues("GET", "/chats/:id/messages", "200")
	missLabel := httpReqs.WithLabelValues("GET", unmatchedRoute, "404")
	baseOK, baseMiss := testutil.ToFloat64(okLabel), testutil.ToFloat64(missLabel)
	baseSize := testutil.CollectAndCount(httpReqSize)

	for _, id := range []string{"c1", "c2", "c3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chats/"+id+"/messages", nil))
	}
	for _, p := range []string{"/wp-admin", "/.env"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chats/c1/attachments", strings.NewReader("file bytes")))

	if d := testutil.ToFloat64(okLabel) - baseOK; d != 3 {
		t.Fatalf("three chats must share one series, delta=%v", d)
	}
	if d := testutil.ToFloat64(missLabel) - baseMiss; d != 2 {
		t.Fatalf("unmatched paths must share one series, delta=%v", d)
	}
	if testutil.ToFloat64(httpInflight) != 0 {
		t.Fatalf("inflight gauge not released")
	}
	// only the upload declared a body, so exactly one new size series exists
	if got := testutil.CollectAndCount(httpReqSize); got != baseSize+1 {
		t.Fatalf("request size series = %d, want %d", got, baseSize+1)
	}
}
