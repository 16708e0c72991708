// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for the tutor API. Route labels
// use the registered Gin template (e.g. /api/v1/chats/:id/messages) and
// unmatched requests share the "unmatched" label so scanners cannot inflate
// cardinality.
//
// Besides the per-route HTTP series it exports two counters fed by other
// middleware in this package: idempotent replays and rate-limit rejections.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that did not hit a registered route.
const unmatchedRoute = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// httpLat buckets reach a minute: a chat send waits for the AI backend
	// and course submission may retry the outline prompt.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tutor",
			Name:      "http_requests_inflight",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	// httpReqSize tracks declared request sizes, mostly to watch uploads
	// approach their caps.
	httpReqSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "http_request_size_bytes",
			Help:      "Declared size of HTTP request bodies in bytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 9), // 256B..16MiB
		},
		[]string{"method", "route"},
	)

	idempotentReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "idempotent_replays_total",
			Help:      "Message sends recognised as replays of an earlier Idempotency-Key.",
		},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by bucket kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, idempotentReplays, rateLimited)
}

// routeLabel returns the route template for c or unmatchedRoute.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

// Metrics returns a middleware that records request counts, latency,
// in-flight concurrency and declared body size for every request.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := routeLabel(c)
		method := c.Request.Method
		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if n := c.Request.ContentLength; n > 0 {
			httpReqSize.WithLabelValues(method, route).Observe(float64(n))
		}
	}
}
