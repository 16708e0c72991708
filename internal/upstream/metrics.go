package upstream

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values for upstream_requests_total.
const (
	outcomeOK           = "ok"
	outcomeTransport    = "transport_error"
	outcomeHTTP         = "http_error"
	outcomeDecode       = "decode_error"
	outcomeUnsuccessful = "unsuccessful"
)

var (
	// upstreamReqs counts calls to the AI backend by endpoint and outcome.
	upstreamReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of calls to the AI backend.",
		},
		[]string{"endpoint", "outcome"},
	)

	// upstreamLat records call duration in seconds by endpoint. Generation
	// endpoints are slow, so the buckets reach a minute.
	upstreamLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of calls to the AI backend in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(upstreamReqs, upstreamLat)
}
