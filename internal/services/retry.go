package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepCtx is the production SleepFunc.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff returns base * 2^attempt, capped at max. attempt starts at 0.
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt && (max <= 0 || d < max); i++ {
		d *= 2
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}

var (
	// generationRetries counts retried generation calls by operation.
	generationRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_retries_total",
			Help: "Generation calls retried after a failure.",
		},
		[]string{"operation"},
	)

	// generatedContents counts per-subtopic content results by outcome.
	generatedContents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generated_contents_total",
			Help: "Per-subtopic content generations by outcome.",
		},
		[]string{"outcome"},
	)

	// chatReplies counts assistant replies by kind (chat, analysis) and outcome.
	chatReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_replies_total",
			Help: "Assistant replies by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(generationRetries, generatedContents, chatReplies)
}
