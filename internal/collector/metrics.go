package collector

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// passesTotal counts passes by result: ok|skipped|error.
	passesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_passes_total",
			Help: "Total number of collect passes by result.",
		},
		[]string{"result"},
	)

	// submissionsTotal counts classified submissions by outcome.
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_submissions_total",
			Help: "Submissions by classification outcome.",
		},
		[]string{"outcome"},
	)

	// failuresTotal counts per-submission failures by tag: store|transport.
	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_submission_failures_total",
			Help: "Per-submission failures by error tag.",
		},
		[]string{"tag"},
	)

	// updatesFetched counts raw updates received from the transport.
	updatesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_updates_fetched_total",
			Help: "Raw updates fetched from the transport.",
		},
	)

	// repliesSent counts replies delivered to the chat.
	repliesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_replies_sent_total",
			Help: "Replies sent back to submitters.",
		},
	)

	// cursorGauge exposes the last persisted cursor.
	cursorGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_cursor",
			Help: "Last persisted update cursor.",
		},
	)

	// passDuration records wall time of passes that held the lock.
	passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collector_pass_duration_seconds",
			Help:    "Duration of collect passes in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(passesTotal, submissionsTotal, failuresTotal, updatesFetched, repliesSent, cursorGauge, passDuration)
}

func failureTag(err error) string {
	switch {
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}

// PushMetrics pushes the default registry to a Prometheus Pushgateway.
// Short-lived cron invocations are never scraped, so they push instead.
// An empty url is a no-op.
func PushMetrics(ctx context.Context, url, job string) error {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
}
