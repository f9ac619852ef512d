// Package metrics holds the Prometheus collectors for documents, the outbox and HTTP.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "docflow"

var (
	DocumentTransitions *prometheus.CounterVec
	OutboxEnqueued      prometheus.Counter
	OutboxProcessed     *prometheus.CounterVec
	OutboxPollDuration  prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	once sync.Once
)

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		DocumentTransitions = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_document_transitions_total",
				Help: "Document status transitions",
			},
			[]string{"document_key", "from", "to"},
		)
		OutboxEnqueued = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_outbox_enqueued_total",
				Help: "Outbox events dispatched to the job queue",
			},
		)
		OutboxProcessed = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_outbox_processed_total",
				Help: "Outbox events processed by workers",
			},
			[]string{"event_key", "result"},
		)
		OutboxPollDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    prefix + "_outbox_poll_duration_seconds",
				Help:    "Duration of one outbox poll",
				Buckets: prometheus.DefBuckets,
			},
		)
		HTTPRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)
		HTTPRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)
	})
}

func RecordTransition(documentKey, from, to string) {
	Init()
	DocumentTransitions.WithLabelValues(documentKey, from, to).Inc()
}

func RecordEnqueued() {
	Init()
	OutboxEnqueued.Inc()
}

func RecordProcessed(eventKey, result string) {
	Init()
	OutboxProcessed.WithLabelValues(eventKey, result).Inc()
}

// TrackPoll returns a function that observes the poll duration since start.
func TrackPoll() func(start time.Time) {
	Init()
	return func(start time.Time) {
		OutboxPollDuration.Observe(time.Since(start).Seconds())
	}
}

func RecordHTTP(method, path, status string, d time.Duration) {
	Init()
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
