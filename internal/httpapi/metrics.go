package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded in metrics.
const (
	OutcomeAnswered = "answered"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the Prometheus metrics for the chat endpoint.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	stageDuration   *prometheus.HistogramVec
	documentsServed prometheus.Histogram
}

// NewMetrics registers the chat metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medchatd",
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome (answered, rejected, failed).",
		}, []string{"outcome"}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medchatd",
			Name:      "chat_request_duration_seconds",
			Help:      "End-to-end chat request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medchatd",
			Name:      "chat_stage_duration_seconds",
			Help:      "Duration of each workflow stage in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		documentsServed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medchatd",
			Name:      "chat_answer_documents",
			Help:      "Number of source documents behind each answer.",
			Buckets:   []float64{0, 1, 2, 3, 4},
		}),
	}
}

func (m *Metrics) observe(outcome string, seconds float64) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.Observe(seconds)
}
