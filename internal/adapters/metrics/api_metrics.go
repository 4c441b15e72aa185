package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopee_collector"

// APIMetrics records marketplace API call outcomes
type APIMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimitWait   *prometheus.HistogramVec
}

// NewAPIMetrics creates and registers the API metric set
func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	m := &APIMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Marketplace API requests by method, endpoint, and status code",
		}, []string{"method", "endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Marketplace API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		rateLimitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_wait_seconds",
			Help:      "Time spent waiting on the client rate limiter",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5},
		}, []string{"method", "endpoint"}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.rateLimitWait)
	return m
}

// RecordAPIRequest records one completed marketplace request
func (m *APIMetrics) RecordAPIRequest(method, endpoint string, statusCode int, seconds float64) {
	m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}

// RecordRateLimitWait records time spent blocked on the rate limiter
func (m *APIMetrics) RecordRateLimitWait(method, endpoint string, seconds float64) {
	m.rateLimitWait.WithLabelValues(method, endpoint).Observe(seconds)
}
