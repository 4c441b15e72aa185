package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics records collection cycle outcomes per shop
type IngestMetrics struct {
	cyclesTotal        *prometheus.CounterVec
	cycleDuration      *prometheus.HistogramVec
	ordersTotal        *prometheus.CounterVec
	trackingReconciled *prometheus.CounterVec
}

// NewIngestMetrics creates and registers the ingestion metric set
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_cycles_total",
			Help:      "Collection cycles by shop and outcome",
		}, []string{"shop_id", "outcome"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collection_cycle_duration_seconds",
			Help:      "Collection cycle wall time per shop",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"shop_id"}),
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_processed_total",
			Help:      "Orders processed by shop and result",
		}, []string{"shop_id", "result"}),
		trackingReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_reconciled_total",
			Help:      "Orders whose tracking number was reconciled",
		}, []string{"shop_id"}),
	}
	reg.MustRegister(m.cyclesTotal, m.cycleDuration, m.ordersTotal, m.trackingReconciled)
	return m
}

// RecordCycle records one finished collection cycle
func (m *IngestMetrics) RecordCycle(shopID int64, seconds float64, failed bool) {
	shop := strconv.FormatInt(shopID, 10)
	outcome := "success"
	if failed {
		outcome = "error"
	}
	m.cyclesTotal.WithLabelValues(shop, outcome).Inc()
	m.cycleDuration.WithLabelValues(shop).Observe(seconds)
}

// RecordOrders records per-order outcomes for one cycle
func (m *IngestMetrics) RecordOrders(shopID int64, success, failed int) {
	shop := strconv.FormatInt(shopID, 10)
	if success > 0 {
		m.ordersTotal.WithLabelValues(shop, "success").Add(float64(success))
	}
	if failed > 0 {
		m.ordersTotal.WithLabelValues(shop, "failed").Add(float64(failed))
	}
}

// RecordTrackingReconciled records reconciled tracking numbers
func (m *IngestMetrics) RecordTrackingReconciled(shopID int64, count int) {
	m.trackingReconciled.WithLabelValues(strconv.FormatInt(shopID, 10)).Add(float64(count))
}
