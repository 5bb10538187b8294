package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 查询相关的prometheus指标，使用独立的registry
type Metrics struct {
	registry *prometheus.Registry
	queries  *prometheus.CounterVec
	duration prometheus.Histogram
	rows     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "queries_total",
			Help:      "Dashboard queries served, by endpoint and whether any row matched.",
		}, []string{"endpoint", "matched"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dashboard",
			Name:      "query_duration_seconds",
			Help:      "Time spent computing a dashboard query.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Name:      "table_rows",
			Help:      "Rows in the cleaned table.",
		}),
	}
	m.registry.MustRegister(m.queries, m.duration, m.rows)
	return m
}

func (m *Metrics) observeQuery(endpoint string, matched bool, seconds float64) {
	label := "false"
	if matched {
		label = "true"
	}
	m.queries.WithLabelValues(endpoint, label).Inc()
	m.duration.Observe(seconds)
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
