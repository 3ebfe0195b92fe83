package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kalpe_wallet"

// PrometheusCollector records engine metrics into Prometheus vectors.
type PrometheusCollector struct {
	opDuration   *prometheus.HistogramVec
	opResults    *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	errors       *prometheus.CounterVec
	lockTimeouts prometheus.Counter
	volume       *prometheus.CounterVec
	fraudScores  prometheus.Histogram
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	m := &PrometheusCollector{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Histogram of wallet engine operation durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		opResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total wallet engine operations by result.",
		}, []string{"operation", "result"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total cache hits observed.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total cache misses observed.",
		}, []string{"cache"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors by operation and error code.",
		}, []string{"operation", "code"}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_timeouts_total",
			Help:      "Total wallet row lock waits that timed out.",
		}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_volume_total",
			Help:      "Completed transaction volume by type, in currency units.",
		}, []string{"type"}),
		fraudScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fraud_score",
			Help:      "Distribution of fraud scores assigned to transactions.",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 75, 100},
		}),
	}

	reg.MustRegister(
		m.opDuration,
		m.opResults,
		m.cacheHits,
		m.cacheMisses,
		m.errors,
		m.lockTimeouts,
		m.volume,
		m.fraudScores,
	)
	return m
}

func (m *PrometheusCollector) RecordOperationDuration(operation string, d time.Duration) {
	m.opDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *PrometheusCollector) RecordOperationResult(operation, result string) {
	m.opResults.WithLabelValues(operation, result).Inc()
}

func (m *PrometheusCollector) RecordCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *PrometheusCollector) RecordCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *PrometheusCollector) RecordError(operation, code string) {
	m.errors.WithLabelValues(operation, code).Inc()
}

func (m *PrometheusCollector) RecordLockTimeout() {
	m.lockTimeouts.Inc()
}

func (m *PrometheusCollector) RecordTransactionVolume(txType string, amount float64) {
	m.volume.WithLabelValues(txType).Add(amount)
}

func (m *PrometheusCollector) RecordFraudScore(score int) {
	m.fraudScores.Observe(float64(score))
}
