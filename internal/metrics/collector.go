// Package metrics defines the metrics hooks of the wallet engine and their
// Prometheus implementation.
package metrics

import "time"

// Collector defines the interface for collecting wallet engine metrics
type Collector interface {
	// Operation metrics
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)

	// Cache metrics
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)

	// Error metrics
	RecordError(operation, code string)
	RecordLockTimeout()

	// Transaction metrics
	RecordTransactionVolume(txType string, amount float64)
	RecordFraudScore(score int)
}

// NoopCollector is a no-op implementation of Collector
type NoopCollector struct{}

func (NoopCollector) RecordOperationDuration(string, time.Duration) {}
func (NoopCollector) RecordOperationResult(string, string)          {}
func (NoopCollector) RecordCacheHit(string)                         {}
func (NoopCollector) RecordCacheMiss(string)                        {}
func (NoopCollector) RecordError(string, string)                    {}
func (NoopCollector) RecordLockTimeout()                            {}
func (NoopCollector) RecordTransactionVolume(string, float64)       {}
func (NoopCollector) RecordFraudScore(int)                          {}
