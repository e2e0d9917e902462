// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncRegistration(status string) // status: "success", "duplicate", "invalid"
	IncLogin(status string)        // status: "success", "failed"

	// Aggregation metrics
	IncAggregation(status string) // status: "success", "partial", "failed"
	ObserveAggregationDuration(duration time.Duration)
	IncBureauFetch(source, status string) // status: "success", "cached", or a failure reason
	ObserveBureauFetchDuration(source string, duration time.Duration)

	// Ledger metrics
	IncLedgerAppendRetry()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
