package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRegistration is a no-op.
func (n *NoopRecorder) IncRegistration(status string) {}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(status string) {}

// IncAggregation is a no-op.
func (n *NoopRecorder) IncAggregation(status string) {}

// ObserveAggregationDuration is a no-op.
func (n *NoopRecorder) ObserveAggregationDuration(duration time.Duration) {}

// IncBureauFetch is a no-op.
func (n *NoopRecorder) IncBureauFetch(source, status string) {}

// ObserveBureauFetchDuration is a no-op.
func (n *NoopRecorder) ObserveBureauFetchDuration(source string, duration time.Duration) {}

// IncLedgerAppendRetry is a no-op.
func (n *NoopRecorder) IncLedgerAppendRetry() {}
