package metrics

import (
	"sync"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Registrations         map[string]uint64
	Logins                map[string]uint64
	Aggregations          map[string]uint64
	AggregationCount      uint64
	AggregationTotalNs    int64
	BureauFetches         map[string]uint64 // keyed "source/status"
	BureauFetchDurationNs map[string]int64  // keyed by source
	LedgerAppendRetries   uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu                    sync.Mutex
	registrations         map[string]uint64
	logins                map[string]uint64
	aggregations          map[string]uint64
	aggregationCount      uint64
	aggregationTotalNs    int64
	bureauFetches         map[string]uint64
	bureauFetchDurationNs map[string]int64
	ledgerAppendRetries   uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		registrations:         make(map[string]uint64),
		logins:                make(map[string]uint64),
		aggregations:          make(map[string]uint64),
		bureauFetches:         make(map[string]uint64),
		bureauFetchDurationNs: make(map[string]int64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Registrations:         copyMap(m.registrations),
		Logins:                copyMap(m.logins),
		Aggregations:          copyMap(m.aggregations),
		AggregationCount:      m.aggregationCount,
		AggregationTotalNs:    m.aggregationTotalNs,
		BureauFetches:         copyMap(m.bureauFetches),
		BureauFetchDurationNs: copyMap(m.bureauFetchDurationNs),
		LedgerAppendRetries:   m.ledgerAppendRetries,
	}
}

// IncRegistration increments the registration counter for a status.
func (m *InMemoryRecorder) IncRegistration(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[status]++
}

// IncLogin increments the login counter for a status.
func (m *InMemoryRecorder) IncLogin(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[status]++
}

// IncAggregation increments the aggregation counter for a status.
func (m *InMemoryRecorder) IncAggregation(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregations[status]++
}

// ObserveAggregationDuration records one aggregation run duration.
func (m *InMemoryRecorder) ObserveAggregationDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregationCount++
	m.aggregationTotalNs += duration.Nanoseconds()
}

// IncBureauFetch increments the fetch counter for a source and status.
func (m *InMemoryRecorder) IncBureauFetch(source, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bureauFetches[source+"/"+status]++
}

// ObserveBureauFetchDuration records one bureau fetch duration.
func (m *InMemoryRecorder) ObserveBureauFetchDuration(source string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bureauFetchDurationNs[source] += duration.Nanoseconds()
}

// IncLedgerAppendRetry increments the ledger retry counter.
func (m *InMemoryRecorder) IncLedgerAppendRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgerAppendRetries++
}

func copyMap[V uint64 | int64](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
