package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mjeyi/credport/internal/bureau"
	"github.com/mjeyi/credport/internal/metrics"
	"github.com/mjeyi/credport/internal/model"
)

// fakeClient is a scriptable bureau client.
type fakeClient struct {
	source  string
	payload []byte
	err     error
	delay   time.Duration
}

func (f *fakeClient) Source() string { return f.source }

func (f *fakeClient) FetchReport(ctx context.Context, userRef, idNumber string) ([]byte, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, bureau.ErrTimeout
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

// memLedger is an in-memory append-only ledger.
type memLedger struct {
	mu      sync.Mutex
	history map[string][]model.ReportEntry
	// failures to inject, consumed one per AppendBundle call
	failures []error
	appends  int
}

func newMemLedger() *memLedger {
	return &memLedger{history: make(map[string][]model.ReportEntry)}
}

func (l *memLedger) AppendBundle(ctx context.Context, userID string, bundle *model.Bundle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.appends++
	if len(l.failures) > 0 {
		err := l.failures[0]
		l.failures = l.failures[1:]
		if err != nil {
			return err
		}
	}

	l.history[userID] = append(l.history[userID], bundle.Entries...)
	return nil
}

func (l *memLedger) entries(userID string) []model.ReportEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.ReportEntry(nil), l.history[userID]...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(clients []bureau.Client, ledger Ledger, opts Options) *Aggregator {
	return New(clients, ledger, discardLogger(), opts)
}

func TestAggregate_PartialSuccessInConfiguredOrder(t *testing.T) {
	t.Parallel()

	clients := []bureau.Client{
		&fakeClient{source: "transunion", payload: []byte(`{"score":700}`)},
		&fakeClient{source: "xds", delay: time.Hour}, // never responds
		&fakeClient{source: "clearscore", payload: []byte(`{"score":650}`), delay: 30 * time.Millisecond},
	}
	ledger := newMemLedger()
	agg := newTestAggregator(clients, ledger, Options{
		FetchTimeout: 100 * time.Millisecond,
		Deadline:     time.Second,
	})

	bundle, err := agg.Aggregate(context.Background(), "user-1", "8001015009087")
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(bundle.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(bundle.Entries))
	}

	// Configured order, not completion order.
	wantSources := []string{"transunion", "xds", "clearscore"}
	for i, want := range wantSources {
		if bundle.Entries[i].Source != want {
			t.Errorf("entries[%d].Source = %q, want %q", i, bundle.Entries[i].Source, want)
		}
	}

	if bundle.Entries[0].Status != model.StatusSuccess {
		t.Errorf("transunion status = %s, want success", bundle.Entries[0].Status)
	}
	if bundle.Entries[1].Status != model.StatusFailed || bundle.Entries[1].FailureReason != model.ReasonTimeout {
		t.Errorf("xds = %s/%s, want failed/timeout", bundle.Entries[1].Status, bundle.Entries[1].FailureReason)
	}
	if bundle.Entries[2].Status != model.StatusSuccess {
		t.Errorf("clearscore status = %s, want success", bundle.Entries[2].Status)
	}

	// The exact partial result was appended before returning.
	persisted := ledger.entries("user-1")
	if len(persisted) != 3 {
		t.Fatalf("persisted %d entries, want 3", len(persisted))
	}
	for i := range persisted {
		if persisted[i].Source != bundle.Entries[i].Source || persisted[i].Status != bundle.Entries[i].Status {
			t.Errorf("persisted[%d] = %s/%s, want %s/%s", i,
				persisted[i].Source, persisted[i].Status,
				bundle.Entries[i].Source, bundle.Entries[i].Status)
		}
	}
}

func TestAggregate_FailureReasons(t *testing.T) {
	t.Parallel()

	clients := []bureau.Client{
		&fakeClient{source: "a", err: bureau.ErrAuthFailure},
		&fakeClient{source: "b", err: bureau.ErrRateLimited},
		&fakeClient{source: "c", err: bureau.ErrMalformedResponse},
		&fakeClient{source: "d", payload: []byte(`{}`)},
	}
	ledger := newMemLedger()
	agg := newTestAggregator(clients, ledger, Options{})

	bundle, err := agg.Aggregate(context.Background(), "user-1", "id-1")
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	wantReasons := []string{
		model.ReasonAuthFailure,
		model.ReasonRateLimited,
		model.ReasonMalformedResponse,
		"",
	}
	for i, want := range wantReasons {
		if bundle.Entries[i].FailureReason != want {
			t.Errorf("entries[%d].FailureReason = %q, want %q", i, bundle.Entries[i].FailureReason, want)
		}
	}
	if bundle.SuccessCount() != 1 {
		t.Errorf("SuccessCount = %d, want 1", bundle.SuccessCount())
	}
}

func TestAggregate_NoClients(t *testing.T) {
	t.Parallel()

	agg := newTestAggregator(nil, newMemLedger(), Options{})

	_, err := agg.Aggregate(context.Background(), "user-1", "id-1")
	if !errors.Is(err, ErrNoClients) {
		t.Errorf("Aggregate = %v, want ErrNoClients", err)
	}
}

func TestAggregate_OverallDeadline(t *testing.T) {
	t.Parallel()

	// Per-fetch timeout is generous but the overall deadline is short: the
	// slow source must be cancelled at the deadline and recorded as timeout.
	clients := []bureau.Client{
		&fakeClient{source: "fast", payload: []byte(`{}`)},
		&fakeClient{source: "slow", delay: time.Hour},
	}
	agg := newTestAggregator(clients, newMemLedger(), Options{
		FetchTimeout: time.Hour,
		Deadline:     100 * time.Millisecond,
	})

	start := time.Now()
	bundle, err := agg.Aggregate(context.Background(), "user-1", "id-1")
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("aggregation ran %v past its deadline", elapsed)
	}

	if bundle.Entries[0].Status != model.StatusSuccess {
		t.Errorf("fast status = %s, want success", bundle.Entries[0].Status)
	}
	if bundle.Entries[1].FailureReason != model.ReasonTimeout {
		t.Errorf("slow reason = %q, want timeout", bundle.Entries[1].FailureReason)
	}
}

func TestAggregate_ConflictRetried(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	ledger.failures = []error{ErrConflict, ErrConflict}

	clients := []bureau.Client{&fakeClient{source: "a", payload: []byte(`{}`)}}
	agg := newTestAggregator(clients, ledger, Options{MaxAppendRetries: 3})

	if _, err := agg.Aggregate(context.Background(), "user-1", "id-1"); err != nil {
		t.Fatalf("Aggregate should succeed after retries: %v", err)
	}
	if ledger.appends != 3 {
		t.Errorf("appends = %d, want 3", ledger.appends)
	}
	if len(ledger.entries("user-1")) != 1 {
		t.Errorf("history length = %d, want 1", len(ledger.entries("user-1")))
	}
}

func TestAggregate_PersistenceFailure(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	ledger.failures = []error{ErrConflict, ErrConflict, ErrConflict, ErrConflict}

	clients := []bureau.Client{&fakeClient{source: "a", payload: []byte(`{}`)}}
	agg := newTestAggregator(clients, ledger, Options{MaxAppendRetries: 3})

	_, err := agg.Aggregate(context.Background(), "user-1", "id-1")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Aggregate = %v, want ErrPersistence", err)
	}

	// Terminal storage errors are not retried.
	ledger2 := newMemLedger()
	ledger2.failures = []error{errors.New("disk on fire")}
	agg2 := newTestAggregator(clients, ledger2, Options{MaxAppendRetries: 3})

	_, err = agg2.Aggregate(context.Background(), "user-1", "id-1")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Aggregate = %v, want ErrPersistence", err)
	}
	if ledger2.appends != 1 {
		t.Errorf("appends = %d, want 1 (no retry on terminal errors)", ledger2.appends)
	}
}

func TestAggregate_ConcurrentSameUser_NoLostUpdate(t *testing.T) {
	t.Parallel()

	const (
		runs       = 8
		numSources = 3
	)

	clients := []bureau.Client{
		&fakeClient{source: "a", payload: []byte(`{}`), delay: time.Millisecond},
		&fakeClient{source: "b", payload: []byte(`{}`)},
		&fakeClient{source: "c", payload: []byte(`{}`), delay: 2 * time.Millisecond},
	}
	ledger := newMemLedger()
	agg := newTestAggregator(clients, ledger, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := agg.Aggregate(context.Background(), "user-1", "id-1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Aggregate failed: %v", err)
	}

	// Every run's entries are preserved: no lost update.
	if got := len(ledger.entries("user-1")); got != runs*numSources {
		t.Errorf("history length = %d, want %d", got, runs*numSources)
	}
}

func TestAggregate_CacheHitSkipsFetch(t *testing.T) {
	t.Parallel()

	cache := &fakePayloadCache{payloads: map[string][]byte{
		"a": []byte(`{"cached":true}`),
	}}
	clients := []bureau.Client{
		&fakeClient{source: "a", err: bureau.ErrAuthFailure}, // would fail if hit
		&fakeClient{source: "b", payload: []byte(`{"fresh":true}`)},
	}
	rec := metrics.NewInMemory()
	agg := newTestAggregator(clients, newMemLedger(), Options{
		Cache:    cache,
		CacheTTL: time.Minute,
		Metrics:  rec,
	})

	bundle, err := agg.Aggregate(context.Background(), "user-1", "id-1")
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if bundle.Entries[0].Status != model.StatusSuccess || string(bundle.Entries[0].Payload) != `{"cached":true}` {
		t.Errorf("cached entry = %s %s", bundle.Entries[0].Status, bundle.Entries[0].Payload)
	}
	if bundle.Entries[1].Status != model.StatusSuccess {
		t.Errorf("fresh entry status = %s", bundle.Entries[1].Status)
	}

	snap := rec.Snapshot()
	if snap.BureauFetches["a/cached"] != 1 {
		t.Errorf("a/cached count = %d, want 1", snap.BureauFetches["a/cached"])
	}
	// The fresh payload was written back for the next run.
	if string(cache.payloads["b"]) != `{"fresh":true}` {
		t.Errorf("fresh payload not cached: %s", cache.payloads["b"])
	}
}

// fakePayloadCache is an in-memory PayloadCache keyed by source.
type fakePayloadCache struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

func (f *fakePayloadCache) GetReportPayload(ctx context.Context, source, userID, idNumber string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payloads[source]; ok {
		return p, nil
	}
	return nil, errors.New("miss")
}

func (f *fakePayloadCache) SetReportPayload(ctx context.Context, source, userID, idNumber string, payload []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[source] = payload
	return nil
}
