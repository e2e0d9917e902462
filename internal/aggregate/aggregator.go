// Package aggregate implements the credit report fan-out engine.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"

	"github.com/mjeyi/credport/internal/bureau"
	"github.com/mjeyi/credport/internal/metrics"
	"github.com/mjeyi/credport/internal/model"
)

const (
	// DefaultFetchTimeout bounds each individual bureau fetch.
	DefaultFetchTimeout = 10 * time.Second
	// DefaultDeadline bounds one whole aggregation run.
	DefaultDeadline = 30 * time.Second
	// DefaultMaxAppendRetries bounds ledger append attempts on contention.
	DefaultMaxAppendRetries = 3
	// appendBackoffBase is the initial backoff between append attempts.
	appendBackoffBase = 50 * time.Millisecond
)

// Structural failures of an aggregation call. Per-bureau failures are never
// errors here; they are recorded as failed entries in the bundle.
var (
	// ErrNoClients indicates no bureau sources are configured.
	ErrNoClients = errors.New("no bureau clients configured")
	// ErrPersistence indicates the computed bundle could not be appended to
	// the ledger after bounded retries.
	ErrPersistence = errors.New("bundle persistence failed")
)

// Ledger is the durable append-only store for aggregation results.
// Implementations signal a retryable same-user race by returning an error
// matching ErrConflict; anything else is terminal for the run.
type Ledger interface {
	AppendBundle(ctx context.Context, userID string, bundle *model.Bundle) error
}

// ErrConflict marks a ledger append that lost a same-user race and may be
// retried. No entries from the failed attempt are visible.
var ErrConflict = errors.New("ledger append conflict")

// PayloadCache is an optional freshness cache consulted before a network
// pull. A nil cache or zero TTL disables it.
type PayloadCache interface {
	GetReportPayload(ctx context.Context, source, userID, idNumber string) ([]byte, error)
	SetReportPayload(ctx context.Context, source, userID, idNumber string, payload []byte, ttl time.Duration) error
}

// Options tune an Aggregator. Zero values fall back to defaults.
type Options struct {
	FetchTimeout     time.Duration
	Deadline         time.Duration
	MaxAppendRetries int
	CacheTTL         time.Duration
	Cache            PayloadCache
	Metrics          metrics.Recorder
}

// Aggregator fans one report request out to every configured bureau client,
// collects partial results under a deadline and appends them to the ledger.
// Clients and options are fixed at construction; Aggregate is safe for
// concurrent use.
type Aggregator struct {
	clients          []bureau.Client
	ledger           Ledger
	logger           *slog.Logger
	metrics          metrics.Recorder
	fetchTimeout     time.Duration
	deadline         time.Duration
	maxAppendRetries int
	cache            PayloadCache
	cacheTTL         time.Duration
}

// New creates an Aggregator over an ordered set of clients. The client order
// given here is the entry order of every bundle.
func New(clients []bureau.Client, ledger Ledger, logger *slog.Logger, opts Options) *Aggregator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.MaxAppendRetries <= 0 {
		opts.MaxAppendRetries = DefaultMaxAppendRetries
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	return &Aggregator{
		clients:          clients,
		ledger:           ledger,
		logger:           logger.With("component", "aggregate"),
		metrics:          opts.Metrics,
		fetchTimeout:     opts.FetchTimeout,
		deadline:         opts.Deadline,
		maxAppendRetries: opts.MaxAppendRetries,
		cache:            opts.Cache,
		cacheTTL:         opts.CacheTTL,
	}
}

// fetchResult pairs a client's slot in the configured order with its outcome.
type fetchResult struct {
	index uint
	entry model.ReportEntry
}

// Aggregate pulls the user's report from every configured bureau
// concurrently. Each fetch is independently bounded and cancellable; a
// source that fails or misses its deadline becomes a failed entry without
// affecting the others. Entries are assembled in configured source order, so
// identical inputs produce identically ordered bundles regardless of network
// timing. The bundle is durably appended before it is returned.
func (a *Aggregator) Aggregate(ctx context.Context, userID, idNumber string) (*model.Bundle, error) {
	if len(a.clients) == 0 {
		return nil, ErrNoClients
	}

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	results := make(chan fetchResult, len(a.clients))
	for i, client := range a.clients {
		go func(index uint, client bureau.Client) {
			results <- fetchResult{index: index, entry: a.fetchOne(runCtx, client, userID, idNumber)}
		}(uint(i), client)
	}

	// Assembly restores determinism: arrival order is discarded and each
	// entry lands in its client's configured slot.
	bundle := &model.Bundle{
		UserID:    userID,
		Entries:   make([]model.ReportEntry, len(a.clients)),
		StartedAt: started.UTC(),
	}
	for range a.clients {
		r := <-results
		bundle.Entries[r.index] = r.entry
	}

	if err := a.persist(ctx, userID, bundle); err != nil {
		a.metrics.IncAggregation("failed")
		return nil, err
	}

	duration := time.Since(started)
	a.metrics.ObserveAggregationDuration(duration)

	succeeded := bundle.SuccessCount()
	status := "success"
	if succeeded < len(bundle.Entries) {
		status = "partial"
	}
	a.metrics.IncAggregation(status)

	a.logger.Info("aggregation complete",
		"user_id", userID,
		"sources", len(bundle.Entries),
		"succeeded", succeeded,
		"duration_ms", duration.Milliseconds(),
	)

	return bundle, nil
}

// fetchOne runs a single bureau fetch under its own timeout and converts the
// outcome into a report entry. Never returns an error: failures are data.
func (a *Aggregator) fetchOne(ctx context.Context, client bureau.Client, userID, idNumber string) model.ReportEntry {
	source := client.Source()
	entry := model.ReportEntry{
		ID:     ulid.Make().String(),
		UserID: userID,
		Source: source,
	}

	if payload, ok := a.cachedPayload(ctx, source, userID, idNumber); ok {
		entry.Status = model.StatusSuccess
		entry.Payload = payload
		entry.FetchedAt = time.Now().UTC()
		a.metrics.IncBureauFetch(source, "cached")
		return entry
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	start := time.Now()
	payload, err := client.FetchReport(fetchCtx, userID, idNumber)
	a.metrics.ObserveBureauFetchDuration(source, time.Since(start))
	entry.FetchedAt = time.Now().UTC()

	if err != nil {
		reason := failureReason(fetchCtx, err)
		entry.Status = model.StatusFailed
		entry.FailureReason = reason
		a.metrics.IncBureauFetch(source, reason)
		a.logger.Warn("bureau fetch failed",
			"source", source,
			"user_id", userID,
			"reason", reason,
			"error", err,
		)
		return entry
	}

	entry.Status = model.StatusSuccess
	entry.Payload = payload
	a.metrics.IncBureauFetch(source, "success")

	if a.cache != nil && a.cacheTTL > 0 {
		if err := a.cache.SetReportPayload(ctx, source, userID, idNumber, payload, a.cacheTTL); err != nil {
			a.logger.Warn("payload cache write failed", "source", source, "error", err)
		}
	}

	return entry
}

// cachedPayload consults the freshness cache when enabled.
func (a *Aggregator) cachedPayload(ctx context.Context, source, userID, idNumber string) ([]byte, bool) {
	if a.cache == nil || a.cacheTTL <= 0 {
		return nil, false
	}
	payload, err := a.cache.GetReportPayload(ctx, source, userID, idNumber)
	if err != nil || len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

// persist appends the bundle, retrying bounded times with backoff on
// same-user contention. A failure here is distinct from any bureau failure:
// the bundle was computed but could not be made durable.
func (a *Aggregator) persist(ctx context.Context, userID string, bundle *model.Bundle) error {
	backoff := retry.WithMaxRetries(uint64(a.maxAppendRetries), retry.NewExponential(appendBackoffBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := a.ledger.AppendBundle(ctx, userID, bundle)
		if err != nil && errors.Is(err, ErrConflict) {
			a.metrics.IncLedgerAppendRetry()
			a.logger.Warn("ledger append conflict, retrying", "user_id", userID)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// failureReason maps a fetch error onto the recorded failure taxonomy.
func failureReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, bureau.ErrTimeout), ctx.Err() != nil:
		return model.ReasonTimeout
	case errors.Is(err, bureau.ErrAuthFailure):
		return model.ReasonAuthFailure
	case errors.Is(err, bureau.ErrRateLimited):
		return model.ReasonRateLimited
	default:
		return model.ReasonMalformedResponse
	}
}
