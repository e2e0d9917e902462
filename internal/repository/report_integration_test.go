//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mjeyi/credport/internal/model"
	"github.com/mjeyi/credport/internal/testutil"
)

// ============================================================================
// Report Ledger Integration Tests
// ============================================================================

func TestIntegrationReportLedger_AppendAndHistory(t *testing.T) {
	ctx, repo := newReportTestEnv(t)

	userID := testutil.UniqueID("user")
	bundle := &model.Bundle{
		UserID: userID,
		Entries: []model.ReportEntry{
			testutil.NewTestEntry(t, userID, "transunion"),
			testutil.NewTestFailedEntry(t, userID, "xds", model.ReasonTimeout),
			testutil.NewTestEntry(t, userID, "clearscore"),
		},
		StartedAt: time.Now().UTC(),
	}

	if err := repo.AppendBundle(ctx, userID, bundle); err != nil {
		t.Fatalf("AppendBundle failed: %v", err)
	}

	history, err := repo.ReportHistory(ctx, userID)
	if err != nil {
		t.Fatalf("ReportHistory failed: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(history))
	}

	// History preserves the bundle's source order.
	wantSources := []string{"transunion", "xds", "clearscore"}
	for i, entry := range history {
		if entry.Source != wantSources[i] {
			t.Errorf("entry %d: Source = %q, want %q", i, entry.Source, wantSources[i])
		}
	}

	if history[1].Status != model.StatusFailed {
		t.Errorf("entry 1: Status = %q, want %q", history[1].Status, model.StatusFailed)
	}
	if history[1].FailureReason != model.ReasonTimeout {
		t.Errorf("entry 1: FailureReason = %q, want %q", history[1].FailureReason, model.ReasonTimeout)
	}
	if len(history[1].Payload) != 0 {
		t.Error("failed entry must not carry a payload")
	}
	if len(history[0].Payload) == 0 {
		t.Error("successful entry must carry its payload")
	}
}

func TestIntegrationReportLedger_AppendOnlyAcrossBundles(t *testing.T) {
	ctx, repo := newReportTestEnv(t)

	userID := testutil.UniqueID("user")
	for i := 0; i < 3; i++ {
		bundle := &model.Bundle{
			UserID:    userID,
			Entries:   []model.ReportEntry{testutil.NewTestEntry(t, userID, "transunion")},
			StartedAt: time.Now().UTC(),
		}
		if err := repo.AppendBundle(ctx, userID, bundle); err != nil {
			t.Fatalf("AppendBundle %d failed: %v", i, err)
		}
	}

	history, err := repo.ReportHistory(ctx, userID)
	if err != nil {
		t.Fatalf("ReportHistory failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 entries after 3 appends, got %d", len(history))
	}
}

func TestIntegrationReportLedger_HistoryIsolatedPerUser(t *testing.T) {
	ctx, repo := newReportTestEnv(t)

	alice := testutil.UniqueID("alice")
	bob := testutil.UniqueID("bob")

	for _, userID := range []string{alice, bob} {
		bundle := &model.Bundle{
			UserID:    userID,
			Entries:   []model.ReportEntry{testutil.NewTestEntry(t, userID, "xds")},
			StartedAt: time.Now().UTC(),
		}
		if err := repo.AppendBundle(ctx, userID, bundle); err != nil {
			t.Fatalf("AppendBundle failed: %v", err)
		}
	}

	history, err := repo.ReportHistory(ctx, alice)
	if err != nil {
		t.Fatalf("ReportHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 entry for alice, got %d", len(history))
	}
}

func TestIntegrationReportLedger_HistoryEmpty(t *testing.T) {
	ctx, repo := newReportTestEnv(t)

	history, err := repo.ReportHistory(ctx, "user-with-no-reports")
	if err != nil {
		t.Fatalf("ReportHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(history))
	}
}

// Concurrent appends for the same user serialize on the advisory lock: every
// bundle lands, no positions collide, no entries are lost.
func TestIntegrationReportLedger_ConcurrentAppends(t *testing.T) {
	ctx, repo := newReportTestEnv(t)

	userID := testutil.UniqueID("user")
	const writers = 8

	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bundle := &model.Bundle{
				UserID: userID,
				Entries: []model.ReportEntry{
					testutil.NewTestEntry(t, userID, "transunion"),
					testutil.NewTestEntry(t, userID, "clearscore"),
				},
				StartedAt: time.Now().UTC(),
			}
			if err := repo.AppendBundle(ctx, userID, bundle); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("AppendBundle failed: %v", err)
	}

	history, err := repo.ReportHistory(ctx, userID)
	if err != nil {
		t.Fatalf("ReportHistory failed: %v", err)
	}
	if len(history) != writers*2 {
		t.Fatalf("Expected %d entries, got %d", writers*2, len(history))
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newReportTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetReportsSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset reports schema: %v", err)
	}

	return ctx, repo
}
