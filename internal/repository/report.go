package repository

import (
	"context"
	"fmt"

	"github.com/mjeyi/credport/internal/aggregate"
	"github.com/mjeyi/credport/internal/model"
)

// ErrAppendConflict indicates same-user contention while appending. It
// matches aggregate.ErrConflict so the engine knows the append is safe to
// retry: no entries from the failed attempt are visible.
var ErrAppendConflict = fmt.Errorf("report append: %w", aggregate.ErrConflict)

// AppendBundle durably appends all entries of a bundle to the user's report
// history in one transaction. Appends for the same user are serialized with
// a transaction-scoped advisory lock keyed on the user ID, so two
// aggregation runs racing for one user both land with all their entries
// intact. Appends for different users never contend. Existing rows are never
// updated or deleted.
func (r *Repository) AppendBundle(ctx context.Context, userID string, bundle *model.Bundle) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	// Released automatically at commit/rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}

	var next int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM report_entries WHERE user_id = $1`,
		userID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("next position: %w", err)
	}

	query := `
		INSERT INTO report_entries (id, user_id, position, source, status, failure_reason, payload, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range bundle.Entries {
		e := &bundle.Entries[i]
		_, err := tx.Exec(ctx, query,
			e.ID,
			userID,
			next+int64(i),
			e.Source,
			e.Status,
			e.FailureReason,
			e.Payload,
			e.FetchedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAppendConflict
			}
			return fmt.Errorf("insert report entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	return nil
}

// ReportHistory returns the user's full report history, oldest first.
// Read-only; never mutates or reorders stored entries.
func (r *Repository) ReportHistory(ctx context.Context, userID string) ([]model.ReportEntry, error) {
	query := `
		SELECT id, user_id, source, status, failure_reason, payload, fetched_at
		FROM report_entries
		WHERE user_id = $1
		ORDER BY position ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query report history: %w", err)
	}
	defer rows.Close()

	var entries []model.ReportEntry
	for rows.Next() {
		var e model.ReportEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Source,
			&e.Status,
			&e.FailureReason,
			&e.Payload,
			&e.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan report entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report history: %w", err)
	}

	return entries, nil
}
