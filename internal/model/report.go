package model

import "time"

// FetchStatus is the outcome of one bureau fetch.
type FetchStatus string

// Fetch statuses.
const (
	StatusSuccess FetchStatus = "success"
	StatusFailed  FetchStatus = "failed"
)

// Failure reasons recorded on failed entries.
const (
	ReasonTimeout           = "timeout"
	ReasonAuthFailure       = "auth_failure"
	ReasonRateLimited       = "rate_limited"
	ReasonMalformedResponse = "malformed_response"
)

// ReportEntry is one bureau result within a user's report history.
// Payload is present only on success and is opaque to this service; each
// bureau defines its own document structure.
type ReportEntry struct {
	ID            string      `json:"id"`
	UserID        string      `json:"-"`
	Source        string      `json:"source"`
	Status        FetchStatus `json:"status"`
	FailureReason string      `json:"failure_reason,omitempty"`
	Payload       []byte      `json:"payload,omitempty"`
	FetchedAt     time.Time   `json:"fetched_at"`
}

// Succeeded reports whether the entry carries a payload.
func (e *ReportEntry) Succeeded() bool {
	return e.Status == StatusSuccess
}

// Bundle is the result of one aggregation run: one entry per configured
// bureau, in configured source order. It exists only for the duration of a
// call; entries are persisted before the bundle is returned.
type Bundle struct {
	UserID    string        `json:"user_id"`
	Entries   []ReportEntry `json:"entries"`
	StartedAt time.Time     `json:"started_at"`
}

// SuccessCount returns the number of successful entries.
func (b *Bundle) SuccessCount() int {
	n := 0
	for i := range b.Entries {
		if b.Entries[i].Succeeded() {
			n++
		}
	}
	return n
}
