package dto

import (
	"encoding/json"
	"time"

	"github.com/mjeyi/credport/internal/model"
)

// ReportEntryResponse represents one bureau result in API responses.
// Payload is raw JSON from the bureau, present only on success.
type ReportEntryResponse struct {
	Source        string          `json:"source"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	FetchedAt     time.Time       `json:"fetched_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// BundleResponse represents one aggregation run.
type BundleResponse struct {
	Entries   []ReportEntryResponse `json:"entries"`
	StartedAt time.Time             `json:"started_at"`
	Succeeded int                   `json:"succeeded"`
}

// HistoryResponse represents the full report history, oldest first.
type HistoryResponse struct {
	Entries []ReportEntryResponse `json:"entries"`
}

// ToReportEntryResponse converts a ReportEntry model to its DTO.
func ToReportEntryResponse(e *model.ReportEntry) ReportEntryResponse {
	return ReportEntryResponse{
		Source:        e.Source,
		Status:        string(e.Status),
		FailureReason: e.FailureReason,
		FetchedAt:     e.FetchedAt,
		Payload:       json.RawMessage(e.Payload),
	}
}

// ToBundleResponse converts a Bundle model to its DTO.
func ToBundleResponse(b *model.Bundle) *BundleResponse {
	entries := make([]ReportEntryResponse, 0, len(b.Entries))
	for i := range b.Entries {
		entries = append(entries, ToReportEntryResponse(&b.Entries[i]))
	}
	return &BundleResponse{
		Entries:   entries,
		StartedAt: b.StartedAt,
		Succeeded: b.SuccessCount(),
	}
}

// ToHistoryResponse converts ledger entries to the history DTO.
func ToHistoryResponse(entries []model.ReportEntry) *HistoryResponse {
	out := make([]ReportEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, ToReportEntryResponse(&entries[i]))
	}
	return &HistoryResponse{Entries: out}
}
