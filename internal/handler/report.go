package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mjeyi/credport/internal/aggregate"
	"github.com/mjeyi/credport/internal/auth"
	"github.com/mjeyi/credport/internal/handler/dto"
	"github.com/mjeyi/credport/internal/model"
	"github.com/mjeyi/credport/internal/service"
)

// HistoryReader reads a user's stored report history.
type HistoryReader interface {
	ReportHistory(ctx context.Context, userID string) ([]model.ReportEntry, error)
}

// ReportHandler handles report aggregation and history reads.
type ReportHandler struct {
	aggregator *aggregate.Aggregator
	accounts   *service.AccountService
	history    HistoryReader
	logger     *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(aggregator *aggregate.Aggregator, accounts *service.AccountService, history HistoryReader, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		aggregator: aggregator,
		accounts:   accounts,
		history:    history,
		logger:     logger,
	}
}

// Aggregate handles POST /api/v1/reports. The caller's identity comes from
// the session token and the ID number from their stored profile; there is
// no request body. A partial bundle is a success response: per-bureau
// failures arrive as failed entries, not as an HTTP error.
func (h *ReportHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustIdentityFromContext(r.Context())

	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	if user.Profile.IDNumber == "" {
		writeError(w, http.StatusUnprocessableEntity, "ID_NUMBER_REQUIRED", "An ID number is required to pull credit reports")
		return
	}

	bundle, err := h.aggregator.Aggregate(r.Context(), userID, user.Profile.IDNumber)
	if err != nil {
		h.handleAggregateError(w, err)
		return
	}

	h.logger.Info("reports_aggregated",
		"user_id", userID,
		"sources", len(bundle.Entries),
		"succeeded", bundle.SuccessCount(),
	)

	writeJSON(w, http.StatusOK, dto.ToBundleResponse(bundle))
}

// History handles GET /api/v1/reports/history. Only the caller's own
// history is reachable; the user ID comes from the verified token, never
// from the request.
func (h *ReportHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustIdentityFromContext(r.Context())

	entries, err := h.history.ReportHistory(r.Context(), userID)
	if err != nil {
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToHistoryResponse(entries))
}

// handleAggregateError maps aggregation errors to HTTP responses.
func (h *ReportHandler) handleAggregateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, aggregate.ErrNoClients):
		writeError(w, http.StatusServiceUnavailable, "NO_SOURCES", "No report sources are configured")
	case errors.Is(err, aggregate.ErrPersistence):
		h.logger.Error("bundle_persistence_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "PERSISTENCE_FAILURE", "Reports were fetched but could not be stored")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
