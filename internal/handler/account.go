package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mjeyi/credport/internal/auth"
	"github.com/mjeyi/credport/internal/handler/dto"
	"github.com/mjeyi/credport/internal/service"
)

// AccountHandler handles registration, login and profile reads.
type AccountHandler struct {
	accounts *service.AccountService
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, tokens *auth.TokenService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register handles POST /api/v1/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Profile:  req.Profile(),
	})
	if err != nil {
		h.handleAccountError(w, err)
		return
	}

	// The request (and its password) is not logged; only the outcome is.
	h.logger.Info("account_registered", "user_id", userID)

	writeJSON(w, http.StatusCreated, dto.RegisterResponse{UserID: userID})
}

// Login handles POST /api/v1/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID, err := h.accounts.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleAccountError(w, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(userID)
	if err != nil {
		h.logger.Error("token_issue_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Info("login_succeeded", "user_id", userID)

	writeJSON(w, http.StatusOK, dto.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// Profile handles GET /api/v1/profile.
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustIdentityFromContext(r.Context())

	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		h.handleAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleAccountError maps service errors to HTTP responses.
func (h *AccountHandler) handleAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "DUPLICATE_EMAIL", "Email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
