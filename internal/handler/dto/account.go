// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/mjeyi/credport/internal/model"
)

// RegisterRequest represents the request body for account registration.
// The password field is write-only; it never appears in a response or log.
type RegisterRequest struct {
	Email            string     `json:"email"`
	Password         string     `json:"password"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	IDNumber         string     `json:"id_number,omitempty"`
	PhoneNumber      string     `json:"phone_number,omitempty"`
	Address          string     `json:"address,omitempty"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	EmploymentStatus string     `json:"employment_status,omitempty"`
	Employer         string     `json:"employer,omitempty"`
	JobTitle         string     `json:"job_title,omitempty"`
	Income           int64      `json:"income,omitempty"`
	BankName         string     `json:"bank_name,omitempty"`
	AccountNumber    string     `json:"account_number,omitempty"`
	BranchCode       string     `json:"branch_code,omitempty"`
}

// Profile converts the registration fields into the domain profile.
func (r *RegisterRequest) Profile() model.Profile {
	return model.Profile{
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		IDNumber:         r.IDNumber,
		PhoneNumber:      r.PhoneNumber,
		Address:          r.Address,
		DateOfBirth:      r.DateOfBirth,
		EmploymentStatus: r.EmploymentStatus,
		Employer:         r.Employer,
		JobTitle:         r.JobTitle,
		Income:           r.Income,
		BankName:         r.BankName,
		AccountNumber:    r.AccountNumber,
		BranchCode:       r.BranchCode,
	}
}

// RegisterResponse represents a successful registration.
type RegisterResponse struct {
	UserID string `json:"user_id"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the opaque session token and its expiry.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
