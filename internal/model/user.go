// Package model defines domain entities for the application.
package model

import "time"

// User represents a registered account holder.
// PasswordHash is populated only on the credential-verification path and is
// never serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Profile      Profile   `json:"profile"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds the registration form fields beyond the login credentials.
// IDNumber is the national identity number the bureaus key their records on.
// AccountNumber is sensitive and excluded from JSON output.
type Profile struct {
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
	AccountNumber    string     `json:"-"`
	BranchCode       string     `json:"branch_code,omitempty"`
}
