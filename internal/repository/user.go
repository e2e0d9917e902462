package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mjeyi/credport/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// CreateUser inserts a new user into the database.
// Email uniqueness is case-insensitive, enforced by a unique index on
// lower(email); a racing duplicate registration observes ErrEmailExists.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash,
			first_name, last_name, id_number, phone_number, address, date_of_birth,
			employment_status, employer, job_title, income,
			bank_name, account_number, branch_code,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	p := user.Profile
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		p.FirstName,
		p.LastName,
		p.IDNumber,
		p.PhoneNumber,
		p.Address,
		p.DateOfBirth,
		p.EmploymentStatus,
		p.Employer,
		p.JobTitle,
		p.Income,
		p.BankName,
		p.AccountNumber,
		p.BranchCode,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
// The password hash is not selected; use GetUserCredentials for verification.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, email,
			first_name, last_name, id_number, phone_number, address, date_of_birth,
			employment_status, employer, job_title, income,
			bank_name, account_number, branch_code,
			created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Profile.FirstName,
		&user.Profile.LastName,
		&user.Profile.IDNumber,
		&user.Profile.PhoneNumber,
		&user.Profile.Address,
		&user.Profile.DateOfBirth,
		&user.Profile.EmploymentStatus,
		&user.Profile.Employer,
		&user.Profile.JobTitle,
		&user.Profile.Income,
		&user.Profile.BankName,
		&user.Profile.AccountNumber,
		&user.Profile.BranchCode,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return &user, nil
}

// GetUserCredentials retrieves the ID and password hash for an email.
// This is the only query that reads the password_hash column.
func (r *Repository) GetUserCredentials(ctx context.Context, email string) (id, passwordHash string, err error) {
	query := `
		SELECT id, password_hash
		FROM users
		WHERE lower(email) = lower($1)
	`

	err = r.pool.QueryRow(ctx, query, email).Scan(&id, &passwordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrUserNotFound
		}
		return "", "", fmt.Errorf("failed to get user credentials: %w", err)
	}

	return id, passwordHash, nil
}
