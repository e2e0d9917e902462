// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mjeyi/credport/internal/auth"
	"github.com/mjeyi/credport/internal/metrics"
	"github.com/mjeyi/credport/internal/model"
	"github.com/mjeyi/credport/internal/repository"
)

// Service errors.
var (
	// ErrValidation indicates the registration input is unacceptable.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound indicates no account exists for the identity.
	ErrUserNotFound = errors.New("user not found")
)

// Loose email shape check; real validation happens at delivery.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

// UserStore is the persistence needed by AccountService.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserCredentials(ctx context.Context, email string) (id, passwordHash string, err error)
}

// AccountService owns user identity records and credential verification.
type AccountService struct {
	store   UserStore
	hasher  *auth.Hasher
	metrics metrics.Recorder

	// dummyHash is verified against when the email is unknown, so a miss
	// costs the same as a wrong password and timing does not leak account
	// presence.
	dummyHash string
}

// NewAccountService creates an AccountService.
func NewAccountService(store UserStore, hasher *auth.Hasher, recorder metrics.Recorder) (*AccountService, error) {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	dummy, err := hasher.Hash(ulid.Make().String())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AccountService{
		store:     store,
		hasher:    hasher,
		metrics:   recorder,
		dummyHash: dummy,
	}, nil
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Email    string
	Password string
	Profile  model.Profile
}

// Register creates a new account and returns its identity. The plaintext
// password is hashed immediately and not retained. A duplicate email (any
// case) yields ErrDuplicateEmail; the race between two concurrent
// registrations for one email is resolved by the store's uniqueness
// constraint, so the loser observes the same error.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (string, error) {
	email := strings.TrimSpace(input.Email)
	if !emailRegex.MatchString(email) {
		s.metrics.IncRegistration("invalid")
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		s.metrics.IncRegistration("invalid")
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: hash,
		Profile:      input.Profile,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.metrics.IncRegistration("duplicate")
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	s.metrics.IncRegistration("success")
	return user.ID, nil
}

// Verify checks a credential pair and returns the account identity.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *AccountService) Verify(ctx context.Context, email, password string) (string, error) {
	id, hash, err := s.store.GetUserCredentials(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Burn the same hashing cost as a real verification.
			_, _ = s.hasher.Verify(password, s.dummyHash)
			s.metrics.IncLogin("failed")
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup credentials: %w", err)
	}

	match, err := s.hasher.Verify(password, hash)
	if err != nil || !match {
		s.metrics.IncLogin("failed")
		return "", ErrInvalidCredentials
	}

	s.metrics.IncLogin("success")
	return id, nil
}

// Profile returns the account record for an identity. The returned record
// never carries the password hash: the store does not select that column
// outside the verification path.
func (s *AccountService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
