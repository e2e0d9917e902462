package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mjeyi/credport/internal/auth"
	"github.com/mjeyi/credport/internal/model"
	"github.com/mjeyi/credport/internal/repository"
)

// memUserStore is an in-memory UserStore with case-insensitive email
// uniqueness, mirroring the database constraint.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User // by ID
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*model.User)}
}

func (s *memUserStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrEmailExists
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *memUserStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	// Mirror the SQL path: the hash column is not selected here.
	clone := *u
	clone.PasswordHash = ""
	return &clone, nil
}

func (s *memUserStore) GetUserCredentials(ctx context.Context, email string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u.ID, u.PasswordHash, nil
		}
	}
	return "", "", repository.ErrUserNotFound
}

func newTestAccountService(t *testing.T) (*AccountService, *memUserStore) {
	t.Helper()
	store := newMemUserStore()
	hasher := auth.NewHasher(auth.HashParams{MemoryKiB: 8 * 1024, Time: 1, Threads: 1})
	svc, err := NewAccountService(store, hasher, nil)
	if err != nil {
		t.Fatalf("NewAccountService failed: %v", err)
	}
	return svc, store
}

func TestRegister_ThenVerify(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAccountService(t)
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterInput{
		Email:    "thandi@example.com",
		Password: "correct-horse-battery",
		Profile:  model.Profile{FirstName: "Thandi", LastName: "M", IDNumber: "8001015009087"},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := svc.Verify(ctx, "thandi@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got != id {
		t.Errorf("Verify returned %q, want %q", got, id)
	}

	// Any other password fails with the generic error.
	_, err = svc.Verify(ctx, "thandi@example.com", "wrong-password-here")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerify_UnknownEmailSameError(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAccountService(t)

	_, err := svc.Verify(context.Background(), "nobody@example.com", "whatever-pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify unknown email = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAccountService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "password-one"}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	// Same email, different case.
	_, err := svc.Register(ctx, RegisterInput{Email: "DUP@Example.COM", Password: "password-two"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("second Register = %v, want ErrDuplicateEmail", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAccountService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "long-enough-pass"},
		{"not an email", "not-an-email", "long-enough-pass"},
		{"short password", "ok@example.com", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Register(ctx, RegisterInput{Email: tt.email, Password: tt.password})
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Register = %v, want ErrValidation", err)
			}
		})
	}
}

func TestProfile_RedactsHash(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAccountService(t)
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterInput{
		Email:    "sipho@example.com",
		Password: "long-enough-pass",
		Profile:  model.Profile{BankName: "FNB", AccountNumber: "62000000001"},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := svc.Profile(ctx, id)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if user.PasswordHash != "" {
		t.Error("Profile must not expose the password hash")
	}
	if user.Email != "sipho@example.com" {
		t.Errorf("Email = %q", user.Email)
	}

	_, err = svc.Profile(ctx, "no-such-id")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Profile unknown id = %v, want ErrUserNotFound", err)
	}
}
