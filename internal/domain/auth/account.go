package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/dormdash/internal/domain/vendor"
)

var (
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAccountNotFound is returned by repositories for unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrProfileNotFound is returned when credentials are valid but the
	// account has no profile for the requested role.
	ErrProfileNotFound = errors.New("profile not found for account")
)

// Role distinguishes the two kinds of accounts.
type Role string

const (
	RoleStudent Role = "student"
	RoleVendor  Role = "vendor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleVendor
}

// Account holds login credentials.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Student is a student profile. Its ID equals the owning account ID.
type Student struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Repository defines persistence operations for accounts and profiles.
// Create methods insert the account and its profile atomically.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	CreateStudent(ctx context.Context, a *Account, s *Student) error
	CreateVendor(ctx context.Context, a *Account, v *vendor.Vendor) error
	HasProfile(ctx context.Context, accountID string, role Role) (bool, error)
	Student(ctx context.Context, id string) (*Student, error)
}
