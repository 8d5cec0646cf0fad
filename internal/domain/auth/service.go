// Package auth handles email/password accounts for students and vendors.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/dormdash/internal/domain/validation"
	"github.com/xenking/dormdash/internal/domain/vendor"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Vendor profile defaults applied at sign-up.
const (
	DefaultOpeningTime = "09:00 AM"
	DefaultClosingTime = "10:00 PM"
)

// StudentSignUp is the input for creating a student account.
type StudentSignUp struct {
	Name     string
	Email    string
	Password string
}

// VendorSignUp is the input for creating a vendor account.
type VendorSignUp struct {
	Email          string
	Password       string
	OwnerName      string
	Phone          string
	RestaurantName string
	Location       string
	Description    string
	Category       string
}

// Service implements sign-up and sign-in.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// NewService creates an auth Service hashing passwords with the given bcrypt
// cost. A zero cost uses bcrypt.DefaultCost.
func NewService(repo Repository, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, cost: cost, now: time.Now}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) newAccount(email, password string, role Role) (*Account, error) {
	email = NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, validation.Invalid("email", "must be a valid address")
	}
	if len(password) < MinPasswordLength {
		return nil, validation.Invalid("password", "must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	return &Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now(),
	}, nil
}

// SignUpStudent registers a student account and profile.
func (s *Service) SignUpStudent(ctx context.Context, in StudentSignUp) (*Account, error) {
	if err := validation.Required(
		validation.Field{Name: "name", Value: in.Name},
		validation.Field{Name: "email", Value: in.Email},
		validation.Field{Name: "password", Value: in.Password},
	); err != nil {
		return nil, err
	}
	a, err := s.newAccount(in.Email, in.Password, RoleStudent)
	if err != nil {
		return nil, err
	}
	st := &Student{
		ID:        a.ID,
		Name:      strings.TrimSpace(in.Name),
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
	}
	if err := s.repo.CreateStudent(ctx, a, st); err != nil {
		return nil, errors.Wrap(err, "create student")
	}
	return a, nil
}

// SignUpVendor registers a vendor account with an active restaurant profile.
func (s *Service) SignUpVendor(ctx context.Context, in VendorSignUp) (*Account, error) {
	if err := validation.Required(
		validation.Field{Name: "email", Value: in.Email},
		validation.Field{Name: "password", Value: in.Password},
		validation.Field{Name: "ownerName", Value: in.OwnerName},
		validation.Field{Name: "phoneNumber", Value: in.Phone},
		validation.Field{Name: "restaurantName", Value: in.RestaurantName},
		validation.Field{Name: "location", Value: in.Location},
	); err != nil {
		return nil, err
	}
	a, err := s.newAccount(in.Email, in.Password, RoleVendor)
	if err != nil {
		return nil, err
	}
	v := &vendor.Vendor{
		ID:             a.ID,
		RestaurantName: strings.TrimSpace(in.RestaurantName),
		OwnerName:      strings.TrimSpace(in.OwnerName),
		Email:          a.Email,
		PhoneNumber:    strings.TrimSpace(in.Phone),
		Description:    in.Description,
		Rating:         decimal.Zero,
		IsActive:       true,
		Location:       strings.TrimSpace(in.Location),
		Category:       in.Category,
		OpeningTime:    DefaultOpeningTime,
		ClosingTime:    DefaultClosingTime,
		CreatedAt:      a.CreatedAt,
	}
	if err := s.repo.CreateVendor(ctx, a, v); err != nil {
		return nil, errors.Wrap(err, "create vendor")
	}
	return a, nil
}

// SignIn verifies credentials and checks that the account has a profile
// for role. Callers must not open a session on ErrProfileNotFound.
func (s *Service) SignIn(ctx context.Context, email, password string, role Role) (*Account, error) {
	if err := validation.Required(
		validation.Field{Name: "email", Value: email},
		validation.Field{Name: "password", Value: password},
	); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, validation.Invalid("role", "must be student or vendor")
	}

	a, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "find account")
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.repo.HasProfile(ctx, a.ID, role)
	if err != nil {
		return nil, errors.Wrap(err, "check profile")
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	a.Role = role
	return a, nil
}

// Student returns the student profile.
func (s *Service) Student(ctx context.Context, id string) (*Student, error) {
	st, err := s.repo.Student(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get student %s", id)
	}
	return st, nil
}
