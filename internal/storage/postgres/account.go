package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/vendor"
)

const (
	findAccountByEmailSQL = `SELECT id, email, password_hash, role, created_at
		FROM accounts WHERE lower(email) = lower($1)`

	insertAccountSQL = `INSERT INTO accounts (id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	insertStudentSQL = `INSERT INTO students (id, name, email, created_at)
		VALUES ($1, $2, $3, $4)`

	hasStudentSQL = `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`
	hasVendorSQL  = `SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1)`

	getStudentSQL = `SELECT id, name, email, created_at FROM students WHERE id = $1`
)

var _ auth.Repository = (*AccountRepository)(nil)

// AccountRepository implements auth.Repository backed by PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns an AccountRepository that uses the given pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// FindByEmail looks an account up by case-insensitive email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	var (
		a    auth.Account
		role string
	)
	err := r.pool.QueryRow(ctx, findAccountByEmailSQL, email).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("finding account %q: %w", email, err)
	}
	a.Role = auth.Role(role)
	return &a, nil
}

// CreateStudent inserts the account and its student profile in one
// transaction.
func (r *AccountRepository) CreateStudent(ctx context.Context, a *auth.Account, s *auth.Student) error {
	return r.createWithProfile(ctx, a, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertStudentSQL, s.ID, s.Name, s.Email, s.CreatedAt)
		return err
	})
}

// CreateVendor inserts the account and its vendor profile in one
// transaction.
func (r *AccountRepository) CreateVendor(ctx context.Context, a *auth.Account, v *vendor.Vendor) error {
	return r.createWithProfile(ctx, a, func(tx pgx.Tx) error {
		return insertVendor(ctx, tx, v)
	})
}

func (r *AccountRepository) createWithProfile(ctx context.Context, a *auth.Account, profile func(pgx.Tx) error) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertAccountSQL, a.ID, a.Email, a.PasswordHash, string(a.Role), a.CreatedAt); err != nil {
			return err
		}
		return profile(tx)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("creating %s account %q: %w", a.Role, a.Email, err)
	}
	return nil
}

// HasProfile reports whether the account has a profile for role.
func (r *AccountRepository) HasProfile(ctx context.Context, accountID string, role auth.Role) (bool, error) {
	query := hasStudentSQL
	if role == auth.RoleVendor {
		query = hasVendorSQL
	}
	var ok bool
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking %s profile %q: %w", role, accountID, err)
	}
	return ok, nil
}

// Student returns a student profile.
func (r *AccountRepository) Student(ctx context.Context, id string) (*auth.Student, error) {
	var s auth.Student
	err := r.pool.QueryRow(ctx, getStudentSQL, id).Scan(&s.ID, &s.Name, &s.Email, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("getting student %q: %w", id, err)
	}
	return &s, nil
}
