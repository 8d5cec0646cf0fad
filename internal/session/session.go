// Package session holds the per-user application context: the signed-in
// account and its ephemeral cart. A session is opened at sign-in and torn
// down at sign-out or when it expires.
package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/cart"
)

var (
	// ErrNotFound is returned by a Store for unknown or expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrConflict is returned by Store.Update when the session was changed
	// or deleted by someone else while fn ran. fn is not re-run.
	ErrConflict = errors.New("session changed concurrently")
)

// Session is the server-side state behind a bearer token.
type Session struct {
	ID        string      `json:"id"`
	AccountID string      `json:"accountId"`
	Email     string      `json:"email"`
	Role      auth.Role   `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Cart      []cart.Item `json:"cart,omitempty"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions until they expire.
//
// Update loads the session, applies fn and saves the result. Updates to one
// session are mutually exclusive across every process sharing the store, so
// fn may have side effects that must not run twice for the same cart. If fn
// fails nothing is saved and its error is returned as is.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(s *Session) error) error
	Delete(ctx context.Context, id string) error
}

type ctxKey struct{}

// With returns a copy of ctx carrying s.
func With(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From returns the session stored in ctx, if any.
func From(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
