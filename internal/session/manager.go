package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/cart"
)

// Claims is the JWT payload. The registered ID claim carries the session id.
type Claims struct {
	Role auth.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and resolves session tokens.
type Manager struct {
	store   Store
	secret  []byte
	ttl     time.Duration
	taxRate decimal.Decimal
	now     func() time.Time
}

// NewManager creates a Manager signing tokens with secret.
func NewManager(store Store, secret []byte, ttl time.Duration, taxRate decimal.Decimal) *Manager {
	return &Manager{
		store:   store,
		secret:  secret,
		ttl:     ttl,
		taxRate: taxRate,
		now:     time.Now,
	}
}

// Open starts a session for a signed-in account and returns its token.
func (m *Manager) Open(ctx context.Context, a *auth.Account) (string, *Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.New().String(),
		AccountID: a.ID,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return "", nil, errors.Wrap(err, "save session")
	}

	claims := Claims{
		Role: a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign token")
	}
	return token, s, nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Resolve verifies the token and loads its live session. Closed or expired
// sessions yield ErrNotFound.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	s, err := m.store.Load(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) || s.AccountID != claims.Subject {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close tears the session and its cart down. Closing an already closed
// session is not an error.
func (m *Manager) Close(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, claims.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// Cart returns the session's current cart.
func (m *Manager) Cart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	s, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return cart.Restore(m.taxRate, s.Cart), nil
}

// UpdateCart applies fn to the session's cart and persists the result
// through Store.Update, so updates to one session are serialized across
// instances. If fn fails nothing is saved.
func (m *Manager) UpdateCart(ctx context.Context, sessionID string, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	var out *cart.Cart
	err := m.store.Update(ctx, sessionID, func(s *Session) error {
		c := cart.Restore(m.taxRate, s.Cart)
		if err := fn(c); err != nil {
			return err
		}
		s.Cart = c.Items()
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
