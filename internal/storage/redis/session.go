// Package redis stores sessions in Redis so they survive restarts and are
// shared between API instances.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/dormdash/internal/session"
)

const (
	keyPrefix  = "dormdash:session:"
	lockPrefix = "dormdash:session-lock:"

	defaultLockTTL   = 15 * time.Second
	defaultLockRetry = 20 * time.Millisecond
)

// unlockScript deletes the lock only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var _ session.Store = (*SessionStore)(nil)

// SessionStore implements session.Store with one JSON value per session
// whose TTL matches the session expiry.
//
// Update takes a per-session lock key so that only one instance runs fn at
// a time, and writes under WATCH so a save never overwrites a change made
// after the lock expired or a concurrent Delete.
type SessionStore struct {
	rdb       *redis.Client
	now       func() time.Time
	lockTTL   time.Duration
	lockRetry time.Duration
}

// NewSessionStore returns a SessionStore on the given client.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{
		rdb:       rdb,
		now:       time.Now,
		lockTTL:   defaultLockTTL,
		lockRetry: defaultLockRetry,
	}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sess.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("saving session %q: %w", sess.ID, err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*session.Session, error) {
	return s.load(ctx, s.rdb, id)
}

// Update returns session.ErrConflict when the WATCHed key changed while fn
// ran. fn is not retried because it may already have placed an order.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*session.Session) error) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	key := keyPrefix + id
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		sess, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}

		ttl := sess.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return session.ErrNotFound
		}
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshaling session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return session.ErrConflict
	}
	return err
}

// lock spins on SET NX until it owns the session lock or ctx is done.
func (s *SessionStore) lock(ctx context.Context, id string) (unlock func(), err error) {
	key := lockPrefix + id
	token := uuid.NewString()
	for {
		ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("locking session %q: %w", id, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.lockRetry):
		}
	}
	return func() {
		_ = unlockScript.Run(context.WithoutCancel(ctx), s.rdb, []string{key}, token).Err()
	}, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *SessionStore) load(ctx context.Context, c getter, id string) (*session.Session, error) {
	data, err := c.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("loading session %q: %w", id, err)
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session %q: %w", id, err)
	}
	if sess.Expired(s.now()) {
		return nil, session.ErrNotFound
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting session %q: %w", id, err)
	}
	return nil
}
