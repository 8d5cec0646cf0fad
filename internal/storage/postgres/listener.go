package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OrderEventsChannel is the NOTIFY channel fed by the orders trigger.
const OrderEventsChannel = "order_events"

// Publisher receives the topics named in a notification payload.
// PublishAll is called after a reconnect, when events may have been missed.
type Publisher interface {
	Publish(topics ...string)
	PublishAll()
}

// notifyConn is the part of *pgx.Conn the listener uses.
type notifyConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Listener holds a dedicated connection that LISTENs for order events and
// forwards them to a Publisher.
type Listener struct {
	connect func(ctx context.Context) (notifyConn, error)
	pub     Publisher
	parse   func(payload string) []string
	lg      *zap.Logger
	backoff time.Duration
}

// NewListener creates a Listener. parse turns a payload into topics.
func NewListener(pool *pgxpool.Pool, pub Publisher, parse func(string) []string, lg *zap.Logger) *Listener {
	return &Listener{
		connect: func(ctx context.Context) (notifyConn, error) {
			pc, err := pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			// The session carries LISTEN state, so it must not go back to the pool.
			return pc.Hijack(), nil
		},
		pub:     pub,
		parse:   parse,
		lg:      lg,
		backoff: time.Second,
	}
}

// Run listens until ctx is done, reconnecting after connection failures.
// Events raised while disconnected are lost; once listening again every
// subscriber is signalled so it reloads its snapshot.
func (l *Listener) Run(ctx context.Context) error {
	for connected := false; ; {
		err := l.listen(ctx, &connected)
		if ctx.Err() != nil {
			return nil
		}
		l.lg.Warn("Order event listener disconnected", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.backoff):
		}
	}
}

// listen sets *connected after its first successful LISTEN. Every later
// LISTEN is a reconnect.
func (l *Listener) listen(ctx context.Context, connected *bool) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire")
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, "LISTEN "+OrderEventsChannel); err != nil {
		return errors.Wrap(err, "listen")
	}
	l.lg.Info("Listening for order events", zap.String("channel", OrderEventsChannel))
	if *connected {
		l.pub.PublishAll()
	}
	*connected = true

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return errors.Wrap(err, "wait")
		}
		topics := l.parse(n.Payload)
		if len(topics) == 0 {
			continue
		}
		l.pub.Publish(topics...)
	}
}
