package live

import (
	"context"
	"iter"

	"github.com/go-faster/errors"
)

// ErrClosed is returned by Next after the subscription or broker closed.
var ErrClosed = errors.New("subscription closed")

// Loader fetches the complete current state for a subscription.
type Loader[T any] func(ctx context.Context) (T, error)

// Subscription is a lazy sequence of full snapshots. The first Next loads
// immediately; later calls block until the topic is signalled and reload.
//
// A Subscription must be closed when its consumer goes away.
type Subscription[T any] struct {
	load    Loader[T]
	signals <-chan struct{}
	cancel  func()
	started bool
}

// Subscribe opens a Subscription on topic that snapshots with load.
func Subscribe[T any](b *Broker, topic string, load Loader[T]) *Subscription[T] {
	signals, cancel := b.Subscribe(topic)
	return &Subscription[T]{
		load:    load,
		signals: signals,
		cancel:  cancel,
	}
}

// Next returns the next snapshot. Signals that arrive while a snapshot is
// being loaded are coalesced into one reload.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if s.started {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case _, ok := <-s.signals:
			if !ok {
				return zero, ErrClosed
			}
		}
	}
	s.started = true
	return s.load(ctx)
}

// Seq exposes the subscription as an iterator. Iteration stops after the
// first error, which is yielded, unless ctx was cancelled or the
// subscription closed.
func (s *Subscription[T]) Seq(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := s.Next(ctx)
			if err != nil {
				if errors.Is(err, ErrClosed) || ctx.Err() != nil {
					return
				}
				yield(v, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Restart makes the next call to Next load immediately.
func (s *Subscription[T]) Restart() {
	s.started = false
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.cancel()
}
