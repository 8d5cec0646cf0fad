package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/domain/validation"
)

// DefaultMaxAttempts bounds the optimistic retry loop.
const DefaultMaxAttempts = 5

// Result is the outcome of an accepted rating.
type Result struct {
	Review Review
	Stats  Stats
}

// Aggregator records ratings and keeps vendor stats consistent under
// concurrent submissions.
type Aggregator struct {
	store       Store
	maxAttempts int
	now         func() time.Time

	submitted metric.Int64Counter
	conflicts metric.Int64Counter
}

// NewAggregator creates an Aggregator. maxAttempts below 1 falls back to
// DefaultMaxAttempts.
func NewAggregator(store Store, maxAttempts int, meter metric.Meter) (*Aggregator, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	submitted, err := meter.Int64Counter("dormdash.rating.submitted",
		metric.WithDescription("Ratings accepted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "submitted counter")
	}
	conflicts, err := meter.Int64Counter("dormdash.rating.conflicts",
		metric.WithDescription("Rating transactions retried after a concurrent vendor update"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "conflicts counter")
	}
	return &Aggregator{
		store:       store,
		maxAttempts: maxAttempts,
		now:         time.Now,
		submitted:   submitted,
		conflicts:   conflicts,
	}, nil
}

// Submit rates a completed order on behalf of the student who placed it.
// The order rating, the review and the vendor stats are written in one
// transaction, which is retried when another rating for the same vendor
// commits first.
func (a *Aggregator) Submit(ctx context.Context, studentID, orderID string, r int) (*Result, error) {
	if r < MinRating || r > MaxRating {
		return nil, validation.Invalid("rating", fmt.Sprintf("must be between %d and %d", MinRating, MaxRating))
	}

	var res *Result
	err := a.transact(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		res, err = a.submit(ctx, tx, studentID, orderID, r)
		return err
	}, zap.String("order_id", orderID))
	if err != nil {
		return nil, err
	}
	a.submitted.Add(ctx, 1)
	return res, nil
}

// transact runs fn in a store transaction and re-runs it, up to
// maxAttempts times, when another writer moved the vendor stats first.
func (a *Aggregator) transact(ctx context.Context, fn func(context.Context, Tx) error, fields ...zap.Field) error {
	lg := zctx.From(ctx)
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		err := a.store.Transact(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}

		lastErr = err
		a.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.Int("attempt", attempt)))
		lg.Debug("Vendor stats conflict, retrying", append(fields, zap.Int("attempt", attempt))...)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, a.maxAttempts, lastErr)
}

func (a *Aggregator) submit(ctx context.Context, tx Tx, studentID, orderID string, r int) (*Result, error) {
	o, err := tx.Order(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	if o.StudentID != studentID {
		return nil, order.ErrForbidden
	}
	if o.Status != order.StatusCompleted {
		return nil, ErrNotCompleted
	}
	if o.Rating != nil {
		return nil, ErrAlreadyRated
	}

	if err := tx.SetOrderRating(ctx, orderID, r); err != nil {
		return nil, errors.Wrap(err, "set order rating")
	}

	rv := Review{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		VendorID:  o.VendorID,
		StudentID: studentID,
		Rating:    r,
		CreatedAt: a.now(),
	}
	if err := tx.AddReview(ctx, rv); err != nil {
		return nil, errors.Wrap(err, "add review")
	}

	prev, err := tx.VendorStats(ctx, o.VendorID)
	if err != nil {
		return nil, errors.Wrap(err, "read vendor stats")
	}
	next := Apply(prev, r)
	if err := tx.UpdateVendorStats(ctx, o.VendorID, prev, next); err != nil {
		return nil, errors.Wrap(err, "write vendor stats")
	}

	return &Result{Review: rv, Stats: next}, nil
}

// Recompute rebuilds a vendor's stats from its stored reviews. It repairs
// drift left by writes that bypassed the aggregator. A rating committed
// meanwhile makes it start over, like Submit.
func (a *Aggregator) Recompute(ctx context.Context, vendorID string) (Stats, error) {
	var out Stats
	err := a.transact(ctx, func(ctx context.Context, tx Tx) error {
		prev, err := tx.VendorStats(ctx, vendorID)
		if err != nil {
			return errors.Wrap(err, "read vendor stats")
		}
		ratings, err := tx.VendorRatings(ctx, vendorID)
		if err != nil {
			return errors.Wrap(err, "list vendor ratings")
		}
		out = FromRatings(ratings, prev.Version+1)
		return tx.UpdateVendorStats(ctx, vendorID, prev, out)
	}, zap.String("vendor_id", vendorID))
	if err != nil {
		return Stats{}, errors.Wrapf(err, "recompute vendor %s", vendorID)
	}
	return out, nil
}
