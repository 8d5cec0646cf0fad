// Package rating maintains the vendor running-average rating.
package rating

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/dormdash/internal/domain/order"
)

var (
	// ErrConflict is returned by a Tx when vendor stats changed after they
	// were read. The whole transaction is retried.
	ErrConflict = errors.New("vendor rating modified by another transaction")
	// ErrRetriesExhausted is returned when every attempt hit ErrConflict.
	ErrRetriesExhausted = errors.New("rating update retries exhausted")
	// ErrAlreadyRated is returned when the order already carries a rating.
	ErrAlreadyRated = errors.New("order already rated")
	// ErrNotCompleted is returned when rating an order that was not picked up.
	ErrNotCompleted = errors.New("only completed orders can be rated")
)

const (
	MinRating = 1
	MaxRating = 5
)

// Stats is a vendor's aggregate rating. Version increments on every write.
type Stats struct {
	Rating       decimal.Decimal
	TotalReviews int
	Version      int64
}

// Apply folds a new rating into s:
//
//	count'  = count + 1
//	rating' = round1((rating*count + r) / count')
func Apply(s Stats, r int) Stats {
	count := s.TotalReviews + 1
	sum := s.Rating.Mul(decimal.NewFromInt(int64(s.TotalReviews))).Add(decimal.NewFromInt(int64(r)))
	return Stats{
		Rating:       sum.DivRound(decimal.NewFromInt(int64(count)), 8).Round(1),
		TotalReviews: count,
		Version:      s.Version + 1,
	}
}

// FromRatings rebuilds stats from individual ratings as a plain average.
func FromRatings(ratings []int, version int64) Stats {
	if len(ratings) == 0 {
		return Stats{Rating: decimal.Zero, Version: version}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return Stats{
		Rating:       decimal.NewFromInt(int64(sum)).DivRound(decimal.NewFromInt(int64(len(ratings))), 8).Round(1),
		TotalReviews: len(ratings),
		Version:      version,
	}
}

// Review is the record appended for every accepted rating.
type Review struct {
	ID        string
	OrderID   string
	VendorID  string
	StudentID string
	Rating    int
	CreatedAt time.Time
}

// Tx is the set of operations available inside a rating transaction.
type Tx interface {
	Order(ctx context.Context, orderID string) (*order.Order, error)
	// SetOrderRating writes r onto an unrated order, returning
	// ErrAlreadyRated if it already has one.
	SetOrderRating(ctx context.Context, orderID string, r int) error
	AddReview(ctx context.Context, rv Review) error
	VendorStats(ctx context.Context, vendorID string) (Stats, error)
	// UpdateVendorStats writes next only if the stored version still equals
	// prev.Version, returning ErrConflict otherwise.
	UpdateVendorStats(ctx context.Context, vendorID string, prev, next Stats) error
	VendorRatings(ctx context.Context, vendorID string) ([]int, error)
}

// Store runs fn inside a single transaction. If fn returns an error the
// transaction is rolled back and the error is returned unchanged.
type Store interface {
	Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
