package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/domain/rating"
	"github.com/xenking/dormdash/internal/domain/vendor"
)

const (
	setOrderRatingSQL = `UPDATE orders SET rating = $2 WHERE id = $1 AND rating IS NULL`

	insertReviewSQL = `INSERT INTO reviews (id, order_id, vendor_id, student_id, rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getVendorStatsSQL = `SELECT rating, total_reviews, version FROM vendors WHERE id = $1`

	updateVendorStatsSQL = `UPDATE vendors SET rating = $3, total_reviews = $4, version = $5
		WHERE id = $1 AND version = $2`

	listVendorRatingsSQL = `SELECT rating FROM reviews WHERE vendor_id = $1 ORDER BY created_at`
)

var _ rating.Store = (*RatingStore)(nil)

// RatingStore runs rating transactions on PostgreSQL. Vendor stats are
// protected by the version column rather than row locks: a stale version
// or a serialization failure surfaces as rating.ErrConflict.
type RatingStore struct {
	pool *pgxpool.Pool
}

// NewRatingStore returns a RatingStore that uses the given pool.
func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

// Transact runs fn in a read committed transaction.
func (s *RatingStore) Transact(ctx context.Context, fn func(ctx context.Context, tx rating.Tx) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &ratingTx{tx: tx})
	})
	if err != nil && isConflict(err) {
		return fmt.Errorf("%w: %w", rating.ErrConflict, err)
	}
	return err
}

type ratingTx struct {
	tx pgx.Tx
}

func (t *ratingTx) Order(ctx context.Context, orderID string) (*order.Order, error) {
	return getOrder(ctx, t.tx, orderID)
}

func (t *ratingTx) SetOrderRating(ctx context.Context, orderID string, r int) error {
	tag, err := t.tx.Exec(ctx, setOrderRatingSQL, orderID, r)
	if err != nil {
		return fmt.Errorf("rating order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return rating.ErrAlreadyRated
	}
	return nil
}

func (t *ratingTx) AddReview(ctx context.Context, rv rating.Review) error {
	_, err := t.tx.Exec(ctx, insertReviewSQL,
		rv.ID, rv.OrderID, rv.VendorID, rv.StudentID, rv.Rating, rv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return rating.ErrAlreadyRated
		}
		return fmt.Errorf("adding review for order %q: %w", rv.OrderID, err)
	}
	return nil
}

func (t *ratingTx) VendorStats(ctx context.Context, vendorID string) (rating.Stats, error) {
	var st rating.Stats
	err := t.tx.QueryRow(ctx, getVendorStatsSQL, vendorID).Scan(&st.Rating, &st.TotalReviews, &st.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return st, vendor.ErrNotFound
		}
		return st, fmt.Errorf("reading stats of vendor %q: %w", vendorID, err)
	}
	return st, nil
}

func (t *ratingTx) UpdateVendorStats(ctx context.Context, vendorID string, prev, next rating.Stats) error {
	tag, err := t.tx.Exec(ctx, updateVendorStatsSQL,
		vendorID, prev.Version, next.Rating, next.TotalReviews, next.Version,
	)
	if err != nil {
		return fmt.Errorf("writing stats of vendor %q: %w", vendorID, err)
	}
	if tag.RowsAffected() == 0 {
		return rating.ErrConflict
	}
	return nil
}

func (t *ratingTx) VendorRatings(ctx context.Context, vendorID string) ([]int, error) {
	rows, err := t.tx.Query(ctx, listVendorRatingsSQL, vendorID)
	if err != nil {
		return nil, fmt.Errorf("listing ratings of vendor %q: %w", vendorID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (int, error) {
		var v int16
		err := row.Scan(&v)
		return int(v), err
	})
}
