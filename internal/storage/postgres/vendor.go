package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dormdash/internal/domain/vendor"
)

const vendorColumns = `id, restaurant_name, owner_name, email, phone_number, description, image_url,
	rating, total_reviews, is_active, location, category, opening_time, closing_time,
	total_orders, version, created_at`

const (
	listVendorsSQL = `SELECT ` + vendorColumns + ` FROM vendors ORDER BY restaurant_name, id`

	getVendorSQL = `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`

	insertVendorSQL = `INSERT INTO vendors (` + vendorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	setVendorActiveSQL = `UPDATE vendors SET is_active = $2 WHERE id = $1`
	setVendorImageSQL  = `UPDATE vendors SET image_url = $2 WHERE id = $1`
)

var _ vendor.Repository = (*VendorRepository)(nil)

// VendorRepository implements vendor.Repository backed by PostgreSQL.
type VendorRepository struct {
	pool *pgxpool.Pool
}

// NewVendorRepository returns a VendorRepository that uses the given pool.
func NewVendorRepository(pool *pgxpool.Pool) *VendorRepository {
	return &VendorRepository{pool: pool}
}

// List returns every vendor ordered by name.
func (r *VendorRepository) List(ctx context.Context) ([]vendor.Vendor, error) {
	rows, err := r.pool.Query(ctx, listVendorsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing vendors: %w", err)
	}
	return pgx.CollectRows(rows, scanVendor)
}

// Get returns a vendor by id.
func (r *VendorRepository) Get(ctx context.Context, id string) (*vendor.Vendor, error) {
	rows, err := r.pool.Query(ctx, getVendorSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting vendor %q: %w", id, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVendor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vendor.ErrNotFound
		}
		return nil, fmt.Errorf("getting vendor %q: %w", id, err)
	}
	return &v, nil
}

// Create inserts a vendor profile. The owning account must already exist.
func (r *VendorRepository) Create(ctx context.Context, v *vendor.Vendor) error {
	if err := insertVendor(ctx, r.pool, v); err != nil {
		return fmt.Errorf("creating vendor %q: %w", v.ID, err)
	}
	return nil
}

// SetActive toggles whether the vendor accepts orders.
func (r *VendorRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, setVendorActiveSQL, id, active)
}

// SetImage replaces the vendor's profile image URL.
func (r *VendorRepository) SetImage(ctx context.Context, id, url string) error {
	return r.update(ctx, setVendorImageSQL, id, url)
}

func (r *VendorRepository) update(ctx context.Context, query, id string, value any) error {
	tag, err := r.pool.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("updating vendor %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return vendor.ErrNotFound
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertVendor(ctx context.Context, db execer, v *vendor.Vendor) error {
	_, err := db.Exec(ctx, insertVendorSQL,
		v.ID, v.RestaurantName, v.OwnerName, v.Email, v.PhoneNumber, v.Description, v.ImageURL,
		v.Rating, v.TotalReviews, v.IsActive, v.Location, v.Category, v.OpeningTime, v.ClosingTime,
		v.TotalOrders, v.Version, v.CreatedAt,
	)
	return err
}

func scanVendor(row pgx.CollectableRow) (vendor.Vendor, error) {
	var v vendor.Vendor
	err := row.Scan(
		&v.ID, &v.RestaurantName, &v.OwnerName, &v.Email, &v.PhoneNumber, &v.Description, &v.ImageURL,
		&v.Rating, &v.TotalReviews, &v.IsActive, &v.Location, &v.Category, &v.OpeningTime, &v.ClosingTime,
		&v.TotalOrders, &v.Version, &v.CreatedAt,
	)
	return v, err
}
