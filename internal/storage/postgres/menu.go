package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dormdash/internal/domain/vendor"
)

const menuColumns = `id, vendor_id, name, price, description, category, is_veg, is_available,
	prep_time, image_url, created_at`

const (
	listMenuSQL = `SELECT ` + menuColumns + ` FROM menu_items
		WHERE vendor_id = $1 ORDER BY created_at, id`

	getMenuItemSQL = `SELECT ` + menuColumns + ` FROM menu_items
		WHERE vendor_id = $1 AND id = $2`

	insertMenuItemSQL = `INSERT INTO menu_items (` + menuColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateMenuItemSQL = `UPDATE menu_items
		SET name = $3, price = $4, description = $5, category = $6, is_veg = $7,
			is_available = $8, prep_time = $9, image_url = $10
		WHERE vendor_id = $1 AND id = $2`

	deleteMenuItemSQL = `DELETE FROM menu_items WHERE vendor_id = $1 AND id = $2`

	menuNamesSQL = `SELECT vendor_id, lower(name) FROM menu_items`

	menuNameExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM menu_items WHERE vendor_id = $1 AND lower(name) = lower($2))`
)

var _ vendor.MenuRepository = (*MenuRepository)(nil)

// MenuRepository implements vendor.MenuRepository backed by PostgreSQL.
// Every statement is scoped by vendor id so a vendor can only reach its own
// items.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// ListByVendor returns the vendor's menu in creation order.
func (r *MenuRepository) ListByVendor(ctx context.Context, vendorID string) ([]vendor.MenuItem, error) {
	rows, err := r.pool.Query(ctx, listMenuSQL, vendorID)
	if err != nil {
		return nil, fmt.Errorf("listing menu of %q: %w", vendorID, err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// Get returns one of the vendor's items.
func (r *MenuRepository) Get(ctx context.Context, vendorID, itemID string) (*vendor.MenuItem, error) {
	rows, err := r.pool.Query(ctx, getMenuItemSQL, vendorID, itemID)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", itemID, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vendor.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", itemID, err)
	}
	return &item, nil
}

// Create inserts a menu item.
func (r *MenuRepository) Create(ctx context.Context, it *vendor.MenuItem) error {
	_, err := r.pool.Exec(ctx, insertMenuItemSQL,
		it.ID, it.VendorID, it.Name, it.Price, it.Description, it.Category,
		it.IsVeg, it.IsAvailable, it.PrepTime, it.ImageURL, it.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating menu item %q: %w", it.Name, err)
	}
	return nil
}

// Update replaces the mutable fields of a menu item.
func (r *MenuRepository) Update(ctx context.Context, it *vendor.MenuItem) error {
	tag, err := r.pool.Exec(ctx, updateMenuItemSQL,
		it.VendorID, it.ID, it.Name, it.Price, it.Description, it.Category,
		it.IsVeg, it.IsAvailable, it.PrepTime, it.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("updating menu item %q: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return vendor.ErrItemNotFound
	}
	return nil
}

// Delete removes a menu item.
func (r *MenuRepository) Delete(ctx context.Context, vendorID, itemID string) error {
	tag, err := r.pool.Exec(ctx, deleteMenuItemSQL, vendorID, itemID)
	if err != nil {
		return fmt.Errorf("deleting menu item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return vendor.ErrItemNotFound
	}
	return nil
}

func scanMenuItem(row pgx.CollectableRow) (vendor.MenuItem, error) {
	var it vendor.MenuItem
	err := row.Scan(
		&it.ID, &it.VendorID, &it.Name, &it.Price, &it.Description, &it.Category,
		&it.IsVeg, &it.IsAvailable, &it.PrepTime, &it.ImageURL, &it.CreatedAt,
	)
	return it, err
}

// EachName streams the lower-cased name of every menu item with its vendor
// id. It is used to prime bulk import deduplication.
func (r *MenuRepository) EachName(ctx context.Context, fn func(vendorID, name string)) error {
	rows, err := r.pool.Query(ctx, menuNamesSQL)
	if err != nil {
		return fmt.Errorf("listing menu names: %w", err)
	}
	var vendorID, name string
	_, err = pgx.ForEachRow(rows, []any{&vendorID, &name}, func() error {
		fn(vendorID, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing menu names: %w", err)
	}
	return nil
}

// HasName reports whether the vendor already offers an item with the given
// name, compared case-insensitively.
func (r *MenuRepository) HasName(ctx context.Context, vendorID, name string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, menuNameExistsSQL, vendorID, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking menu item %q: %w", name, err)
	}
	return exists, nil
}
