package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dormdash/internal/domain/order"
)

const orderColumns = `id, student_id, vendor_id, vendor_name, items, total_amount, status,
	order_number, rating, created_at, updated_at`

const (
	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	incrementVendorOrdersSQL = `UPDATE vendors SET total_orders = total_orders + 1 WHERE id = $1`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByStudentSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE student_id = $1 ORDER BY created_at DESC, id`

	listOrdersByVendorSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE vendor_id = $1 ORDER BY created_at DESC, id`

	recentOrdersByStudentSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE student_id = $1 ORDER BY created_at DESC, id LIMIT $2`

	countOrdersByStudentSQL = `SELECT count(*) FROM orders WHERE student_id = $1`

	completedOrdersByVendorSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE vendor_id = $1 AND status = 'Completed' ORDER BY created_at DESC, id`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and bumps the vendor's order counter in the
// same transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.StudentID, o.VendorID, o.VendorName, items, o.TotalAmount, string(o.Status),
			o.OrderNumber, o.Rating, o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, incrementVendorOrdersSQL, o.VendorID)
		return err
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.pool, id)
}

// ListByStudent returns all orders placed by the student.
func (r *OrderRepository) ListByStudent(ctx context.Context, studentID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByStudentSQL, studentID)
}

// ListByVendor returns all orders placed with the vendor.
func (r *OrderRepository) ListByVendor(ctx context.Context, vendorID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByVendorSQL, vendorID)
}

// RecentByStudent returns up to limit of the student's newest orders.
func (r *OrderRepository) RecentByStudent(ctx context.Context, studentID string, limit int) ([]order.Order, error) {
	return r.list(ctx, recentOrdersByStudentSQL, studentID, limit)
}

// CompletedByVendor returns the vendor's completed orders.
func (r *OrderRepository) CompletedByVendor(ctx context.Context, vendorID string) ([]order.Order, error) {
	return r.list(ctx, completedOrdersByVendorSQL, vendorID)
}

// CountByStudent returns how many orders the student placed.
func (r *OrderRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersByStudentSQL, studentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders of %q: %w", studentID, err)
	}
	return n, nil
}

// UpdateStatus moves the order from one status to another. When no row
// matches it tells a missing order apart from a concurrent status change.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, at time.Time) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrStatusChanged
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getOrder(ctx context.Context, db querier, id string) (*order.Order, error) {
	rows, err := db.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		items  []byte
		status string
		rating *int16
	)
	err := row.Scan(
		&o.ID, &o.StudentID, &o.VendorID, &o.VendorName, &items, &o.TotalAmount, &status,
		&o.OrderNumber, &rating, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	o.Status = order.ParseStatus(status)
	if rating != nil {
		v := int(*rating)
		o.Rating = &v
	}
	return o, nil
}
