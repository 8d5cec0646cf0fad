package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrStatusChanged is returned when a conditional status update finds
	// the order in a different state than the one it was read in.
	ErrStatusChanged = errors.New("order status changed concurrently")
	// ErrForbidden is returned when the actor does not own the order.
	ErrForbidden = errors.New("order belongs to another account")
	// ErrEmptyCart is returned when checking out with no items.
	ErrEmptyCart = errors.New("cart is empty")
)

// Order is a placed order as owned by the store.
type Order struct {
	ID          string
	StudentID   string
	VendorID    string
	VendorName  string
	Items       []LineItem
	TotalAmount decimal.Decimal
	Status      Status
	OrderNumber int
	Rating      *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LineItem is a priced snapshot of a cart line captured at checkout.
type LineItem struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByStudent(ctx context.Context, studentID string) ([]Order, error)
	ListByVendor(ctx context.Context, vendorID string) ([]Order, error)
	// RecentByStudent returns up to limit orders, newest first.
	RecentByStudent(ctx context.Context, studentID string, limit int) ([]Order, error)
	CountByStudent(ctx context.Context, studentID string) (int, error)
	// CompletedByVendor returns the vendor's orders in StatusCompleted.
	CompletedByVendor(ctx context.Context, vendorID string) ([]Order, error)
	// UpdateStatus moves the order to `to` only if it is still in `from`,
	// returning ErrStatusChanged otherwise.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}
