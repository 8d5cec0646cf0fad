package order

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/dormdash/internal/domain/cart"
)

// Service encapsulates order placement and lifecycle rules.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service backed by the given repository.
func NewService(orders Repository) *Service {
	return &Service{
		orders: orders,
		now:    time.Now,
	}
}

// Checkout turns the cart into a Received order and persists it. The order
// takes its vendor from the first cart line. The caller clears the cart once
// Checkout succeeds.
func (s *Service) Checkout(ctx context.Context, studentID string, c *cart.Cart) (*Order, error) {
	if c == nil || c.Len() == 0 {
		return nil, ErrEmptyCart
	}

	items := c.Items()
	lines := make([]LineItem, len(items))
	for i, it := range items {
		lines[i] = LineItem{
			ItemID:   it.ID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
		}
	}

	vendorID, vendorName := c.Vendor()
	now := s.now()
	o := &Order{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		VendorID:    vendorID,
		VendorName:  vendorName,
		Items:       lines,
		TotalAmount: c.GrandTotal(),
		Status:      StatusReceived,
		OrderNumber: 1000 + rand.IntN(9000),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// Transition moves an order to the target status on behalf of actor, who
// must own the order. The write is conditional on the status that was read.
func (s *Service) Transition(ctx context.Context, actor Actor, actorID, orderID string, to Status) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}

	switch actor {
	case ActorStudent:
		if o.StudentID != actorID {
			return nil, ErrForbidden
		}
	case ActorVendor:
		if o.VendorID != actorID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	from := ParseStatus(string(o.Status))
	if err := CanTransition(actor, from, to); err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.orders.UpdateStatus(ctx, orderID, from, to, at); err != nil {
		return nil, errors.Wrapf(err, "update order %s status", orderID)
	}

	o.Status = to
	o.UpdatedAt = at
	return o, nil
}

// Accept moves a received order into preparation.
func (s *Service) Accept(ctx context.Context, vendorID, orderID string) (*Order, error) {
	return s.Transition(ctx, ActorVendor, vendorID, orderID, StatusPreparing)
}

// Reject declines a received order.
func (s *Service) Reject(ctx context.Context, vendorID, orderID string) (*Order, error) {
	return s.Transition(ctx, ActorVendor, vendorID, orderID, StatusRejected)
}

// MarkReady flags a preparing order as ready for pickup.
func (s *Service) MarkReady(ctx context.Context, vendorID, orderID string) (*Order, error) {
	return s.Transition(ctx, ActorVendor, vendorID, orderID, StatusReady)
}

// Cancel withdraws an order the vendor has not accepted yet.
func (s *Service) Cancel(ctx context.Context, studentID, orderID string) (*Order, error) {
	return s.Transition(ctx, ActorStudent, studentID, orderID, StatusCancelled)
}

// ConfirmPickup completes a ready order.
func (s *Service) ConfirmPickup(ctx context.Context, studentID, orderID string) (*Order, error) {
	return s.Transition(ctx, ActorStudent, studentID, orderID, StatusCompleted)
}

// StudentOrders returns every order placed by the student.
func (s *Service) StudentOrders(ctx context.Context, studentID string) ([]Order, error) {
	orders, err := s.orders.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "list student orders")
	}
	return orders, nil
}

// VendorOrders returns every order placed with the vendor.
func (s *Service) VendorOrders(ctx context.Context, vendorID string) ([]Order, error) {
	orders, err := s.orders.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, errors.Wrap(err, "list vendor orders")
	}
	return orders, nil
}

// CountStudentOrders returns how many orders the student has placed.
func (s *Service) CountStudentOrders(ctx context.Context, studentID string) (int, error) {
	n, err := s.orders.CountByStudent(ctx, studentID)
	if err != nil {
		return 0, errors.Wrap(err, "count student orders")
	}
	return n, nil
}

// Analytics summarizes the vendor's completed orders as of now.
func (s *Service) Analytics(ctx context.Context, vendorID string, now time.Time) (*Analytics, error) {
	completed, err := s.orders.CompletedByVendor(ctx, vendorID)
	if err != nil {
		return nil, errors.Wrap(err, "list completed orders")
	}
	a := Summarize(completed, now)
	return &a, nil
}
