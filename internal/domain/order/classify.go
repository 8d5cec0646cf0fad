package order

import (
	"cmp"
	"slices"
	"time"
)

// StudentBuckets groups a student's orders for the orders screen.
type StudentBuckets struct {
	Active []Order
	Past   []Order
}

// VendorBuckets groups a vendor's orders for the kitchen board.
type VendorBuckets struct {
	Received  []Order
	Preparing []Order
	Ready     []Order
	History   []Order
}

// ClassifyStudent partitions orders into active and past buckets, each
// sorted newest first by creation time. The input is not modified.
func ClassifyStudent(orders []Order) StudentBuckets {
	var b StudentBuckets
	for _, o := range orders {
		o.Status = ParseStatus(string(o.Status))
		if o.Status.Active() {
			b.Active = append(b.Active, o)
		} else {
			b.Past = append(b.Past, o)
		}
	}
	sortDesc(b.Active, byCreated)
	sortDesc(b.Past, byCreated)
	return b
}

// ClassifyVendor partitions orders into the three kitchen stages plus
// history. Stage buckets are sorted newest first by creation time, history
// newest first by last update.
func ClassifyVendor(orders []Order) VendorBuckets {
	var b VendorBuckets
	for _, o := range orders {
		o.Status = ParseStatus(string(o.Status))
		switch o.Status {
		case StatusReceived:
			b.Received = append(b.Received, o)
		case StatusPreparing:
			b.Preparing = append(b.Preparing, o)
		case StatusReady:
			b.Ready = append(b.Ready, o)
		default:
			b.History = append(b.History, o)
		}
	}
	sortDesc(b.Received, byCreated)
	sortDesc(b.Preparing, byCreated)
	sortDesc(b.Ready, byCreated)
	sortDesc(b.History, byUpdated)
	return b
}

func byCreated(o Order) time.Time { return o.CreatedAt }
func byUpdated(o Order) time.Time { return o.UpdatedAt }

// epoch maps a zero time to 0 so missing timestamps sort as the oldest.
func epoch(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func sortDesc(orders []Order, key func(Order) time.Time) {
	slices.SortStableFunc(orders, func(a, b Order) int {
		if c := cmp.Compare(epoch(key(b)), epoch(key(a))); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
