package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Analytics is the vendor dashboard summary over completed orders.
type Analytics struct {
	// Rated holds completed orders carrying a rating, newest first.
	Rated         []Order
	AverageRating decimal.Decimal
	TotalReviews  int
	RevenueToday  decimal.Decimal
}

// Summarize computes Analytics from a vendor's completed orders. Revenue
// counts orders created since midnight in now's location.
func Summarize(completed []Order, now time.Time) Analytics {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	a := Analytics{
		AverageRating: decimal.Zero,
		RevenueToday:  decimal.Zero,
	}
	sum := 0
	for _, o := range completed {
		if o.Rating != nil {
			a.Rated = append(a.Rated, o)
			sum += *o.Rating
		}
		if !o.CreatedAt.Before(midnight) {
			a.RevenueToday = a.RevenueToday.Add(o.TotalAmount)
		}
	}
	sortDesc(a.Rated, byCreated)

	a.TotalReviews = len(a.Rated)
	if a.TotalReviews > 0 {
		a.AverageRating = decimal.NewFromInt(int64(sum)).
			Div(decimal.NewFromInt(int64(a.TotalReviews))).
			Round(1)
	}
	return a
}
