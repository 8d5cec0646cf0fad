package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func rating(v int) *int { return &v }

func TestSummarize_Empty(t *testing.T) {
	a := Summarize(nil, fixedNow)

	assert.Empty(t, a.Rated)
	assert.Equal(t, 0, a.TotalReviews)
	assert.True(t, decimal.Zero.Equal(a.AverageRating))
	assert.True(t, decimal.Zero.Equal(a.RevenueToday))
}

func TestSummarize_RoundsAverage(t *testing.T) {
	a := Summarize([]Order{
		{ID: "1", Rating: rating(5)},
		{ID: "2", Rating: rating(4)},
		{ID: "3", Rating: rating(4)},
	}, fixedNow)

	assert.Equal(t, 3, a.TotalReviews)
	assert.Equal(t, "4.3", a.AverageRating.String())
}

func TestSummarize_RevenueSinceLocalMidnight(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, loc)
	midnight := time.Date(2026, 5, 4, 0, 0, 0, 0, loc)

	a := Summarize([]Order{
		{ID: "at-midnight", TotalAmount: decimal.NewFromInt(10), CreatedAt: midnight},
		{ID: "before", TotalAmount: decimal.NewFromInt(20), CreatedAt: midnight.Add(-time.Second)},
		{ID: "morning", TotalAmount: decimal.RequireFromString("31.5"), CreatedAt: now.Add(-time.Hour)},
		{ID: "utc-same-instant", TotalAmount: decimal.NewFromInt(5), CreatedAt: midnight.Add(time.Minute).UTC()},
	}, now)

	assert.Equal(t, "46.5", a.RevenueToday.String())
	assert.Equal(t, 0, a.TotalReviews)
}
