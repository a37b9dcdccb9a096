package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar days.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DateRange is a half-open range of days [Checkin, Checkout).
type DateRange struct {
	Checkin  time.Time
	Checkout time.Time
}

// NewDateRange builds a range with both ends truncated to calendar days.
func NewDateRange(checkin, checkout time.Time) DateRange {
	return DateRange{Checkin: Day(checkin), Checkout: Day(checkout)}
}

// Valid reports whether the range holds at least one night.
func (r DateRange) Valid() bool {
	return r.Checkin.Before(r.Checkout)
}

// Nights is the number of occupied days.
func (r DateRange) Nights() int {
	if !r.Valid() {
		return 0
	}
	return int(r.Checkout.Sub(r.Checkin).Hours() / 24)
}

// LastNight is the last occupied day, Checkout minus one day.
func (r DateRange) LastNight() time.Time {
	return r.Checkout.AddDate(0, 0, -1)
}

// Dates enumerates every day in [Checkin, Checkout).
func (r DateRange) Dates() []time.Time {
	dates := make([]time.Time, 0, r.Nights())
	for d := r.Checkin; d.Before(r.Checkout); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Overlaps reports whether two half-open ranges share a night.
// Touching ranges (one's checkout equals the other's checkin) do not overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Checkin.Before(other.Checkout) && other.Checkin.Before(r.Checkout)
}

func (r DateRange) String() string {
	return r.Checkin.Format(DateLayout) + ".." + r.Checkout.Format(DateLayout)
}
