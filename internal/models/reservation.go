package models

import "time"

// Reservation is immutable once created; a change means cancel and re-create.
type Reservation struct {
	ID           int64     `json:"id"`
	GuestID      string    `json:"guest_id"`
	StayID       int64     `json:"stay_id"`
	CheckinDate  time.Time `json:"checkin_date"`
	CheckoutDate time.Time `json:"checkout_date"` // exclusive
	CreatedAt    time.Time `json:"created_at"`
}

// Range returns the occupied half-open date range.
func (r Reservation) Range() DateRange {
	return NewDateRange(r.CheckinDate, r.CheckoutDate)
}

// ReservedDate is one occupied night of a stay. (StayID, Date) is unique.
type ReservedDate struct {
	StayID int64     `json:"stay_id"`
	Date   time.Time `json:"date"`
}
