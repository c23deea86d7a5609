package model

import "time"

// BookingStatus tracks whether a booking still owns its seats.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is the permanent record produced when a hold is finalized.
// It is immutable apart from cancellation through the release booking
// path used by external refund flows.
//
// Fields:
//  ID          – booking identifier.
//  HoldID      – hold that was confirmed; unique per booking.
//  ScreeningID – screening the seats belong to.
//  SeatIDs     – booked seats.
//  OwnerToken  – buyer that confirmed the hold.
//  Status      – CONFIRMED or CANCELLED.
//  BookedAt    – confirmation time.
//  CancelledAt – release time, nil while confirmed.
type Booking struct {
	ID          string        `json:"booking_id"`
	HoldID      string        `json:"hold_id"`
	ScreeningID string        `json:"screening_id"`
	SeatIDs     []string      `json:"seat_ids"`
	OwnerToken  string        `json:"-"`
	Status      BookingStatus `json:"status"`
	BookedAt    time.Time     `json:"booked_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}
