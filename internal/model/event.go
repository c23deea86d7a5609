package model

import "time"

// EventType names a domain event published after a seat transition.
type EventType string

const (
	EventHoldCreated      EventType = "hold.created"
	EventHoldReleased     EventType = "hold.released"
	EventHoldExpired      EventType = "hold.expired"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingReleased  EventType = "booking.released"
	EventSeatsLocked      EventType = "seats.locked"
	EventSeatsUnlocked    EventType = "seats.unlocked"
)

// Event is emitted outside the screening critical section once the
// transition it describes has been committed.
type Event struct {
	Type        EventType `json:"type"`
	ScreeningID string    `json:"screening_id"`
	HoldID      string    `json:"hold_id,omitempty"`
	BookingID   string    `json:"booking_id,omitempty"`
	OwnerToken  string    `json:"owner_token,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	SeatIDs     []string  `json:"seat_ids"`
	SeatRemain  int       `json:"seat_remain"`
	At          time.Time `json:"at"`
}
