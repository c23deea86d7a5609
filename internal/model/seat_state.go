package model

import "time"

// SeatStatus is the lifecycle state of a seat within a screening.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatBooked    SeatStatus = "BOOKED"
	SeatLocked    SeatStatus = "LOCKED"
)

// SeatState is the mutable record kept for every seat.  Version is a
// monotonic counter bumped on each write and used for optimistic
// concurrency both in memory and in the screening_seats table.
//
// Fields:
//  SeatID     – seat this state belongs to.
//  Status     – AVAILABLE, HELD, BOOKED or LOCKED.
//  HoldRef    – hold that claimed the seat; kept while BOOKED so a
//               repeated confirmation can be recognised.
//  LockReason – why an admin locked the seat (LOCKED only).
//  LockedBy   – admin actor that locked the seat (LOCKED only).
//  Version    – optimistic locking counter.
//  UpdatedAt  – time of the last transition.
type SeatState struct {
	SeatID     string     `json:"seat_id"`
	Status     SeatStatus `json:"status"`
	HoldRef    string     `json:"hold_ref,omitempty"`
	LockReason string     `json:"lock_reason,omitempty"`
	LockedBy   string     `json:"locked_by,omitempty"`
	Version    uint64     `json:"version"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Sellable reports whether the seat still counts towards SeatRemain.
func (s SeatState) Sellable() bool {
	return s.Status == SeatAvailable || s.Status == SeatHeld
}
