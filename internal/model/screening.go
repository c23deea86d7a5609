package model

import "time"

// ScreeningStatus describes whether a screening still accepts buyers.
type ScreeningStatus string

const (
	ScreeningScheduled ScreeningStatus = "SCHEDULED"
	ScreeningRetired   ScreeningStatus = "RETIRED"
)

// Screening represents one scheduled showing of a movie in a hall.
// Each screening owns exactly one seat map instance.  SeatRemain is
// a denormalized counter consumed by listings; it is only ever
// written together with a seat state transition.
//
// Fields:
//  ID         – external identifier of the screening.
//  HallID     – hall where the screening takes place.
//  MovieTitle – title shown in listings.
//  StartsAt   – when the screening begins.
//  EndsAt     – when the screening ends; retirement is measured from here.
//  Status     – SCHEDULED or RETIRED.
//  SeatTotal  – number of seats in the seat map.
//  SeatRemain – seats still sellable and unsold (AVAILABLE + HELD).
//  CreatedAt  – when the seat map was instantiated.
type Screening struct {
	ID         string          `json:"id"`
	HallID     string          `json:"hall_id"`
	MovieTitle string          `json:"movie_title"`
	StartsAt   time.Time       `json:"starts_at"`
	EndsAt     time.Time       `json:"ends_at"`
	Status     ScreeningStatus `json:"status"`
	SeatTotal  int             `json:"seat_total"`
	SeatRemain int             `json:"seat_remain"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ScreeningSnapshot is the durable image of a screening loaded during
// crash recovery.  States are keyed implicitly by SeatState.SeatID.
type ScreeningSnapshot struct {
	Screening Screening
	Seats     []Seat
	States    []SeatState
	Holds     []Hold
	Bookings  []Booking
	Audit     []AuditEntry
}
