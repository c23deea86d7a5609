package model

import "time"

// Hold is a buyer's temporary, exclusive claim over a non-empty set of
// seats within one screening.  SeatIDs never change after creation;
// only ExpiresAt moves when the owner extends the hold.
//
// Fields:
//  ID          – hold identifier returned to the client.
//  ScreeningID – screening the seats belong to.
//  SeatIDs     – claimed seats.
//  OwnerToken  – opaque session/order identifier of the buyer.
//  CreatedAt   – creation time.
//  ExpiresAt   – after this instant the hold is no longer valid.
type Hold struct {
	ID          string    `json:"hold_id"`
	ScreeningID string    `json:"screening_id"`
	SeatIDs     []string  `json:"seat_ids"`
	OwnerToken  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the hold is past its expiry at now.
func (h Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}
