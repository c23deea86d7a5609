package model

// SeatType classifies a seat.  It is fixed by the hall geometry.
type SeatType string

const (
	SeatStandard SeatType = "STANDARD"
	SeatVIP      SeatType = "VIP"
	SeatCouple   SeatType = "COUPLE"
)

// Valid reports whether t is one of the known seat types.
func (t SeatType) Valid() bool {
	switch t {
	case SeatStandard, SeatVIP, SeatCouple:
		return true
	}
	return false
}

// Seat describes one seat of a screening's seat map.  Seats are
// identified by their screening plus ID, where ID is the row label
// followed by the 1-based column (A1, B12, AA3).  A seat is immutable
// once the screening is created and never shared across screenings.
//
// Fields:
//  ScreeningID    – screening this seat belongs to.
//  ID             – row label + column, unique within the screening.
//  Row            – row label (A, B, ..., AA).
//  Col            – 1-based position within the row.
//  Type           – STANDARD, VIP or COUPLE.
//  BasePriceCents – list price in cents, informational only.
type Seat struct {
	ScreeningID    string   `json:"screening_id"`
	ID             string   `json:"id"`
	Row            string   `json:"row"`
	Col            uint32   `json:"col"`
	Type           SeatType `json:"type"`
	BasePriceCents uint32   `json:"base_price_cents"`
}
