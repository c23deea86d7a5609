package model

// SeatWrite is a single seat update inside a Transition.  PrevVersion
// is the version the new state was derived from; persistence layers
// must refuse the write when the stored version differs.
type SeatWrite struct {
	State       SeatState
	PrevVersion uint64
}

// Transition is the unit of durable write emitted by the seat map
// store.  Every field is applied atomically: either the whole
// transition is stored or none of it.
type Transition struct {
	ScreeningID string
	Seats       []SeatWrite
	SeatRemain  int

	// Optional side records.
	PutHold    *Hold
	DeleteHold string
	PutBooking *Booking
	Audit      *AuditEntry

	// Retire marks the screening RETIRED.
	Retire bool
}

// Empty reports whether the transition carries nothing to store.
func (t Transition) Empty() bool {
	return len(t.Seats) == 0 && t.PutHold == nil && t.DeleteHold == "" &&
		t.PutBooking == nil && t.Audit == nil && !t.Retire
}
