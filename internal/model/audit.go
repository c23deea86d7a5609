package model

import "time"

// AuditAction names an administrative seat operation.
type AuditAction string

const (
	AuditLock           AuditAction = "LOCK"
	AuditUnlock         AuditAction = "UNLOCK"
	AuditForceRelease   AuditAction = "FORCE_RELEASE"
	AuditReleaseBooking AuditAction = "RELEASE_BOOKING"
)

// AuditOutcome records whether the audited call changed any state.
type AuditOutcome string

const (
	AuditApplied  AuditOutcome = "APPLIED"
	AuditConflict AuditOutcome = "CONFLICT"
)

// AuditEntry is one row of the seat_audit table.  Every admin call is
// recorded, whether it was applied or rejected.
type AuditEntry struct {
	ID          string       `json:"id"`
	ScreeningID string       `json:"screening_id"`
	Action      AuditAction  `json:"action"`
	Actor       string       `json:"actor"`
	Reason      string       `json:"reason,omitempty"`
	SeatIDs     []string     `json:"seat_ids"`
	Outcome     AuditOutcome `json:"outcome"`
	Conflicts   []string     `json:"conflicts,omitempty"`
	At          time.Time    `json:"at"`
}
