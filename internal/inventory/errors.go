package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the inventory components.  Handlers map
// them onto HTTP status codes; expected contention is never reported
// through these values but through *ConflictError.
var (
	ErrScreeningNotFound = errors.New("screening not found")
	ErrScreeningExists   = errors.New("screening already exists")
	ErrScreeningClosed   = errors.New("screening closed for sale")
	ErrSeatNotFound      = errors.New("seat not found")
	ErrVersionConflict   = errors.New("seat version conflict")
	ErrHoldNotFound      = errors.New("hold not found")
	ErrHoldExpired       = errors.New("hold expired")
	ErrNotOwner          = errors.New("not the owner of this hold")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrStoreUnavailable  = errors.New("seat store unavailable")

	ErrSeatConflict          = errors.New("seats unavailable")
	ErrAdminOverrideConflict = errors.New("seats already claimed")
)

// ConflictError names the exact seats lost to a competitor.  Admin
// reports an attempt by an administrator to lock claimed seats.
type ConflictError struct {
	Seats []string
	Admin bool
}

func (e *ConflictError) Error() string {
	if e.Admin {
		return fmt.Sprintf("%s: %s", ErrAdminOverrideConflict, strings.Join(e.Seats, ","))
	}
	return fmt.Sprintf("%s: %s", ErrSeatConflict, strings.Join(e.Seats, ","))
}

// Is matches ErrSeatConflict for every conflict and
// ErrAdminOverrideConflict for admin ones.
func (e *ConflictError) Is(target error) bool {
	switch target {
	case ErrSeatConflict:
		return true
	case ErrAdminOverrideConflict:
		return e.Admin
	}
	return false
}

// ConflictSeats extracts the conflicting seat ids from err, if any.
func ConflictSeats(err error) ([]string, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Seats, true
	}
	return nil, false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
