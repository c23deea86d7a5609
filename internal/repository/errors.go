// Package repository persists seat maps in MySQL.  The in-memory
// inventory stays authoritative; every committed transition is written
// through here inside the screening's critical section, and the
// tables are read back once at startup to recover state.
package repository

import "errors"

// ErrConflict is returned when a seat row no longer carries the
// version a transition was derived from.  The whole transaction is
// rolled back.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a screening row does not exist.
var ErrNotFound = errors.New("not found")
