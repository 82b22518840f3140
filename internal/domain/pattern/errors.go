package pattern

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoPattern indicates no pattern is active for the requested date. For
// fixed-dose medications this is an expected outcome, not a failure; callers
// must handle it as a legitimate alternative.
var ErrNoPattern = errors.New("no pattern active on requested date")

// ErrNotFound indicates the requested pattern record does not exist.
var ErrNotFound = errors.New("pattern not found")

// ErrWindowBounds indicates a schedule request outside the allowed window
// size. Callers treat it as invalid input, not a store failure.
var ErrWindowBounds = errors.New("schedule window out of bounds")

// OverlapError is returned when a new pattern's validity interval intersects
// an existing one and the caller did not request auto-close.
type OverlapError struct {
	MedicationID string
	ConflictID   string
	Start        time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("pattern starting %s overlaps existing pattern %s for medication %s",
		FormatDate(e.Start), e.ConflictID, e.MedicationID)
}

// IntegrityFault indicates the resolver found more than one pattern active
// on a single date. The non-overlap invariant is enforced at write time, so
// this is a constraint-enforcement bug upstream, not a user error. It is
// logged with full context and surfaced as a generic failure, never as a
// normal no-data response.
type IntegrityFault struct {
	MedicationID string
	Date         time.Time
	PatternIDs   []string
	// Preferred is the most recently created of the conflicting records,
	// retained for operator forensics.
	Preferred Pattern
}

func (e *IntegrityFault) Error() string {
	return fmt.Sprintf("integrity fault: %d patterns active for medication %s on %s",
		len(e.PatternIDs), e.MedicationID, FormatDate(e.Date))
}
