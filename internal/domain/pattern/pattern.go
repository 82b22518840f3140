// Package pattern implements temporal dosage pattern resolution: versioned
// repeating dose sequences, cyclic dose calculation, schedule generation and
// dose-log reconciliation against the historically active pattern.
package pattern

import "time"

// Pattern is a repeating dose sequence effective over a date interval.
// An open-ended pattern (EndDate nil) is the medication's active pattern.
// Closed patterns are terminal and retained forever for audit; revisions
// are modeled as close-old/open-new, never in-place mutation.
type Pattern struct {
	ID           string
	MedicationID string
	Sequence     []float64
	StartDate    time.Time
	EndDate      *time.Time
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Length returns the cycle length in scheduled days.
func (p Pattern) Length() int { return len(p.Sequence) }

// Active reports whether the pattern is open-ended.
func (p Pattern) Active() bool { return p.EndDate == nil }

// AverageDose returns the mean dose over one full cycle.
func (p Pattern) AverageDose() float64 {
	if len(p.Sequence) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.Sequence {
		sum += v
	}
	return sum / float64(len(p.Sequence))
}

// ContainsDate reports whether date falls inside the validity interval.
// Both bounds are inclusive; an open-ended pattern covers every date from
// StartDate forward.
func (p Pattern) ContainsDate(date time.Time) bool {
	d := MidnightUTC(date)
	if d.Before(MidnightUTC(p.StartDate)) {
		return false
	}
	if p.EndDate == nil {
		return true
	}
	return !d.After(MidnightUTC(*p.EndDate))
}

// Overlaps reports whether two validity intervals intersect.
func (p Pattern) Overlaps(other Pattern) bool {
	if p.EndDate != nil && MidnightUTC(*p.EndDate).Before(MidnightUTC(other.StartDate)) {
		return false
	}
	if other.EndDate != nil && MidnightUTC(*other.EndDate).Before(MidnightUTC(p.StartDate)) {
		return false
	}
	return true
}
