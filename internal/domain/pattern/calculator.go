package pattern

import (
	"fmt"
	"time"
)

// Dose is the expected dose for a single scheduled day.
type Dose struct {
	Amount     float64
	PatternDay int // 1-based position within the cycle
}

// DoseForDate computes the expected dose on a calendar date for a daily
// administration frequency. The date must not precede the pattern's start;
// a negative day count is a caller contract violation.
//
// The computation is pure integer arithmetic over whole-day counts, O(1)
// regardless of the distance from StartDate, so multi-year ranges including
// leap days are exact.
func DoseForDate(p Pattern, date time.Time) (Dose, error) {
	days := DaysBetween(p.StartDate, date)
	if days < 0 {
		return Dose{}, fmt.Errorf("date %s precedes pattern start %s",
			FormatDate(date), FormatDate(p.StartDate))
	}
	return DoseForIndex(p, days)
}

// DoseForIndex computes the expected dose for a 0-based scheduled-day index.
// Medications with non-daily frequencies advance the cycle only on scheduled
// administration days; callers derive the index from the frequency rule and
// the calculator stays frequency-agnostic. Index 0 is pattern day 1.
func DoseForIndex(p Pattern, scheduledDay int) (Dose, error) {
	if scheduledDay < 0 {
		return Dose{}, fmt.Errorf("scheduled day index must not be negative, got %d", scheduledDay)
	}
	n := p.Length()
	if n == 0 {
		return Dose{}, fmt.Errorf("pattern %s has an empty sequence", p.ID)
	}
	day := scheduledDay%n + 1
	return Dose{Amount: p.Sequence[day-1], PatternDay: day}, nil
}
