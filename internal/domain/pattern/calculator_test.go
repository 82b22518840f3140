package pattern

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func taperPattern() Pattern {
	return Pattern{
		ID:           "p-taper",
		MedicationID: "med-1",
		Sequence:     []float64{4, 4, 3, 4, 3, 3},
		StartDate:    date(2025, time.November, 4),
	}
}

func TestDoseForDateCyclesThroughSequence(t *testing.T) {
	p := taperPattern()

	cases := []struct {
		date     time.Time
		wantDose float64
		wantDay  int
	}{
		{date(2025, time.November, 4), 4, 1},
		{date(2025, time.November, 5), 4, 2},
		{date(2025, time.November, 6), 3, 3},
		{date(2025, time.November, 9), 3, 6},
		{date(2025, time.November, 10), 4, 1}, // cycle restarts
		{date(2025, time.November, 15), 3, 6},
		{date(2025, time.November, 16), 4, 1},
	}

	for _, tc := range cases {
		got, err := DoseForDate(p, tc.date)
		if err != nil {
			t.Fatalf("DoseForDate(%s): %v", FormatDate(tc.date), err)
		}
		if got.Amount != tc.wantDose || got.PatternDay != tc.wantDay {
			t.Errorf("DoseForDate(%s) = %v day %d, want %v day %d",
				FormatDate(tc.date), got.Amount, got.PatternDay, tc.wantDose, tc.wantDay)
		}
	}
}

func TestDoseForDateMultiYearLeapDay(t *testing.T) {
	p := taperPattern()

	// 2028-02-29 is 847 whole days after 2025-11-04, so pattern day 847%6+1 = 2.
	leap := date(2028, time.February, 29)
	if got := DaysBetween(p.StartDate, leap); got != 847 {
		t.Fatalf("DaysBetween to leap day = %d, want 847", got)
	}

	got, err := DoseForDate(p, leap)
	if err != nil {
		t.Fatalf("DoseForDate: %v", err)
	}
	if got.PatternDay != 2 || got.Amount != 4 {
		t.Errorf("leap day dose = %v day %d, want 4 day 2", got.Amount, got.PatternDay)
	}
}

func TestDoseForDateBeforeStart(t *testing.T) {
	p := taperPattern()
	if _, err := DoseForDate(p, date(2025, time.November, 3)); err == nil {
		t.Error("expected error for date before pattern start")
	}
}

func TestDoseForDateIgnoresTimeOfDay(t *testing.T) {
	p := taperPattern()
	late := time.Date(2025, time.November, 9, 23, 45, 0, 0, time.UTC)
	got, err := DoseForDate(p, late)
	if err != nil {
		t.Fatalf("DoseForDate: %v", err)
	}
	if got.PatternDay != 6 {
		t.Errorf("pattern day = %d, want 6", got.PatternDay)
	}
}

func TestDoseForIndex(t *testing.T) {
	p := taperPattern()

	got, err := DoseForIndex(p, 0)
	if err != nil {
		t.Fatalf("DoseForIndex(0): %v", err)
	}
	if got.PatternDay != 1 || got.Amount != 4 {
		t.Errorf("index 0 = %v day %d, want 4 day 1", got.Amount, got.PatternDay)
	}

	got, err = DoseForIndex(p, 6)
	if err != nil {
		t.Fatalf("DoseForIndex(6): %v", err)
	}
	if got.PatternDay != 1 {
		t.Errorf("index 6 wraps to day %d, want 1", got.PatternDay)
	}

	if _, err := DoseForIndex(p, -1); err == nil {
		t.Error("expected error for negative index")
	}

	empty := Pattern{ID: "p-empty"}
	if _, err := DoseForIndex(empty, 0); err == nil {
		t.Error("expected error for empty sequence")
	}
}

func TestDaysBetween(t *testing.T) {
	cases := []struct {
		a, b time.Time
		want int
	}{
		{date(2028, time.February, 28), date(2028, time.March, 1), 2},  // leap year
		{date(2027, time.February, 28), date(2027, time.March, 1), 1},  // non-leap
		{date(2025, time.November, 4), date(2025, time.November, 4), 0},
		{date(2025, time.November, 5), date(2025, time.November, 4), -1},
	}
	for _, tc := range cases {
		if got := DaysBetween(tc.a, tc.b); got != tc.want {
			t.Errorf("DaysBetween(%s, %s) = %d, want %d",
				FormatDate(tc.a), FormatDate(tc.b), got, tc.want)
		}
	}
}

func TestContainsDate(t *testing.T) {
	end := date(2025, time.November, 10)
	closed := Pattern{StartDate: date(2025, time.November, 4), EndDate: &end}

	if !closed.ContainsDate(date(2025, time.November, 4)) {
		t.Error("start date should be contained")
	}
	if !closed.ContainsDate(end) {
		t.Error("end date is inclusive")
	}
	if closed.ContainsDate(date(2025, time.November, 11)) {
		t.Error("day after end should not be contained")
	}

	open := Pattern{StartDate: date(2025, time.November, 4)}
	if !open.ContainsDate(date(2030, time.June, 1)) {
		t.Error("open-ended pattern covers all future dates")
	}
}
