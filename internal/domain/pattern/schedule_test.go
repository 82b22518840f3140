package pattern_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/carelog/go-dpe/internal/domain/medication"
	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/infrastructure/memory"
)

type fixture struct {
	patterns  *memory.PatternStore
	meds      *memory.MedicationStore
	generator *pattern.Generator
	resolver  *pattern.Resolver
	tracker   *pattern.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	patterns := memory.NewPatternStore()
	meds := memory.NewMedicationStore()
	resolver := pattern.NewResolver(patterns, nil)
	return &fixture{
		patterns:  patterns,
		meds:      meds,
		generator: pattern.NewGenerator(resolver, meds),
		resolver:  resolver,
		tracker:   pattern.NewTracker(resolver, meds),
	}
}

func (f *fixture) addMedication(t *testing.T, m medication.Medication) medication.Medication {
	t.Helper()
	if err := f.meds.Create(context.Background(), &m); err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return m
}

func (f *fixture) addPattern(t *testing.T, p pattern.Pattern, closePrev bool) pattern.Pattern {
	t.Helper()
	err := f.patterns.Create(context.Background(), &p, pattern.CreateOptions{ClosePrevious: closePrev})
	if err != nil {
		t.Fatalf("create pattern: %v", err)
	}
	return p
}

func TestGenerateAcrossPatternChange(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:   "prednisone",
		Units:  "mg",
		Dosing: medication.Dosing{Kind: medication.DosingPattern},
	})

	start := day(2025, time.November, 4)
	a := f.addPattern(t, pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{4, 4, 3, 4, 3, 3},
		StartDate:    start,
	}, false)
	b := f.addPattern(t, pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{2, 2, 1},
		StartDate:    day(2025, time.November, 9),
	}, true)

	sched, err := f.generator.Generate(context.Background(), med.ID, start, 14)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(sched.Entries) != 14 {
		t.Fatalf("got %d entries, want 14", len(sched.Entries))
	}

	// Days 0-4 under pattern A, days 5-13 under B.
	wantDoses := []float64{4, 4, 3, 4, 3, 2, 2, 1, 2, 2, 1, 2, 2, 1}
	for i, e := range sched.Entries {
		if e.Dose != wantDoses[i] {
			t.Errorf("entry %d dose = %v, want %v", i, e.Dose, wantDoses[i])
		}
		wantID := a.ID
		if i >= 5 {
			wantID = b.ID
		}
		if e.PatternID != wantID {
			t.Errorf("entry %d pattern = %s, want %s", i, e.PatternID, wantID)
		}
	}

	// Exactly one change boundary, at the first day of B. The new pattern
	// restarts at its own day 1.
	changes := 0
	for i, e := range sched.Entries {
		if e.IsPatternChange {
			changes++
			if i != 5 {
				t.Errorf("change flagged at entry %d, want 5", i)
			}
		}
	}
	if changes != 1 {
		t.Errorf("%d change flags, want 1", changes)
	}
	if sched.Entries[0].IsPatternChange {
		t.Error("first entry must never be flagged as a change")
	}
	if sched.Entries[5].PatternDay != 1 {
		t.Errorf("new pattern starts at day %d, want 1", sched.Entries[5].PatternDay)
	}

	s := sched.Summary
	if s.PatternChanges != 1 {
		t.Errorf("summary changes = %d, want 1", s.PatternChanges)
	}
	if s.TotalDose != 33 {
		t.Errorf("total dose = %v, want 33", s.TotalDose)
	}
	if s.MinDose != 1 || s.MaxDose != 4 {
		t.Errorf("min/max = %v/%v, want 1/4", s.MinDose, s.MaxDose)
	}
	if math.Abs(s.AverageDose-33.0/14.0) > 1e-9 {
		t.Errorf("average = %v, want %v", s.AverageDose, 33.0/14.0)
	}
	// 5 days of a 6-day cycle plus 9 days of a 3-day cycle.
	if math.Abs(s.Cycles-(5.0/6.0+3.0)) > 1e-9 {
		t.Errorf("cycles = %v, want %v", s.Cycles, 5.0/6.0+3.0)
	}
}

func TestGenerateFixedDoseMedication(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:   "lisinopril",
		Units:  "mg",
		Dosing: medication.Dosing{Kind: medication.DosingFixed, FixedDose: 10},
	})

	sched, err := f.generator.Generate(context.Background(), med.ID, day(2025, time.November, 4), 7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i, e := range sched.Entries {
		if e.Source != pattern.SourceFixed || e.Dose != 10 {
			t.Errorf("entry %d = %v source %s, want 10 fixed", i, e.Dose, e.Source)
		}
	}
	if sched.Summary.TotalDose != 70 {
		t.Errorf("total = %v, want 70", sched.Summary.TotalDose)
	}
}

func TestGeneratePatternGap(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:   "warfarin",
		Units:  "mg",
		Dosing: medication.Dosing{Kind: medication.DosingPattern},
	})

	// Pattern starts on the third day of the window; the gap is legitimate.
	f.addPattern(t, pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{5},
		StartDate:    day(2025, time.November, 6),
	}, false)

	sched, err := f.generator.Generate(context.Background(), med.ID, day(2025, time.November, 4), 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 2; i++ {
		if sched.Entries[i].Source != pattern.SourceNone || sched.Entries[i].Dose != 0 {
			t.Errorf("entry %d should be an empty gap day", i)
		}
	}
	for i := 2; i < 5; i++ {
		if sched.Entries[i].Source != pattern.SourcePattern {
			t.Errorf("entry %d should be pattern-sourced", i)
		}
	}
	if sched.Summary.TotalDose != 15 {
		t.Errorf("total = %v, want 15", sched.Summary.TotalDose)
	}
}

func TestGenerateAlternateDaySchedule(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:     "alendronate",
		Units:    "mg",
		Dosing:   medication.Dosing{Kind: medication.DosingPattern},
		Schedule: medication.RuleAlternateDay,
	})

	start := day(2025, time.November, 4)
	f.addPattern(t, pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{5, 10},
		StartDate:    start,
	}, false)

	sched, err := f.generator.Generate(context.Background(), med.ID, start, 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// The cycle advances only on administration days: 5, skip, 10, skip, 5.
	wantDoses := []float64{5, 0, 10, 0, 5}
	wantSources := []pattern.DoseSource{
		pattern.SourcePattern, pattern.SourceNone, pattern.SourcePattern,
		pattern.SourceNone, pattern.SourcePattern,
	}
	for i, e := range sched.Entries {
		if e.Dose != wantDoses[i] || e.Source != wantSources[i] {
			t.Errorf("entry %d = %v %s, want %v %s", i, e.Dose, e.Source, wantDoses[i], wantSources[i])
		}
	}
	if sched.Summary.TotalDose != 20 {
		t.Errorf("total = %v, want 20", sched.Summary.TotalDose)
	}
	// Average is over dosed days only.
	if math.Abs(sched.Summary.AverageDose-20.0/3.0) > 1e-9 {
		t.Errorf("average = %v, want %v", sched.Summary.AverageDose, 20.0/3.0)
	}
}

func TestGenerateWindowBounds(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:   "x",
		Dosing: medication.Dosing{Kind: medication.DosingPattern},
	})

	if _, err := f.generator.Generate(context.Background(), med.ID, day(2025, time.November, 4), 0); !errors.Is(err, pattern.ErrWindowBounds) {
		t.Errorf("zero days: got %v, want ErrWindowBounds", err)
	}
	if _, err := f.generator.Generate(context.Background(), med.ID, day(2025, time.November, 4), pattern.MaxScheduleDays+1); !errors.Is(err, pattern.ErrWindowBounds) {
		t.Errorf("oversized window: got %v, want ErrWindowBounds", err)
	}
	if _, err := f.generator.Generate(context.Background(), "missing", day(2025, time.November, 4), 7); err == nil {
		t.Error("expected error for unknown medication")
	}
}
