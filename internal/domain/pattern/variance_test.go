package pattern_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/carelog/go-dpe/internal/domain/medication"
	"github.com/carelog/go-dpe/internal/domain/pattern"
)

func TestReconcileToleranceBoundary(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:   "prednisone",
		Units:  "mg",
		Dosing: medication.Dosing{Kind: medication.DosingPattern},
	})
	start := day(2025, time.November, 4)
	f.addPattern(t, pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{4, 4, 3, 4, 3, 3},
		StartDate:    start,
	}, false)

	// Expected dose on the start date is 4. Within tolerance.
	rec, err := f.tracker.Reconcile(context.Background(), med.ID, start, 4.01)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec.HasVariance {
		t.Errorf("4.01 vs 4 flagged, want within tolerance")
	}

	// Just beyond tolerance.
	rec, err = f.tracker.Reconcile(context.Background(), med.ID, start, 4.02)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !rec.HasVariance {
		t.Errorf("4.02 vs 4 not flagged, want variance")
	}
	if math.Abs(rec.VarianceAmount-0.02) > 1e-9 {
		t.Errorf("amount = %v, want 0.02", rec.VarianceAmount)
	}
}

func TestReconcileVariancePercentage(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:   "warfarin",
		Units:  "mg",
		Dosing: medication.Dosing{Kind: medication.DosingPattern},
	})
	start := day(2025, time.November, 4)
	f.addPattern(t, pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{4},
		StartDate:    start,
	}, false)

	rec, err := f.tracker.Reconcile(context.Background(), med.ID, start, 5)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if math.Abs(rec.VariancePercentage-0.25) > 1e-9 {
		t.Errorf("percentage = %v, want 0.25", rec.VariancePercentage)
	}
	if rec.PatternDay != 1 {
		t.Errorf("pattern day = %d, want 1", rec.PatternDay)
	}
}

func TestReconcileHistoricalPatternSurvivesSupersede(t *testing.T) {
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

	logDate := day(2025, time.November, 7) // day 4 of A, dose 4
	before, err := f.tracker.Reconcile(context.Background(), med.ID, logDate, 4)
	if err != nil {
		t.Fatalf("Reconcile before supersede: %v", err)
	}

	// Supersede A with a new pattern starting after the log date.
	f.addPattern(t, pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{2, 2, 1},
		StartDate:    day(2025, time.November, 9),
	}, true)

	after, err := f.tracker.Reconcile(context.Background(), med.ID, logDate, 4)
	if err != nil {
		t.Fatalf("Reconcile after supersede: %v", err)
	}
	if after.PatternID != a.ID {
		t.Errorf("resolved %s, want superseded pattern %s", after.PatternID, a.ID)
	}
	if after.ExpectedDose != before.ExpectedDose || after.PatternDay != before.PatternDay {
		t.Errorf("expectation changed after supersede: %+v vs %+v", after, before)
	}
	if after.ExpectedDose != 4 || after.PatternDay != 4 {
		t.Errorf("expected 4 on day 4, got %v on day %d", after.ExpectedDose, after.PatternDay)
	}
}

func TestReconcileFixedDoseFallback(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:   "lisinopril",
		Units:  "mg",
		Dosing: medication.Dosing{Kind: medication.DosingFixed, FixedDose: 7.5},
	})

	rec, err := f.tracker.Reconcile(context.Background(), med.ID, day(2025, time.November, 4), 7.5)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !rec.FixedDose {
		t.Error("expected fixed-dose fallback")
	}
	if rec.ExpectedDose != 7.5 || rec.HasVariance {
		t.Errorf("got expected %v variance %v, want 7.5 and none", rec.ExpectedDose, rec.HasVariance)
	}
	if rec.PatternID != "" || rec.PatternDay != 0 {
		t.Errorf("fixed-dose reconciliation must not carry pattern fields: %+v", rec)
	}
}

func TestReconcileNonAdministrationDay(t *testing.T) {
	f := newFixture(t)
	med := f.addMedication(t, medication.Medication{
		Name:     "alendronate",
		Units:    "mg",
		Dosing:   medication.Dosing{Kind: medication.DosingPattern},
		Schedule: medication.RuleAlternateDay,
	})
	start := day(2025, time.November, 4)
	p := f.addPattern(t, pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{5, 10},
		StartDate:    start,
	}, false)

	// An odd day offset is a skip day; any intake is pure variance.
	rec, err := f.tracker.Reconcile(context.Background(), med.ID, day(2025, time.November, 5), 5)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec.ExpectedDose != 0 {
		t.Errorf("expected dose = %v, want 0 on a skip day", rec.ExpectedDose)
	}
	if rec.PatternID != p.ID {
		t.Errorf("skip-day reconciliation should still name the pattern, got %q", rec.PatternID)
	}
	if !rec.HasVariance || rec.VarianceAmount != 5 {
		t.Errorf("got variance %v/%v, want flagged with amount 5", rec.HasVariance, rec.VarianceAmount)
	}
	if rec.VariancePercentage != 0 {
		t.Errorf("percentage = %v, want 0 when expected is 0", rec.VariancePercentage)
	}

	// The second administration day maps to the second sequence value.
	rec, err = f.tracker.Reconcile(context.Background(), med.ID, day(2025, time.November, 6), 10)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec.ExpectedDose != 10 || rec.PatternDay != 2 || rec.HasVariance {
		t.Errorf("got %+v, want expected 10 day 2 no variance", rec)
	}
}
