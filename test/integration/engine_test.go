// Package integration provides end-to-end tests for the dosage pattern engine.
package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carelog/go-dpe/internal/domain/doselog"
	"github.com/carelog/go-dpe/internal/domain/medication"
	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/infrastructure/memory"
)

type engine struct {
	patterns  *memory.PatternStore
	meds      *memory.MedicationStore
	logs      *memory.DoseLogStore
	resolver  *pattern.Resolver
	generator *pattern.Generator
	recorder  *doselog.Recorder
}

func newEngine() *engine {
	patterns := memory.NewPatternStore()
	meds := memory.NewMedicationStore()
	logs := memory.NewDoseLogStore()
	resolver := pattern.NewResolver(patterns, nil)
	tracker := pattern.NewTracker(resolver, meds)
	return &engine{
		patterns:  patterns,
		meds:      meds,
		logs:      logs,
		resolver:  resolver,
		generator: pattern.NewGenerator(resolver, meds),
		recorder:  doselog.NewRecorder(tracker, logs, nil),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestTaperLifecycle walks a prednisone taper through its full life: create,
// log doses against it, supersede it mid-cycle, then verify that schedules
// span the boundary and that historical reconciliation still answers from
// the superseded pattern.
func TestTaperLifecycle(t *testing.T) {
	ctx := context.Background()
	eng := newEngine()

	med := medication.Medication{
		Name:        "prednisone",
		Units:       "mg",
		SafetyClass: "corticosteroid",
		Dosing:      medication.Dosing{Kind: medication.DosingPattern},
	}
	if err := eng.meds.Create(ctx, &med); err != nil {
		t.Fatalf("create medication: %v", err)
	}

	taper := pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{4, 4, 3, 4, 3, 3},
		StartDate:    date(2025, time.November, 4),
		Notes:        "initial taper",
	}
	if err := eng.patterns.Create(ctx, &taper, pattern.CreateOptions{}); err != nil {
		t.Fatalf("create taper: %v", err)
	}

	// Log a compliant dose and a deviating one while the taper is active.
	compliant, err := eng.recorder.Record(ctx, doselog.RecordInput{
		MedicationID: med.ID,
		LogDate:      date(2025, time.November, 4),
		ActualDose:   4,
	})
	if err != nil {
		t.Fatalf("record compliant dose: %v", err)
	}
	if compliant.HasVariance {
		t.Error("compliant dose flagged as variance")
	}

	deviating, err := eng.recorder.Record(ctx, doselog.RecordInput{
		MedicationID: med.ID,
		LogDate:      date(2025, time.November, 6),
		ActualDose:   4, // schedule says 3 on day 3
	})
	if err != nil {
		t.Fatalf("record deviating dose: %v", err)
	}
	if !deviating.HasVariance || deviating.VarianceAmount != 1 {
		t.Errorf("deviation = %+v, want variance of 1", deviating)
	}

	// A conflicting revision without supersede must be rejected.
	revised := pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{2, 2, 1},
		StartDate:    date(2025, time.November, 9),
		Notes:        "reduced taper",
	}
	err = eng.patterns.Create(ctx, &revised, pattern.CreateOptions{})
	var overlap *pattern.OverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("overlapping create: got %v, want OverlapError", err)
	}

	revised.ID = ""
	if err := eng.patterns.Create(ctx, &revised, pattern.CreateOptions{ClosePrevious: true}); err != nil {
		t.Fatalf("supersede: %v", err)
	}

	// The old pattern is closed the day before the new one starts.
	closed, err := eng.patterns.GetByID(ctx, taper.ID)
	if err != nil {
		t.Fatalf("get closed pattern: %v", err)
	}
	if closed.EndDate == nil || !closed.EndDate.Equal(date(2025, time.November, 8)) {
		t.Fatalf("closed end date = %v, want 2025-11-08", closed.EndDate)
	}

	// Resolution on either side of the boundary.
	before, err := eng.resolver.ActiveOn(ctx, med.ID, date(2025, time.November, 8))
	if err != nil || before.ID != taper.ID {
		t.Errorf("day before boundary resolved %v (%v), want original taper", before.ID, err)
	}
	after, err := eng.resolver.ActiveOn(ctx, med.ID, date(2025, time.November, 9))
	if err != nil || after.ID != revised.ID {
		t.Errorf("boundary day resolved %v (%v), want revised taper", after.ID, err)
	}

	// A schedule window over the boundary carries both patterns.
	sched, err := eng.generator.Generate(ctx, med.ID, date(2025, time.November, 4), 14)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sched.Summary.PatternChanges != 1 {
		t.Errorf("pattern changes = %d, want 1", sched.Summary.PatternChanges)
	}
	if sched.Summary.TotalDose != 33 {
		t.Errorf("total dose = %v, want 33", sched.Summary.TotalDose)
	}

	// Reconciliation of the pre-supersede log still resolves the original
	// taper: revising forward never rewrites recorded history.
	relogged, err := eng.recorder.Record(ctx, doselog.RecordInput{
		MedicationID: med.ID,
		LogDate:      date(2025, time.November, 6),
		ActualDose:   3,
	})
	if err != nil {
		t.Fatalf("record historical dose: %v", err)
	}
	if relogged.PatternID != taper.ID {
		t.Errorf("historical log reconciled against %s, want %s", relogged.PatternID, taper.ID)
	}
	if relogged.ExpectedDose != 3 || relogged.HasVariance {
		t.Errorf("historical reconciliation = %+v, want expected 3 without variance", relogged)
	}

	logs, err := eng.logs.ListByMedication(ctx, med.ID, date(2025, time.November, 1), date(2025, time.November, 30))
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 3 {
		t.Errorf("stored logs = %d, want 3", len(logs))
	}
}

// TestFixedDoseMedicationLifecycle covers the degenerate engine path: no
// patterns exist and every resolution legitimately falls back to the fixed
// dose.
func TestFixedDoseMedicationLifecycle(t *testing.T) {
	ctx := context.Background()
	eng := newEngine()

	med := medication.Medication{
		Name:   "lisinopril",
		Units:  "mg",
		Dosing: medication.Dosing{Kind: medication.DosingFixed, FixedDose: 10},
	}
	if err := eng.meds.Create(ctx, &med); err != nil {
		t.Fatalf("create medication: %v", err)
	}

	if _, err := eng.resolver.ActiveOn(ctx, med.ID, date(2025, time.November, 4)); !errors.Is(err, pattern.ErrNoPattern) {
		t.Fatalf("got %v, want ErrNoPattern", err)
	}

	entry, err := eng.recorder.Record(ctx, doselog.RecordInput{
		MedicationID: med.ID,
		LogDate:      date(2025, time.November, 4),
		ActualDose:   10,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !entry.FixedDose || entry.ExpectedDose != 10 || entry.HasVariance {
		t.Errorf("entry = %+v, want fixed-dose expectation of 10", entry)
	}

	sched, err := eng.generator.Generate(ctx, med.ID, date(2025, time.November, 4), 7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i, e := range sched.Entries {
		if e.Source != pattern.SourceFixed || e.Dose != 10 {
			t.Errorf("entry %d = %v %s, want fixed 10", i, e.Dose, e.Source)
		}
	}
}
