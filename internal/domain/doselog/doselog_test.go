package doselog_test

import (
	"context"
	"testing"
	"time"

	"github.com/carelog/go-dpe/internal/domain/doselog"
	"github.com/carelog/go-dpe/internal/domain/medication"
	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/infrastructure/memory"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setup(t *testing.T) (*doselog.Recorder, *memory.DoseLogStore, medication.Medication) {
	t.Helper()
	patterns := memory.NewPatternStore()
	meds := memory.NewMedicationStore()
	logs := memory.NewDoseLogStore()

	med := medication.Medication{
		Name:   "prednisone",
		Units:  "mg",
		Dosing: medication.Dosing{Kind: medication.DosingPattern},
	}
	if err := meds.Create(context.Background(), &med); err != nil {
		t.Fatalf("create medication: %v", err)
	}

	p := pattern.Pattern{
		MedicationID: med.ID,
		Sequence:     []float64{4, 4, 3, 4, 3, 3},
		StartDate:    day(2025, time.November, 4),
	}
	if err := patterns.Create(context.Background(), &p, pattern.CreateOptions{}); err != nil {
		t.Fatalf("create pattern: %v", err)
	}

	resolver := pattern.NewResolver(patterns, nil)
	tracker := pattern.NewTracker(resolver, meds)
	return doselog.NewRecorder(tracker, logs, nil), logs, med
}

func TestRecordPersistsReconciledEntry(t *testing.T) {
	recorder, logs, med := setup(t)

	e, err := recorder.Record(context.Background(), doselog.RecordInput{
		MedicationID: med.ID,
		LogDate:      day(2025, time.November, 6), // day 3, dose 3
		ActualDose:   3.5,
		Notes:        "took with food",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.ID == "" {
		t.Error("entry ID not assigned")
	}
	if e.ExpectedDose != 3 || e.PatternDay != 3 {
		t.Errorf("expected/day = %v/%d, want 3/3", e.ExpectedDose, e.PatternDay)
	}
	if !e.HasVariance || e.VarianceAmount != 0.5 {
		t.Errorf("variance = %v/%v, want flagged with 0.5", e.HasVariance, e.VarianceAmount)
	}
	if e.Notes != "took with food" {
		t.Errorf("notes = %q", e.Notes)
	}
	if e.RecordedAt.IsZero() {
		t.Error("RecordedAt not set")
	}

	stored, err := logs.ListByMedication(context.Background(), med.ID,
		day(2025, time.November, 1), day(2025, time.November, 30))
	if err != nil {
		t.Fatalf("ListByMedication: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != e.ID {
		t.Fatalf("stored entries = %+v, want the recorded one", stored)
	}
}

func TestRecordUnknownMedication(t *testing.T) {
	recorder, _, _ := setup(t)

	_, err := recorder.Record(context.Background(), doselog.RecordInput{
		MedicationID: "missing",
		LogDate:      day(2025, time.November, 6),
		ActualDose:   3,
	})
	if err == nil {
		t.Fatal("expected error for unknown medication")
	}
}

func TestListByMedicationWindow(t *testing.T) {
	recorder, logs, med := setup(t)

	for _, d := range []int{4, 6, 10} {
		_, err := recorder.Record(context.Background(), doselog.RecordInput{
			MedicationID: med.ID,
			LogDate:      day(2025, time.November, d),
			ActualDose:   3,
		})
		if err != nil {
			t.Fatalf("Record day %d: %v", d, err)
		}
	}

	// Window bounds are inclusive.
	got, err := logs.ListByMedication(context.Background(), med.ID,
		day(2025, time.November, 6), day(2025, time.November, 10))
	if err != nil {
		t.Fatalf("ListByMedication: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
}
