package pattern_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/infrastructure/memory"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolverNoPattern(t *testing.T) {
	store := memory.NewPatternStore()
	r := pattern.NewResolver(store, nil)

	_, err := r.ActiveOn(context.Background(), "med-1", day(2025, time.November, 4))
	if !errors.Is(err, pattern.ErrNoPattern) {
		t.Fatalf("expected ErrNoPattern, got %v", err)
	}
}

func TestResolverSingleActivePattern(t *testing.T) {
	store := memory.NewPatternStore()
	r := pattern.NewResolver(store, nil)

	p := pattern.Pattern{
		MedicationID: "med-1",
		Sequence:     []float64{4, 3},
		StartDate:    day(2025, time.November, 4),
	}
	if err := store.Create(context.Background(), &p, pattern.CreateOptions{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.ActiveOn(context.Background(), "med-1", day(2025, time.December, 1))
	if err != nil {
		t.Fatalf("ActiveOn: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("resolved pattern %s, want %s", got.ID, p.ID)
	}

	// Date before the pattern starts resolves to nothing.
	_, err = r.ActiveOn(context.Background(), "med-1", day(2025, time.November, 3))
	if !errors.Is(err, pattern.ErrNoPattern) {
		t.Errorf("expected ErrNoPattern before start, got %v", err)
	}
}

func TestResolverIntegrityFault(t *testing.T) {
	store := memory.NewPatternStore()
	r := pattern.NewResolver(store, nil)

	faults := 0
	r.OnIntegrityFault(func() { faults++ })

	// Force two overlapping open-ended patterns past the store's checks.
	older := pattern.Pattern{
		ID:           "p-older",
		MedicationID: "med-1",
		Sequence:     []float64{4},
		StartDate:    day(2025, time.November, 1),
		CreatedAt:    day(2025, time.November, 1),
	}
	newer := pattern.Pattern{
		ID:           "p-newer",
		MedicationID: "med-1",
		Sequence:     []float64{2},
		StartDate:    day(2025, time.November, 3),
		CreatedAt:    day(2025, time.November, 3),
	}
	store.Corrupt(older)
	store.Corrupt(newer)

	_, err := r.ActiveOn(context.Background(), "med-1", day(2025, time.November, 5))
	var fault *pattern.IntegrityFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected IntegrityFault, got %v", err)
	}
	if errors.Is(err, pattern.ErrNoPattern) {
		t.Error("integrity fault must not masquerade as a no-data outcome")
	}
	if len(fault.PatternIDs) != 2 {
		t.Errorf("fault lists %d patterns, want 2", len(fault.PatternIDs))
	}
	if fault.Preferred.ID != "p-newer" {
		t.Errorf("preferred pattern %s, want most recently created p-newer", fault.Preferred.ID)
	}
	if faults != 1 {
		t.Errorf("fault hook fired %d times, want 1", faults)
	}
}

func TestResolverPickActiveFromWindow(t *testing.T) {
	store := memory.NewPatternStore()
	r := pattern.NewResolver(store, nil)

	end := day(2025, time.November, 8)
	window := []pattern.Pattern{
		{ID: "p-a", MedicationID: "med-1", Sequence: []float64{4}, StartDate: day(2025, time.November, 1), EndDate: &end},
		{ID: "p-b", MedicationID: "med-1", Sequence: []float64{2}, StartDate: day(2025, time.November, 9)},
	}

	got, err := r.PickActive("med-1", day(2025, time.November, 8), window)
	if err != nil {
		t.Fatalf("PickActive: %v", err)
	}
	if got.ID != "p-a" {
		t.Errorf("picked %s, want p-a (end date inclusive)", got.ID)
	}

	got, err = r.PickActive("med-1", day(2025, time.November, 9), window)
	if err != nil {
		t.Fatalf("PickActive: %v", err)
	}
	if got.ID != "p-b" {
		t.Errorf("picked %s, want p-b", got.ID)
	}
}

func TestStoreOverlapEnforcement(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPatternStore()

	first := pattern.Pattern{
		MedicationID: "med-1",
		Sequence:     []float64{4, 3},
		StartDate:    day(2025, time.November, 4),
	}
	if err := store.Create(ctx, &first, pattern.CreateOptions{}); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := pattern.Pattern{
		MedicationID: "med-1",
		Sequence:     []float64{2},
		StartDate:    day(2025, time.November, 10),
	}
	err := store.Create(ctx, &second, pattern.CreateOptions{})
	var overlap *pattern.OverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("expected OverlapError, got %v", err)
	}

	// With ClosePrevious the predecessor is closed the day before.
	if err := store.Create(ctx, &second, pattern.CreateOptions{ClosePrevious: true}); err != nil {
		t.Fatalf("create with close: %v", err)
	}
	closed, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if closed.EndDate == nil || !closed.EndDate.Equal(day(2025, time.November, 9)) {
		t.Errorf("predecessor end date = %v, want 2025-11-09", closed.EndDate)
	}

	// Different medication never conflicts.
	other := pattern.Pattern{
		MedicationID: "med-2",
		Sequence:     []float64{1},
		StartDate:    day(2025, time.November, 4),
	}
	if err := store.Create(ctx, &other, pattern.CreateOptions{}); err != nil {
		t.Errorf("cross-medication create: %v", err)
	}
}
