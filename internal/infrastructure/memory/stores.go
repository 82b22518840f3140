// Package memory provides in-memory store implementations for tests and
// local development. Semantics mirror the postgres implementations,
// including overlap enforcement and per-medication create serialization.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carelog/go-dpe/internal/domain/doselog"
	"github.com/carelog/go-dpe/internal/domain/medication"
	"github.com/carelog/go-dpe/internal/domain/pattern"
)

// PatternStore is an in-memory pattern.Store.
type PatternStore struct {
	mu   sync.Mutex
	byID map[string]pattern.Pattern
	now  func() time.Time
}

// NewPatternStore creates an empty pattern store.
func NewPatternStore() *PatternStore {
	return &PatternStore{byID: make(map[string]pattern.Pattern), now: time.Now}
}

// SetClock overrides the store clock; tests use it for deterministic
// created-at ordering.
func (s *PatternStore) SetClock(now func() time.Time) { s.now = now }

// Create persists p, enforcing the non-overlap invariant under the store
// mutex. The mutex serializes validate-then-insert per store, the in-memory
// equivalent of the postgres advisory lock.
func (s *PatternStore) Create(ctx context.Context, p *pattern.Pattern, opts pattern.CreateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.StartDate = pattern.MidnightUTC(p.StartDate)
	if p.EndDate != nil {
		e := pattern.MidnightUTC(*p.EndDate)
		p.EndDate = &e
	}

	var conflicts []pattern.Pattern
	for _, existing := range s.byID {
		if existing.MedicationID == p.MedicationID && existing.Overlaps(*p) {
			conflicts = append(conflicts, existing)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].CreatedAt.After(conflicts[j].CreatedAt)
	})

	if len(conflicts) > 0 {
		// Auto-close applies only to a single open-ended predecessor that
		// starts before the new pattern; anything else is an unresolvable
		// conflict, rejected before any mutation.
		c := conflicts[0]
		if !opts.ClosePrevious || len(conflicts) > 1 || !c.Active() || !c.StartDate.Before(p.StartDate) {
			return &pattern.OverlapError{
				MedicationID: p.MedicationID,
				ConflictID:   c.ID,
				Start:        p.StartDate,
			}
		}
		end := pattern.AddDays(p.StartDate, -1)
		c.EndDate = &end
		c.UpdatedAt = now
		s.byID[c.ID] = c
	}

	s.byID[p.ID] = *p
	return nil
}

// GetByID returns a pattern by id.
func (s *PatternStore) GetByID(ctx context.Context, id string) (pattern.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return pattern.Pattern{}, pattern.ErrNotFound
	}
	return p, nil
}

// ActiveOn returns every pattern containing date.
func (s *PatternStore) ActiveOn(ctx context.Context, medicationID string, date time.Time) ([]pattern.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pattern.Pattern
	for _, p := range s.byID {
		if p.MedicationID == medicationID && p.ContainsDate(date) {
			out = append(out, p)
		}
	}
	return out, nil
}

// InRange returns patterns intersecting [start, end], start date ascending.
func (s *PatternStore) InRange(ctx context.Context, medicationID string, start, end time.Time) ([]pattern.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	probe := pattern.Pattern{StartDate: start, EndDate: &end}
	var out []pattern.Pattern
	for _, p := range s.byID {
		if p.MedicationID == medicationID && p.Overlaps(probe) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// ListByMedication returns the temporal history newest-first.
func (s *PatternStore) ListByMedication(ctx context.Context, medicationID string, activeOnly bool, limit, offset int) ([]pattern.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pattern.Pattern
	for _, p := range s.byID {
		if p.MedicationID != medicationID {
			continue
		}
		if activeOnly && !p.Active() {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Corrupt force-inserts a pattern without overlap checks. Test hook for
// exercising the resolver's integrity fault path.
func (s *PatternStore) Corrupt(p pattern.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.byID[p.ID] = p
}

// MedicationStore is an in-memory medication.Store.
type MedicationStore struct {
	mu   sync.Mutex
	byID map[string]medication.Medication
}

// NewMedicationStore creates an empty medication store.
func NewMedicationStore() *MedicationStore {
	return &MedicationStore{byID: make(map[string]medication.Medication)}
}

// Create persists m.
func (s *MedicationStore) Create(ctx context.Context, m *medication.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Schedule == "" {
		m.Schedule = medication.RuleDaily
	}
	if m.Dosing.Kind == "" {
		m.Dosing.Kind = medication.DosingPattern
	}
	s.byID[m.ID] = *m
	return nil
}

// GetByID returns a medication by id.
func (s *MedicationStore) GetByID(ctx context.Context, id string) (medication.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return medication.Medication{}, medication.ErrNotFound
	}
	return m, nil
}

// DoseLogStore is an in-memory doselog.Store.
type DoseLogStore struct {
	mu      sync.Mutex
	entries []doselog.Entry
}

// NewDoseLogStore creates an empty dose log store.
func NewDoseLogStore() *DoseLogStore {
	return &DoseLogStore{}
}

// Insert appends e.
func (s *DoseLogStore) Insert(ctx context.Context, e *doselog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	s.entries = append(s.entries, *e)
	return nil
}

// ListByMedication returns entries within [from, to] inclusive.
func (s *DoseLogStore) ListByMedication(ctx context.Context, medicationID string, from, to time.Time) ([]doselog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []doselog.Entry
	for _, e := range s.entries {
		if e.MedicationID != medicationID {
			continue
		}
		if e.LogDate.Before(pattern.MidnightUTC(from)) || e.LogDate.After(pattern.MidnightUTC(to)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
