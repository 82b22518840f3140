package pattern

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Resolver answers temporal point queries: which pattern governs a
// medication on a given date. It is the single source of temporal truth for
// every read path (single-date lookup, schedule generation, reconciliation).
type Resolver struct {
	store   Store
	logger  *zap.Logger
	onFault func() // integrity fault hook, typically a metrics counter
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// OnIntegrityFault registers a hook invoked whenever the resolver detects a
// violated non-overlap invariant.
func (r *Resolver) OnIntegrityFault(fn func()) { r.onFault = fn }

// ActiveOn returns the single pattern active on date, ErrNoPattern when none
// applies (the medication uses a fixed dose), or an *IntegrityFault when the
// committed data violates the non-overlap invariant.
func (r *Resolver) ActiveOn(ctx context.Context, medicationID string, date time.Time) (Pattern, error) {
	matches, err := r.store.ActiveOn(ctx, medicationID, date)
	if err != nil {
		return Pattern{}, err
	}
	return r.pick(medicationID, date, matches)
}

// PickActive selects the pattern governing date from a prefetched candidate
// set, applying the same defensive semantics as ActiveOn. The schedule
// generator uses it to resolve each day of a window without re-querying.
func (r *Resolver) PickActive(medicationID string, date time.Time, candidates []Pattern) (Pattern, error) {
	var matches []Pattern
	for _, p := range candidates {
		if p.ContainsDate(date) {
			matches = append(matches, p)
		}
	}
	return r.pick(medicationID, date, matches)
}

func (r *Resolver) pick(medicationID string, date time.Time, matches []Pattern) (Pattern, error) {
	switch len(matches) {
	case 0:
		return Pattern{}, ErrNoPattern
	case 1:
		return matches[0], nil
	}

	// The overlap invariant is enforced at write time; landing here means a
	// constraint-enforcement bug upstream. Report it loudly instead of
	// silently picking a record and hiding the fault from operators.
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	ids := make([]string, len(matches))
	for i, p := range matches {
		ids[i] = p.ID
	}

	fault := &IntegrityFault{
		MedicationID: medicationID,
		Date:         MidnightUTC(date),
		PatternIDs:   ids,
		Preferred:    matches[0],
	}
	r.logger.Error("pattern overlap integrity fault",
		zap.String("medication_id", medicationID),
		zap.String("date", FormatDate(date)),
		zap.Strings("pattern_ids", ids),
		zap.String("preferred_pattern_id", matches[0].ID),
	)
	if r.onFault != nil {
		r.onFault()
	}
	return Pattern{}, fault
}
