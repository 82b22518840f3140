package pattern

import (
	"context"
	"time"
)

// CreateOptions controls conflict handling during pattern creation.
type CreateOptions struct {
	// ClosePrevious atomically sets the prior active pattern's end date to
	// the day before the new pattern's start instead of rejecting the
	// overlap. Only an open-ended predecessor can be auto-closed.
	ClosePrevious bool
}

// Store is the persistence contract for dosage patterns. Implementations
// must serialize Create per medication (storage constraint or advisory lock)
// so that concurrent creates cannot both pass the overlap check; see the
// postgres implementation. Read methods are consistent snapshots of the
// committed pattern set and take no locks.
type Store interface {
	// Create persists a new pattern. Returns *OverlapError when the validity
	// interval intersects an existing pattern and opts.ClosePrevious is not
	// set (or the conflicting pattern is already closed).
	Create(ctx context.Context, p *Pattern, opts CreateOptions) error

	// GetByID returns a single pattern or ErrNotFound.
	GetByID(ctx context.Context, id string) (Pattern, error)

	// ActiveOn returns every pattern whose validity interval contains date.
	// The non-overlap invariant guarantees at most one element; more than
	// one indicates an upstream integrity fault which the resolver reports.
	ActiveOn(ctx context.Context, medicationID string, date time.Time) ([]Pattern, error)

	// InRange returns patterns whose validity intervals intersect
	// [start, end], ordered by start date ascending.
	InRange(ctx context.Context, medicationID string, start, end time.Time) ([]Pattern, error)

	// ListByMedication returns the temporal history newest-first.
	ListByMedication(ctx context.Context, medicationID string, activeOnly bool, limit, offset int) ([]Pattern, error)
}
