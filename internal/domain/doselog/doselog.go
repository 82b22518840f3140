// Package doselog records actual dose intake and reconciles it against the
// dosage pattern engine before persistence.
package doselog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelog/go-dpe/internal/domain/pattern"
)

// ErrNotFound indicates the dose log entry does not exist.
var ErrNotFound = errors.New("dose log entry not found")

// Entry is a persisted dose log with engine-populated expectation fields.
type Entry struct {
	ID                 string
	MedicationID       string
	LogDate            time.Time
	ActualDose         float64
	ExpectedDose       float64
	PatternID          string
	PatternDay         int
	FixedDose          bool
	HasVariance        bool
	VarianceAmount     float64
	VariancePercentage float64
	Notes              string
	RecordedAt         time.Time
}

// Store is the persistence contract for dose logs. Implementations publish
// the DoseLogReconciled event atomically with the insert where the backing
// store supports it (transactional outbox in postgres).
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	ListByMedication(ctx context.Context, medicationID string, from, to time.Time) ([]Entry, error)
}

// RecordInput is a logged dose prior to reconciliation.
type RecordInput struct {
	MedicationID string
	LogDate      time.Time
	ActualDose   float64
	Notes        string
}

// Recorder reconciles and persists dose logs. Reconciliation always runs
// before the write so every stored entry carries its historical expectation.
type Recorder struct {
	tracker *pattern.Tracker
	store   Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(tracker *pattern.Tracker, store Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{tracker: tracker, store: store, logger: logger, now: time.Now}
}

// Record reconciles in against the historically active pattern and persists
// the resulting entry.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (Entry, error) {
	rec, err := r.tracker.Reconcile(ctx, in.MedicationID, in.LogDate, in.ActualDose)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:                 uuid.New().String(),
		MedicationID:       in.MedicationID,
		LogDate:            rec.LogDate,
		ActualDose:         rec.ActualDose,
		ExpectedDose:       rec.ExpectedDose,
		PatternID:          rec.PatternID,
		PatternDay:         rec.PatternDay,
		FixedDose:          rec.FixedDose,
		HasVariance:        rec.HasVariance,
		VarianceAmount:     rec.VarianceAmount,
		VariancePercentage: rec.VariancePercentage,
		Notes:              in.Notes,
		RecordedAt:         r.now().UTC(),
	}

	if err := r.store.Insert(ctx, &e); err != nil {
		return Entry{}, err
	}

	if e.HasVariance {
		r.logger.Info("dose variance recorded",
			zap.String("medication_id", e.MedicationID),
			zap.String("log_date", pattern.FormatDate(e.LogDate)),
			zap.Float64("expected", e.ExpectedDose),
			zap.Float64("actual", e.ActualDose),
		)
	}
	return e, nil
}
