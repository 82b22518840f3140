package pattern

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/carelog/go-dpe/internal/domain/medication"
)

// VarianceTolerance is the reconciliation tolerance in dosage units. The
// comparison is a strict greater-than so exact-tolerance boundary cases are
// not flagged; the margin exists to absorb float rounding, not clinical
// deviation.
const VarianceTolerance = 0.01

// Reconciliation is the outcome of checking a logged dose against the dose
// expected from the historically active pattern.
type Reconciliation struct {
	MedicationID       string
	LogDate            time.Time
	ActualDose         float64
	ExpectedDose       float64
	PatternID          string
	PatternDay         int // 1-based cycle position, 0 for fixed-dose medications
	FixedDose          bool
	HasVariance        bool
	VarianceAmount     float64
	VariancePercentage float64
}

// Tracker reconciles logged doses. It resolves the pattern active on the log
// date, never the currently active one: patterns revised after the log date
// must not alter previously computed expectations.
type Tracker struct {
	resolver *Resolver
	meds     medication.Store
}

// NewTracker creates a variance tracker.
func NewTracker(resolver *Resolver, meds medication.Store) *Tracker {
	return &Tracker{resolver: resolver, meds: meds}
}

// Reconcile computes the expected dose on logDate and the variance of
// actualDose against it. Fixed-dose medications (no active pattern) fall
// back to the medication's fixed dose value.
func (t *Tracker) Reconcile(ctx context.Context, medicationID string, logDate time.Time, actualDose float64) (Reconciliation, error) {
	med, err := t.meds.GetByID(ctx, medicationID)
	if err != nil {
		return Reconciliation{}, err
	}

	rec := Reconciliation{
		MedicationID: medicationID,
		LogDate:      MidnightUTC(logDate),
		ActualDose:   actualDose,
	}

	p, err := t.resolver.ActiveOn(ctx, medicationID, logDate)
	switch {
	case err == nil:
		idx, scheduled := med.ScheduledDayIndex(p.StartDate, logDate)
		if !scheduled {
			// Logged on a non-administration day: the expected dose is zero
			// and any actual intake is variance.
			rec.PatternID = p.ID
		} else {
			dose, derr := DoseForDate(p, logDate)
			if med.Schedule != medication.RuleDaily {
				dose, derr = DoseForIndex(p, idx)
			}
			if derr != nil {
				return Reconciliation{}, derr
			}
			rec.ExpectedDose = dose.Amount
			rec.PatternDay = dose.PatternDay
			rec.PatternID = p.ID
		}
	case errors.Is(err, ErrNoPattern):
		rec.FixedDose = true
		rec.ExpectedDose = med.Dosing.FixedDose
	default:
		return Reconciliation{}, err
	}

	rec.VarianceAmount = rec.ActualDose - rec.ExpectedDose
	rec.HasVariance = math.Abs(rec.VarianceAmount) > VarianceTolerance
	if rec.ExpectedDose != 0 {
		rec.VariancePercentage = rec.VarianceAmount / rec.ExpectedDose
	}
	// ExpectedDose == 0 should not occur for validated patterns; fail safe
	// by leaving the percentage at zero rather than dividing.

	return rec, nil
}
