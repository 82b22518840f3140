// Package medication defines the medication entity and its dosing strategy.
package medication

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the medication does not exist.
var ErrNotFound = errors.New("medication not found")

// DosingKind tags the dosing strategy variant.
type DosingKind string

const (
	// DosingFixed is a constant daily dose; no patterns exist for the
	// medication and pattern resolution legitimately finds nothing.
	DosingFixed DosingKind = "fixed"
	// DosingPattern defers the dose to the pattern active on each date.
	DosingPattern DosingKind = "pattern"
)

// Dosing is the tagged dosing variant. Callers switch on Kind and handle
// both cases exhaustively; FixedDose is meaningful only for DosingFixed.
type Dosing struct {
	Kind      DosingKind `json:"kind"`
	FixedDose float64    `json:"fixedDose,omitempty"`
}

// ScheduleRule is the administration frequency rule.
type ScheduleRule string

const (
	RuleDaily        ScheduleRule = "daily"
	RuleAlternateDay ScheduleRule = "alternate-day"
)

// Medication is the owning entity for dosage patterns and dose logs.
type Medication struct {
	ID          string
	Name        string
	Units       string
	SafetyClass string
	Dosing      Dosing
	Schedule    ScheduleRule
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScheduledDayIndex maps a calendar date onto the 0-based scheduled-day
// index used by the dose calculator, per the medication's frequency rule.
// The second return is false when date is not an administration day. The
// pattern cycle advances only on scheduled days: under alternate-day
// dosing, calendar day 0 is index 0 (pattern day 1), calendar day 2 is
// index 1, and odd calendar days are skipped.
func (m Medication) ScheduledDayIndex(start, date time.Time) (int, bool) {
	days := daysBetween(start, date)
	if days < 0 {
		return 0, false
	}
	switch m.Schedule {
	case RuleAlternateDay:
		if days%2 != 0 {
			return 0, false
		}
		return days / 2, true
	default:
		return days, true
	}
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}

// Store is the persistence contract for medications.
type Store interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id string) (Medication, error)
}
