package pattern

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxSequenceLength bounds a cycle to at most one year of entries.
	MaxSequenceLength = 365
	// MaxUnitDose is the absolute ceiling for a single dose value; medication
	// safety classes may impose lower ceilings.
	MaxUnitDose = 1000.0

	longPatternWarnLength = 20
	backdateWarnDays      = 7
	nearLimitRatio        = 0.9
)

// Input is a candidate pattern prior to validation and persistence.
type Input struct {
	Sequence  []float64
	StartDate time.Time
	EndDate   *time.Time
	Notes     string
}

// FieldError describes a blocking validation failure on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result carries blocking errors and non-blocking warnings. Warnings surface
// clinically unusual but legitimate inputs for caller confirmation; they
// never reject.
type Result struct {
	Errors   []FieldError `json:"errors,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// OK reports whether the candidate may be persisted.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Validator checks candidate patterns against structural invariants and a
// medication-specific safety ceiling. Pure apart from the injected clock.
type Validator struct {
	now func() time.Time
}

// NewValidator returns a validator using the wall clock.
func NewValidator() *Validator { return &Validator{now: time.Now} }

// Validate checks in against the pattern invariants. maxUnitDose is the
// medication's safety ceiling; values above it are rejected even when under
// the absolute bound.
func (v *Validator) Validate(in Input, maxUnitDose float64) Result {
	var res Result
	fail := func(field, format string, args ...interface{}) {
		res.Errors = append(res.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if maxUnitDose <= 0 || maxUnitDose > MaxUnitDose {
		maxUnitDose = MaxUnitDose
	}

	switch n := len(in.Sequence); {
	case n == 0:
		fail("patternSequence", "sequence must not be empty")
	case n > MaxSequenceLength:
		fail("patternSequence", "sequence length %d exceeds maximum %d", n, MaxSequenceLength)
	}

	for i, val := range in.Sequence {
		switch {
		case val <= 0:
			fail("patternSequence", "value at position %d must be positive, got %g", i+1, val)
		case val > MaxUnitDose:
			fail("patternSequence", "value at position %d exceeds absolute limit %g", i+1, MaxUnitDose)
		case val > maxUnitDose:
			fail("patternSequence", "value at position %d exceeds medication safety ceiling %g", i+1, maxUnitDose)
		case !hasAtMostTwoDecimals(val):
			fail("patternSequence", "value at position %d has more than 2 decimal places", i+1)
		}
	}

	if in.StartDate.IsZero() {
		fail("startDate", "start date is required")
	}
	if in.EndDate != nil && MidnightUTC(*in.EndDate).Before(MidnightUTC(in.StartDate)) {
		fail("endDate", "end date %s precedes start date %s",
			FormatDate(*in.EndDate), FormatDate(in.StartDate))
	}

	if !res.OK() {
		return res
	}

	if len(in.Sequence) == 1 {
		res.Warnings = append(res.Warnings,
			"single-value sequence: a fixed dose may be intended instead of a pattern")
	}
	for _, val := range in.Sequence {
		if val > maxUnitDose*nearLimitRatio {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("dose %g is near the safety ceiling %g, please confirm", val, maxUnitDose))
			break
		}
	}
	if len(in.Sequence) > longPatternWarnLength {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("pattern length %d is unusually long, please confirm", len(in.Sequence)))
	}
	if !in.StartDate.IsZero() {
		if behind := DaysBetween(in.StartDate, v.now()); behind > backdateWarnDays {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("start date is %d days in the past, please confirm backdating", behind))
		}
	}

	return res
}

// hasAtMostTwoDecimals reports whether v is representable with two decimal
// places. A small epsilon absorbs binary float representation error on
// values like 0.07.
func hasAtMostTwoDecimals(v float64) bool {
	scaled := v * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}
