package pattern

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carelog/go-dpe/internal/domain/medication"
)

const (
	// MinScheduleDays and MaxScheduleDays bound a schedule window.
	MinScheduleDays = 1
	MaxScheduleDays = 365
)

// DoseSource tags where a schedule entry's dose came from.
type DoseSource string

const (
	SourcePattern DoseSource = "pattern"
	SourceFixed   DoseSource = "fixed"
	// SourceNone marks a day with no applicable dose: a pattern gap or a
	// non-administration day under a non-daily frequency rule.
	SourceNone DoseSource = "none"
)

// ScheduleEntry is a single day of a generated schedule.
type ScheduleEntry struct {
	Date            time.Time
	Dose            float64
	PatternDay      int
	PatternID       string
	Source          DoseSource
	IsPatternChange bool
}

// ScheduleSummary aggregates a generated window.
type ScheduleSummary struct {
	TotalDose   float64
	AverageDose float64
	MinDose     float64
	MaxDose     float64
	// Cycles is the fractional number of pattern cycles covered, summed per
	// contiguous same-pattern sub-range (scheduled days / pattern length).
	Cycles         float64
	PatternChanges int
}

// Schedule is a day-by-day dosage projection.
type Schedule struct {
	MedicationID string
	StartDate    time.Time
	Days         int
	Entries      []ScheduleEntry
	Summary      ScheduleSummary
}

// Generator produces forward-looking schedules across pattern boundaries.
// The pattern set overlapping the window is fetched once; each day then
// costs O(1) resolve + O(1) calculate, with no precomputed calendars.
type Generator struct {
	resolver *Resolver
	meds     medication.Store
}

// NewGenerator creates a schedule generator.
func NewGenerator(resolver *Resolver, meds medication.Store) *Generator {
	return &Generator{resolver: resolver, meds: meds}
}

// Generate builds the schedule for [start, start+numDays-1].
func (g *Generator) Generate(ctx context.Context, medicationID string, start time.Time, numDays int) (*Schedule, error) {
	if numDays < MinScheduleDays || numDays > MaxScheduleDays {
		return nil, fmt.Errorf("%w: days must be between %d and %d, got %d",
			ErrWindowBounds, MinScheduleDays, MaxScheduleDays, numDays)
	}

	med, err := g.meds.GetByID(ctx, medicationID)
	if err != nil {
		return nil, err
	}

	start = MidnightUTC(start)
	end := AddDays(start, numDays-1)

	var window []Pattern
	if med.Dosing.Kind == medication.DosingPattern {
		window, err = g.resolver.store.InRange(ctx, medicationID, start, end)
		if err != nil {
			return nil, err
		}
	}

	sched := &Schedule{
		MedicationID: medicationID,
		StartDate:    start,
		Days:         numDays,
		Entries:      make([]ScheduleEntry, 0, numDays),
	}

	var (
		prevPatternID  string
		subRangeDays   int // scheduled days under the current pattern
		subRangeLength int
	)
	flushSubRange := func() {
		if subRangeLength > 0 {
			sched.Summary.Cycles += float64(subRangeDays) / float64(subRangeLength)
		}
		subRangeDays, subRangeLength = 0, 0
	}

	for i := 0; i < numDays; i++ {
		date := AddDays(start, i)
		entry, err := g.entryFor(med, date, window)
		if err != nil {
			return nil, err
		}

		if entry.Source == SourcePattern {
			if entry.PatternID != prevPatternID {
				flushSubRange()
				subRangeLength = g.lengthOf(window, entry.PatternID)
				if i > 0 && prevPatternID != "" {
					entry.IsPatternChange = true
					sched.Summary.PatternChanges++
				}
				prevPatternID = entry.PatternID
			}
			subRangeDays++
		}

		sched.Entries = append(sched.Entries, entry)
	}
	flushSubRange()

	g.summarize(sched)
	return sched, nil
}

// entryFor resolves a single day. Pattern gaps and fixed-dose medications
// are legitimate outcomes; only integrity faults and store errors propagate.
func (g *Generator) entryFor(med medication.Medication, date time.Time, window []Pattern) (ScheduleEntry, error) {
	entry := ScheduleEntry{Date: date, Source: SourceNone}

	if med.Dosing.Kind == medication.DosingFixed {
		entry.Source = SourceFixed
		entry.Dose = med.Dosing.FixedDose
		return entry, nil
	}

	p, err := g.resolver.PickActive(med.ID, date, window)
	if errors.Is(err, ErrNoPattern) {
		return entry, nil
	}
	if err != nil {
		return ScheduleEntry{}, err
	}

	idx, scheduled := med.ScheduledDayIndex(p.StartDate, date)
	if !scheduled {
		return entry, nil
	}
	dose, err := DoseForIndex(p, idx)
	if err != nil {
		return ScheduleEntry{}, err
	}

	entry.Source = SourcePattern
	entry.Dose = dose.Amount
	entry.PatternDay = dose.PatternDay
	entry.PatternID = p.ID
	return entry, nil
}

func (g *Generator) lengthOf(window []Pattern, id string) int {
	for _, p := range window {
		if p.ID == id {
			return p.Length()
		}
	}
	return 0
}

func (g *Generator) summarize(s *Schedule) {
	first := true
	for _, e := range s.Entries {
		if e.Source == SourceNone {
			continue
		}
		s.Summary.TotalDose += e.Dose
		if first || e.Dose < s.Summary.MinDose {
			s.Summary.MinDose = e.Dose
		}
		if first || e.Dose > s.Summary.MaxDose {
			s.Summary.MaxDose = e.Dose
		}
		first = false
	}
	if dosed := s.dosedDays(); dosed > 0 {
		s.Summary.AverageDose = s.Summary.TotalDose / float64(dosed)
	}
}

func (s *Schedule) dosedDays() int {
	n := 0
	for _, e := range s.Entries {
		if e.Source != SourceNone {
			n++
		}
	}
	return n
}
