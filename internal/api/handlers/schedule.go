package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/observability/metrics"
)

// ScheduleHandler handles schedule projection endpoints
type ScheduleHandler struct {
	generator *pattern.Generator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewScheduleHandler creates a new handler
func NewScheduleHandler(generator *pattern.Generator, m *metrics.Metrics, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{generator: generator, metrics: m, logger: logger}
}

// Routes returns the handler routes, mounted under a medication.
func (h *ScheduleHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Generate)
	r.Get("/date", h.ForDate)
	return r
}

type scheduleEntryJSON struct {
	Date            string  `json:"date"`
	Dose            float64 `json:"dose"`
	PatternDay      int     `json:"patternDay,omitempty"`
	PatternID       string  `json:"patternId,omitempty"`
	Source          string  `json:"source"`
	IsPatternChange bool    `json:"isPatternChange,omitempty"`
}

type scheduleSummaryJSON struct {
	TotalDose      float64 `json:"totalDose"`
	AverageDose    float64 `json:"averageDose"`
	MinDose        float64 `json:"minDose"`
	MaxDose        float64 `json:"maxDose"`
	Cycles         float64 `json:"cycles"`
	PatternChanges int     `json:"patternChanges"`
}

type scheduleJSON struct {
	MedicationID string              `json:"medicationId"`
	StartDate    string              `json:"startDate"`
	Days         int                 `json:"days"`
	Entries      []scheduleEntryJSON `json:"entries"`
	Summary      scheduleSummaryJSON `json:"summary"`
}

func toScheduleJSON(s *pattern.Schedule, includeChanges bool) scheduleJSON {
	out := scheduleJSON{
		MedicationID: s.MedicationID,
		StartDate:    pattern.FormatDate(s.StartDate),
		Days:         s.Days,
		Entries:      make([]scheduleEntryJSON, 0, len(s.Entries)),
		Summary: scheduleSummaryJSON{
			TotalDose:      s.Summary.TotalDose,
			AverageDose:    s.Summary.AverageDose,
			MinDose:        s.Summary.MinDose,
			MaxDose:        s.Summary.MaxDose,
			Cycles:         s.Summary.Cycles,
			PatternChanges: s.Summary.PatternChanges,
		},
	}
	for _, e := range s.Entries {
		out.Entries = append(out.Entries, scheduleEntryJSON{
			Date:            pattern.FormatDate(e.Date),
			Dose:            e.Dose,
			PatternDay:      e.PatternDay,
			PatternID:       e.PatternID,
			Source:          string(e.Source),
			IsPatternChange: includeChanges && e.IsPatternChange,
		})
	}
	return out
}

// Generate handles GET /medications/{medicationID}/schedule
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("schedule-handler")
	ctx, span := tracer.Start(ctx, "generate_schedule")
	defer span.End()

	medicationID := chi.URLParam(r, "medicationID")
	q := r.URL.Query()

	start := time.Now().UTC()
	if raw := q.Get("startDate"); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		start = parsed
	}
	days := parseIntDefault(q.Get("days"), 30)
	// Change markers are included unless explicitly disabled.
	includeChanges := q.Get("includePatternChanges") != "false"

	span.SetAttributes(
		attribute.String("medication_id", medicationID),
		attribute.Int("days", days),
	)

	began := time.Now()
	sched, err := h.generator.Generate(ctx, medicationID, start, days)
	if err != nil {
		if errors.Is(err, pattern.ErrWindowBounds) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("schedule generation failed",
			zap.String("medication_id", medicationID),
			zap.Error(err))
		writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SchedulesGenerated.Inc()
		h.metrics.ScheduleDuration.Observe(time.Since(began).Seconds())
	}
	writeJSON(w, http.StatusOK, toScheduleJSON(sched, includeChanges))
}

// ForDate handles GET /medications/{medicationID}/schedule/date. It is a
// single-day projection: the same resolution as a full schedule, without
// paying for a window.
func (h *ScheduleHandler) ForDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	medicationID := chi.URLParam(r, "medicationID")

	raw := r.URL.Query().Get("date")
	if raw == "" {
		jsonError(w, "date query parameter is required", http.StatusBadRequest)
		return
	}
	date, err := parseDateParam(raw)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sched, err := h.generator.Generate(ctx, medicationID, date, 1)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleJSON(sched, true).Entries[0])
}
