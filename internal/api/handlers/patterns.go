package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/carelog/go-dpe/internal/api/middleware"
	"github.com/carelog/go-dpe/internal/clinical/safetylimits"
	"github.com/carelog/go-dpe/internal/domain/medication"
	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/observability/metrics"
)

// PatternHandler handles dosage pattern endpoints
type PatternHandler struct {
	patterns  pattern.Store
	meds      medication.Store
	resolver  *pattern.Resolver
	validator *pattern.Validator
	limits    *safetylimits.Client
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPatternHandler creates a new handler. limits may be nil, in which case
// static formulary ceilings apply.
func NewPatternHandler(
	patterns pattern.Store,
	meds medication.Store,
	resolver *pattern.Resolver,
	limits *safetylimits.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PatternHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatternHandler{
		patterns:  patterns,
		meds:      meds,
		resolver:  resolver,
		validator: pattern.NewValidator(),
		limits:    limits,
		metrics:   m,
		logger:    logger,
	}
}

// Routes returns the handler routes, mounted under a medication.
func (h *PatternHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/active", h.GetActive)
	r.Get("/{patternID}", h.Get)
	return r
}

// CreatePatternRequest is the request body for creating a pattern
type CreatePatternRequest struct {
	PatternSequence []float64 `json:"patternSequence"`
	StartDate       string    `json:"startDate"`
	EndDate         string    `json:"endDate,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	// ClosePrevious closes the currently active pattern the day before the
	// new start instead of rejecting the overlap.
	ClosePrevious bool `json:"closePreviousPattern,omitempty"`
}

// CreatePatternResponse carries the created pattern and any validation
// warnings that did not block creation.
type CreatePatternResponse struct {
	Pattern  patternJSON `json:"pattern"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Create handles POST /medications/{medicationID}/patterns
func (h *PatternHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("pattern-handler")
	ctx, span := tracer.Start(ctx, "create_pattern")
	defer span.End()

	medicationID := chi.URLParam(r, "medicationID")
	span.SetAttributes(attribute.String("medication_id", medicationID))

	var req CreatePatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	med, err := h.meds.GetByID(ctx, medicationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	in := pattern.Input{Sequence: req.PatternSequence, Notes: req.Notes}
	if req.StartDate != "" {
		start, err := parseDateParam(req.StartDate)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.StartDate = start
	}
	if req.EndDate != "" {
		end, err := parseDateParam(req.EndDate)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.EndDate = &end
	}

	ceiling := h.limits.CeilingFor(ctx, med.SafetyClass)
	result := h.validator.Validate(in, ceiling)
	if !result.OK() {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}

	p := pattern.Pattern{
		MedicationID: medicationID,
		Sequence:     in.Sequence,
		StartDate:    pattern.MidnightUTC(in.StartDate),
		EndDate:      in.EndDate,
		Notes:        in.Notes,
	}
	opts := pattern.CreateOptions{ClosePrevious: req.ClosePrevious}
	if err := h.patterns.Create(ctx, &p, opts); err != nil {
		var overlap *pattern.OverlapError
		if !errors.As(err, &overlap) {
			h.logger.Error("pattern create failed",
				zap.String("medication_id", medicationID),
				zap.Error(err))
		}
		writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PatternsCreated.Inc()
		if req.ClosePrevious {
			h.metrics.PatternsClosed.Inc()
		}
	}
	h.logger.Info("pattern created",
		zap.String("id", p.ID),
		zap.String("medication_id", medicationID),
		zap.Int("sequence_length", p.Length()),
		zap.Bool("close_previous", req.ClosePrevious),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	writeJSON(w, http.StatusCreated, CreatePatternResponse{
		Pattern:  toPatternJSON(p),
		Warnings: result.Warnings,
	})
}

// ActivePatternResponse is the active pattern with today's resolved dose.
type ActivePatternResponse struct {
	Pattern          patternJSON `json:"pattern"`
	Date             string      `json:"date"`
	TodaysDosage     *float64    `json:"todaysDosage"`
	TodaysPatternDay *int        `json:"todaysPatternDay"`
}

// GetActive handles GET /medications/{medicationID}/patterns/active.
// The date query parameter defaults to today; historical dates resolve
// against the pattern that was active then.
func (h *PatternHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	medicationID := chi.URLParam(r, "medicationID")

	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		date = parsed
	}

	med, err := h.meds.GetByID(ctx, medicationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.resolver.ActiveOn(ctx, medicationID, date)
	if errors.Is(err, pattern.ErrNoPattern) {
		jsonError(w, "no pattern active on "+pattern.FormatDate(date), http.StatusNotFound)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ActivePatternResponse{
		Pattern: toPatternJSON(p),
		Date:    pattern.FormatDate(date),
	}
	if idx, scheduled := med.ScheduledDayIndex(p.StartDate, date); scheduled {
		dose, derr := pattern.DoseForIndex(p, idx)
		if derr != nil {
			writeDomainError(w, derr)
			return
		}
		resp.TodaysDosage = &dose.Amount
		resp.TodaysPatternDay = &dose.PatternDay
	}

	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /medications/{medicationID}/patterns
func (h *PatternHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	medicationID := chi.URLParam(r, "medicationID")
	q := r.URL.Query()

	activeOnly := q.Get("activeOnly") == "true"
	limit := parseIntDefault(q.Get("limit"), 50)
	offset := parseIntDefault(q.Get("offset"), 0)

	patterns, err := h.patterns.ListByMedication(ctx, medicationID, activeOnly, limit, offset)
	if err != nil {
		h.logger.Error("pattern list failed", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	out := make([]patternJSON, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, toPatternJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": out,
		"limit":    limit,
		"offset":   offset,
	})
}

// Get handles GET /medications/{medicationID}/patterns/{patternID}
func (h *PatternHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.patterns.GetByID(r.Context(), chi.URLParam(r, "patternID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatternJSON(p))
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
