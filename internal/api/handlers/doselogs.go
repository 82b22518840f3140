package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelog/go-dpe/internal/api/middleware"
	"github.com/carelog/go-dpe/internal/domain/doselog"
	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/observability/metrics"
)

// DoseLogHandler handles dose log endpoints
type DoseLogHandler struct {
	recorder *doselog.Recorder
	store    doselog.Store
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewDoseLogHandler creates a new handler
func NewDoseLogHandler(recorder *doselog.Recorder, store doselog.Store, m *metrics.Metrics, logger *zap.Logger) *DoseLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DoseLogHandler{recorder: recorder, store: store, metrics: m, logger: logger}
}

// Routes returns the handler routes, mounted under a medication.
func (h *DoseLogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Record)
	r.Get("/", h.List)
	return r
}

// RecordDoseRequest is the request body for logging a dose
type RecordDoseRequest struct {
	LogDate    string  `json:"logDate"`
	ActualDose float64 `json:"actualDose"`
	Notes      string  `json:"notes,omitempty"`
}

type doseLogJSON struct {
	ID                 string    `json:"id"`
	MedicationID       string    `json:"medicationId"`
	LogDate            string    `json:"logDate"`
	ActualDose         float64   `json:"actualDose"`
	ExpectedDose       float64   `json:"expectedDose"`
	PatternID          string    `json:"patternId,omitempty"`
	PatternDay         int       `json:"patternDay,omitempty"`
	FixedDose          bool      `json:"fixedDose,omitempty"`
	HasVariance        bool      `json:"hasVariance"`
	VarianceAmount     float64   `json:"varianceAmount"`
	VariancePercentage float64   `json:"variancePercentage"`
	Notes              string    `json:"notes,omitempty"`
	RecordedAt         time.Time `json:"recordedAt"`
}

func toDoseLogJSON(e doselog.Entry) doseLogJSON {
	return doseLogJSON{
		ID:                 e.ID,
		MedicationID:       e.MedicationID,
		LogDate:            pattern.FormatDate(e.LogDate),
		ActualDose:         e.ActualDose,
		ExpectedDose:       e.ExpectedDose,
		PatternID:          e.PatternID,
		PatternDay:         e.PatternDay,
		FixedDose:          e.FixedDose,
		HasVariance:        e.HasVariance,
		VarianceAmount:     e.VarianceAmount,
		VariancePercentage: e.VariancePercentage,
		Notes:              e.Notes,
		RecordedAt:         e.RecordedAt,
	}
}

// Record handles POST /medications/{medicationID}/doselogs. The entry is
// reconciled against the pattern active on the log date before persistence.
func (h *DoseLogHandler) Record(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	medicationID := chi.URLParam(r, "medicationID")

	var req RecordDoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ActualDose < 0 {
		jsonError(w, "actualDose must not be negative", http.StatusBadRequest)
		return
	}
	logDate, err := parseDateParam(req.LogDate)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.recorder.Record(ctx, doselog.RecordInput{
		MedicationID: medicationID,
		LogDate:      logDate,
		ActualDose:   req.ActualDose,
		Notes:        req.Notes,
	})
	if err != nil {
		h.logger.Error("dose log record failed",
			zap.String("medication_id", medicationID),
			zap.Error(err))
		writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.DoseLogsReconciled.Inc()
		if entry.HasVariance {
			h.metrics.VarianceFlagged.Inc()
		}
	}
	h.logger.Info("dose log recorded",
		zap.String("id", entry.ID),
		zap.String("medication_id", medicationID),
		zap.Bool("has_variance", entry.HasVariance),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusCreated, toDoseLogJSON(entry))
}

// List handles GET /medications/{medicationID}/doselogs
func (h *DoseLogHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	medicationID := chi.URLParam(r, "medicationID")
	q := r.URL.Query()

	// Default window is the trailing 30 days.
	to := pattern.MidnightUTC(time.Now())
	from := pattern.AddDays(to, -30)
	if raw := q.Get("from"); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		from = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		to = parsed
	}

	entries, err := h.store.ListByMedication(ctx, medicationID, from, to)
	if err != nil {
		h.logger.Error("dose log list failed", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	out := make([]doseLogJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toDoseLogJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"doseLogs": out,
		"from":     pattern.FormatDate(from),
		"to":       pattern.FormatDate(to),
	})
}
