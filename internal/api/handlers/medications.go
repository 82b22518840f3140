package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelog/go-dpe/internal/api/middleware"
	"github.com/carelog/go-dpe/internal/domain/medication"
)

// MedicationHandler handles medication endpoints
type MedicationHandler struct {
	store  medication.Store
	logger *zap.Logger
}

// NewMedicationHandler creates a new handler
func NewMedicationHandler(store medication.Store, logger *zap.Logger) *MedicationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationHandler{store: store, logger: logger}
}

// CreateMedicationRequest is the request body for creating a medication
type CreateMedicationRequest struct {
	Name        string  `json:"name"`
	Units       string  `json:"units"`
	SafetyClass string  `json:"safetyClass,omitempty"`
	DosingKind  string  `json:"dosingKind,omitempty"`
	FixedDose   float64 `json:"fixedDose,omitempty"`
	Schedule    string  `json:"schedule,omitempty"`
}

type medicationJSON struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Units       string    `json:"units"`
	SafetyClass string    `json:"safetyClass,omitempty"`
	DosingKind  string    `json:"dosingKind"`
	FixedDose   float64   `json:"fixedDose,omitempty"`
	Schedule    string    `json:"schedule"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toMedicationJSON(m medication.Medication) medicationJSON {
	return medicationJSON{
		ID:          m.ID,
		Name:        m.Name,
		Units:       m.Units,
		SafetyClass: m.SafetyClass,
		DosingKind:  string(m.Dosing.Kind),
		FixedDose:   m.Dosing.FixedDose,
		Schedule:    string(m.Schedule),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// Create handles POST /medications
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	kind := medication.DosingKind(req.DosingKind)
	switch kind {
	case "", medication.DosingPattern:
		kind = medication.DosingPattern
	case medication.DosingFixed:
		if req.FixedDose <= 0 {
			jsonError(w, "fixedDose must be positive for fixed dosing", http.StatusBadRequest)
			return
		}
	default:
		jsonError(w, "dosingKind must be \"fixed\" or \"pattern\"", http.StatusBadRequest)
		return
	}

	rule := medication.ScheduleRule(req.Schedule)
	switch rule {
	case "", medication.RuleDaily:
		rule = medication.RuleDaily
	case medication.RuleAlternateDay:
	default:
		jsonError(w, "schedule must be \"daily\" or \"alternate-day\"", http.StatusBadRequest)
		return
	}

	m := medication.Medication{
		Name:        req.Name,
		Units:       req.Units,
		SafetyClass: req.SafetyClass,
		Dosing:      medication.Dosing{Kind: kind, FixedDose: req.FixedDose},
		Schedule:    rule,
	}
	if err := h.store.Create(ctx, &m); err != nil {
		h.logger.Error("medication create failed", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	h.logger.Info("medication created",
		zap.String("id", m.ID),
		zap.String("dosing_kind", string(kind)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusCreated, toMedicationJSON(m))
}

// Get handles GET /medications/{medicationID}
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetByID(r.Context(), chi.URLParam(r, "medicationID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedicationJSON(m))
}
