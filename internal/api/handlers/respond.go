// Package handlers provides HTTP handlers for the dosage API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/carelog/go-dpe/internal/domain/doselog"
	"github.com/carelog/go-dpe/internal/domain/medication"
	"github.com/carelog/go-dpe/internal/domain/pattern"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeDomainError maps domain errors onto HTTP status codes. Integrity
// faults surface as opaque 500s; the resolver already logged the details.
func writeDomainError(w http.ResponseWriter, err error) {
	var overlap *pattern.OverlapError
	var fault *pattern.IntegrityFault

	switch {
	case errors.Is(err, pattern.ErrNotFound),
		errors.Is(err, medication.ErrNotFound),
		errors.Is(err, doselog.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &overlap):
		jsonError(w, overlap.Error(), http.StatusConflict)
	case errors.As(err, &fault):
		jsonError(w, "internal server error", http.StatusInternalServerError)
	default:
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

// patternJSON is the wire representation of a pattern. Dates are calendar
// dates, not timestamps.
type patternJSON struct {
	ID              string    `json:"id"`
	MedicationID    string    `json:"medicationId"`
	PatternSequence []float64 `json:"patternSequence"`
	StartDate       string    `json:"startDate"`
	EndDate         *string   `json:"endDate,omitempty"`
	AverageDose     float64   `json:"averageDose"`
	Active          bool      `json:"active"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toPatternJSON(p pattern.Pattern) patternJSON {
	out := patternJSON{
		ID:              p.ID,
		MedicationID:    p.MedicationID,
		PatternSequence: p.Sequence,
		StartDate:       pattern.FormatDate(p.StartDate),
		AverageDose:     p.AverageDose(),
		Active:          p.Active(),
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.EndDate != nil {
		end := pattern.FormatDate(*p.EndDate)
		out.EndDate = &end
	}
	return out
}

// parseDateParam parses a required YYYY-MM-DD query or body value.
func parseDateParam(value string) (time.Time, error) {
	return pattern.ParseDate(value)
}
