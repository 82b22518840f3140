package pattern

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event.
type EventType string

const (
	EventPatternCreated    EventType = "PatternCreated"
	EventPatternClosed     EventType = "PatternClosed"
	EventDoseLogReconciled EventType = "DoseLogReconciled"
)

// Event is the envelope for pattern domain events, published through the
// transactional outbox so the audit trail commits atomically with the
// domain write.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Timestamp     time.Time       `json:"timestamp"`
	MedicationID  string          `json:"medication_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewEvent builds an event envelope around data.
func NewEvent(aggregateID string, eventType EventType, data interface{}) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: "DosagePattern",
		EventType:     eventType,
		EventData:     payload,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// WithMedication sets the owning medication for partitioning and audit.
func (e *Event) WithMedication(medicationID string) *Event {
	e.MedicationID = medicationID
	return e
}

// PatternCreatedData is the payload for EventPatternCreated.
type PatternCreatedData struct {
	PatternID    string    `json:"pattern_id"`
	MedicationID string    `json:"medication_id"`
	Sequence     []float64 `json:"sequence"`
	StartDate    string    `json:"start_date"`
	EndDate      *string   `json:"end_date,omitempty"`
	AverageDose  float64   `json:"average_dose"`
	ClosedID     string    `json:"closed_pattern_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PatternClosedData is the payload for EventPatternClosed.
type PatternClosedData struct {
	PatternID    string    `json:"pattern_id"`
	MedicationID string    `json:"medication_id"`
	EndDate      string    `json:"end_date"`
	SupersededBy string    `json:"superseded_by"`
	ClosedAt     time.Time `json:"closed_at"`
}

// DoseLogReconciledData is the payload for EventDoseLogReconciled.
type DoseLogReconciledData struct {
	LogID              string  `json:"log_id"`
	MedicationID       string  `json:"medication_id"`
	LogDate            string  `json:"log_date"`
	ActualDose         float64 `json:"actual_dose"`
	ExpectedDose       float64 `json:"expected_dose"`
	PatternID          string  `json:"pattern_id,omitempty"`
	PatternDay         int     `json:"pattern_day,omitempty"`
	HasVariance        bool    `json:"has_variance"`
	VarianceAmount     float64 `json:"variance_amount"`
	VariancePercentage float64 `json:"variance_percentage"`
}
