package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/carelog/go-dpe/internal/domain/doselog"
	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/infrastructure/redpanda"
)

// DoseLogStore is the pgx-backed doselog.Store. Each insert stages a
// DoseLogReconciled event in the outbox within the same transaction.
type DoseLogStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewDoseLogStore creates a dose log store.
func NewDoseLogStore(pool *pgxpool.Pool, logger *zap.Logger) *DoseLogStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DoseLogStore{pool: pool, logger: logger}
}

// Insert persists e and its audit event atomically.
func (s *DoseLogStore) Insert(ctx context.Context, e *doselog.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO dose_logs
			(id, medication_id, log_date, actual_dose, expected_dose, pattern_id,
			 pattern_day, fixed_dose, has_variance, variance_amount, variance_percentage, notes)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
		RETURNING recorded_at
	`
	err = tx.QueryRow(ctx, query,
		e.ID, e.MedicationID, pattern.MidnightUTC(e.LogDate), e.ActualDose, e.ExpectedDose,
		e.PatternID, e.PatternDay, e.FixedDose, e.HasVariance, e.VarianceAmount,
		e.VariancePercentage, e.Notes,
	).Scan(&e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert dose log: %w", err)
	}

	event, err := pattern.NewEvent(e.ID, pattern.EventDoseLogReconciled, pattern.DoseLogReconciledData{
		LogID:              e.ID,
		MedicationID:       e.MedicationID,
		LogDate:            pattern.FormatDate(e.LogDate),
		ActualDose:         e.ActualDose,
		ExpectedDose:       e.ExpectedDose,
		PatternID:          e.PatternID,
		PatternDay:         e.PatternDay,
		HasVariance:        e.HasVariance,
		VarianceAmount:     e.VarianceAmount,
		VariancePercentage: e.VariancePercentage,
	})
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event.WithMedication(e.MedicationID))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = WriteEntry(ctx, tx, &OutboxEntry{
		AggregateID:   e.ID,
		AggregateType: "DoseLog",
		EventType:     string(pattern.EventDoseLogReconciled),
		Payload:       payload,
		Topic:         redpanda.TopicDoseReconciled,
		Key:           e.MedicationID,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListByMedication returns entries with log dates in [from, to] inclusive,
// newest first.
func (s *DoseLogStore) ListByMedication(ctx context.Context, medicationID string, from, to time.Time) ([]doselog.Entry, error) {
	const query = `
		SELECT id, medication_id, log_date, actual_dose, expected_dose,
		       COALESCE(pattern_id::text, ''), pattern_day, fixed_dose, has_variance,
		       variance_amount, variance_percentage, notes, recorded_at
		FROM dose_logs
		WHERE medication_id = $1 AND log_date BETWEEN $2 AND $3
		ORDER BY log_date DESC
	`
	rows, err := s.pool.Query(ctx, query, medicationID,
		pattern.MidnightUTC(from), pattern.MidnightUTC(to))
	if err != nil {
		return nil, fmt.Errorf("query dose logs: %w", err)
	}
	defer rows.Close()

	var out []doselog.Entry
	for rows.Next() {
		var e doselog.Entry
		err := rows.Scan(
			&e.ID, &e.MedicationID, &e.LogDate, &e.ActualDose, &e.ExpectedDose,
			&e.PatternID, &e.PatternDay, &e.FixedDose, &e.HasVariance,
			&e.VarianceAmount, &e.VariancePercentage, &e.Notes, &e.RecordedAt,
		)
		if err != nil {
			return nil, err
		}
		e.LogDate = pattern.MidnightUTC(e.LogDate)
		out = append(out, e)
	}
	return out, rows.Err()
}
