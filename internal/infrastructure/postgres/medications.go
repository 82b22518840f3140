package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/carelog/go-dpe/internal/domain/medication"
)

// MedicationStore is the pgx-backed medication.Store.
type MedicationStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationStore creates a medication store.
func NewMedicationStore(pool *pgxpool.Pool, logger *zap.Logger) *MedicationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationStore{pool: pool, logger: logger}
}

// Create persists m.
func (s *MedicationStore) Create(ctx context.Context, m *medication.Medication) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Schedule == "" {
		m.Schedule = medication.RuleDaily
	}
	if m.Dosing.Kind == "" {
		m.Dosing.Kind = medication.DosingPattern
	}

	const query = `
		INSERT INTO medications (id, name, units, safety_class, dosing_kind, fixed_dose, schedule_rule)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		m.ID, m.Name, m.Units, m.SafetyClass,
		string(m.Dosing.Kind), m.Dosing.FixedDose, string(m.Schedule),
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

// GetByID returns a medication by id.
func (s *MedicationStore) GetByID(ctx context.Context, id string) (medication.Medication, error) {
	const query = `
		SELECT id, name, units, safety_class, dosing_kind, fixed_dose, schedule_rule, created_at, updated_at
		FROM medications
		WHERE id = $1
	`
	var (
		m          medication.Medication
		kind, rule string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Units, &m.SafetyClass,
		&kind, &m.Dosing.FixedDose, &rule, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return medication.Medication{}, medication.ErrNotFound
	}
	if err != nil {
		return medication.Medication{}, fmt.Errorf("query medication: %w", err)
	}
	m.Dosing.Kind = medication.DosingKind(kind)
	m.Schedule = medication.ScheduleRule(rule)
	return m, nil
}
