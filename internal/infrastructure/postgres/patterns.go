// Package postgres provides PostgreSQL persistence for the dosage pattern
// engine: pattern and medication stores, dose logs, and the transactional
// outbox used for audit event publishing.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/carelog/go-dpe/internal/domain/pattern"
	"github.com/carelog/go-dpe/internal/infrastructure/redpanda"
)

// PatternStore is the pgx-backed pattern.Store. Pattern creation is
// serialized per medication with a transaction-scoped advisory lock, so two
// concurrent creates cannot both pass the overlap check; the exclusion
// constraint in the schema backstops the same invariant at commit time.
type PatternStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPatternStore creates a pattern store.
func NewPatternStore(pool *pgxpool.Pool, logger *zap.Logger) *PatternStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatternStore{pool: pool, logger: logger}
}

// Create inserts p and, when requested, closes the superseded open pattern
// in the same transaction. PatternCreated (and PatternClosed) audit events
// are written to the outbox within the transaction so they commit atomically
// with the domain write.
func (s *PatternStore) Create(ctx context.Context, p *pattern.Pattern, opts pattern.CreateOptions) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.StartDate = pattern.MidnightUTC(p.StartDate)
	if p.EndDate != nil {
		e := pattern.MidnightUTC(*p.EndDate)
		p.EndDate = &e
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", medicationLockID(p.MedicationID)); err != nil {
		return fmt.Errorf("acquire medication lock: %w", err)
	}

	closedID, err := s.resolveOverlap(ctx, tx, p, opts)
	if err != nil {
		return err
	}

	const insert = `
		INSERT INTO dosage_patterns (id, medication_id, sequence, start_date, end_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	seq, err := json.Marshal(p.Sequence)
	if err != nil {
		return fmt.Errorf("marshal sequence: %w", err)
	}
	err = tx.QueryRow(ctx, insert, p.ID, p.MedicationID, seq, p.StartDate, p.EndDate, p.Notes).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}

	if err := s.writeCreatedEvent(ctx, tx, p, closedID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// resolveOverlap checks the new pattern against committed intervals and
// either closes the open predecessor or reports the conflict. Returns the
// closed pattern's id when auto-close ran.
func (s *PatternStore) resolveOverlap(ctx context.Context, tx pgx.Tx, p *pattern.Pattern, opts pattern.CreateOptions) (string, error) {
	const overlapQuery = `
		SELECT id, end_date IS NULL
		FROM dosage_patterns
		WHERE medication_id = $1
		  AND start_date <= COALESCE($3::date, 'infinity'::date)
		  AND COALESCE(end_date, 'infinity'::date) >= $2::date
		ORDER BY created_at DESC
	`
	rows, err := tx.Query(ctx, overlapQuery, p.MedicationID, p.StartDate, p.EndDate)
	if err != nil {
		return "", fmt.Errorf("overlap query: %w", err)
	}
	defer rows.Close()

	type conflict struct {
		id   string
		open bool
	}
	var conflicts []conflict
	for rows.Next() {
		var c conflict
		if err := rows.Scan(&c.id, &c.open); err != nil {
			return "", fmt.Errorf("scan overlap: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	rows.Close()

	if len(conflicts) == 0 {
		return "", nil
	}
	// Auto-close applies only to a single open-ended predecessor; anything
	// else is an unresolvable conflict.
	if !opts.ClosePrevious || len(conflicts) > 1 || !conflicts[0].open {
		return "", &pattern.OverlapError{
			MedicationID: p.MedicationID,
			ConflictID:   conflicts[0].id,
			Start:        p.StartDate,
		}
	}

	end := pattern.AddDays(p.StartDate, -1)
	const closeQuery = `
		UPDATE dosage_patterns SET end_date = $1, updated_at = NOW()
		WHERE id = $2 AND end_date IS NULL AND start_date <= $1
	`
	tag, err := tx.Exec(ctx, closeQuery, end, conflicts[0].id)
	if err != nil {
		return "", fmt.Errorf("close previous pattern: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Predecessor starts on or after the new start; closing it would
		// invert its interval.
		return "", &pattern.OverlapError{
			MedicationID: p.MedicationID,
			ConflictID:   conflicts[0].id,
			Start:        p.StartDate,
		}
	}

	closedEvent, err := pattern.NewEvent(conflicts[0].id, pattern.EventPatternClosed, pattern.PatternClosedData{
		PatternID:    conflicts[0].id,
		MedicationID: p.MedicationID,
		EndDate:      pattern.FormatDate(end),
		SupersededBy: p.ID,
		ClosedAt:     time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if err := writeEventToOutbox(ctx, tx, closedEvent.WithMedication(p.MedicationID)); err != nil {
		return "", err
	}
	return conflicts[0].id, nil
}

func (s *PatternStore) writeCreatedEvent(ctx context.Context, tx pgx.Tx, p *pattern.Pattern, closedID string) error {
	data := pattern.PatternCreatedData{
		PatternID:    p.ID,
		MedicationID: p.MedicationID,
		Sequence:     p.Sequence,
		StartDate:    pattern.FormatDate(p.StartDate),
		AverageDose:  p.AverageDose(),
		ClosedID:     closedID,
		CreatedAt:    p.CreatedAt,
	}
	if p.EndDate != nil {
		end := pattern.FormatDate(*p.EndDate)
		data.EndDate = &end
	}
	event, err := pattern.NewEvent(p.ID, pattern.EventPatternCreated, data)
	if err != nil {
		return err
	}
	return writeEventToOutbox(ctx, tx, event.WithMedication(p.MedicationID))
}

// writeEventToOutbox stages a domain event for the relay.
func writeEventToOutbox(ctx context.Context, tx pgx.Tx, e *pattern.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return WriteEntry(ctx, tx, &OutboxEntry{
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		EventType:     string(e.EventType),
		Payload:       payload,
		Topic:         redpanda.TopicPatternEvents,
		Key:           e.MedicationID,
	})
}

// GetByID returns a single pattern.
func (s *PatternStore) GetByID(ctx context.Context, id string) (pattern.Pattern, error) {
	const query = `
		SELECT id, medication_id, sequence, start_date, end_date, notes, created_at, updated_at
		FROM dosage_patterns
		WHERE id = $1
	`
	p, err := scanPattern(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return pattern.Pattern{}, pattern.ErrNotFound
	}
	return p, err
}

// ActiveOn returns every pattern whose interval contains date. At most one
// row satisfies the exclusion constraint; the resolver treats more as an
// integrity fault.
func (s *PatternStore) ActiveOn(ctx context.Context, medicationID string, date time.Time) ([]pattern.Pattern, error) {
	const query = `
		SELECT id, medication_id, sequence, start_date, end_date, notes, created_at, updated_at
		FROM dosage_patterns
		WHERE medication_id = $1
		  AND start_date <= $2::date
		  AND COALESCE(end_date, 'infinity'::date) >= $2::date
	`
	return s.queryPatterns(ctx, query, medicationID, pattern.MidnightUTC(date))
}

// InRange returns patterns intersecting [start, end], start date ascending.
func (s *PatternStore) InRange(ctx context.Context, medicationID string, start, end time.Time) ([]pattern.Pattern, error) {
	const query = `
		SELECT id, medication_id, sequence, start_date, end_date, notes, created_at, updated_at
		FROM dosage_patterns
		WHERE medication_id = $1
		  AND start_date <= $3::date
		  AND COALESCE(end_date, 'infinity'::date) >= $2::date
		ORDER BY start_date ASC
	`
	return s.queryPatterns(ctx, query, medicationID, pattern.MidnightUTC(start), pattern.MidnightUTC(end))
}

// ListByMedication returns the temporal history newest-first.
func (s *PatternStore) ListByMedication(ctx context.Context, medicationID string, activeOnly bool, limit, offset int) ([]pattern.Pattern, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
		SELECT id, medication_id, sequence, start_date, end_date, notes, created_at, updated_at
		FROM dosage_patterns
		WHERE medication_id = $1
		  AND ($2 = false OR end_date IS NULL)
		ORDER BY start_date DESC
		LIMIT $3 OFFSET $4
	`
	return s.queryPatterns(ctx, query, medicationID, activeOnly, limit, offset)
}

func (s *PatternStore) queryPatterns(ctx context.Context, query string, args ...interface{}) ([]pattern.Pattern, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var out []pattern.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPattern(row rowScanner) (pattern.Pattern, error) {
	var (
		p   pattern.Pattern
		seq []byte
		end *time.Time
	)
	err := row.Scan(&p.ID, &p.MedicationID, &seq, &p.StartDate, &end, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return pattern.Pattern{}, err
	}
	if err := json.Unmarshal(seq, &p.Sequence); err != nil {
		return pattern.Pattern{}, fmt.Errorf("unmarshal sequence: %w", err)
	}
	p.StartDate = pattern.MidnightUTC(p.StartDate)
	if end != nil {
		e := pattern.MidnightUTC(*end)
		p.EndDate = &e
	}
	return p, nil
}

// medicationLockID derives a stable advisory lock key from a medication id.
func medicationLockID(medicationID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(medicationID))
	return int64(h.Sum64())
}
