package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the engine's DDL. The btree_gist exclusion constraint enforces
// the non-overlap invariant at commit time, independent of the advisory
// lock path, so the invariant survives any application-level bug.
const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS medications (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	units         TEXT NOT NULL DEFAULT 'mg',
	safety_class  TEXT NOT NULL DEFAULT 'general',
	dosing_kind   TEXT NOT NULL DEFAULT 'pattern',
	fixed_dose    NUMERIC(7,2) NOT NULL DEFAULT 0,
	schedule_rule TEXT NOT NULL DEFAULT 'daily',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS dosage_patterns (
	id            UUID PRIMARY KEY,
	medication_id UUID NOT NULL REFERENCES medications(id),
	sequence      JSONB NOT NULL,
	start_date    DATE NOT NULL,
	end_date      DATE,
	notes         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT dosage_patterns_dates_ck CHECK (end_date IS NULL OR end_date >= start_date),
	CONSTRAINT dosage_patterns_no_overlap EXCLUDE USING gist (
		medication_id WITH =,
		daterange(start_date, COALESCE(end_date, 'infinity'::date), '[]') WITH &&
	)
);

CREATE INDEX IF NOT EXISTS dosage_patterns_medication_idx
	ON dosage_patterns (medication_id, start_date DESC);

CREATE TABLE IF NOT EXISTS dose_logs (
	id                  UUID PRIMARY KEY,
	medication_id       UUID NOT NULL REFERENCES medications(id),
	log_date            DATE NOT NULL,
	actual_dose         NUMERIC(7,2) NOT NULL,
	expected_dose       NUMERIC(7,2) NOT NULL,
	pattern_id          UUID REFERENCES dosage_patterns(id),
	pattern_day         INT NOT NULL DEFAULT 0,
	fixed_dose          BOOLEAN NOT NULL DEFAULT FALSE,
	has_variance        BOOLEAN NOT NULL DEFAULT FALSE,
	variance_amount     NUMERIC(8,4) NOT NULL DEFAULT 0,
	variance_percentage NUMERIC(8,4) NOT NULL DEFAULT 0,
	notes               TEXT NOT NULL DEFAULT '',
	recorded_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS dose_logs_medication_date_idx
	ON dose_logs (medication_id, log_date DESC);

CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_id   TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	topic          TEXT NOT NULL,
	key            TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at   TIMESTAMPTZ,
	retry_count    INT NOT NULL DEFAULT 0,
	last_error     TEXT
);

CREATE INDEX IF NOT EXISTS outbox_unprocessed_idx
	ON outbox (created_at) WHERE processed_at IS NULL;

CREATE TABLE IF NOT EXISTS inbox (
	idempotency_key TEXT PRIMARY KEY,
	handler_name    TEXT NOT NULL,
	status          TEXT NOT NULL,
	payload         JSONB,
	result          JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at      TIMESTAMPTZ
);
`

// EnsureSchema creates the engine's tables and constraints if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
