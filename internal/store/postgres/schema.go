// Package postgres implements the pipeline repositories on PostgreSQL.
// Every table carries a scope column; the unique index on
// (scope, content_hash) is the authoritative dedup gate.
package postgres

import (
	"context"
	"fmt"

	"github.com/quantfeed/marketpulse/pkg/database"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS pipeline;

CREATE TABLE IF NOT EXISTS pipeline.signals (
	id            TEXT PRIMARY KEY,
	scope         TEXT NOT NULL,
	target_symbol TEXT NOT NULL,
	target_type   TEXT NOT NULL,
	content       TEXT NOT NULL,
	content_hash  CHAR(64) NOT NULL,
	direction     TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	urgency       TEXT NOT NULL,
	claims        JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL,
	superseded_by TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS signals_scope_hash_uniq
	ON pipeline.signals (scope, content_hash);
CREATE INDEX IF NOT EXISTS signals_scope_target_idx
	ON pipeline.signals (scope, target_symbol);

CREATE TABLE IF NOT EXISTS pipeline.predictors (
	id             TEXT PRIMARY KEY,
	scope          TEXT NOT NULL,
	target_symbol  TEXT NOT NULL,
	target_type    TEXT NOT NULL,
	direction      TEXT NOT NULL,
	strength       DOUBLE PRECISION NOT NULL,
	source_signals TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL,
	expires_at     TIMESTAMPTZ NOT NULL,
	expired        BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS predictors_scope_target_idx
	ON pipeline.predictors (scope, target_symbol) WHERE NOT expired;
CREATE INDEX IF NOT EXISTS predictors_expiry_idx
	ON pipeline.predictors (expires_at) WHERE NOT expired;

CREATE TABLE IF NOT EXISTS pipeline.predictions (
	id                TEXT PRIMARY KEY,
	scope             TEXT NOT NULL,
	target_symbol     TEXT NOT NULL,
	direction         TEXT NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL,
	magnitude         DOUBLE PRECISION NOT NULL,
	timeframe         TEXT NOT NULL,
	generated_at      TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL,
	source_predictors TEXT[] NOT NULL DEFAULT '{}',
	expired           BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS predictions_scope_target_idx
	ON pipeline.predictions (scope, target_symbol) WHERE NOT expired;
CREATE INDEX IF NOT EXISTS predictions_expiry_idx
	ON pipeline.predictions (expires_at) WHERE NOT expired;

CREATE TABLE IF NOT EXISTS pipeline.scenarios (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	injection_points TEXT[] NOT NULL DEFAULT '{}',
	status           TEXT NOT NULL,
	generated_count  INTEGER NOT NULL DEFAULT 0,
	last_error       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline.scenario_sources (
	id          BIGSERIAL PRIMARY KEY,
	scenario_id TEXT NOT NULL REFERENCES pipeline.scenarios(id) ON DELETE CASCADE,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS scenario_sources_scenario_idx
	ON pipeline.scenario_sources (scenario_id);
`

// Migrate creates the pipeline schema. Idempotent.
func Migrate(ctx context.Context, db *database.DB) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply pipeline schema: %w", err)
	}
	return nil
}
