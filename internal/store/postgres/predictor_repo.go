package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfeed/marketpulse/internal/contracts"
)

// PredictorRepository implements contracts.PredictorRepository.
type PredictorRepository struct {
	pool *pgxpool.Pool
}

// NewPredictorRepository creates a predictor repository.
func NewPredictorRepository(pool *pgxpool.Pool) *PredictorRepository {
	return &PredictorRepository{pool: pool}
}

// Insert persists a new predictor.
func (r *PredictorRepository) Insert(ctx context.Context, p *contracts.Predictor) error {
	if err := p.Scope.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO pipeline.predictors
			(id, scope, target_symbol, target_type, direction, strength,
			 source_signals, created_at, expires_at, expired)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Scope, p.TargetSymbol, p.TargetType, p.Direction,
		p.Strength, p.SourceSignals, p.CreatedAt, p.ExpiresAt, p.Expired,
	)
	if err != nil {
		return fmt.Errorf("failed to insert predictor: %w", err)
	}
	return nil
}

// Update rewrites the predictor's mutable fields.
func (r *PredictorRepository) Update(ctx context.Context, p *contracts.Predictor) error {
	if err := p.Scope.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE pipeline.predictors
		SET strength = $3, source_signals = $4, expires_at = $5, expired = $6
		WHERE id = $1 AND scope = $2
	`
	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.Scope, p.Strength, p.SourceSignals, p.ExpiresAt, p.Expired,
	)
	if err != nil {
		return fmt.Errorf("failed to update predictor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrNotFound
	}
	return nil
}

const predictorColumns = `
	id, scope, target_symbol, target_type, direction, strength,
	source_signals, created_at, expires_at, expired
`

func scanPredictor(row pgx.Row) (*contracts.Predictor, error) {
	var p contracts.Predictor
	err := row.Scan(
		&p.ID, &p.Scope, &p.TargetSymbol, &p.TargetType, &p.Direction,
		&p.Strength, &p.SourceSignals, &p.CreatedAt, &p.ExpiresAt, &p.Expired,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindLive returns the unexpired predictor for (target, direction), or nil.
func (r *PredictorRepository) FindLive(ctx context.Context, scope contracts.Scope, targetSymbol string, direction contracts.Direction, now time.Time) (*contracts.Predictor, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + predictorColumns + `
		FROM pipeline.predictors
		WHERE scope = $1 AND target_symbol = $2 AND direction = $3
		  AND NOT expired AND expires_at > $4
		ORDER BY created_at DESC
		LIMIT 1
	`
	p, err := scanPredictor(r.pool.QueryRow(ctx, query, scope, targetSymbol, direction, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find live predictor: %w", err)
	}
	return p, nil
}

// LivePool returns all unexpired predictors for the target.
func (r *PredictorRepository) LivePool(ctx context.Context, scope contracts.Scope, targetSymbol string, now time.Time) ([]contracts.Predictor, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + predictorColumns + `
		FROM pipeline.predictors
		WHERE scope = $1 AND target_symbol = $2
		  AND NOT expired AND expires_at > $3
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, scope, targetSymbol, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictor pool: %w", err)
	}
	defer rows.Close()

	var out []contracts.Predictor
	for rows.Next() {
		p, err := scanPredictor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan predictor row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictor rows: %w", err)
	}
	return out, nil
}

// LiveTargets returns the distinct symbols with unexpired predictors.
func (r *PredictorRepository) LiveTargets(ctx context.Context, scope contracts.Scope, now time.Time) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT DISTINCT target_symbol
		FROM pipeline.predictors
		WHERE scope = $1 AND NOT expired AND expires_at > $2
		ORDER BY target_symbol
	`
	rows, err := r.pool.Query(ctx, query, scope, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query live targets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		out = append(out, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target rows: %w", err)
	}
	return out, nil
}

// ExpireDue marks predictors past their expiry as expired. A single
// idempotent UPDATE, safe to run on every sweep.
func (r *PredictorRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE pipeline.predictors SET expired = TRUE WHERE NOT expired AND expires_at <= $1`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire predictors: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByScope removes every predictor in the scope. Scenario cleanup only.
func (r *PredictorRepository) DeleteByScope(ctx context.Context, scope contracts.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM pipeline.predictors WHERE scope = $1`, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to delete predictors: %w", err)
	}
	return tag.RowsAffected(), nil
}
