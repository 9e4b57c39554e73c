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

// PredictionRepository implements contracts.PredictionRepository.
type PredictionRepository struct {
	pool *pgxpool.Pool
}

// NewPredictionRepository creates a prediction repository.
func NewPredictionRepository(pool *pgxpool.Pool) *PredictionRepository {
	return &PredictionRepository{pool: pool}
}

const predictionColumns = `
	id, scope, target_symbol, direction, confidence, magnitude, timeframe,
	generated_at, expires_at, source_predictors, expired
`

func scanPrediction(row pgx.Row) (*contracts.Prediction, error) {
	var p contracts.Prediction
	err := row.Scan(
		&p.ID, &p.Scope, &p.TargetSymbol, &p.Direction, &p.Confidence,
		&p.Magnitude, &p.Timeframe, &p.GeneratedAt, &p.ExpiresAt,
		&p.SourcePredictors, &p.Expired,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ActiveForTarget returns the single active prediction for the target, or
// nil.
func (r *PredictionRepository) ActiveForTarget(ctx context.Context, scope contracts.Scope, targetSymbol string, now time.Time) (*contracts.Prediction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + predictionColumns + `
		FROM pipeline.predictions
		WHERE scope = $1 AND target_symbol = $2
		  AND NOT expired AND expires_at > $3
		ORDER BY generated_at DESC
		LIMIT 1
	`
	p, err := scanPrediction(r.pool.QueryRow(ctx, query, scope, targetSymbol, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active prediction: %w", err)
	}
	return p, nil
}

// Upsert creates or replaces the prediction row by id. The emitter reuses
// the active row's id on update, which keeps one active prediction per
// target.
func (r *PredictionRepository) Upsert(ctx context.Context, p *contracts.Prediction) error {
	if err := p.Scope.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO pipeline.predictions
			(id, scope, target_symbol, direction, confidence, magnitude,
			 timeframe, generated_at, expires_at, source_predictors, expired)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			direction = EXCLUDED.direction,
			confidence = EXCLUDED.confidence,
			magnitude = EXCLUDED.magnitude,
			timeframe = EXCLUDED.timeframe,
			generated_at = EXCLUDED.generated_at,
			expires_at = EXCLUDED.expires_at,
			source_predictors = EXCLUDED.source_predictors,
			expired = EXCLUDED.expired
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Scope, p.TargetSymbol, p.Direction, p.Confidence,
		p.Magnitude, p.Timeframe, p.GeneratedAt, p.ExpiresAt,
		p.SourcePredictors, p.Expired,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}
	return nil
}

// Get returns one prediction by id within the scope.
func (r *PredictionRepository) Get(ctx context.Context, scope contracts.Scope, id string) (*contracts.Prediction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + predictionColumns + ` FROM pipeline.predictions WHERE scope = $1 AND id = $2`
	p, err := scanPrediction(r.pool.QueryRow(ctx, query, scope, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// List returns the scope's predictions, newest first.
func (r *PredictionRepository) List(ctx context.Context, scope contracts.Scope, filter contracts.PredictionFilter) ([]contracts.Prediction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + predictionColumns + ` FROM pipeline.predictions WHERE scope = $1`
	args := []any{scope}

	if filter.TargetSymbol != "" {
		args = append(args, filter.TargetSymbol)
		query += fmt.Sprintf(" AND target_symbol = $%d", len(args))
	}
	if filter.ActiveOnly {
		args = append(args, time.Now())
		query += fmt.Sprintf(" AND NOT expired AND expires_at > $%d", len(args))
	}
	query += " ORDER BY generated_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var out []contracts.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prediction rows: %w", err)
	}
	return out, nil
}

// ExpireDue marks predictions past their expiry as expired. Idempotent.
func (r *PredictionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE pipeline.predictions SET expired = TRUE WHERE NOT expired AND expires_at <= $1`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire predictions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByScope removes every prediction in the scope. Scenario cleanup
// only.
func (r *PredictionRepository) DeleteByScope(ctx context.Context, scope contracts.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM pipeline.predictions WHERE scope = $1`, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to delete predictions: %w", err)
	}
	return tag.RowsAffected(), nil
}
