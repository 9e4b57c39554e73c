package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfeed/marketpulse/internal/contracts"
)

// SignalRepository implements contracts.SignalRepository.
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a signal repository.
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// Insert persists the signal unless its (scope, content_hash) already
// exists. ON CONFLICT DO NOTHING makes the database the authoritative dedup
// gate across processes.
func (r *SignalRepository) Insert(ctx context.Context, sig *contracts.Signal) (bool, error) {
	if err := sig.Scope.Validate(); err != nil {
		return false, err
	}

	claims, err := json.Marshal(sig.Claims)
	if err != nil {
		return false, fmt.Errorf("failed to marshal claims: %w", err)
	}

	query := `
		INSERT INTO pipeline.signals
			(id, scope, target_symbol, target_type, content, content_hash,
			 direction, confidence, urgency, claims, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (scope, content_hash) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		sig.ID, sig.Scope, sig.TargetSymbol, sig.TargetType, sig.Content,
		sig.ContentHash, sig.Direction, sig.Confidence, sig.Urgency,
		claims, sig.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert signal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SeenHash reports whether the content hash is already recorded in the
// scope.
func (r *SignalRepository) SeenHash(ctx context.Context, scope contracts.Scope, hash string) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM pipeline.signals WHERE scope = $1 AND content_hash = $2)`
	if err := r.pool.QueryRow(ctx, query, scope, hash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check content hash: %w", err)
	}
	return exists, nil
}

// Supersede marks prior active signals for (target, type) as superseded by
// newID. Superseded rows are retained, never deleted.
func (r *SignalRepository) Supersede(ctx context.Context, scope contracts.Scope, targetSymbol string, targetType contracts.TargetType, newID string) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE pipeline.signals
		SET superseded_by = $4
		WHERE scope = $1 AND target_symbol = $2 AND target_type = $3
		  AND id <> $4 AND superseded_by IS NULL
	`
	if _, err := r.pool.Exec(ctx, query, scope, targetSymbol, targetType, newID); err != nil {
		return fmt.Errorf("failed to supersede signals: %w", err)
	}
	return nil
}

const signalColumns = `
	id, scope, target_symbol, target_type, content, content_hash,
	direction, confidence, urgency, claims, created_at,
	COALESCE(superseded_by, '')
`

// GetByIDs returns the signals with the given ids inside the scope.
func (r *SignalRepository) GetByIDs(ctx context.Context, scope contracts.Scope, ids []string) ([]contracts.Signal, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + signalColumns + ` FROM pipeline.signals WHERE scope = $1 AND id = ANY($2)`
	rows, err := r.pool.Query(ctx, query, scope, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals by id: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// List returns the scope's signals, newest first.
func (r *SignalRepository) List(ctx context.Context, scope contracts.Scope, filter contracts.SignalFilter) ([]contracts.Signal, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + signalColumns + ` FROM pipeline.signals WHERE scope = $1`
	args := []any{scope}

	if filter.TargetSymbol != "" {
		args = append(args, filter.TargetSymbol)
		query += fmt.Sprintf(" AND target_symbol = $%d", len(args))
	}
	if filter.Direction != "" {
		args = append(args, filter.Direction)
		query += fmt.Sprintf(" AND direction = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
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
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// DeleteByScope removes every signal in the scope. Scenario cleanup only.
func (r *SignalRepository) DeleteByScope(ctx context.Context, scope contracts.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM pipeline.signals WHERE scope = $1`, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to delete signals: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSignals(rows rowScanner) ([]contracts.Signal, error) {
	var out []contracts.Signal
	for rows.Next() {
		var (
			sig    contracts.Signal
			claims []byte
		)
		err := rows.Scan(
			&sig.ID, &sig.Scope, &sig.TargetSymbol, &sig.TargetType,
			&sig.Content, &sig.ContentHash, &sig.Direction, &sig.Confidence,
			&sig.Urgency, &claims, &sig.CreatedAt, &sig.SupersededBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		if len(claims) > 0 {
			if err := json.Unmarshal(claims, &sig.Claims); err != nil {
				return nil, fmt.Errorf("failed to unmarshal claims: %w", err)
			}
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return out, nil
}
