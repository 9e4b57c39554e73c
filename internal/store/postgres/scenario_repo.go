package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfeed/marketpulse/internal/contracts"
)

// ScenarioRepository implements contracts.ScenarioRepository.
type ScenarioRepository struct {
	pool *pgxpool.Pool
}

// NewScenarioRepository creates a scenario repository.
func NewScenarioRepository(pool *pgxpool.Pool) *ScenarioRepository {
	return &ScenarioRepository{pool: pool}
}

func stagesToStrings(stages []contracts.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

func stagesFromStrings(raw []string) []contracts.Stage {
	out := make([]contracts.Stage, len(raw))
	for i, s := range raw {
		out[i] = contracts.Stage(s)
	}
	return out
}

// Create persists a new scenario.
func (r *ScenarioRepository) Create(ctx context.Context, sc *contracts.TestScenario) error {
	query := `
		INSERT INTO pipeline.scenarios
			(id, name, injection_points, status, generated_count, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		sc.ID, sc.Name, stagesToStrings(sc.InjectionPoints), sc.Status,
		sc.GeneratedRecords, sc.LastError, sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	return nil
}

const scenarioColumns = `id, name, injection_points, status, generated_count, last_error, created_at, updated_at`

func scanScenario(row pgx.Row) (*contracts.TestScenario, error) {
	var (
		sc     contracts.TestScenario
		points []string
	)
	err := row.Scan(
		&sc.ID, &sc.Name, &points, &sc.Status, &sc.GeneratedRecords,
		&sc.LastError, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sc.InjectionPoints = stagesFromStrings(points)
	return &sc, nil
}

// Get returns one scenario by id.
func (r *ScenarioRepository) Get(ctx context.Context, id string) (*contracts.TestScenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM pipeline.scenarios WHERE id = $1`
	sc, err := scanScenario(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return sc, nil
}

// Update rewrites the scenario's mutable fields.
func (r *ScenarioRepository) Update(ctx context.Context, sc *contracts.TestScenario) error {
	query := `
		UPDATE pipeline.scenarios
		SET name = $2, injection_points = $3, status = $4,
		    generated_count = $5, last_error = $6, updated_at = $7
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		sc.ID, sc.Name, stagesToStrings(sc.InjectionPoints), sc.Status,
		sc.GeneratedRecords, sc.LastError, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrNotFound
	}
	return nil
}

// Delete removes the scenario; its stored sources cascade.
func (r *ScenarioRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pipeline.scenarios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrNotFound
	}
	return nil
}

// List returns all scenarios, oldest first.
func (r *ScenarioRepository) List(ctx context.Context) ([]contracts.TestScenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM pipeline.scenarios ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var out []contracts.TestScenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario row: %w", err)
		}
		out = append(out, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenario rows: %w", err)
	}
	return out, nil
}

// SaveSources stores synthetic sources pending the signal-detection tier.
// Batched, one round trip.
func (r *ScenarioRepository) SaveSources(ctx context.Context, scenarioID string, sources []contracts.Source) error {
	if len(sources) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range sources {
		payload, err := json.Marshal(&sources[i])
		if err != nil {
			return fmt.Errorf("failed to marshal source %s: %w", sources[i].ID, err)
		}
		batch.Queue(
			`INSERT INTO pipeline.scenario_sources (scenario_id, payload) VALUES ($1, $2)`,
			scenarioID, payload,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range sources {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save scenario source: %w", err)
		}
	}
	return nil
}

// GetSources returns the scenario's stored synthetic sources in insertion
// order.
func (r *ScenarioRepository) GetSources(ctx context.Context, scenarioID string) ([]contracts.Source, error) {
	query := `SELECT payload FROM pipeline.scenario_sources WHERE scenario_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario sources: %w", err)
	}
	defer rows.Close()

	var out []contracts.Source
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		var src contracts.Source
		if err := json.Unmarshal(payload, &src); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source payload: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}
	return out, nil
}

// DeleteSources removes the scenario's stored sources.
func (r *ScenarioRepository) DeleteSources(ctx context.Context, scenarioID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pipeline.scenario_sources WHERE scenario_id = $1`, scenarioID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scenario sources: %w", err)
	}
	return tag.RowsAffected(), nil
}
