package contracts

import (
	"context"
	"time"
)

// SourceAdapter fetches and normalizes raw provider data for a batch of
// symbols. A failure on one symbol must not abort the batch: the failed
// entry comes back as a Source with Err set and no claims. Adapters carry
// no caching and no side effects beyond the network call.
type SourceAdapter interface {
	// Name identifies the provider ("quotes", "crypto", "news").
	Name() string

	// TargetType is the asset class this adapter reports on.
	TargetType() TargetType

	// Execute fetches one normalized Source per symbol (news adapters may
	// return several per topic). Partial results, never all-or-nothing.
	Execute(ctx context.Context, symbols []string) ([]Source, error)
}

// SentimentClassifier scores qualitative news content. The default
// implementation returns neutral; a model-backed classifier can be injected
// without touching the synthesizer.
type SentimentClassifier interface {
	Classify(ctx context.Context, headline, description string) (Direction, error)
}

// ThresholdProvider resolves the threshold policy for a target. A missing
// policy is a configuration error that halts evaluation for that target
// only.
type ThresholdProvider interface {
	For(ctx context.Context, scope Scope, targetSymbol string) (ThresholdConfig, error)
}

// SignalFilter narrows signal list reads.
type SignalFilter struct {
	TargetSymbol string
	Direction    Direction
	Limit        int
	Offset       int
}

// PredictionFilter narrows prediction list reads.
type PredictionFilter struct {
	TargetSymbol string
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// SignalRepository persists signals. Every method takes a Scope and must
// reject invalid scopes.
type SignalRepository interface {
	// Insert persists the signal unless its (scope, content_hash) already
	// exists. Returns false on duplicate; duplicates are not errors.
	Insert(ctx context.Context, sig *Signal) (bool, error)

	// SeenHash reports whether the content hash is already recorded.
	SeenHash(ctx context.Context, scope Scope, hash string) (bool, error)

	// Supersede marks active signals for (target, type) other than newID
	// as superseded by newID.
	Supersede(ctx context.Context, scope Scope, targetSymbol string, targetType TargetType, newID string) error

	GetByIDs(ctx context.Context, scope Scope, ids []string) ([]Signal, error)
	List(ctx context.Context, scope Scope, filter SignalFilter) ([]Signal, error)
	DeleteByScope(ctx context.Context, scope Scope) (int64, error)
}

// PredictorRepository persists predictors.
type PredictorRepository interface {
	Insert(ctx context.Context, p *Predictor) error

	// Update rewrites strength, source signals and expiry of an existing
	// predictor.
	Update(ctx context.Context, p *Predictor) error

	// FindLive returns the unexpired predictor for (target, direction),
	// or nil.
	FindLive(ctx context.Context, scope Scope, targetSymbol string, direction Direction, now time.Time) (*Predictor, error)

	// LivePool returns all unexpired predictors for the target.
	LivePool(ctx context.Context, scope Scope, targetSymbol string, now time.Time) ([]Predictor, error)

	// LiveTargets returns the distinct target symbols with unexpired
	// predictors in the scope.
	LiveTargets(ctx context.Context, scope Scope, now time.Time) ([]string, error)

	// ExpireDue marks predictors past their expiry as expired. Idempotent.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	DeleteByScope(ctx context.Context, scope Scope) (int64, error)
}

// PredictionRepository persists predictions.
type PredictionRepository interface {
	// ActiveForTarget returns the single active prediction for the
	// target, or nil.
	ActiveForTarget(ctx context.Context, scope Scope, targetSymbol string, now time.Time) (*Prediction, error)

	// Upsert creates or replaces the prediction row by id.
	Upsert(ctx context.Context, p *Prediction) error

	Get(ctx context.Context, scope Scope, id string) (*Prediction, error)
	List(ctx context.Context, scope Scope, filter PredictionFilter) ([]Prediction, error)

	// ExpireDue marks predictions past their expiry as expired. Idempotent.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	DeleteByScope(ctx context.Context, scope Scope) (int64, error)
}

// ScenarioRepository persists scenario definitions and their synthetic
// source payloads.
type ScenarioRepository interface {
	Create(ctx context.Context, sc *TestScenario) error
	Get(ctx context.Context, id string) (*TestScenario, error)
	Update(ctx context.Context, sc *TestScenario) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]TestScenario, error)

	// SaveSources stores synthetic sources pending the signal-detection
	// tier.
	SaveSources(ctx context.Context, scenarioID string, sources []Source) error
	GetSources(ctx context.Context, scenarioID string) ([]Source, error)
	DeleteSources(ctx context.Context, scenarioID string) (int64, error)
}
