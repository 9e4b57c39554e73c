package contracts

import (
	"fmt"
	"time"
)

// ThresholdConfig is the policy a target's predictor pool must clear before
// a prediction is emitted. Owned by configuration surfaces; read-only to the
// pipeline.
type ThresholdConfig struct {
	MinPredictors         int     `json:"min_predictors"`
	MinCombinedStrength   float64 `json:"min_combined_strength"`
	MinDirectionConsensus float64 `json:"min_direction_consensus"`
}

// Validate checks the policy for configuration errors.
func (c ThresholdConfig) Validate() error {
	if c.MinPredictors < 1 {
		return fmt.Errorf("min_predictors must be >= 1, got %d", c.MinPredictors)
	}
	if c.MinCombinedStrength < 0 {
		return fmt.Errorf("min_combined_strength must be >= 0, got %v", c.MinCombinedStrength)
	}
	if c.MinDirectionConsensus <= 0 || c.MinDirectionConsensus > 1 {
		return fmt.Errorf("min_direction_consensus must be in (0,1], got %v", c.MinDirectionConsensus)
	}
	return nil
}

// Evaluation failure reasons. Machine-readable; surfaced verbatim through
// events and the API.
const (
	ReasonInsufficientCount     = "insufficient predictor count"
	ReasonInsufficientStrength  = "insufficient combined strength"
	ReasonInsufficientConsensus = "insufficient direction consensus"
)

// EvalResult is the outcome of one threshold evaluation. A failed evaluation
// is not an error: it is the steady state for most targets most of the time.
type EvalResult struct {
	Passed           bool      `json:"passed"`
	Reason           string    `json:"reason,omitempty"`
	Direction        Direction `json:"direction"`
	Consensus        float64   `json:"consensus"`
	CombinedStrength float64   `json:"combined_strength"`
	PredictorCount   int       `json:"predictor_count"`
	PredictorIDs     []string  `json:"predictor_ids,omitempty"`
}

// Prediction is the pipeline's committed directional call for a target.
// At most one active prediction exists per (scope, target) at any instant;
// a newer passing evaluation updates it in place.
type Prediction struct {
	ID               string    `json:"id"`
	Scope            Scope     `json:"scope"`
	TargetSymbol     string    `json:"target_symbol"`
	Direction        Direction `json:"direction"`
	Confidence       float64   `json:"confidence"`
	Magnitude        float64   `json:"magnitude"`
	Timeframe        string    `json:"timeframe"`
	GeneratedAt      time.Time `json:"generated_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	SourcePredictors []string  `json:"source_predictors"`
	Expired          bool      `json:"expired"`
}

// Live reports whether the prediction is active at now.
func (p *Prediction) Live(now time.Time) bool {
	return !p.Expired && now.Before(p.ExpiresAt)
}
