package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/events"
	"github.com/quantfeed/marketpulse/pkg/config"
)

// Emitter commits passing evaluations as predictions. At most one active
// prediction exists per (scope, target): a newer passing evaluation updates
// the existing row in place instead of creating a second one.
type Emitter struct {
	ttl         config.TTLConfig
	predictions contracts.PredictionRepository
	bus         *events.Bus
	log         zerolog.Logger
}

// NewEmitter creates a prediction emitter.
func NewEmitter(ttl config.TTLConfig, predictions contracts.PredictionRepository, bus *events.Bus, log zerolog.Logger) *Emitter {
	return &Emitter{
		ttl:         ttl,
		predictions: predictions,
		bus:         bus,
		log:         log.With().Str("component", "pipeline.emitter").Logger(),
	}
}

// Emit persists the prediction for a passing evaluation. The result's
// consensus becomes the prediction confidence and magnitude scales combined
// strength by consensus onto a 0-based percent estimate. The caller holds
// the target lock.
func (e *Emitter) Emit(
	ctx context.Context,
	scope contracts.Scope,
	targetSymbol string,
	targetType contracts.TargetType,
	res contracts.EvalResult,
) (*contracts.Prediction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if !res.Passed {
		return nil, fmt.Errorf("emit called with a failed evaluation for %s", targetSymbol)
	}

	now := time.Now()
	p, err := e.predictions.ActiveForTarget(ctx, scope, targetSymbol, now)
	if err != nil {
		return nil, fmt.Errorf("load active prediction: %w", err)
	}
	if p == nil {
		p = &contracts.Prediction{
			ID:           uuid.NewString(),
			Scope:        scope,
			TargetSymbol: targetSymbol,
		}
	}

	p.Direction = res.Direction
	p.Confidence = res.Consensus
	p.Magnitude = res.CombinedStrength / 10 * res.Consensus
	p.Timeframe = e.timeframe(targetType)
	p.GeneratedAt = now
	p.ExpiresAt = now.Add(e.ttl.Prediction)
	p.SourcePredictors = res.PredictorIDs
	p.Expired = false

	if err := e.predictions.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert prediction: %w", err)
	}

	if e.bus != nil {
		e.bus.Publish(ctx, events.StageEvent{
			Stage:   string(contracts.StageEvaluation),
			Outcome: events.OutcomePredictionEmit,
			Scope:   scope,
			Target:  targetSymbol,
		})
	}
	e.log.Info().
		Str("prediction", p.ID).
		Str("symbol", p.TargetSymbol).
		Str("direction", string(p.Direction)).
		Float64("confidence", p.Confidence).
		Float64("magnitude", p.Magnitude).
		Msg("prediction emitted")

	return p, nil
}

// timeframe mirrors the predictor TTL class of the asset.
func (e *Emitter) timeframe(t contracts.TargetType) string {
	if t == contracts.TargetCrypto {
		return e.ttl.Crypto.String()
	}
	return e.ttl.Stock.String()
}
