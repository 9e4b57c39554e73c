package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/events"
	"github.com/quantfeed/marketpulse/pkg/config"
)

// Builder aggregates accepted signals into directional predictors.
type Builder struct {
	ttl        config.TTLConfig
	predictors contracts.PredictorRepository
	signals    contracts.SignalRepository
	locks      *targetLocks
	bus        *events.Bus
	log        zerolog.Logger
}

// NewBuilder creates a predictor builder. locks serializes append-or-create
// per (scope, target) and is shared with the emitter path.
func NewBuilder(
	ttl config.TTLConfig,
	predictors contracts.PredictorRepository,
	signals contracts.SignalRepository,
	locks *targetLocks,
	bus *events.Bus,
	log zerolog.Logger,
) *Builder {
	return &Builder{
		ttl:        ttl,
		predictors: predictors,
		signals:    signals,
		locks:      locks,
		bus:        bus,
		log:        log.With().Str("component", "pipeline.builder").Logger(),
	}
}

// SignalStrength scores one signal on the 0..10 scale: rounded confidence
// times ten plus the urgency bonus, clamped so urgent signals never exceed
// the scale.
func SignalStrength(sig *contracts.Signal) float64 {
	base := math.Round(sig.Confidence * 10)
	return contracts.ClampStrength(contracts.ClampStrength(base) + sig.Urgency.Bonus())
}

// TTLFor returns the predictor lifetime for an asset class.
func (b *Builder) TTLFor(t contracts.TargetType) time.Duration {
	if t == contracts.TargetCrypto {
		return b.ttl.Crypto
	}
	return b.ttl.Stock
}

// ProcessSignal absorbs one accepted signal into the target's predictor
// pool. Neutral signals carry no directional evidence and build nothing.
// Returns the created or updated predictor, or nil for neutral input.
func (b *Builder) ProcessSignal(ctx context.Context, sig *contracts.Signal) (*contracts.Predictor, error) {
	if err := sig.Scope.Validate(); err != nil {
		return nil, err
	}
	if !sig.Direction.IsDirectional() {
		b.log.Debug().Str("signal", sig.ID).Msg("neutral signal, no predictor")
		return nil, nil
	}

	unlock := b.locks.lock(sig.Scope, sig.TargetSymbol)
	defer unlock()

	now := time.Now()
	existing, err := b.predictors.FindLive(ctx, sig.Scope, sig.TargetSymbol, sig.Direction, now)
	if err != nil {
		return nil, fmt.Errorf("find live predictor: %w", err)
	}

	if existing == nil {
		p := &contracts.Predictor{
			ID:            uuid.NewString(),
			Scope:         sig.Scope,
			TargetSymbol:  sig.TargetSymbol,
			TargetType:    sig.TargetType,
			Direction:     sig.Direction,
			Strength:      SignalStrength(sig),
			SourceSignals: []string{sig.ID},
			CreatedAt:     now,
			ExpiresAt:     now.Add(b.TTLFor(sig.TargetType)),
		}
		if err := b.predictors.Insert(ctx, p); err != nil {
			return nil, fmt.Errorf("insert predictor: %w", err)
		}
		b.publish(ctx, sig.Scope, sig.TargetSymbol, events.OutcomePredictorCreated)
		b.log.Debug().
			Str("predictor", p.ID).
			Str("symbol", p.TargetSymbol).
			Str("direction", string(p.Direction)).
			Float64("strength", p.Strength).
			Msg("predictor created")
		return p, nil
	}

	// Corroboration: append the signal and recompute strength across all
	// members. Expiry is anchored at creation and is not extended.
	existing.SourceSignals = append(existing.SourceSignals, sig.ID)
	strength, err := b.combinedStrength(ctx, sig.Scope, existing.SourceSignals)
	if err != nil {
		return nil, err
	}
	existing.Strength = strength
	if err := b.predictors.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update predictor: %w", err)
	}
	b.publish(ctx, sig.Scope, sig.TargetSymbol, events.OutcomePredictorUpdated)
	b.log.Debug().
		Str("predictor", existing.ID).
		Int("signals", len(existing.SourceSignals)).
		Float64("strength", existing.Strength).
		Msg("predictor corroborated")
	return existing, nil
}

// combinedStrength is the confidence-weighted mean of member signal
// strengths plus the pool's highest urgency bonus, clamped. Monotonic in
// corroboration: adding an agreeing signal never lowers the score below the
// strongest member's base.
func (b *Builder) combinedStrength(ctx context.Context, scope contracts.Scope, signalIDs []string) (float64, error) {
	members, err := b.signals.GetByIDs(ctx, scope, signalIDs)
	if err != nil {
		return 0, fmt.Errorf("load member signals: %w", err)
	}
	if len(members) == 0 {
		return 0, fmt.Errorf("predictor has no resolvable member signals")
	}

	var weighted, weight, bonus float64
	for i := range members {
		m := &members[i]
		weighted += math.Round(m.Confidence*10) * m.Confidence
		weight += m.Confidence
		if mb := m.Urgency.Bonus(); mb > bonus {
			bonus = mb
		}
	}
	if weight == 0 {
		return 0, nil
	}
	return contracts.ClampStrength(weighted/weight + bonus), nil
}

func (b *Builder) publish(ctx context.Context, scope contracts.Scope, target, outcome string) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(ctx, events.StageEvent{
		Stage:   string(contracts.StagePredictionGeneration),
		Outcome: outcome,
		Scope:   scope,
		Target:  target,
	})
}
