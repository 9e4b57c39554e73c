package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/events"
	"github.com/quantfeed/marketpulse/pkg/config"
)

// StaticThresholds serves one threshold policy for every target. Built from
// configuration defaults; a per-target store can replace it behind the same
// interface.
type StaticThresholds struct {
	cfg contracts.ThresholdConfig
}

// NewStaticThresholds validates and wraps a single policy.
func NewStaticThresholds(cfg contracts.ThresholdConfig) (*StaticThresholds, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("threshold config: %w", err)
	}
	return &StaticThresholds{cfg: cfg}, nil
}

// For returns the policy for any target.
func (s *StaticThresholds) For(ctx context.Context, scope contracts.Scope, targetSymbol string) (contracts.ThresholdConfig, error) {
	return s.cfg, nil
}

// Pipeline chains synthesis, predictor building, evaluation and emission.
// The same instance serves production crawls and scenario tiers; isolation
// comes entirely from the scope passed in.
type Pipeline struct {
	synth      *Synthesizer
	builder    *Builder
	emitter    *Emitter
	thresholds contracts.ThresholdProvider
	predictors contracts.PredictorRepository
	locks      *targetLocks
	bus        *events.Bus
	log        zerolog.Logger
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Config     *config.Config
	Dedup      *DedupStore
	Signals    contracts.SignalRepository
	Predictors contracts.PredictorRepository
	Prediction contracts.PredictionRepository
	Classifier contracts.SentimentClassifier
	Thresholds contracts.ThresholdProvider
	Bus        *events.Bus
	Log        zerolog.Logger
}

// New wires a pipeline. Thresholds defaults to a static provider built from
// the configuration when nil.
func New(d Deps) (*Pipeline, error) {
	locks := newTargetLocks()

	thresholds := d.Thresholds
	if thresholds == nil {
		var err error
		thresholds, err = NewStaticThresholds(contracts.ThresholdConfig{
			MinPredictors:         d.Config.Threshold.MinPredictors,
			MinCombinedStrength:   d.Config.Threshold.MinCombinedStrength,
			MinDirectionConsensus: d.Config.Threshold.MinDirectionConsensus,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		synth:      NewSynthesizer(d.Config.Signal, d.Dedup, d.Signals, d.Classifier, d.Bus, d.Log),
		builder:    NewBuilder(d.Config.TTL, d.Predictors, d.Signals, locks, d.Bus, d.Log),
		emitter:    NewEmitter(d.Config.TTL, d.Prediction, d.Bus, d.Log),
		thresholds: thresholds,
		predictors: d.Predictors,
		locks:      locks,
		bus:        d.Bus,
		log:        d.Log.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Synthesizer exposes the signal stage for scenario tier runs.
func (p *Pipeline) Synthesizer() *Synthesizer { return p.synth }

// Builder exposes the predictor stage for scenario tier runs.
func (p *Pipeline) Builder() *Builder { return p.builder }

// IngestStats summarizes one batch.
type IngestStats struct {
	Sources     int `json:"sources"`
	Accepted    int `json:"accepted"`
	Skipped     int `json:"skipped"`
	Predictors  int `json:"predictors"`
	Evaluations int `json:"evaluations"`
	Emitted     int `json:"emitted"`
}

// Ingest runs a batch of sources through every stage. Per-source problems
// are logged and counted, never abort the batch; only scope and context
// failures surface as errors.
func (p *Pipeline) Ingest(ctx context.Context, scope contracts.Scope, sources []contracts.Source) (IngestStats, error) {
	stats := IngestStats{Sources: len(sources)}
	if err := scope.Validate(); err != nil {
		return stats, err
	}

	touched := make(map[string]contracts.TargetType)
	for i := range sources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		src := &sources[i]

		sig, err := p.synth.ProcessSource(ctx, scope, src)
		if err != nil {
			p.log.Error().Err(err).Str("symbol", src.TargetSymbol).Msg("synthesis failed")
			stats.Skipped++
			continue
		}
		if sig == nil {
			stats.Skipped++
			continue
		}
		stats.Accepted++

		pred, err := p.builder.ProcessSignal(ctx, sig)
		if err != nil {
			p.log.Error().Err(err).Str("signal", sig.ID).Msg("predictor build failed")
			continue
		}
		if pred != nil {
			stats.Predictors++
			touched[pred.TargetSymbol] = pred.TargetType
		}
	}

	// Evaluate each touched target once per batch, after all of its
	// signals have landed.
	for symbol, targetType := range touched {
		stats.Evaluations++
		res, err := p.EvaluateTarget(ctx, scope, symbol, targetType)
		if err != nil {
			p.log.Error().Err(err).Str("symbol", symbol).Msg("evaluation failed")
			continue
		}
		if res.Passed {
			stats.Emitted++
		}
	}

	p.log.Info().
		Str("scope", string(scope)).
		Int("sources", stats.Sources).
		Int("accepted", stats.Accepted).
		Int("skipped", stats.Skipped).
		Int("emitted", stats.Emitted).
		Msg("ingest batch complete")
	return stats, nil
}

// EvaluateTarget runs the threshold gates over the target's live pool and
// emits on a pass. Serialized per (scope, target) with the builder.
func (p *Pipeline) EvaluateTarget(ctx context.Context, scope contracts.Scope, targetSymbol string, targetType contracts.TargetType) (contracts.EvalResult, error) {
	if err := scope.Validate(); err != nil {
		return contracts.EvalResult{}, err
	}

	unlock := p.locks.lock(scope, targetSymbol)
	defer unlock()

	now := time.Now()
	pool, err := p.predictors.LivePool(ctx, scope, targetSymbol, now)
	if err != nil {
		return contracts.EvalResult{}, fmt.Errorf("load predictor pool: %w", err)
	}

	cfg, err := p.thresholds.For(ctx, scope, targetSymbol)
	if err != nil {
		return contracts.EvalResult{}, fmt.Errorf("resolve thresholds for %s: %w", targetSymbol, err)
	}

	res := Evaluate(pool, cfg)
	if p.bus != nil {
		outcome := events.OutcomeEvalFailed
		if res.Passed {
			outcome = events.OutcomeEvalPassed
		}
		p.bus.Publish(ctx, events.StageEvent{
			Stage:   string(contracts.StageEvaluation),
			Outcome: outcome,
			Scope:   scope,
			Target:  targetSymbol,
			Reason:  res.Reason,
		})
	}
	if !res.Passed {
		return res, nil
	}

	if _, err := p.emitter.Emit(ctx, scope, targetSymbol, targetType, res); err != nil {
		return res, err
	}
	return res, nil
}

// EvaluateScope re-evaluates every target with live predictors in the
// scope. Used by the evaluation scenario tier and the safety-net sweep.
func (p *Pipeline) EvaluateScope(ctx context.Context, scope contracts.Scope) ([]contracts.EvalResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	targets, err := p.predictors.LiveTargets(ctx, scope, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list live targets: %w", err)
	}

	results := make([]contracts.EvalResult, 0, len(targets))
	for _, symbol := range targets {
		res, err := p.EvaluateTarget(ctx, scope, symbol, p.targetTypeOf(ctx, scope, symbol))
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// targetTypeOf infers the asset class from the target's live pool.
func (p *Pipeline) targetTypeOf(ctx context.Context, scope contracts.Scope, symbol string) contracts.TargetType {
	pool, err := p.predictors.LivePool(ctx, scope, symbol, time.Now())
	if err == nil && len(pool) > 0 {
		return pool[0].TargetType
	}
	return contracts.TargetStock
}
