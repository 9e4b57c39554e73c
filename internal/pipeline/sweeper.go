package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/events"
)

// Sweeper retires predictors and predictions past their expiry. Expiry is a
// logical delete: rows stay for audit and drop out of active pools. The
// sweeper never triggers a re-evaluation; an idle target reverts to "no
// active prediction" until new signals arrive.
type Sweeper struct {
	predictors  contracts.PredictorRepository
	predictions contracts.PredictionRepository
	bus         *events.Bus
	log         zerolog.Logger
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(predictors contracts.PredictorRepository, predictions contracts.PredictionRepository, bus *events.Bus, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		predictors:  predictors,
		predictions: predictions,
		bus:         bus,
		log:         log.With().Str("component", "pipeline.sweeper").Logger(),
	}
}

// SweepResult counts one sweep's expirations.
type SweepResult struct {
	ExpiredPredictors  int64 `json:"expired_predictors"`
	ExpiredPredictions int64 `json:"expired_predictions"`
}

// Sweep marks everything with expires_at before now as expired. Idempotent:
// a second call at the same instant expires nothing further.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult

	n, err := s.predictors.ExpireDue(ctx, now)
	if err != nil {
		return res, err
	}
	res.ExpiredPredictors = n

	n, err = s.predictions.ExpireDue(ctx, now)
	if err != nil {
		return res, err
	}
	res.ExpiredPredictions = n

	if res.ExpiredPredictors > 0 || res.ExpiredPredictions > 0 {
		s.log.Info().
			Int64("predictors", res.ExpiredPredictors).
			Int64("predictions", res.ExpiredPredictions).
			Msg("expiry sweep")
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.StageEvent{
			Stage:   "sweep",
			Outcome: events.OutcomeSweepCompleted,
			Scope:   contracts.ScopeProduction,
		})
	}
	return res, nil
}
