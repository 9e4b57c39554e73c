package pipeline

import (
	"github.com/quantfeed/marketpulse/internal/contracts"
)

// Evaluate applies the threshold policy to a live predictor pool. Gates run
// in a fixed order and the first failing gate short-circuits with its
// reason. Pure function over its inputs, so the same pool and policy always
// reproduce the same result.
func Evaluate(pool []contracts.Predictor, cfg contracts.ThresholdConfig) contracts.EvalResult {
	res := contracts.EvalResult{PredictorCount: len(pool)}

	var (
		bullish, bearish int
		combined         float64
	)
	for i := range pool {
		p := &pool[i]
		combined += p.Strength
		res.PredictorIDs = append(res.PredictorIDs, p.ID)
		switch p.Direction {
		case contracts.DirectionBullish:
			bullish++
		case contracts.DirectionBearish:
			bearish++
		}
	}
	res.CombinedStrength = combined

	if len(pool) < cfg.MinPredictors {
		res.Reason = contracts.ReasonInsufficientCount
		return res
	}

	if combined < cfg.MinCombinedStrength {
		res.Reason = contracts.ReasonInsufficientStrength
		return res
	}

	// Neutral predictors are excluded from the consensus denominator. An
	// all-neutral pool has no majority direction and never emits.
	directional := bullish + bearish
	if directional == 0 {
		res.Reason = contracts.ReasonInsufficientConsensus
		return res
	}

	majority := bullish
	res.Direction = contracts.DirectionBullish
	if bearish > bullish {
		majority = bearish
		res.Direction = contracts.DirectionBearish
	}
	res.Consensus = float64(majority) / float64(directional)

	// An exact tie yields 0.5 with no tie-break; any policy above 0.5
	// rejects it.
	if res.Consensus < cfg.MinDirectionConsensus {
		res.Direction = ""
		res.Reason = contracts.ReasonInsufficientConsensus
		return res
	}

	res.Passed = true
	return res
}
