package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/store/memory"
	"github.com/quantfeed/marketpulse/pkg/config"
)

type testStores struct {
	signals     *memory.SignalStore
	predictors  *memory.PredictorStore
	predictions *memory.PredictionStore
}

func newTestPipeline(t *testing.T, thresholds contracts.ThresholdConfig) (*Pipeline, testStores) {
	t.Helper()
	stores := testStores{
		signals:     memory.NewSignalStore(),
		predictors:  memory.NewPredictorStore(),
		predictions: memory.NewPredictionStore(),
	}

	cfg := &config.Config{
		Signal: testSignalConfig(),
		TTL: config.TTLConfig{
			Stock:      24 * time.Hour,
			Crypto:     12 * time.Hour,
			Prediction: 24 * time.Hour,
		},
		Threshold: config.ThresholdDefaults{
			MinPredictors:         thresholds.MinPredictors,
			MinCombinedStrength:   thresholds.MinCombinedStrength,
			MinDirectionConsensus: thresholds.MinDirectionConsensus,
		},
	}

	p, err := New(Deps{
		Config:     cfg,
		Dedup:      NewDedupStore(stores.signals, nil, zerolog.Nop()),
		Signals:    stores.signals,
		Predictors: stores.predictors,
		Prediction: stores.predictions,
		Log:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, stores
}

func TestIngestEndToEnd(t *testing.T) {
	p, stores := newTestPipeline(t, contracts.ThresholdConfig{
		MinPredictors:         1,
		MinCombinedStrength:   5,
		MinDirectionConsensus: 0.6,
	})
	ctx := context.Background()

	sources := []contracts.Source{
		*quoteSource("src1", "AAPL", 231.5, 5.2),
		*quoteSource("src2", "MSFT", 418.2, -2.4),
		{ID: "src3", Provider: "quotes", TargetSymbol: "NVDA", TargetType: contracts.TargetStock, Err: "timeout"},
	}

	stats, err := p.Ingest(ctx, contracts.ScopeProduction, sources)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Accepted != 2 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v, want 2 accepted and 1 skipped", stats)
	}
	if stats.Emitted != 2 {
		t.Fatalf("stats = %+v, want predictions for both directional targets", stats)
	}

	aapl, err := stores.predictions.ActiveForTarget(ctx, contracts.ScopeProduction, "AAPL", time.Now())
	if err != nil {
		t.Fatalf("ActiveForTarget: %v", err)
	}
	if aapl == nil || aapl.Direction != contracts.DirectionBullish {
		t.Fatalf("AAPL prediction = %+v, want bullish", aapl)
	}
	if aapl.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want unanimous consensus 1.0", aapl.Confidence)
	}

	msft, err := stores.predictions.ActiveForTarget(ctx, contracts.ScopeProduction, "MSFT", time.Now())
	if err != nil {
		t.Fatalf("ActiveForTarget: %v", err)
	}
	if msft == nil || msft.Direction != contracts.DirectionBearish {
		t.Fatalf("MSFT prediction = %+v, want bearish", msft)
	}
}

func seedPool(t *testing.T, predictors *memory.PredictorStore, scope contracts.Scope, symbol string, strengths []float64) {
	t.Helper()
	now := time.Now()
	for i, s := range strengths {
		err := predictors.Insert(context.Background(), &contracts.Predictor{
			ID:           symbol + "-p" + string(rune('1'+i)),
			Scope:        scope,
			TargetSymbol: symbol,
			TargetType:   contracts.TargetStock,
			Direction:    contracts.DirectionBullish,
			Strength:     s,
			CreatedAt:    now,
			ExpiresAt:    now.Add(24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("seed predictor: %v", err)
		}
	}
}

func TestEvaluateTargetEmitsPrediction(t *testing.T) {
	p, stores := newTestPipeline(t, contracts.ThresholdConfig{
		MinPredictors:         3,
		MinCombinedStrength:   15,
		MinDirectionConsensus: 0.7,
	})
	ctx := context.Background()

	seedPool(t, stores.predictors, contracts.ScopeProduction, "AAPL", []float64{8, 7, 6})

	res, err := p.EvaluateTarget(ctx, contracts.ScopeProduction, "AAPL", contracts.TargetStock)
	if err != nil {
		t.Fatalf("EvaluateTarget: %v", err)
	}
	if !res.Passed {
		t.Fatalf("evaluation failed: %q", res.Reason)
	}
	if res.Consensus != 1.0 || res.CombinedStrength != 21 {
		t.Errorf("result = %+v, want consensus 1.0 and strength 21", res)
	}

	pred, err := stores.predictions.ActiveForTarget(ctx, contracts.ScopeProduction, "AAPL", time.Now())
	if err != nil {
		t.Fatalf("ActiveForTarget: %v", err)
	}
	if pred == nil {
		t.Fatal("no prediction emitted")
	}
	if pred.Timeframe != (24 * time.Hour).String() {
		t.Errorf("Timeframe = %q, want the stock TTL class", pred.Timeframe)
	}
	if len(pred.SourcePredictors) != 3 {
		t.Errorf("SourcePredictors = %v, want all three pool members", pred.SourcePredictors)
	}
}

func TestSingleActivePredictionPerTarget(t *testing.T) {
	p, stores := newTestPipeline(t, contracts.ThresholdConfig{
		MinPredictors:         3,
		MinCombinedStrength:   15,
		MinDirectionConsensus: 0.7,
	})
	ctx := context.Background()

	seedPool(t, stores.predictors, contracts.ScopeProduction, "AAPL", []float64{8, 7, 6})

	for i := 0; i < 2; i++ {
		if _, err := p.EvaluateTarget(ctx, contracts.ScopeProduction, "AAPL", contracts.TargetStock); err != nil {
			t.Fatalf("evaluation %d: %v", i+1, err)
		}
	}

	list, err := stores.predictions.List(ctx, contracts.ScopeProduction, contracts.PredictionFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("active predictions = %d, want the second evaluation to update in place", len(list))
	}
}

func TestEvaluateTargetScenarioPoolInvisibleToProduction(t *testing.T) {
	p, stores := newTestPipeline(t, contracts.ThresholdConfig{
		MinPredictors:         3,
		MinCombinedStrength:   15,
		MinDirectionConsensus: 0.7,
	})
	ctx := context.Background()

	// A strong pool tagged to a scenario must not make production pass.
	seedPool(t, stores.predictors, contracts.ScenarioScope("sc1"), "AAPL", []float64{10, 10, 10})

	res, err := p.EvaluateTarget(ctx, contracts.ScopeProduction, "AAPL", contracts.TargetStock)
	if err != nil {
		t.Fatalf("EvaluateTarget: %v", err)
	}
	if res.Passed {
		t.Fatal("production evaluation saw scenario predictors")
	}
	if res.Reason != contracts.ReasonInsufficientCount {
		t.Errorf("Reason = %q, want empty-pool count failure", res.Reason)
	}
}

func TestSweeperExpiresDueRows(t *testing.T) {
	predictors := memory.NewPredictorStore()
	predictions := memory.NewPredictionStore()
	s := NewSweeper(predictors, predictions, nil, zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	if err := predictors.Insert(ctx, &contracts.Predictor{
		ID: "due", Scope: contracts.ScopeProduction, TargetSymbol: "AAPL",
		TargetType: contracts.TargetStock, Direction: contracts.DirectionBullish,
		CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := predictors.Insert(ctx, &contracts.Predictor{
		ID: "live", Scope: contracts.ScopeProduction, TargetSymbol: "AAPL",
		TargetType: contracts.TargetStock, Direction: contracts.DirectionBullish,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := predictions.Upsert(ctx, &contracts.Prediction{
		ID: "pred", Scope: contracts.ScopeProduction, TargetSymbol: "AAPL",
		Direction: contracts.DirectionBullish, GeneratedAt: now.Add(-25 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := s.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.ExpiredPredictors != 1 || res.ExpiredPredictions != 1 {
		t.Fatalf("result = %+v, want one of each expired", res)
	}

	// No replacement prediction appears; the target reverts to none.
	active, err := predictions.ActiveForTarget(ctx, contracts.ScopeProduction, "AAPL", now)
	if err != nil {
		t.Fatalf("ActiveForTarget: %v", err)
	}
	if active != nil {
		t.Fatalf("active prediction after sweep = %+v, want none", active)
	}

	// Idempotent: sweeping again at the same instant expires nothing.
	res, err = s.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if res.ExpiredPredictors != 0 || res.ExpiredPredictions != 0 {
		t.Fatalf("second sweep = %+v, want no-op", res)
	}
}
