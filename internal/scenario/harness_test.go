package scenario

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/pipeline"
	"github.com/quantfeed/marketpulse/internal/store/memory"
	"github.com/quantfeed/marketpulse/pkg/config"
)

type fixture struct {
	harness     *Harness
	pipe        *pipeline.Pipeline
	signals     *memory.SignalStore
	predictors  *memory.PredictorStore
	predictions *memory.PredictionStore
	scenarios   *memory.ScenarioStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signals := memory.NewSignalStore()
	predictors := memory.NewPredictorStore()
	predictions := memory.NewPredictionStore()
	scenarios := memory.NewScenarioStore()

	cfg := &config.Config{
		Signal: config.SignalConfig{
			UrgentChangePct:  5.0,
			NotableChangePct: 2.0,
			QuoteConfidence:  0.95,
			CryptoConfidence: 0.9,
			NewsConfidence:   0.7,
		},
		TTL: config.TTLConfig{
			Stock:      24 * time.Hour,
			Crypto:     12 * time.Hour,
			Prediction: 24 * time.Hour,
		},
		Threshold: config.ThresholdDefaults{
			MinPredictors:         3,
			MinCombinedStrength:   15,
			MinDirectionConsensus: 0.7,
		},
	}

	dedup := pipeline.NewDedupStore(signals, nil, zerolog.Nop())
	pipe, err := pipeline.New(pipeline.Deps{
		Config:     cfg,
		Dedup:      dedup,
		Signals:    signals,
		Predictors: predictors,
		Prediction: predictions,
		Log:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	h := NewHarness(cfg, pipe, scenarios, signals, predictors, predictions, dedup, nil, zerolog.Nop())
	return &fixture{
		harness:     h,
		pipe:        pipe,
		signals:     signals,
		predictors:  predictors,
		predictions: predictions,
		scenarios:   scenarios,
	}
}

func TestScenarioSignalDetectionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc, err := f.harness.Create(ctx, "smoke", []string{"signal-detection"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sc.Status != contracts.ScenarioActive {
		t.Fatalf("Status = %q, want active", sc.Status)
	}

	sc, err = f.harness.Generate(ctx, sc.ID, GenerateParams{Count: 30, Seed: 42})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sc.GeneratedRecords != 30 {
		t.Errorf("GeneratedRecords = %d, want 30", sc.GeneratedRecords)
	}

	sc, err = f.harness.Run(ctx, sc.ID, contracts.StageSignalDetection)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sc.Status != contracts.ScenarioCompleted {
		t.Fatalf("Status = %q (err %q), want completed", sc.Status, sc.LastError)
	}

	// Synthesized signals land under the scenario scope only.
	tagged, err := f.signals.List(ctx, sc.Scope(), contracts.SignalFilter{})
	if err != nil {
		t.Fatalf("List scenario signals: %v", err)
	}
	if len(tagged) == 0 {
		t.Fatal("no signals synthesized from generated sources")
	}
	prod, err := f.signals.List(ctx, contracts.ScopeProduction, contracts.SignalFilter{})
	if err != nil {
		t.Fatalf("List production signals: %v", err)
	}
	if len(prod) != 0 {
		t.Fatalf("scenario run leaked %d signals into production", len(prod))
	}
}

func seedScenarioPredictors(t *testing.T, f *fixture, scope contracts.Scope, symbol string, strengths []float64) {
	t.Helper()
	now := time.Now()
	for i, s := range strengths {
		err := f.predictors.Insert(context.Background(), &contracts.Predictor{
			ID:           string(scope) + "-" + symbol + "-" + string(rune('a'+i)),
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

func TestScenarioEvaluationIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scA, err := f.harness.Create(ctx, "scenario-a", []string{"evaluation"})
	if err != nil {
		t.Fatalf("Create A: %v", err)
	}
	scB, err := f.harness.Create(ctx, "scenario-b", []string{"evaluation"})
	if err != nil {
		t.Fatalf("Create B: %v", err)
	}

	// Same symbol in three partitions; only A's pool clears the policy.
	seedScenarioPredictors(t, f, scA.Scope(), "AAPL", []float64{8, 7, 6})
	seedScenarioPredictors(t, f, scB.Scope(), "AAPL", []float64{1, 1})
	seedScenarioPredictors(t, f, contracts.ScopeProduction, "AAPL", []float64{2, 2})

	if _, err := f.harness.Run(ctx, scA.ID, contracts.StageEvaluation); err != nil {
		t.Fatalf("Run A: %v", err)
	}

	now := time.Now()
	if p, _ := f.predictions.ActiveForTarget(ctx, scA.Scope(), "AAPL", now); p == nil {
		t.Fatal("scenario A should emit a prediction")
	}
	if p, _ := f.predictions.ActiveForTarget(ctx, scB.Scope(), "AAPL", now); p != nil {
		t.Fatalf("scenario A's run wrote into scenario B: %+v", p)
	}
	if p, _ := f.predictions.ActiveForTarget(ctx, contracts.ScopeProduction, "AAPL", now); p != nil {
		t.Fatalf("scenario A's run wrote into production: %+v", p)
	}

	// B's weak pool stays untouched by A's run.
	poolB, err := f.predictors.LivePool(ctx, scB.Scope(), "AAPL", now)
	if err != nil {
		t.Fatalf("LivePool B: %v", err)
	}
	if len(poolB) != 2 {
		t.Fatalf("scenario B pool = %d predictors, want 2 untouched", len(poolB))
	}
}

func TestRunWithoutDataFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc, err := f.harness.Create(ctx, "empty", []string{"signal-detection"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sc, err = f.harness.Run(ctx, sc.ID, contracts.StageSignalDetection)
	if err == nil {
		t.Fatal("expected an error for a scenario with no data")
	}
	if sc.Status != contracts.ScenarioFailed {
		t.Fatalf("Status = %q, want failed", sc.Status)
	}
	if sc.LastError == "" {
		t.Error("LastError not recorded")
	}

	// A failed scenario is re-runnable after data arrives.
	if _, err := f.harness.Generate(ctx, sc.ID, GenerateParams{Count: 5, Seed: 7}); err != nil {
		t.Fatalf("Generate after failure: %v", err)
	}
	sc, err = f.harness.Run(ctx, sc.ID, contracts.StageSignalDetection)
	if err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if sc.Status != contracts.ScenarioCompleted {
		t.Fatalf("Status = %q after re-run, want completed", sc.Status)
	}
}

func TestCleanupRemovesTaggedRecordsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc, err := f.harness.Create(ctx, "cleanup", []string{"signal-detection"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.harness.Generate(ctx, sc.ID, GenerateParams{Count: 10, Seed: 3}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := f.harness.Run(ctx, sc.ID, contracts.StageSignalDetection); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seedScenarioPredictors(t, f, contracts.ScopeProduction, "AAPL", []float64{5})

	if err := f.harness.Cleanup(ctx, sc.ID); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if _, err := f.harness.Get(ctx, sc.ID); err == nil {
		t.Fatal("scenario still exists after cleanup")
	}
	tagged, err := f.signals.List(ctx, sc.Scope(), contracts.SignalFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tagged) != 0 {
		t.Fatalf("%d tagged signals survive cleanup", len(tagged))
	}

	prodPool, err := f.predictors.LivePool(ctx, contracts.ScopeProduction, "AAPL", time.Now())
	if err != nil {
		t.Fatalf("LivePool: %v", err)
	}
	if len(prodPool) != 1 {
		t.Fatal("cleanup touched production records")
	}
}

func TestExportRoundTrips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc, err := f.harness.Create(ctx, "export", []string{"signal-detection"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.harness.Generate(ctx, sc.ID, GenerateParams{Count: 8, Seed: 11}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := f.harness.Run(ctx, sc.ID, contracts.StageSignalDetection); err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := f.harness.ExportScenario(ctx, sc.ID)
	if err != nil {
		t.Fatalf("ExportScenario: %v", err)
	}

	var exp Export
	if err := json.Unmarshal(raw, &exp); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if exp.Scenario.ID != sc.ID {
		t.Errorf("exported scenario id = %q, want %q", exp.Scenario.ID, sc.ID)
	}
	if len(exp.Sources) != 8 {
		t.Errorf("exported sources = %d, want 8", len(exp.Sources))
	}
	if len(exp.Signals) == 0 {
		t.Error("export missing synthesized signals")
	}
}

func TestArchivedScenarioRejectsOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc, err := f.harness.Create(ctx, "archived", []string{"signal-detection"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.harness.Archive(ctx, sc.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if _, err := f.harness.Generate(ctx, sc.ID, GenerateParams{Count: 5}); err != contracts.ErrScenarioArchived {
		t.Errorf("Generate on archived = %v, want ErrScenarioArchived", err)
	}
	if _, err := f.harness.Run(ctx, sc.ID, contracts.StageEvaluation); err == nil {
		t.Error("Run on archived scenario should fail")
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(99).Sources("sc", 10, contracts.DefaultSentimentDistribution())
	b := NewGenerator(99).Sources("sc", 10, contracts.DefaultSentimentDistribution())
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].TargetSymbol != b[i].TargetSymbol {
			t.Fatalf("symbol %d differs: %q vs %q", i, a[i].TargetSymbol, b[i].TargetSymbol)
		}
		ca, _ := a[i].Claim(contracts.ClaimChangePercent)
		cb, _ := b[i].Claim(contracts.ClaimChangePercent)
		if ca.Value != cb.Value {
			t.Fatalf("change %d differs: %v vs %v", i, ca.Value, cb.Value)
		}
	}
}
