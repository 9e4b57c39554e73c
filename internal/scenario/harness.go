package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/events"
	"github.com/quantfeed/marketpulse/internal/pipeline"
	"github.com/quantfeed/marketpulse/pkg/config"
)

// Harness orchestrates test scenarios against the production pipeline code
// paths. Every record a scenario touches is tagged with its scope, so
// production evaluation never sees synthetic rows and a run never sees
// another scenario's rows.
type Harness struct {
	cfg         *config.Config
	pipe        *pipeline.Pipeline
	scenarios   contracts.ScenarioRepository
	signals     contracts.SignalRepository
	predictors  contracts.PredictorRepository
	predictions contracts.PredictionRepository
	dedup       *pipeline.DedupStore
	bus         *events.Bus
	log         zerolog.Logger
}

// NewHarness wires a scenario harness around the shared pipeline.
func NewHarness(
	cfg *config.Config,
	pipe *pipeline.Pipeline,
	scenarios contracts.ScenarioRepository,
	signals contracts.SignalRepository,
	predictors contracts.PredictorRepository,
	predictions contracts.PredictionRepository,
	dedup *pipeline.DedupStore,
	bus *events.Bus,
	log zerolog.Logger,
) *Harness {
	return &Harness{
		cfg:         cfg,
		pipe:        pipe,
		scenarios:   scenarios,
		signals:     signals,
		predictors:  predictors,
		predictions: predictions,
		dedup:       dedup,
		bus:         bus,
		log:         log.With().Str("component", "scenario.harness").Logger(),
	}
}

// Create registers a new scenario in the active state.
func (h *Harness) Create(ctx context.Context, name string, injectionPoints []string) (*contracts.TestScenario, error) {
	if name == "" {
		return nil, fmt.Errorf("scenario name is required")
	}
	stages := make([]contracts.Stage, 0, len(injectionPoints))
	for _, p := range injectionPoints {
		stage, err := contracts.ParseStage(p)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	if len(stages) == 0 {
		stages = []contracts.Stage{contracts.StageSignalDetection}
	}

	now := time.Now()
	sc := &contracts.TestScenario{
		ID:              uuid.NewString(),
		Name:            name,
		InjectionPoints: stages,
		Status:          contracts.ScenarioActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.scenarios.Create(ctx, sc); err != nil {
		return nil, fmt.Errorf("create scenario: %w", err)
	}
	h.log.Info().Str("scenario", sc.ID).Str("name", name).Msg("scenario created")
	return sc, nil
}

// GenerateParams shapes one synthetic dataset.
type GenerateParams struct {
	DataType  string // "sources", "signals" or "predictors"; "" picks by injection point
	Count     int
	Sentiment contracts.SentimentDistribution
	Seed      int64
}

// Generate synthesizes tagged records for the scenario and stores them past
// the source-adapter stage, at whichever stage the scenario injects.
func (h *Harness) Generate(ctx context.Context, scenarioID string, params GenerateParams) (*contracts.TestScenario, error) {
	sc, err := h.scenarios.Get(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	if sc.Status == contracts.ScenarioRunning {
		return nil, contracts.ErrScenarioRunning
	}
	if sc.Status == contracts.ScenarioArchived {
		return nil, contracts.ErrScenarioArchived
	}

	if params.Count <= 0 {
		params.Count = 20
	}
	if params.Sentiment == (contracts.SentimentDistribution{}) {
		params.Sentiment = contracts.DefaultSentimentDistribution()
	}
	if err := params.Sentiment.Validate(); err != nil {
		return nil, err
	}
	dataType := params.DataType
	if dataType == "" {
		dataType = h.defaultDataType(sc)
	}

	gen := NewGenerator(params.Seed)
	scope := sc.Scope()

	switch dataType {
	case "sources":
		sources := gen.Sources(sc.ID, params.Count, params.Sentiment)
		if err := h.scenarios.SaveSources(ctx, sc.ID, sources); err != nil {
			return nil, fmt.Errorf("save synthetic sources: %w", err)
		}
	case "signals":
		for _, sig := range gen.Signals(scope, params.Count, params.Sentiment) {
			sig := sig
			if _, err := h.signals.Insert(ctx, &sig); err != nil {
				return nil, fmt.Errorf("insert synthetic signal: %w", err)
			}
		}
	case "predictors":
		for _, p := range gen.Predictors(scope, params.Count, params.Sentiment, h.cfg.TTL.Stock) {
			p := p
			if err := h.predictors.Insert(ctx, &p); err != nil {
				return nil, fmt.Errorf("insert synthetic predictor: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}

	sc.GeneratedRecords += params.Count
	sc.UpdatedAt = time.Now()
	if err := h.scenarios.Update(ctx, sc); err != nil {
		return nil, fmt.Errorf("update scenario: %w", err)
	}
	h.log.Info().
		Str("scenario", sc.ID).
		Str("data_type", dataType).
		Int("count", params.Count).
		Msg("synthetic data generated")
	return sc, nil
}

// defaultDataType maps the scenario's earliest injection point to the kind
// of record that stage consumes.
func (h *Harness) defaultDataType(sc *contracts.TestScenario) string {
	switch {
	case sc.InjectsAt(contracts.StageSignalDetection):
		return "sources"
	case sc.InjectsAt(contracts.StagePredictionGeneration):
		return "signals"
	default:
		return "predictors"
	}
}

// Run executes exactly one pipeline tier against the scenario's tagged
// records. The scenario moves to running for the duration and lands on
// completed or failed; a panic inside a tier is caught and recorded as a
// failure rather than taking the process down.
func (h *Harness) Run(ctx context.Context, scenarioID string, tier contracts.Stage) (sc *contracts.TestScenario, err error) {
	sc, err = h.scenarios.Get(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	if err := sc.Start(); err != nil {
		return nil, err
	}
	if err := h.scenarios.Update(ctx, sc); err != nil {
		return nil, fmt.Errorf("mark scenario running: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tier %s panicked: %v", tier, r)
		}
		if err != nil {
			sc.Fail(err)
			h.publishTier(ctx, sc, tier, events.OutcomeTierFailed, err.Error())
		} else {
			sc.Complete()
			h.publishTier(ctx, sc, tier, events.OutcomeTierCompleted, "")
		}
		if uerr := h.scenarios.Update(ctx, sc); uerr != nil {
			h.log.Error().Err(uerr).Str("scenario", sc.ID).Msg("scenario state update failed")
		}
	}()

	switch tier {
	case contracts.StageSignalDetection:
		err = h.runSignalDetection(ctx, sc)
	case contracts.StagePredictionGeneration:
		err = h.runPredictionGeneration(ctx, sc)
	case contracts.StageEvaluation:
		err = h.runEvaluation(ctx, sc)
	default:
		err = fmt.Errorf("unknown pipeline stage %q", tier)
	}
	return sc, err
}

// runSignalDetection feeds the scenario's stored synthetic sources through
// the shared synthesis path under the scenario scope.
func (h *Harness) runSignalDetection(ctx context.Context, sc *contracts.TestScenario) error {
	sources, err := h.scenarios.GetSources(ctx, sc.ID)
	if err != nil {
		return fmt.Errorf("load synthetic sources: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("scenario %s has no generated sources", sc.ID)
	}
	scope := sc.Scope()
	for i := range sources {
		if _, err := h.pipe.Synthesizer().ProcessSource(ctx, scope, &sources[i]); err != nil {
			return fmt.Errorf("source %s: %w", sources[i].ID, err)
		}
	}
	return nil
}

// runPredictionGeneration builds predictors from the scenario's active
// signals.
func (h *Harness) runPredictionGeneration(ctx context.Context, sc *contracts.TestScenario) error {
	scope := sc.Scope()
	signals, err := h.signals.List(ctx, scope, contracts.SignalFilter{})
	if err != nil {
		return fmt.Errorf("load scenario signals: %w", err)
	}
	if len(signals) == 0 {
		return fmt.Errorf("scenario %s has no signals", sc.ID)
	}
	for i := range signals {
		sig := &signals[i]
		if !sig.Active() {
			continue
		}
		if _, err := h.pipe.Builder().ProcessSignal(ctx, sig); err != nil {
			return fmt.Errorf("signal %s: %w", sig.ID, err)
		}
	}
	return nil
}

// runEvaluation evaluates every target with live predictors in the
// scenario's scope.
func (h *Harness) runEvaluation(ctx context.Context, sc *contracts.TestScenario) error {
	_, err := h.pipe.EvaluateScope(ctx, sc.Scope())
	return err
}

// Cleanup deletes the scenario and every record tagged with its scope.
func (h *Harness) Cleanup(ctx context.Context, scenarioID string) error {
	sc, err := h.scenarios.Get(ctx, scenarioID)
	if err != nil {
		return err
	}
	if sc.Status == contracts.ScenarioRunning {
		return contracts.ErrScenarioRunning
	}
	scope := sc.Scope()

	if _, err := h.predictions.DeleteByScope(ctx, scope); err != nil {
		return fmt.Errorf("delete predictions: %w", err)
	}
	if _, err := h.predictors.DeleteByScope(ctx, scope); err != nil {
		return fmt.Errorf("delete predictors: %w", err)
	}
	if _, err := h.signals.DeleteByScope(ctx, scope); err != nil {
		return fmt.Errorf("delete signals: %w", err)
	}
	if _, err := h.scenarios.DeleteSources(ctx, scenarioID); err != nil {
		return fmt.Errorf("delete synthetic sources: %w", err)
	}
	if h.dedup != nil {
		h.dedup.Purge(ctx, scope)
	}
	if err := h.scenarios.Delete(ctx, scenarioID); err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}

	h.log.Info().Str("scenario", scenarioID).Msg("scenario cleaned up")
	return nil
}

// Export is the serialized form of a scenario and its tagged records,
// suitable for later re-import.
type Export struct {
	Scenario    contracts.TestScenario `json:"scenario"`
	Sources     []contracts.Source     `json:"sources,omitempty"`
	Signals     []contracts.Signal     `json:"signals,omitempty"`
	Predictors  []contracts.Predictor  `json:"predictors,omitempty"`
	Predictions []contracts.Prediction `json:"predictions,omitempty"`
	ExportedAt  time.Time              `json:"exported_at"`
}

// ExportScenario serializes the scenario and everything tagged to it.
func (h *Harness) ExportScenario(ctx context.Context, scenarioID string) ([]byte, error) {
	sc, err := h.scenarios.Get(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	scope := sc.Scope()

	sources, err := h.scenarios.GetSources(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("export sources: %w", err)
	}
	signals, err := h.signals.List(ctx, scope, contracts.SignalFilter{})
	if err != nil {
		return nil, fmt.Errorf("export signals: %w", err)
	}
	pool, err := h.predictors.LiveTargets(ctx, scope, time.Now())
	if err != nil {
		return nil, fmt.Errorf("export predictor targets: %w", err)
	}
	var predictors []contracts.Predictor
	for _, symbol := range pool {
		ps, err := h.predictors.LivePool(ctx, scope, symbol, time.Now())
		if err != nil {
			return nil, fmt.Errorf("export predictors for %s: %w", symbol, err)
		}
		predictors = append(predictors, ps...)
	}
	predictions, err := h.predictions.List(ctx, scope, contracts.PredictionFilter{})
	if err != nil {
		return nil, fmt.Errorf("export predictions: %w", err)
	}

	return json.MarshalIndent(Export{
		Scenario:    *sc,
		Sources:     sources,
		Signals:     signals,
		Predictors:  predictors,
		Predictions: predictions,
		ExportedAt:  time.Now(),
	}, "", "  ")
}

// Archive moves the scenario to its terminal administrative state.
func (h *Harness) Archive(ctx context.Context, scenarioID string) (*contracts.TestScenario, error) {
	sc, err := h.scenarios.Get(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	if err := sc.Archive(); err != nil {
		return nil, err
	}
	if err := h.scenarios.Update(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Get returns one scenario.
func (h *Harness) Get(ctx context.Context, scenarioID string) (*contracts.TestScenario, error) {
	return h.scenarios.Get(ctx, scenarioID)
}

// List returns all scenarios.
func (h *Harness) List(ctx context.Context) ([]contracts.TestScenario, error) {
	return h.scenarios.List(ctx)
}

func (h *Harness) publishTier(ctx context.Context, sc *contracts.TestScenario, tier contracts.Stage, outcome, reason string) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(ctx, events.StageEvent{
		Stage:   string(tier),
		Outcome: outcome,
		Scope:   sc.Scope(),
		Reason:  reason,
	})
}
