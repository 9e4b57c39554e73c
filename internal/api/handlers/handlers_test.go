package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/pipeline"
	"github.com/quantfeed/marketpulse/internal/scenario"
	"github.com/quantfeed/marketpulse/internal/store/memory"
	"github.com/quantfeed/marketpulse/pkg/config"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

type handlerFixture struct {
	pipeline    *PipelineHandler
	task        *TaskHandler
	signals     *memory.SignalStore
	predictors  *memory.PredictorStore
	predictions *memory.PredictionStore
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	signals := memory.NewSignalStore()
	predictors := memory.NewPredictorStore()
	predictions := memory.NewPredictionStore()
	scenarios := memory.NewScenarioStore()

	cfg := &config.Config{
		LogLevel: "error",
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
	log := logger.New(cfg)

	dedup := pipeline.NewDedupStore(signals, nil, log.Zerolog())
	pipe, err := pipeline.New(pipeline.Deps{
		Config:     cfg,
		Dedup:      dedup,
		Signals:    signals,
		Predictors: predictors,
		Prediction: predictions,
		Log:        log.Zerolog(),
	})
	require.NoError(t, err)

	harness := scenario.NewHarness(cfg, pipe, scenarios, signals, predictors, predictions, dedup, nil, log.Zerolog())

	return &handlerFixture{
		pipeline:    NewPipelineHandler(signals, predictors, predictions, nil, log),
		task:        NewTaskHandler(signals, predictors, predictions, harness, log),
		signals:     signals,
		predictors:  predictors,
		predictions: predictions,
	}
}

func seedPrediction(t *testing.T, store *memory.PredictionStore, scope contracts.Scope, id, symbol string) {
	t.Helper()
	err := store.Upsert(context.Background(), &contracts.Prediction{
		ID:           id,
		Scope:        scope,
		TargetSymbol: symbol,
		Direction:    contracts.DirectionBullish,
		Confidence:   0.8,
		Magnitude:    1.6,
		Timeframe:    "24h0m0s",
		GeneratedAt:  time.Now(),
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
}

func TestListPredictionsScopedByQuery(t *testing.T) {
	f := newHandlerFixture(t)
	seedPrediction(t, f.predictions, contracts.ScopeProduction, "p-prod", "AAPL")
	seedPrediction(t, f.predictions, contracts.ScenarioScope("sc-1"), "p-test", "AAPL")

	rec := httptest.NewRecorder()
	f.pipeline.ListPredictions(rec, httptest.NewRequest(http.MethodGet, "/api/predictions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count       int                    `json:"count"`
		Predictions []contracts.Prediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "p-prod", body.Predictions[0].ID)

	// the scenario partition sees only its own row
	rec = httptest.NewRecorder()
	f.pipeline.ListPredictions(rec, httptest.NewRequest(http.MethodGet, "/api/predictions?scenario_id=sc-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "p-test", body.Predictions[0].ID)
}

func TestGetPredictionNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/predictions/missing", nil), map[string]string{"id": "missing"})
	rec := httptest.NewRecorder()
	f.pipeline.GetPrediction(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskDispatchPredictionsList(t *testing.T) {
	f := newHandlerFixture(t)
	seedPrediction(t, f.predictions, contracts.ScopeProduction, "p-1", "NVDA")

	payload, _ := json.Marshal(TaskRequest{
		Action: "predictions.list",
		Params: json.RawMessage(`{"target":"NVDA"}`),
	})
	rec := httptest.NewRecorder()
	f.task.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/task", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Action string                 `json:"action"`
		Result []contracts.Prediction `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "predictions.list", body.Action)
	require.Len(t, body.Result, 1)
	assert.Equal(t, "p-1", body.Result[0].ID)
}

func TestTaskDispatchScenarioLifecycle(t *testing.T) {
	f := newHandlerFixture(t)

	// create
	payload, _ := json.Marshal(TaskRequest{
		Action: "test-scenarios.create",
		Params: json.RawMessage(`{"name":"mixed market","injection_points":["signal-detection"]}`),
	})
	rec := httptest.NewRecorder()
	f.task.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/task", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Result contracts.TestScenario `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Result.ID)
	assert.Equal(t, contracts.ScenarioActive, created.Result.Status)

	// generate deterministic data
	params, _ := json.Marshal(map[string]interface{}{
		"scenario_id": created.Result.ID,
		"count":       10,
		"seed":        7,
	})
	payload, _ = json.Marshal(TaskRequest{Action: "test-scenarios.generate", Params: params})
	rec = httptest.NewRecorder()
	f.task.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/task", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	var generated struct {
		Result contracts.TestScenario `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &generated))
	assert.Equal(t, 10, generated.Result.GeneratedRecords)

	// run the signal detection tier
	params, _ = json.Marshal(map[string]string{
		"scenario_id": created.Result.ID,
		"tier":        "signal-detection",
	})
	payload, _ = json.Marshal(TaskRequest{Action: "test-scenarios.run", Params: params})
	rec = httptest.NewRecorder()
	f.task.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/task", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	var ran struct {
		Result contracts.TestScenario `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ran))
	assert.Equal(t, contracts.ScenarioCompleted, ran.Result.Status)

	// production stayed empty
	sigs, err := f.signals.List(context.Background(), contracts.ScopeProduction, contracts.SignalFilter{})
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestTaskDispatchUnknownAction(t *testing.T) {
	f := newHandlerFixture(t)

	payload, _ := json.Marshal(TaskRequest{Action: "nope"})
	rec := httptest.NewRecorder()
	f.task.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/task", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
