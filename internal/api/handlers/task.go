package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/scenario"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

// TaskHandler is the action-dispatch surface: a single POST endpoint
// accepting {action: "<entity>.<operation>", params: {...}}. Dashboard
// clients use it instead of the REST routes.
type TaskHandler struct {
	signals     contracts.SignalRepository
	predictors  contracts.PredictorRepository
	predictions contracts.PredictionRepository
	harness     *scenario.Harness
	logger      *logger.Logger
}

// NewTaskHandler creates the task dispatch handler.
func NewTaskHandler(
	signals contracts.SignalRepository,
	predictors contracts.PredictorRepository,
	predictions contracts.PredictionRepository,
	harness *scenario.Harness,
	log *logger.Logger,
) *TaskHandler {
	return &TaskHandler{
		signals:     signals,
		predictors:  predictors,
		predictions: predictions,
		harness:     harness,
		logger:      log,
	}
}

// TaskRequest is the dispatch envelope.
type TaskRequest struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

type taskParams struct {
	ScenarioID string `json:"scenario_id,omitempty"`

	// list filters
	Target    string `json:"target,omitempty"`
	Direction string `json:"direction,omitempty"`
	Active    bool   `json:"active,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`

	// prediction get
	ID string `json:"id,omitempty"`

	// scenario operations
	Name            string                          `json:"name,omitempty"`
	InjectionPoints []string                        `json:"injection_points,omitempty"`
	DataType        string                          `json:"data_type,omitempty"`
	Count           int                             `json:"count,omitempty"`
	Sentiment       contracts.SentimentDistribution `json:"sentiment_distribution,omitempty"`
	Seed            int64                           `json:"seed,omitempty"`
	Tier            string                          `json:"tier,omitempty"`
}

func (p taskParams) scope() contracts.Scope {
	if p.ScenarioID != "" {
		return contracts.ScenarioScope(p.ScenarioID)
	}
	return contracts.ScopeProduction
}

// Dispatch routes one task action.
// POST /api/task
func (h *TaskHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var params taskParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid params")
			return
		}
	}

	result, err := h.run(r.Context(), req.Action, params)
	if err != nil {
		h.taskError(w, req.Action, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action": req.Action,
		"result": result,
	})
}

var errUnknownAction = errors.New("unknown action")

func (h *TaskHandler) run(ctx context.Context, action string, p taskParams) (interface{}, error) {
	switch action {
	case "signals.list":
		return h.signals.List(ctx, p.scope(), contracts.SignalFilter{
			TargetSymbol: p.Target,
			Direction:    contracts.Direction(p.Direction),
			Limit:        p.Limit,
			Offset:       p.Offset,
		})

	case "predictors.list":
		if p.Target == "" {
			return h.predictors.LiveTargets(ctx, p.scope(), time.Now())
		}
		return h.predictors.LivePool(ctx, p.scope(), p.Target, time.Now())

	case "predictions.list":
		return h.predictions.List(ctx, p.scope(), contracts.PredictionFilter{
			TargetSymbol: p.Target,
			ActiveOnly:   p.Active,
			Limit:        p.Limit,
			Offset:       p.Offset,
		})

	case "predictions.get":
		return h.predictions.Get(ctx, p.scope(), p.ID)

	case "test-scenarios.list":
		return h.harness.List(ctx)

	case "test-scenarios.create":
		return h.harness.Create(ctx, p.Name, p.InjectionPoints)

	case "test-scenarios.generate":
		return h.harness.Generate(ctx, p.ScenarioID, scenario.GenerateParams{
			DataType:  p.DataType,
			Count:     p.Count,
			Sentiment: p.Sentiment,
			Seed:      p.Seed,
		})

	case "test-scenarios.run":
		tier, err := contracts.ParseStage(p.Tier)
		if err != nil {
			return nil, err
		}
		sc, err := h.harness.Run(ctx, p.ScenarioID, tier)
		if err != nil && sc == nil {
			return nil, err
		}
		return sc, nil

	case "test-scenarios.export":
		raw, err := h.harness.ExportScenario(ctx, p.ScenarioID)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil

	case "test-scenarios.archive":
		return h.harness.Archive(ctx, p.ScenarioID)

	case "test-scenarios.delete":
		if err := h.harness.Cleanup(ctx, p.ScenarioID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "deleted"}, nil

	default:
		return nil, errUnknownAction
	}
}

func (h *TaskHandler) taskError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, errUnknownAction):
		respondError(w, http.StatusBadRequest, "Unknown action: "+action)
	case errors.Is(err, contracts.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, contracts.ErrScenarioRunning):
		respondError(w, http.StatusConflict, "Scenario is running")
	case errors.Is(err, contracts.ErrScenarioArchived):
		respondError(w, http.StatusConflict, "Scenario is archived")
	case errors.Is(err, contracts.ErrInvalidScope):
		respondError(w, http.StatusBadRequest, "Invalid scope")
	default:
		h.logger.WithError(err).WithField("action", action).Error("Task action failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
