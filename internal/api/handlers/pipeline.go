package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/pkg/logger"
	"github.com/quantfeed/marketpulse/pkg/redis"
)

// PipelineHandler serves signal, predictor and prediction reads.
type PipelineHandler struct {
	signals     contracts.SignalRepository
	predictors  contracts.PredictorRepository
	predictions contracts.PredictionRepository
	cache       *redis.Cache
	logger      *logger.Logger
}

// NewPipelineHandler creates the pipeline read handler. cache may be nil.
func NewPipelineHandler(
	signals contracts.SignalRepository,
	predictors contracts.PredictorRepository,
	predictions contracts.PredictionRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *PipelineHandler {
	return &PipelineHandler{
		signals:     signals,
		predictors:  predictors,
		predictions: predictions,
		cache:       cache,
		logger:      log,
	}
}

// scopeFromQuery resolves the record partition for a request. A scenario_id
// query selects that scenario's partition; the default is production.
func scopeFromQuery(r *http.Request) contracts.Scope {
	if id := r.URL.Query().Get("scenario_id"); id != "" {
		return contracts.ScenarioScope(id)
	}
	return contracts.ScopeProduction
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}

// ListSignals returns signals in the requested scope.
// GET /api/signals?target=AAPL&direction=bullish&limit=50&offset=0
func (h *PipelineHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromQuery(r)
	filter := contracts.SignalFilter{
		TargetSymbol: r.URL.Query().Get("target"),
		Direction:    contracts.Direction(r.URL.Query().Get("direction")),
		Limit:        queryInt(r, "limit"),
		Offset:       queryInt(r, "offset"),
	}

	signals, err := h.signals.List(r.Context(), scope, filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list signals")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve signals")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scope":   scope,
		"count":   len(signals),
		"signals": signals,
	})
}

// ListPredictors returns the live predictor pool for a target, or the live
// targets when no target is given.
// GET /api/predictors?target=AAPL
func (h *PipelineHandler) ListPredictors(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromQuery(r)
	now := time.Now()

	target := r.URL.Query().Get("target")
	if target == "" {
		targets, err := h.predictors.LiveTargets(r.Context(), scope, now)
		if err != nil {
			h.logger.WithError(err).Error("Failed to list live targets")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve predictors")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"scope":   scope,
			"targets": targets,
		})
		return
	}

	pool, err := h.predictors.LivePool(r.Context(), scope, target, now)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load predictor pool")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve predictors")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scope":      scope,
		"target":     target,
		"count":      len(pool),
		"predictors": pool,
	})
}

// ListPredictions returns predictions in the requested scope. Active
// production list reads go through the short-TTL cache.
// GET /api/predictions?active=true&target=AAPL
func (h *PipelineHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromQuery(r)
	filter := contracts.PredictionFilter{
		TargetSymbol: r.URL.Query().Get("target"),
		ActiveOnly:   r.URL.Query().Get("active") == "true",
		Limit:        queryInt(r, "limit"),
		Offset:       queryInt(r, "offset"),
	}

	cacheable := h.cache != nil && scope.IsProduction() &&
		filter.TargetSymbol == "" && filter.ActiveOnly &&
		filter.Limit == 0 && filter.Offset == 0

	if cacheable {
		var cached []contracts.Prediction
		if hit, err := h.cache.Get(r.Context(), redis.PredictionListKey(string(scope)), &cached); err == nil && hit {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"scope":       scope,
				"count":       len(cached),
				"predictions": cached,
				"cached":      true,
			})
			return
		}
	}

	predictions, err := h.predictions.List(r.Context(), scope, filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list predictions")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve predictions")
		return
	}

	if cacheable {
		if err := h.cache.Set(r.Context(), redis.PredictionListKey(string(scope)), predictions, redis.TTLShort); err != nil {
			h.logger.WithError(err).Warn("Failed to cache prediction list")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scope":       scope,
		"count":       len(predictions),
		"predictions": predictions,
	})
}

// GetPrediction returns one prediction by id.
// GET /api/predictions/{id}
func (h *PipelineHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromQuery(r)
	id := mux.Vars(r)["id"]

	p, err := h.predictions.Get(r.Context(), scope, id)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Prediction not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get prediction")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve prediction")
		return
	}
	respondJSON(w, http.StatusOK, p)
}
