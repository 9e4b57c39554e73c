package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/scenario"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

// ScenarioHandler serves the test scenario harness operations.
type ScenarioHandler struct {
	harness *scenario.Harness
	logger  *logger.Logger
}

// NewScenarioHandler creates the scenario handler.
func NewScenarioHandler(h *scenario.Harness, log *logger.Logger) *ScenarioHandler {
	return &ScenarioHandler{harness: h, logger: log}
}

func (h *ScenarioHandler) scenarioError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		respondError(w, http.StatusNotFound, "Scenario not found")
	case errors.Is(err, contracts.ErrScenarioRunning):
		respondError(w, http.StatusConflict, "Scenario is running")
	case errors.Is(err, contracts.ErrScenarioArchived):
		respondError(w, http.StatusConflict, "Scenario is archived")
	default:
		h.logger.WithError(err).Error("Scenario operation failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// List returns all scenarios.
// GET /api/test-scenarios
func (h *ScenarioHandler) List(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.harness.List(r.Context())
	if err != nil {
		h.scenarioError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(scenarios),
		"scenarios": scenarios,
	})
}

// CreateRequest is the payload for scenario creation.
type CreateRequest struct {
	Name            string   `json:"name"`
	InjectionPoints []string `json:"injection_points"`
}

// Create registers a new scenario.
// POST /api/test-scenarios
func (h *ScenarioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sc, err := h.harness.Create(r.Context(), req.Name, req.InjectionPoints)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, sc)
}

// Get returns one scenario.
// GET /api/test-scenarios/{id}
func (h *ScenarioHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, err := h.harness.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.scenarioError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sc)
}

// GenerateRequest is the payload for synthetic data generation.
type GenerateRequest struct {
	DataType  string                          `json:"data_type"`
	Count     int                             `json:"count"`
	Sentiment contracts.SentimentDistribution `json:"sentiment_distribution"`
	Seed      int64                           `json:"seed"`
}

// Generate synthesizes tagged data for the scenario.
// POST /api/test-scenarios/{id}/generate
func (h *ScenarioHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sc, err := h.harness.Generate(r.Context(), mux.Vars(r)["id"], scenario.GenerateParams{
		DataType:  req.DataType,
		Count:     req.Count,
		Sentiment: req.Sentiment,
		Seed:      req.Seed,
	})
	if err != nil {
		h.scenarioError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sc)
}

// RunRequest is the payload for a tier run.
type RunRequest struct {
	Tier string `json:"tier"`
}

// Run executes one pipeline tier against the scenario's records.
// POST /api/test-scenarios/{id}/run
func (h *ScenarioHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tier, err := contracts.ParseStage(req.Tier)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc, err := h.harness.Run(r.Context(), mux.Vars(r)["id"], tier)
	if err != nil && sc == nil {
		h.scenarioError(w, err)
		return
	}
	// A failed tier run is reported through the scenario state, not as a
	// transport error.
	respondJSON(w, http.StatusOK, sc)
}

// Export serializes the scenario and its tagged records.
// GET /api/test-scenarios/{id}/export
func (h *ScenarioHandler) Export(w http.ResponseWriter, r *http.Request) {
	raw, err := h.harness.ExportScenario(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.scenarioError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// Archive moves the scenario to its terminal state.
// POST /api/test-scenarios/{id}/archive
func (h *ScenarioHandler) Archive(w http.ResponseWriter, r *http.Request) {
	sc, err := h.harness.Archive(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.scenarioError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sc)
}

// Delete cleans up the scenario and every record tagged with it.
// DELETE /api/test-scenarios/{id}
func (h *ScenarioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.harness.Cleanup(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.scenarioError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
