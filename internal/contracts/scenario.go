package contracts

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Stage names the pipeline tiers a scenario can inject into and run.
type Stage string

const (
	StageSignalDetection      Stage = "signal-detection"
	StagePredictionGeneration Stage = "prediction-generation"
	StageEvaluation           Stage = "evaluation"
)

// ParseStage validates a tier name.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageSignalDetection, StagePredictionGeneration, StageEvaluation:
		return Stage(s), nil
	default:
		return "", fmt.Errorf("unknown pipeline stage %q", s)
	}
}

// ScenarioStatus is the lifecycle state of a test scenario.
type ScenarioStatus string

const (
	ScenarioActive    ScenarioStatus = "active"
	ScenarioRunning   ScenarioStatus = "running"
	ScenarioCompleted ScenarioStatus = "completed"
	ScenarioFailed    ScenarioStatus = "failed"
	ScenarioArchived  ScenarioStatus = "archived"
)

var (
	// ErrScenarioRunning is returned when an operation requires the
	// scenario to be idle.
	ErrScenarioRunning = errors.New("contracts: scenario is running")
	// ErrScenarioArchived is returned for operations on archived scenarios.
	ErrScenarioArchived = errors.New("contracts: scenario is archived")
)

// TestScenario owns a tagged partition of pipeline records. Production
// evaluation never sees its rows and scenario runs never see production
// rows; isolation is by scope tag, not by a separate store.
type TestScenario struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	InjectionPoints  []Stage        `json:"injection_points"`
	Status           ScenarioStatus `json:"status"`
	GeneratedRecords int            `json:"generated_record_count"`
	LastError        string         `json:"last_error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Scope returns the scenario's record partition tag.
func (s *TestScenario) Scope() Scope {
	return ScenarioScope(s.ID)
}

// Start transitions the scenario to running. Allowed from any non-running,
// non-archived state so completed scenarios can be re-run.
func (s *TestScenario) Start() error {
	switch s.Status {
	case ScenarioRunning:
		return ErrScenarioRunning
	case ScenarioArchived:
		return ErrScenarioArchived
	}
	s.Status = ScenarioRunning
	s.UpdatedAt = time.Now()
	return nil
}

// Complete transitions a running scenario to completed.
func (s *TestScenario) Complete() {
	s.Status = ScenarioCompleted
	s.LastError = ""
	s.UpdatedAt = time.Now()
}

// Fail transitions a running scenario to failed, attaching the trigger.
func (s *TestScenario) Fail(err error) {
	s.Status = ScenarioFailed
	if err != nil {
		s.LastError = err.Error()
	}
	s.UpdatedAt = time.Now()
}

// Archive moves the scenario to its terminal administrative state.
// Not allowed while a run is in flight.
func (s *TestScenario) Archive() error {
	if s.Status == ScenarioRunning {
		return ErrScenarioRunning
	}
	s.Status = ScenarioArchived
	s.UpdatedAt = time.Now()
	return nil
}

// InjectsAt reports whether the scenario injects at the given stage.
func (s *TestScenario) InjectsAt(stage Stage) bool {
	for _, p := range s.InjectionPoints {
		if p == stage {
			return true
		}
	}
	return false
}

// SentimentDistribution shapes synthetic scenario data. Fractions must sum
// to 1.
type SentimentDistribution struct {
	Bullish float64 `json:"bullish"`
	Bearish float64 `json:"bearish"`
	Neutral float64 `json:"neutral"`
}

// DefaultSentimentDistribution is an even bullish/bearish split with a
// small neutral remainder.
func DefaultSentimentDistribution() SentimentDistribution {
	return SentimentDistribution{Bullish: 0.4, Bearish: 0.4, Neutral: 0.2}
}

// Validate checks the distribution sums to 1 within tolerance.
func (d SentimentDistribution) Validate() error {
	if d.Bullish < 0 || d.Bearish < 0 || d.Neutral < 0 {
		return fmt.Errorf("sentiment fractions must be non-negative")
	}
	sum := d.Bullish + d.Bearish + d.Neutral
	if math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("sentiment fractions must sum to 1, got %v", sum)
	}
	return nil
}
