package contracts

import (
	"errors"
	"testing"
)

func TestScenarioTransitions(t *testing.T) {
	sc := &TestScenario{ID: "s1", Status: ScenarioActive}

	if err := sc.Start(); err != nil {
		t.Fatalf("Start from active failed: %v", err)
	}
	if sc.Status != ScenarioRunning {
		t.Errorf("status = %s, want running", sc.Status)
	}

	// Running scenarios cannot be started again or archived.
	if err := sc.Start(); !errors.Is(err, ErrScenarioRunning) {
		t.Errorf("Start while running = %v, want ErrScenarioRunning", err)
	}
	if err := sc.Archive(); !errors.Is(err, ErrScenarioRunning) {
		t.Errorf("Archive while running = %v, want ErrScenarioRunning", err)
	}

	sc.Complete()
	if sc.Status != ScenarioCompleted {
		t.Errorf("status = %s, want completed", sc.Status)
	}

	// Completed scenarios can be re-run.
	if err := sc.Start(); err != nil {
		t.Fatalf("Start from completed failed: %v", err)
	}

	sc.Fail(errors.New("tier exploded"))
	if sc.Status != ScenarioFailed {
		t.Errorf("status = %s, want failed", sc.Status)
	}
	if sc.LastError != "tier exploded" {
		t.Errorf("LastError = %q, want trigger attached", sc.LastError)
	}

	if err := sc.Archive(); err != nil {
		t.Fatalf("Archive from failed: %v", err)
	}
	if err := sc.Start(); !errors.Is(err, ErrScenarioArchived) {
		t.Errorf("Start from archived = %v, want ErrScenarioArchived", err)
	}
}

func TestParseStage(t *testing.T) {
	for _, valid := range []string{"signal-detection", "prediction-generation", "evaluation"} {
		if _, err := ParseStage(valid); err != nil {
			t.Errorf("ParseStage(%q) failed: %v", valid, err)
		}
	}

	if _, err := ParseStage("portfolio"); err == nil {
		t.Error("ParseStage should reject unknown tiers")
	}
}

func TestSentimentDistributionValidate(t *testing.T) {
	if err := DefaultSentimentDistribution().Validate(); err != nil {
		t.Errorf("default distribution should validate: %v", err)
	}

	bad := SentimentDistribution{Bullish: 0.8, Bearish: 0.4, Neutral: 0}
	if err := bad.Validate(); err == nil {
		t.Error("distribution summing to 1.2 should fail")
	}

	negative := SentimentDistribution{Bullish: 1.2, Bearish: -0.2, Neutral: 0}
	if err := negative.Validate(); err == nil {
		t.Error("negative fraction should fail")
	}
}

func TestThresholdConfigValidate(t *testing.T) {
	good := ThresholdConfig{MinPredictors: 3, MinCombinedStrength: 15, MinDirectionConsensus: 0.7}
	if err := good.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []ThresholdConfig{
		{MinPredictors: 0, MinCombinedStrength: 15, MinDirectionConsensus: 0.7},
		{MinPredictors: 3, MinCombinedStrength: -1, MinDirectionConsensus: 0.7},
		{MinPredictors: 3, MinCombinedStrength: 15, MinDirectionConsensus: 0},
		{MinPredictors: 3, MinCombinedStrength: 15, MinDirectionConsensus: 1.1},
	}
	for i, cfg := range tests {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: invalid config accepted", i)
		}
	}
}
