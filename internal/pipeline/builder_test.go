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

func TestSignalStrength(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		urgency    contracts.Urgency
		want       float64
	}{
		{"news prior routine", 0.7, contracts.UrgencyRoutine, 7},
		{"news prior notable", 0.7, contracts.UrgencyNotable, 8},
		{"crypto prior urgent", 0.9, contracts.UrgencyUrgent, 10},
		{"quote prior routine rounds up", 0.95, contracts.UrgencyRoutine, 10},
		{"full confidence urgent clamps to ten", 1.0, contracts.UrgencyUrgent, 10},
		{"zero confidence", 0, contracts.UrgencyUrgent, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := &contracts.Signal{Confidence: tt.confidence, Urgency: tt.urgency}
			if got := SignalStrength(sig); got != tt.want {
				t.Errorf("SignalStrength(conf=%v, %s) = %v, want %v", tt.confidence, tt.urgency, got, tt.want)
			}
		})
	}
}

func testBuilder(t *testing.T) (*Builder, *memory.SignalStore, *memory.PredictorStore) {
	t.Helper()
	signals := memory.NewSignalStore()
	predictors := memory.NewPredictorStore()
	ttl := config.TTLConfig{Stock: 24 * time.Hour, Crypto: 12 * time.Hour}
	b := NewBuilder(ttl, predictors, signals, newTargetLocks(), nil, zerolog.Nop())
	return b, signals, predictors
}

func insertSignal(t *testing.T, signals *memory.SignalStore, id string, direction contracts.Direction, confidence float64, urgency contracts.Urgency) *contracts.Signal {
	t.Helper()
	sig := &contracts.Signal{
		ID:           id,
		Scope:        contracts.ScopeProduction,
		TargetSymbol: "AAPL",
		TargetType:   contracts.TargetStock,
		ContentHash:  HashContent(id),
		Direction:    direction,
		Confidence:   confidence,
		Urgency:      urgency,
		CreatedAt:    time.Now(),
	}
	if _, err := signals.Insert(context.Background(), sig); err != nil {
		t.Fatalf("insert signal: %v", err)
	}
	return sig
}

func TestProcessSignalCreatesPredictor(t *testing.T) {
	b, signals, predictors := testBuilder(t)
	ctx := context.Background()

	sig := insertSignal(t, signals, "s1", contracts.DirectionBullish, 0.95, contracts.UrgencyNotable)
	p, err := b.ProcessSignal(ctx, sig)
	if err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}
	if p == nil {
		t.Fatal("expected a predictor for a directional signal")
	}
	if p.Strength != 10 {
		t.Errorf("Strength = %v, want 10", p.Strength)
	}
	if p.Direction != contracts.DirectionBullish {
		t.Errorf("Direction = %q, want bullish", p.Direction)
	}
	if want := 24 * time.Hour; p.ExpiresAt.Sub(p.CreatedAt) != want {
		t.Errorf("TTL = %v, want %v", p.ExpiresAt.Sub(p.CreatedAt), want)
	}

	pool, err := predictors.LivePool(ctx, contracts.ScopeProduction, "AAPL", time.Now())
	if err != nil {
		t.Fatalf("LivePool: %v", err)
	}
	if len(pool) != 1 {
		t.Fatalf("pool size = %d, want 1", len(pool))
	}
}

func TestProcessSignalCorroboratesExistingPredictor(t *testing.T) {
	b, signals, predictors := testBuilder(t)
	ctx := context.Background()

	first := insertSignal(t, signals, "s1", contracts.DirectionBullish, 0.9, contracts.UrgencyRoutine)
	if _, err := b.ProcessSignal(ctx, first); err != nil {
		t.Fatalf("first signal: %v", err)
	}

	second := insertSignal(t, signals, "s2", contracts.DirectionBullish, 0.7, contracts.UrgencyUrgent)
	p, err := b.ProcessSignal(ctx, second)
	if err != nil {
		t.Fatalf("second signal: %v", err)
	}
	if len(p.SourceSignals) != 2 {
		t.Fatalf("SourceSignals = %v, want both signals", p.SourceSignals)
	}

	// Confidence-weighted mean of strengths [9, 7] with weights [0.9, 0.7]
	// is 8.125; the urgent member's +2 bonus pushes it past the scale and
	// it clamps at 10.
	if p.Strength != 10 {
		t.Errorf("Strength = %v, want clamp at 10", p.Strength)
	}

	pool, err := predictors.LivePool(ctx, contracts.ScopeProduction, "AAPL", time.Now())
	if err != nil {
		t.Fatalf("LivePool: %v", err)
	}
	if len(pool) != 1 {
		t.Fatalf("pool size = %d after corroboration, want 1 (no duplicate predictor)", len(pool))
	}
}

func TestProcessSignalOppositeDirectionsSplit(t *testing.T) {
	b, signals, predictors := testBuilder(t)
	ctx := context.Background()

	bull := insertSignal(t, signals, "s1", contracts.DirectionBullish, 0.9, contracts.UrgencyRoutine)
	bear := insertSignal(t, signals, "s2", contracts.DirectionBearish, 0.9, contracts.UrgencyRoutine)
	if _, err := b.ProcessSignal(ctx, bull); err != nil {
		t.Fatalf("bullish: %v", err)
	}
	if _, err := b.ProcessSignal(ctx, bear); err != nil {
		t.Fatalf("bearish: %v", err)
	}

	pool, err := predictors.LivePool(ctx, contracts.ScopeProduction, "AAPL", time.Now())
	if err != nil {
		t.Fatalf("LivePool: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("pool size = %d, want separate predictors per direction", len(pool))
	}
}

func TestProcessSignalIgnoresNeutral(t *testing.T) {
	b, signals, _ := testBuilder(t)

	sig := insertSignal(t, signals, "s1", contracts.DirectionNeutral, 0.7, contracts.UrgencyRoutine)
	p, err := b.ProcessSignal(context.Background(), sig)
	if err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}
	if p != nil {
		t.Fatalf("neutral signal built predictor %+v", p)
	}
}

func TestProcessSignalSkipsExpiredPredictor(t *testing.T) {
	b, signals, predictors := testBuilder(t)
	ctx := context.Background()

	stale := &contracts.Predictor{
		ID:           "expired",
		Scope:        contracts.ScopeProduction,
		TargetSymbol: "AAPL",
		TargetType:   contracts.TargetStock,
		Direction:    contracts.DirectionBullish,
		Strength:     9,
		CreatedAt:    time.Now().Add(-48 * time.Hour),
		ExpiresAt:    time.Now().Add(-24 * time.Hour),
	}
	if err := predictors.Insert(ctx, stale); err != nil {
		t.Fatalf("seed predictor: %v", err)
	}

	sig := insertSignal(t, signals, "s1", contracts.DirectionBullish, 0.9, contracts.UrgencyRoutine)
	p, err := b.ProcessSignal(ctx, sig)
	if err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}
	if p.ID == stale.ID {
		t.Fatal("corroborated an expired predictor instead of creating a new one")
	}
	if len(p.SourceSignals) != 1 {
		t.Errorf("SourceSignals = %v, want only the new signal", p.SourceSignals)
	}
}
