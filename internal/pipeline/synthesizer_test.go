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

func testSignalConfig() config.SignalConfig {
	return config.SignalConfig{
		UrgentChangePct:  5.0,
		NotableChangePct: 2.0,
		QuoteConfidence:  0.95,
		CryptoConfidence: 0.9,
		NewsConfidence:   0.7,
	}
}

func testSynthesizer(t *testing.T) (*Synthesizer, *memory.SignalStore) {
	t.Helper()
	signals := memory.NewSignalStore()
	dedup := NewDedupStore(signals, nil, zerolog.Nop())
	s := NewSynthesizer(testSignalConfig(), dedup, signals, nil, nil, zerolog.Nop())
	return s, signals
}

func quoteSource(id, symbol string, price, changePct float64) *contracts.Source {
	return &contracts.Source{
		ID:           id,
		Provider:     "quotes",
		TargetSymbol: symbol,
		TargetType:   contracts.TargetStock,
		Claims: []contracts.Claim{
			{Type: contracts.ClaimPrice, Value: price, Timestamp: time.Now()},
			{Type: contracts.ClaimChangePercent, Value: changePct, Timestamp: time.Now()},
		},
		FetchedAt: time.Now(),
	}
}

func TestUrgencyBoundaries(t *testing.T) {
	s, _ := testSynthesizer(t)

	tests := []struct {
		changePct float64
		want      contracts.Urgency
	}{
		{0, contracts.UrgencyRoutine},
		{1.99, contracts.UrgencyRoutine},
		{2.00, contracts.UrgencyNotable},
		{4.99, contracts.UrgencyNotable},
		{5.00, contracts.UrgencyUrgent},
		{12.5, contracts.UrgencyUrgent},
		{-1.99, contracts.UrgencyRoutine},
		{-2.00, contracts.UrgencyNotable},
		{-5.00, contracts.UrgencyUrgent},
	}

	for _, tt := range tests {
		if got := s.Urgency(tt.changePct); got != tt.want {
			t.Errorf("Urgency(%v) = %q, want %q", tt.changePct, got, tt.want)
		}
	}
}

func TestProcessSourceQuote(t *testing.T) {
	s, _ := testSynthesizer(t)
	ctx := context.Background()

	sig, err := s.ProcessSource(ctx, contracts.ScopeProduction, quoteSource("src1", "AAPL", 231.5, 5.2))
	if err != nil {
		t.Fatalf("ProcessSource: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Direction != contracts.DirectionBullish {
		t.Errorf("Direction = %q, want bullish", sig.Direction)
	}
	if sig.Urgency != contracts.UrgencyUrgent {
		t.Errorf("Urgency = %q, want urgent", sig.Urgency)
	}
	if sig.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want the quote prior 0.95", sig.Confidence)
	}
	if len(sig.ContentHash) != 64 {
		t.Errorf("ContentHash length = %d, want 64", len(sig.ContentHash))
	}
	if len(sig.Claims) != 2 {
		t.Errorf("Claims = %v, want change_percent and price refs", sig.Claims)
	}
}

func TestProcessSourceDeduplicatesRecrawl(t *testing.T) {
	s, signals := testSynthesizer(t)
	ctx := context.Background()

	first, err := s.ProcessSource(ctx, contracts.ScopeProduction, quoteSource("src1", "AAPL", 231.5, 1.2))
	if err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	if first == nil {
		t.Fatal("first crawl should synthesize a signal")
	}

	// The same quote re-fetched on the next cycle is not an error, it is
	// a no-op.
	second, err := s.ProcessSource(ctx, contracts.ScopeProduction, quoteSource("src2", "AAPL", 231.5, 1.2))
	if err != nil {
		t.Fatalf("re-crawl: %v", err)
	}
	if second != nil {
		t.Fatalf("re-crawl produced duplicate signal %+v", second)
	}

	list, err := signals.List(ctx, contracts.ScopeProduction, contracts.SignalFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("persisted signals = %d, want 1", len(list))
	}
}

func TestProcessSourceScopesAreIndependent(t *testing.T) {
	s, _ := testSynthesizer(t)
	ctx := context.Background()

	prod, err := s.ProcessSource(ctx, contracts.ScopeProduction, quoteSource("src1", "AAPL", 231.5, 1.2))
	if err != nil || prod == nil {
		t.Fatalf("production: sig=%v err=%v", prod, err)
	}

	// Identical content under a scenario scope is a distinct observation.
	scen, err := s.ProcessSource(ctx, contracts.ScenarioScope("abc"), quoteSource("src2", "AAPL", 231.5, 1.2))
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	if scen == nil {
		t.Fatal("scenario scope should not dedup against production")
	}
}

func TestProcessSourceSkipsFailures(t *testing.T) {
	s, _ := testSynthesizer(t)
	ctx := context.Background()

	failed := &contracts.Source{
		ID:           "src1",
		Provider:     "quotes",
		TargetSymbol: "AAPL",
		TargetType:   contracts.TargetStock,
		Err:          "upstream 503",
	}
	sig, err := s.ProcessSource(ctx, contracts.ScopeProduction, failed)
	if err != nil {
		t.Fatalf("failed source must not error the batch: %v", err)
	}
	if sig != nil {
		t.Fatalf("failed source synthesized %+v", sig)
	}
}

func TestProcessSourceNewsDefaultsNeutral(t *testing.T) {
	s, _ := testSynthesizer(t)
	ctx := context.Background()

	src := &contracts.Source{
		ID:           "src1",
		Provider:     "news",
		TargetSymbol: "AAPL",
		TargetType:   contracts.TargetStock,
		Claims: []contracts.Claim{
			{
				Type:     contracts.ClaimHeadline,
				Text:     "Apple Unveils New Chip",
				Metadata: map[string]string{"description": "The company announced a new processor line."},
			},
		},
		FetchedAt: time.Now(),
	}

	sig, err := s.ProcessSource(ctx, contracts.ScopeProduction, src)
	if err != nil {
		t.Fatalf("ProcessSource: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Direction != contracts.DirectionNeutral {
		t.Errorf("Direction = %q, want neutral without a classifier", sig.Direction)
	}
	if sig.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want the news prior 0.7", sig.Confidence)
	}
	if sig.Urgency != contracts.UrgencyRoutine {
		t.Errorf("Urgency = %q, want routine for news", sig.Urgency)
	}
}

type stubClassifier struct {
	direction contracts.Direction
}

func (c stubClassifier) Classify(ctx context.Context, headline, description string) (contracts.Direction, error) {
	return c.direction, nil
}

func TestProcessSourceUsesInjectedClassifier(t *testing.T) {
	signals := memory.NewSignalStore()
	dedup := NewDedupStore(signals, nil, zerolog.Nop())
	s := NewSynthesizer(testSignalConfig(), dedup, signals, stubClassifier{contracts.DirectionBearish}, nil, zerolog.Nop())

	src := &contracts.Source{
		ID:           "src1",
		Provider:     "news",
		TargetSymbol: "TSLA",
		TargetType:   contracts.TargetStock,
		Claims: []contracts.Claim{
			{Type: contracts.ClaimHeadline, Text: "Recall widens"},
		},
	}
	sig, err := s.ProcessSource(context.Background(), contracts.ScopeProduction, src)
	if err != nil {
		t.Fatalf("ProcessSource: %v", err)
	}
	if sig.Direction != contracts.DirectionBearish {
		t.Errorf("Direction = %q, want the classifier's bearish", sig.Direction)
	}
}

func TestProcessSourceNoUsableClaims(t *testing.T) {
	s, _ := testSynthesizer(t)

	src := &contracts.Source{
		ID:           "src1",
		Provider:     "quotes",
		TargetSymbol: "AAPL",
		TargetType:   contracts.TargetStock,
		Claims: []contracts.Claim{
			{Type: contracts.ClaimVolume, Value: 1_000_000},
		},
	}
	sig, err := s.ProcessSource(context.Background(), contracts.ScopeProduction, src)
	if err != nil {
		t.Fatalf("ProcessSource: %v", err)
	}
	if sig != nil {
		t.Fatalf("volume-only source synthesized %+v", sig)
	}
}
