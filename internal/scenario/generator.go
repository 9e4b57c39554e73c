package scenario

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/pipeline"
)

// Generator synthesizes tagged pipeline records shaped by a sentiment
// distribution. A fixed seed reproduces the same dataset, which keeps
// scenario runs replayable.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator. seed 0 selects a time-based seed.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

var syntheticSymbols = []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN", "GOOG", "BTC", "ETH", "SOL"}

func (g *Generator) direction(dist contracts.SentimentDistribution) contracts.Direction {
	r := g.rng.Float64()
	switch {
	case r < dist.Bullish:
		return contracts.DirectionBullish
	case r < dist.Bullish+dist.Bearish:
		return contracts.DirectionBearish
	default:
		return contracts.DirectionNeutral
	}
}

func (g *Generator) symbol() (string, contracts.TargetType) {
	sym := syntheticSymbols[g.rng.Intn(len(syntheticSymbols))]
	if sym == "BTC" || sym == "ETH" || sym == "SOL" {
		return sym, contracts.TargetCrypto
	}
	return sym, contracts.TargetStock
}

// changeFor draws a percent change consistent with the direction: bullish
// positive, bearish negative, neutral zero. Magnitudes span the routine,
// notable and urgent bands.
func (g *Generator) changeFor(dir contracts.Direction) float64 {
	if dir == contracts.DirectionNeutral {
		return 0
	}
	mag := g.rng.Float64() * 8 // 0..8%, crossing both urgency thresholds
	if dir == contracts.DirectionBearish {
		return -mag
	}
	return mag
}

// Sources synthesizes count market-data sources. Each carries a unique
// sequence marker in its claims so no two deduplicate against each other.
func (g *Generator) Sources(scenarioID string, count int, dist contracts.SentimentDistribution) []contracts.Source {
	now := time.Now()
	out := make([]contracts.Source, 0, count)
	for i := 0; i < count; i++ {
		dir := g.direction(dist)
		sym, targetType := g.symbol()
		change := g.changeFor(dir)
		price := 50 + g.rng.Float64()*400

		out = append(out, contracts.Source{
			ID:           uuid.NewString(),
			Provider:     providerFor(targetType),
			TargetSymbol: sym,
			TargetType:   targetType,
			Claims: []contracts.Claim{
				{
					Type:      contracts.ClaimPrice,
					Value:     price,
					Timestamp: now,
					Metadata:  map[string]string{"scenario": scenarioID, "seq": fmt.Sprintf("%d", i)},
				},
				{
					Type:      contracts.ClaimChangePercent,
					Value:     change,
					Timestamp: now,
					Metadata:  map[string]string{"scenario": scenarioID, "seq": fmt.Sprintf("%d", i)},
				},
			},
			FetchedAt: now,
		})
	}
	return out
}

// Signals synthesizes count tagged signals, bypassing the source stage.
// Used when the scenario injects directly at prediction-generation.
func (g *Generator) Signals(scope contracts.Scope, count int, dist contracts.SentimentDistribution) []contracts.Signal {
	now := time.Now()
	out := make([]contracts.Signal, 0, count)
	for i := 0; i < count; i++ {
		dir := g.direction(dist)
		sym, targetType := g.symbol()
		change := g.changeFor(dir)
		content := fmt.Sprintf("synthetic %s %s change=%.4f seq=%d", scope, sym, change, i)

		confidence := 0.6 + g.rng.Float64()*0.4
		urgency := contracts.UrgencyRoutine
		switch abs := math.Abs(change); {
		case abs >= 5:
			urgency = contracts.UrgencyUrgent
		case abs >= 2:
			urgency = contracts.UrgencyNotable
		}

		out = append(out, contracts.Signal{
			ID:           uuid.NewString(),
			Scope:        scope,
			TargetSymbol: sym,
			TargetType:   targetType,
			Content:      pipeline.NormalizeContent(content),
			ContentHash:  pipeline.HashContent(content),
			Direction:    dir,
			Confidence:   confidence,
			Urgency:      urgency,
			CreatedAt:    now,
		})
	}
	return out
}

// Predictors synthesizes count tagged live predictors. Used when the
// scenario injects directly at evaluation.
func (g *Generator) Predictors(scope contracts.Scope, count int, dist contracts.SentimentDistribution, ttl time.Duration) []contracts.Predictor {
	now := time.Now()
	out := make([]contracts.Predictor, 0, count)
	for i := 0; i < count; i++ {
		dir := g.direction(dist)
		sym, targetType := g.symbol()
		out = append(out, contracts.Predictor{
			ID:           uuid.NewString(),
			Scope:        scope,
			TargetSymbol: sym,
			TargetType:   targetType,
			Direction:    dir,
			Strength:     contracts.ClampStrength(float64(4 + g.rng.Intn(7))),
			CreatedAt:    now,
			ExpiresAt:    now.Add(ttl),
		})
	}
	return out
}

func providerFor(t contracts.TargetType) string {
	if t == contracts.TargetCrypto {
		return "crypto"
	}
	return "quotes"
}
