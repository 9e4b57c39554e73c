package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/events"
	"github.com/quantfeed/marketpulse/pkg/config"
)

// NeutralClassifier is the default sentiment classifier: news without a
// numeric claim synthesizes as neutral until a model-backed classifier is
// injected.
type NeutralClassifier struct{}

// Classify always returns neutral.
func (NeutralClassifier) Classify(ctx context.Context, headline, description string) (contracts.Direction, error) {
	return contracts.DirectionNeutral, nil
}

// Synthesizer turns claims about one target into a deduplicated directional
// signal.
type Synthesizer struct {
	cfg        config.SignalConfig
	dedup      *DedupStore
	signals    contracts.SignalRepository
	classifier contracts.SentimentClassifier
	bus        *events.Bus
	log        zerolog.Logger
}

// NewSynthesizer creates a signal synthesizer. classifier may be nil, in
// which case news defaults to neutral.
func NewSynthesizer(
	cfg config.SignalConfig,
	dedup *DedupStore,
	signals contracts.SignalRepository,
	classifier contracts.SentimentClassifier,
	bus *events.Bus,
	log zerolog.Logger,
) *Synthesizer {
	if classifier == nil {
		classifier = NeutralClassifier{}
	}
	return &Synthesizer{
		cfg:        cfg,
		dedup:      dedup,
		signals:    signals,
		classifier: classifier,
		bus:        bus,
		log:        log.With().Str("component", "pipeline.synthesizer").Logger(),
	}
}

// Urgency grades a percent change against the configured thresholds.
// Lower bounds are inclusive.
func (s *Synthesizer) Urgency(changePct float64) contracts.Urgency {
	abs := changePct
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= s.cfg.UrgentChangePct:
		return contracts.UrgencyUrgent
	case abs >= s.cfg.NotableChangePct:
		return contracts.UrgencyNotable
	default:
		return contracts.UrgencyRoutine
	}
}

// confidence returns the per-source-type reliability prior. Confidence
// reflects how much the source is trusted, not how strong the signal is.
func (s *Synthesizer) confidence(src *contracts.Source) float64 {
	switch src.Provider {
	case "quotes":
		return s.cfg.QuoteConfidence
	case "crypto":
		return s.cfg.CryptoConfidence
	case "news":
		return s.cfg.NewsConfidence
	default:
		if _, ok := src.Claim(contracts.ClaimChangePercent); ok {
			return s.cfg.CryptoConfidence
		}
		return s.cfg.NewsConfidence
	}
}

// ProcessSource synthesizes a signal from one source and persists it if
// novel. Returns nil without error when the source is skipped: failed
// fetches, sources without usable claims, and duplicates are all normal
// flow here, not errors.
func (s *Synthesizer) ProcessSource(ctx context.Context, scope contracts.Scope, src *contracts.Source) (*contracts.Signal, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	if src.Failed() {
		s.log.Debug().
			Str("provider", src.Provider).
			Str("symbol", src.TargetSymbol).
			Str("error", src.Err).
			Msg("skipping failed source")
		return nil, nil
	}

	sig, err := s.synthesize(ctx, scope, src)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		// Malformed or incomplete claims: skip and continue the batch.
		s.publish(ctx, scope, src.TargetSymbol, events.OutcomeSignalSkipped, "no usable claims")
		return nil, nil
	}

	// Dedup gate: a recorded hash means the same observation was already
	// processed on a prior crawl. Reject as a no-op.
	seen, err := s.dedup.Seen(ctx, scope, sig.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		s.publish(ctx, scope, src.TargetSymbol, events.OutcomeSignalDeduped, "")
		return nil, nil
	}

	inserted, err := s.signals.Insert(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("persist signal: %w", err)
	}
	if !inserted {
		// Lost the race against a concurrent crawl of the same content.
		s.publish(ctx, scope, src.TargetSymbol, events.OutcomeSignalDeduped, "")
		return nil, nil
	}

	s.dedup.Record(ctx, scope, sig.ContentHash, sig.ID)

	// A newer observation supersedes the prior one for the same
	// target/type; superseded signals are retained, never deleted.
	if err := s.signals.Supersede(ctx, scope, sig.TargetSymbol, sig.TargetType, sig.ID); err != nil {
		s.log.Warn().Err(err).Str("signal", sig.ID).Msg("supersede failed")
	}

	s.publish(ctx, scope, src.TargetSymbol, events.OutcomeSignalAccepted, "")
	s.log.Debug().
		Str("signal", sig.ID).
		Str("symbol", sig.TargetSymbol).
		Str("direction", string(sig.Direction)).
		Str("urgency", string(sig.Urgency)).
		Float64("confidence", sig.Confidence).
		Msg("signal accepted")

	return sig, nil
}

// synthesize builds the signal value from the source's claims without any
// persistence side effects.
func (s *Synthesizer) synthesize(ctx context.Context, scope contracts.Scope, src *contracts.Source) (*contracts.Signal, error) {
	var (
		direction contracts.Direction
		urgency   contracts.Urgency
		content   string
		refs      []contracts.ClaimRef
	)

	if change, ok := src.Claim(contracts.ClaimChangePercent); ok {
		// Market data path: the percent change claim carries direction.
		direction = contracts.DirectionFromChange(change.Value)
		urgency = s.Urgency(change.Value)
		refs = append(refs, contracts.ClaimRef{SourceID: src.ID, Type: contracts.ClaimChangePercent})

		price, hasPrice := src.Claim(contracts.ClaimPrice)
		if hasPrice {
			refs = append(refs, contracts.ClaimRef{SourceID: src.ID, Type: contracts.ClaimPrice})
			content = fmt.Sprintf("%s %s price=%.4f change=%.2f%%",
				src.Provider, src.TargetSymbol, price.Value, change.Value)
		} else {
			content = fmt.Sprintf("%s %s change=%.2f%%",
				src.Provider, src.TargetSymbol, change.Value)
		}
	} else if headline, ok := src.Claim(contracts.ClaimHeadline); ok {
		// News path: qualitative content, classifier decides direction.
		desc := headline.Metadata["description"]
		dir, err := s.classifier.Classify(ctx, headline.Text, desc)
		if err != nil {
			return nil, fmt.Errorf("classify headline: %w", err)
		}
		direction = dir
		urgency = contracts.UrgencyRoutine
		content = NewsContent(headline.Text, desc)
		refs = append(refs, contracts.ClaimRef{SourceID: src.ID, Type: contracts.ClaimHeadline})
	} else {
		return nil, nil
	}

	return &contracts.Signal{
		ID:           uuid.NewString(),
		Scope:        scope,
		TargetSymbol: src.TargetSymbol,
		TargetType:   src.TargetType,
		Content:      NormalizeContent(content),
		ContentHash:  HashContent(content),
		Direction:    direction,
		Confidence:   s.confidence(src),
		Urgency:      urgency,
		Claims:       refs,
		CreatedAt:    time.Now(),
	}, nil
}

func (s *Synthesizer) publish(ctx context.Context, scope contracts.Scope, target, outcome, reason string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.StageEvent{
		Stage:   string(contracts.StageSignalDetection),
		Outcome: outcome,
		Scope:   scope,
		Target:  target,
		Reason:  reason,
	})
}
