package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/pkg/redis"
)

// Stage event outcomes.
const (
	OutcomeSignalAccepted   = "signal.accepted"
	OutcomeSignalDeduped    = "signal.deduped"
	OutcomeSignalSkipped    = "signal.skipped"
	OutcomePredictorCreated = "predictor.created"
	OutcomePredictorUpdated = "predictor.updated"
	OutcomeEvalPassed       = "evaluation.passed"
	OutcomeEvalFailed       = "evaluation.failed"
	OutcomePredictionEmit   = "prediction.emitted"
	OutcomeSweepCompleted   = "sweep.completed"
	OutcomeTierCompleted    = "scenario.tier_completed"
	OutcomeTierFailed       = "scenario.tier_failed"
)

// StageEvent is one observable pipeline stage transition.
type StageEvent struct {
	Stage   string          `json:"stage"`
	Outcome string          `json:"outcome"`
	Scope   contracts.Scope `json:"scope"`
	Target  string          `json:"target,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	At      time.Time       `json:"at"`
}

// Sink receives stage events in-process (the websocket hub implements this).
type Sink interface {
	Notify(ev StageEvent)
}

// Bus fans stage events out to the structured log, the redis channel and
// any registered in-process sinks. Publishing never fails the pipeline:
// delivery problems are logged and dropped.
type Bus struct {
	log     zerolog.Logger
	redis   *redis.Client
	channel string

	mu    sync.RWMutex
	sinks []Sink
}

// NewBus creates an event bus. The redis client may be disabled.
func NewBus(log zerolog.Logger, rc *redis.Client, channel string) *Bus {
	if channel == "" {
		channel = "marketpulse:events"
	}
	return &Bus{
		log:     log.With().Str("component", "events.bus").Logger(),
		redis:   rc,
		channel: channel,
	}
}

// Subscribe registers an in-process sink.
func (b *Bus) Subscribe(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Publish reports a stage transition.
func (b *Bus) Publish(ctx context.Context, ev StageEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.log.Info().
		Str("stage", ev.Stage).
		Str("outcome", ev.Outcome).
		Str("scope", string(ev.Scope)).
		Str("target", ev.Target).
		Str("reason", ev.Reason).
		Msg("stage event")

	if b.redis != nil && b.redis.Enabled() {
		payload, err := json.Marshal(ev)
		if err == nil {
			if err := b.redis.Redis().Publish(ctx, b.channel, payload).Err(); err != nil {
				b.log.Warn().Err(err).Msg("event publish to redis failed")
			}
		}
	}

	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()
	for _, s := range sinks {
		s.Notify(ev)
	}
}
