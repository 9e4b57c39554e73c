package contracts

import "time"

// Direction is the directional call of a signal, predictor or prediction.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// IsDirectional reports whether the direction counts toward consensus.
func (d Direction) IsDirectional() bool {
	return d == DirectionBullish || d == DirectionBearish
}

// DirectionFromChange maps a percent change to a direction.
func DirectionFromChange(changePct float64) Direction {
	switch {
	case changePct > 0:
		return DirectionBullish
	case changePct < 0:
		return DirectionBearish
	default:
		return DirectionNeutral
	}
}

// Urgency grades how quickly a signal should influence evaluation.
type Urgency string

const (
	UrgencyRoutine Urgency = "routine"
	UrgencyNotable Urgency = "notable"
	UrgencyUrgent  Urgency = "urgent"
)

// Bonus returns the strength bonus granted by the urgency grade.
func (u Urgency) Bonus() float64 {
	switch u {
	case UrgencyUrgent:
		return 2
	case UrgencyNotable:
		return 1
	default:
		return 0
	}
}

// Signal is one deduplicated directional observation. ContentHash is a pure
// function of the normalized content; two signals with equal hashes are the
// same observation and only one persists. Signals are never mutated, only
// superseded when a newer observation for the same target/type arrives.
type Signal struct {
	ID           string     `json:"id"`
	Scope        Scope      `json:"scope"`
	TargetSymbol string     `json:"target_symbol"`
	TargetType   TargetType `json:"target_type"`
	Content      string     `json:"content"`
	ContentHash  string     `json:"content_hash"`
	Direction    Direction  `json:"direction"`
	Confidence   float64    `json:"confidence"`
	Urgency      Urgency    `json:"urgency"`
	Claims       []ClaimRef `json:"claims"`
	CreatedAt    time.Time  `json:"created_at"`
	SupersededBy string     `json:"superseded_by,omitempty"`
}

// Active reports whether the signal has not been superseded.
func (s *Signal) Active() bool {
	return s.SupersededBy == ""
}
