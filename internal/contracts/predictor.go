package contracts

import "time"

// Predictor is an accumulating, expiring unit of directional evidence built
// from one or more signals. Strength lives on a 0..10 scale. A predictor is
// mutated only to absorb corroborating signals before expiry; expiry is a
// logical delete.
type Predictor struct {
	ID            string     `json:"id"`
	Scope         Scope      `json:"scope"`
	TargetSymbol  string     `json:"target_symbol"`
	TargetType    TargetType `json:"target_type"`
	Direction     Direction  `json:"direction"`
	Strength      float64    `json:"strength"`
	SourceSignals []string   `json:"source_signals"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Expired       bool       `json:"expired"`
}

// Live reports whether the predictor participates in evaluation at now.
func (p *Predictor) Live(now time.Time) bool {
	return !p.Expired && now.Before(p.ExpiresAt)
}

// ClampStrength bounds a strength score to the 0..10 scale.
func ClampStrength(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
