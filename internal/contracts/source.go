package contracts

import "time"

// TargetType classifies the asset class of a tracked symbol.
type TargetType string

const (
	TargetStock  TargetType = "stock"
	TargetCrypto TargetType = "crypto"
)

// ClaimType enumerates the typed claims a source can carry.
type ClaimType string

const (
	ClaimPrice         ClaimType = "price"
	ClaimChangePercent ClaimType = "change_percent"
	ClaimMarketCap     ClaimType = "market_cap"
	ClaimVolume        ClaimType = "volume"
	ClaimHeadline      ClaimType = "headline"
	ClaimSentiment     ClaimType = "sentiment"
)

// Claim is a single typed assertion extracted from a source. Numeric claims
// use Value; textual claims (headline) use Text. Claims are owned by their
// Source and never mutated.
type Claim struct {
	Type      ClaimType         `json:"type"`
	Value     float64           `json:"value,omitempty"`
	Text      string            `json:"text,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Source is one normalized adapter result for one target. A failed fetch is
// still a Source: Err is set and Claims is empty, so downstream stages skip
// it deterministically instead of aborting the batch.
type Source struct {
	ID           string     `json:"id"`
	Provider     string     `json:"provider"`
	TargetSymbol string     `json:"target_symbol"`
	TargetType   TargetType `json:"target_type"`
	Claims       []Claim    `json:"claims"`
	FetchedAt    time.Time  `json:"fetched_at"`
	Err          string     `json:"error,omitempty"`
}

// Failed reports whether the adapter recorded a per-symbol failure.
func (s *Source) Failed() bool {
	return s.Err != ""
}

// Claim returns the first claim of the given type.
func (s *Source) Claim(t ClaimType) (Claim, bool) {
	for _, c := range s.Claims {
		if c.Type == t {
			return c, true
		}
	}
	return Claim{}, false
}

// ClaimRef identifies a claim by its source and type, linking a Signal back
// to the observations it was synthesized from.
type ClaimRef struct {
	SourceID string    `json:"source_id"`
	Type     ClaimType `json:"type"`
}
