package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/pkg/redis"
)

// DedupStore gates signal persistence by content hash. Postgres (through
// the signal repository's unique constraint) is authoritative; the redis
// fast path only short-circuits hashes this deployment already saw.
// Duplicate submission is expected behavior on every re-crawl, not an
// exceptional case.
type DedupStore struct {
	repo contracts.SignalRepository
	fast *redis.Dedup // optional
	log  zerolog.Logger
}

// NewDedupStore creates a dedup gate. fast may be nil.
func NewDedupStore(repo contracts.SignalRepository, fast *redis.Dedup, log zerolog.Logger) *DedupStore {
	return &DedupStore{
		repo: repo,
		fast: fast,
		log:  log.With().Str("component", "pipeline.dedup").Logger(),
	}
}

// Seen reports whether the hash is already recorded for the scope.
func (d *DedupStore) Seen(ctx context.Context, scope contracts.Scope, hash string) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, err
	}

	if d.fast != nil {
		seen, err := d.fast.Seen(ctx, string(scope), hash)
		if err != nil {
			// Fast path failure degrades to the database check.
			d.log.Warn().Err(err).Msg("dedup fast path unavailable")
		} else if seen {
			return true, nil
		}
	}

	return d.repo.SeenHash(ctx, scope, hash)
}

// Record marks the hash as seen after its signal persisted.
func (d *DedupStore) Record(ctx context.Context, scope contracts.Scope, hash, signalID string) {
	if d.fast == nil {
		return
	}
	if err := d.fast.Record(ctx, string(scope), hash, signalID); err != nil {
		d.log.Warn().Err(err).Str("hash", hash).Msg("dedup record failed")
	}
}

// Purge drops the fast-path entries for a scope. Scenario cleanup calls
// this; the authoritative rows go through the repositories.
func (d *DedupStore) Purge(ctx context.Context, scope contracts.Scope) {
	if d.fast == nil {
		return
	}
	if err := d.fast.Purge(ctx, string(scope)); err != nil {
		d.log.Warn().Err(err).Str("scope", string(scope)).Msg("dedup purge failed")
	}
}
