package redis

import (
	"context"
	"fmt"
	"time"
)

// Dedup is a fast-path membership check for content hashes. Postgres remains
// authoritative: a redis miss always falls through to the database, and the
// database's unique constraint settles races. The fast path only saves the
// round trip for hashes already known to this deployment.
type Dedup struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewDedup creates a dedup fast-path helper.
func NewDedup(client *Client, prefix string, ttl time.Duration) *Dedup {
	return &Dedup{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (d *Dedup) key(scope, hash string) string {
	return fmt.Sprintf("%s:dedup:%s:%s", d.prefix, scope, hash)
}

// Seen reports whether the hash has been recorded for the scope.
// When redis is disabled it reports false so the caller consults Postgres.
func (d *Dedup) Seen(ctx context.Context, scope, hash string) (bool, error) {
	if !d.client.Enabled() {
		return false, nil
	}

	n, err := d.client.Redis().Exists(ctx, d.key(scope, hash)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup exists: %w", err)
	}
	return n > 0, nil
}

// Record marks the hash as seen for the scope, mapping it to the signal id.
func (d *Dedup) Record(ctx context.Context, scope, hash, signalID string) error {
	if !d.client.Enabled() {
		return nil
	}

	return d.client.Redis().SetNX(ctx, d.key(scope, hash), signalID, d.ttl).Err()
}

// Purge removes all recorded hashes for a scope. Used by scenario cleanup.
func (d *Dedup) Purge(ctx context.Context, scope string) error {
	if !d.client.Enabled() {
		return nil
	}

	rdb := d.client.Redis()
	pattern := fmt.Sprintf("%s:dedup:%s:*", d.prefix, scope)

	iter := rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("dedup purge: %w", err)
		}
	}
	return iter.Err()
}
