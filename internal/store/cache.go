package store

import (
	"context"
	"database/sql"
	"time"
)

// CacheStore persists the read_cache table, a durable scope/key payload
// cache. zulipclient's in-memory TTL caches do not write through to it.
// Staleness is enforced in code at read time, never at the SQL level
// (spec.md §3).
type CacheStore struct{ s *Store }

// Put upserts one cache entry.
func (c *CacheStore) Put(ctx context.Context, scope, key, payload string) error {
	return c.s.execute(ctx, "cache.put", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO read_cache (scope, key, payload, fetched_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(scope, key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
			scope, key, payload, time.Now().UTC())
		return err
	})
}

// Get returns the payload and its fetch time if present, regardless of
// staleness — the caller compares the fetch time against the scope's TTL.
func (c *CacheStore) Get(ctx context.Context, scope, key string) (payload string, fetchedAt time.Time, ok bool) {
	row := c.s.queryRow(ctx, `SELECT payload, fetched_at FROM read_cache WHERE scope = ? AND key = ?`, scope, key)
	if err := row.Scan(&payload, &fetchedAt); err != nil {
		return "", time.Time{}, false
	}
	return payload, fetchedAt, true
}
