// Package receipts deduplicates inbound payment-provider webhook events.
//
// Primary backend: Redis SETNX with TTL (env REDIS_DSN).
// Fallback: Postgres INSERT ... ON CONFLICT (env DATABASE_URL).
// If neither is available, an in-memory store is used (development only).
package receipts

import (
	"context"
	"errors"
	"time"
)

// Store records webhook event receipts and answers "seen before?".
type Store interface {
	// Check returns true if eventID was already received.
	// If not seen, it atomically records the receipt.
	Check(ctx context.Context, eventID, eventType string) (duplicate bool, err error)
	// MarkProcessed stamps the receipt after successful dispatch. Best-effort
	// bookkeeping; the Check insert is the idempotency boundary.
	MarkProcessed(ctx context.Context, eventID string) error
}

// NewStore creates the best available receipt store:
// Redis > Postgres > in-memory (dev fallback).
// When isProd is true, in-memory fallback is not allowed and the function
// returns nil with an error.
func NewStore(redisDSN, databaseURL string, ttl time.Duration, isProd bool) (Store, error) {
	if redisDSN != "" {
		return newRedisStore(redisDSN, ttl), nil
	}
	if databaseURL != "" {
		return newPostgresStore(databaseURL), nil
	}
	if isProd {
		return nil, errors.New("production requires REDIS_DSN or DATABASE_URL for webhook dedup; in-memory store is not allowed")
	}
	return newMemoryStore(), nil
}
