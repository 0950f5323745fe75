// Package cache guards business mutations against replayed WhatsApp
// messages. Keys are derived from the tenant and the provider message id.
package cache

import (
	"context"
	"time"
)

// IdempotencyStore remembers which keys were already processed.
type IdempotencyStore interface {
	// MarkProcessed returns true if key was newly marked, false if it was
	// already present and unexpired.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a failed operation can be retried.
	Release(ctx context.Context, key string) error
	Close() error
}
