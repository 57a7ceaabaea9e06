// Package ttlstore provides a generic key -> (value, expiresAt) store used by
// the CSRF guard and anything else that needs transient server-side state.
// The in-memory driver is the default; the Redis driver exists so a
// multi-instance deployment can share one store without touching call sites.
package ttlstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing or expired key.
var ErrNotFound = errors.New("ttlstore: not found")

// Store is a TTL-bounded key-value map. An expired entry behaves exactly like
// an absent one; Sweep only reclaims the memory earlier.
type Store[V any] interface {
	// Get returns the live value for key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (V, error)

	// Set stores value under key, overwriting any previous entry, with the
	// given time-to-live.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Sweep removes expired entries and returns how many were dropped.
	// Safe to call on any schedule, idempotent.
	Sweep(ctx context.Context) (int, error)
}
