// Package cache provides typed, TTL-bounded stores for read-shared
// snapshots such as gas quotes. Staleness is bounded by the TTL and
// re-checked at submission time, never trusted blindly.
package cache

import "time"

// Cache is a TTL cache holding one value kind.
type Cache[V any] interface {
	// Get returns the live value for key, or (zero, false) when the
	// key is absent or expired.
	Get(key string) (V, bool)

	// Set stores a value under key for at most ttl.
	Set(key string, value V, ttl time.Duration) bool

	// Delete removes key.
	Delete(key string)

	// Clear removes every key.
	Clear()

	// Close releases backend resources.
	Close()
}
