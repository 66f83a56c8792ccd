package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Ristretto adapts a ristretto backend to one value type. The backend
// stores interface{}; values are asserted on the way out, so a foreign
// value under the same key reads as a miss.
type Ristretto[V any] struct {
	backend *ristretto.Cache
	logger  *zap.Logger
}

// Config sizes the ristretto backend.
type Config struct {
	NumCounters int64 // keys tracked for admission frequency, ~10x max items
	MaxCost     int64 // capacity in items
	BufferItems int64 // keys per Get buffer
	Logger      *zap.Logger
}

// NewRistretto creates a typed ristretto-backed cache.
func NewRistretto[V any](cfg *Config) (*Ristretto[V], error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	backend, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto backend: %w", err)
	}

	return &Ristretto[V]{backend: backend, logger: cfg.Logger}, nil
}

// Get returns the live value for key.
func (r *Ristretto[V]) Get(key string) (V, bool) {
	var zero V

	raw, found := r.backend.Get(key)
	if !found {
		MissesTotal.Inc()
		return zero, false
	}

	v, ok := raw.(V)
	if !ok {
		MissesTotal.Inc()
		return zero, false
	}

	HitsTotal.Inc()

	return v, true
}

// Set stores a value under key for at most ttl. Every entry costs one
// unit; capacity counts items, not bytes.
func (r *Ristretto[V]) Set(key string, value V, ttl time.Duration) bool {
	ok := r.backend.SetWithTTL(key, value, 1, ttl)
	if ok {
		SetsTotal.Inc()
		r.logger.Debug("cache-set",
			zap.String("key", key),
			zap.Duration("ttl", ttl))
	}

	return ok
}

// Delete removes key.
func (r *Ristretto[V]) Delete(key string) {
	r.backend.Del(key)
	DeletesTotal.Inc()
}

// Clear removes every key.
func (r *Ristretto[V]) Clear() {
	r.backend.Clear()
}

// Close releases the backend.
func (r *Ristretto[V]) Close() {
	r.backend.Close()
}

// Wait blocks until pending writes land. Ristretto applies sets
// asynchronously; tests need the barrier.
func (r *Ristretto[V]) Wait() {
	r.backend.Wait()
}
