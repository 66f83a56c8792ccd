package testutil

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MockQuoter is a controllable gas price source.
type MockQuoter struct {
	mu        sync.Mutex
	GasPrice  *big.Int
	TipCap    *big.Int
	Fee       *big.Int // base fee, nil for pre-EIP-1559 chains
	QuoteErr  error
	CallCount int
}

// NewMockQuoter creates a quoter returning a flat 30 gwei legacy price.
func NewMockQuoter() *MockQuoter {
	return &MockQuoter{
		GasPrice: big.NewInt(30_000_000_000),
	}
}

// SetGasPrice changes the quoted gas price.
func (m *MockQuoter) SetGasPrice(wei *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GasPrice = new(big.Int).Set(wei)
}

func (m *MockQuoter) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++

	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}

	return new(big.Int).Set(m.GasPrice), nil
}

func (m *MockQuoter) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}

	if m.TipCap == nil {
		return big.NewInt(1_000_000_000), nil
	}

	return new(big.Int).Set(m.TipCap), nil
}

func (m *MockQuoter) BaseFee(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}

	if m.Fee == nil {
		return nil, nil
	}

	return new(big.Int).Set(m.Fee), nil
}

// MockNonceReader simulates the chain's view of an account nonce.
type MockNonceReader struct {
	mu      sync.Mutex
	Nonce   uint64
	ReadErr error
}

func (m *MockNonceReader) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return 0, m.ReadErr
	}

	return m.Nonce, nil
}

// SetNonce updates the simulated on-chain nonce.
func (m *MockNonceReader) SetNonce(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nonce = n
}

// MapCache is a minimal typed Cache for tests, with TTL handling but
// no eviction policy.
type MapCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]mapCacheEntry[V]
}

type mapCacheEntry[V any] struct {
	value   V
	expires time.Time
}

// NewMapCache creates an empty test cache.
func NewMapCache[V any]() *MapCache[V] {
	return &MapCache[V]{entries: make(map[string]mapCacheEntry[V])}
}

func (c *MapCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		var zero V
		return zero, false
	}

	return entry.value, true
}

func (c *MapCache[V]) Set(key string, value V, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = mapCacheEntry[V]{value: value, expires: time.Now().Add(ttl)}

	return true
}

func (c *MapCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MapCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]mapCacheEntry[V])
}

func (c *MapCache[V]) Close() {}
