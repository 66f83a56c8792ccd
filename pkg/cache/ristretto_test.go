package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type snapshot struct {
	priceWei int64
}

func newTestCache(t *testing.T) *Ristretto[*snapshot] {
	t.Helper()

	c, err := NewRistretto[*snapshot](&Config{
		NumCounters: 1024,
		MaxCost:     64,
		BufferItems: 64,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c
}

func TestNewRistrettoValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRistretto[*snapshot](nil)
	require.ErrorContains(t, err, "config cannot be nil")

	_, err = NewRistretto[*snapshot](&Config{NumCounters: 64, MaxCost: 8, BufferItems: 64})
	require.ErrorContains(t, err, "logger cannot be nil")
}

func TestSetAndGet(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	require.True(t, c.Set("quote", &snapshot{priceWei: 30_000_000_000}, time.Minute))
	c.Wait()

	got, ok := c.Get("quote")
	require.True(t, ok)
	require.Equal(t, int64(30_000_000_000), got.priceWei)

	_, ok = c.Get("absent")
	require.False(t, ok)
}

func TestDeleteRemovesKey(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	c.Set("quote", &snapshot{priceWei: 1}, time.Minute)
	c.Wait()

	c.Delete("quote")

	_, ok := c.Get("quote")
	require.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	c.Set("quote", &snapshot{priceWei: 1}, 50*time.Millisecond)
	c.Wait()

	_, ok := c.Get("quote")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := c.Get("quote")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestClearEmptiesCache(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	c.Set("a", &snapshot{priceWei: 1}, time.Minute)
	c.Set("b", &snapshot{priceWei: 2}, time.Minute)
	c.Wait()

	c.Clear()

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	require.False(t, okA)
	require.False(t, okB)
}
