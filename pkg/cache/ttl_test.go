package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/pkg/cache"
)

func TestTTLCache_GetPut(t *testing.T) {
	t.Parallel()

	t.Run("basic put and get", func(t *testing.T) {
		t.Parallel()

		c := cache.NewTTLCache[string, int](10, time.Minute)
		c.Put("a", 1)

		got, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, got)

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("put replaces and resets expiry", func(t *testing.T) {
		t.Parallel()

		c := cache.NewTTLCache[string, int](10, time.Minute)
		c.Put("a", 1)
		c.Put("a", 2)

		got, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 2, got)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("expired entry is absent", func(t *testing.T) {
		t.Parallel()

		c := cache.NewTTLCache[string, int](10, 10*time.Millisecond)
		c.Put("a", 1)

		time.Sleep(20 * time.Millisecond)

		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len(), "expired entry reaped on access")
	})
}

func TestTTLCache_Eviction(t *testing.T) {
	t.Parallel()

	t.Run("capacity evicts least recently used", func(t *testing.T) {
		t.Parallel()

		c := cache.NewTTLCache[string, int](2, time.Minute)

		var evicted []string
		c.SetEvictCallback(func(key string, _ int) {
			evicted = append(evicted, key)
		})

		c.Put("a", 1)
		c.Put("b", 2)
		_, _ = c.Get("a") // refresh "a", making "b" the oldest
		c.Put("c", 3)

		_, ok := c.Get("b")
		assert.False(t, ok)
		assert.Equal(t, []string{"b"}, evicted)

		_, ok = c.Get("a")
		assert.True(t, ok)
		_, ok = c.Get("c")
		assert.True(t, ok)
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()

		c := cache.NewTTLCache[string, int](10, time.Minute)
		c.Put("a", 1)

		got, ok := c.Remove("a")
		require.True(t, ok)
		assert.Equal(t, 1, got)

		_, ok = c.Remove("a")
		assert.False(t, ok)
	})

	t.Run("clear invokes callback for every entry", func(t *testing.T) {
		t.Parallel()

		c := cache.NewTTLCache[string, int](10, time.Minute)

		var evicted int
		c.SetEvictCallback(func(string, int) { evicted++ })

		c.Put("a", 1)
		c.Put("b", 2)
		c.Clear()

		assert.Equal(t, 2, evicted)
		assert.Equal(t, 0, c.Len())
	})
}

func TestNewTTLCache_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { cache.NewTTLCache[string, int](0, time.Minute) })
	assert.Panics(t, func() { cache.NewTTLCache[string, int](10, 0) })
}
