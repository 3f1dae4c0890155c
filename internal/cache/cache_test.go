package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byteCost(b []byte) int { return len(b) }

func TestCacheGetPut(t *testing.T) {
	c := New[int, []byte](0, byteCost)
	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Put(1, []byte{1, 2, 3})
	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, v)

	st := c.Stats()
	assert.Equal(t, 1, st.Len)
	assert.Equal(t, 3, st.Used)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.InDelta(t, 0.5, st.HitRate(), 1e-12)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, []byte](10, byteCost)
	c.Put("a", make([]byte, 4))
	c.Put("b", make([]byte, 4))
	c.Get("a")
	c.Put("c", make([]byte, 4))

	_, ok := c.Get("b")
	assert.False(t, ok, "b was the oldest")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	st := c.Stats()
	assert.Equal(t, 8, st.Used)
	assert.Equal(t, uint64(1), st.Evictions)
}

func TestCacheReplaceAdjustsCost(t *testing.T) {
	c := New[string, []byte](10, byteCost)
	c.Put("a", make([]byte, 6))
	c.Put("a", make([]byte, 2))
	assert.Equal(t, 2, c.Stats().Used)
	assert.Equal(t, 1, c.Len())
}

func TestCacheRejectsOversizedValue(t *testing.T) {
	c := New[string, []byte](4, byteCost)
	c.Put("small", make([]byte, 3))
	c.Put("big", make([]byte, 5))

	_, ok := c.Get("big")
	assert.False(t, ok)
	_, ok = c.Get("small")
	assert.True(t, ok, "an oversized value does not flush the cache")
}

func TestCacheGetOrCreate(t *testing.T) {
	c := New[int, int](0, nil)
	calls := 0
	create := func() int {
		calls++
		return 42
	}
	assert.Equal(t, 42, c.GetOrCreate(7, create))
	assert.Equal(t, 42, c.GetOrCreate(7, create))
	assert.Equal(t, 1, calls)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := New[int, int](0, nil)
	for i := range 5 {
		c.Put(i, i)
	}
	c.Delete(2)
	c.Delete(99)
	assert.Equal(t, 4, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Stats().Used)

	c.Put(1, 1)
	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCacheConcurrent(t *testing.T) {
	c := New[int, []byte](64, byteCost)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				key := (g + i) % 20
				c.GetOrCreate(key, func() []byte { return make([]byte, 8) })
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Stats().Used, 64)
}

func BenchmarkCacheHit(b *testing.B) {
	c := New[int, []byte](0, byteCost)
	c.Put(1, make([]byte, 16))
	b.ResetTimer()
	for range b.N {
		c.Get(1)
	}
}

func BenchmarkCacheChurn(b *testing.B) {
	c := New[int, []byte](256, byteCost)
	b.ResetTimer()
	for i := range b.N {
		c.GetOrCreate(i%64, func() []byte { return make([]byte, 16) })
	}
}
