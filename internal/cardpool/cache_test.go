package cardpool

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDuplicateCache_MissBeforeSet(t *testing.T) {
	cache := NewDuplicateCache()

	_, ok := cache.Get(uuid.New(), "Lightning Bolt")
	assert.False(t, ok)
}

func TestDuplicateCache_SetThenGet(t *testing.T) {
	cache := NewDuplicateCache()
	poolID := uuid.New()

	cache.Set(poolID, map[string]int{"Lightning Bolt": 4, "Counterspell": 2})

	count, ok := cache.Get(poolID, "Lightning Bolt")
	assert.True(t, ok)
	assert.Equal(t, 4, count)

	// A name absent from the snapshot reads as zero copies, not a miss.
	count, ok = cache.Get(poolID, "Black Lotus")
	assert.True(t, ok)
	assert.Equal(t, 0, count)
}

func TestDuplicateCache_InvalidateDropsOnlyThatPool(t *testing.T) {
	cache := NewDuplicateCache()
	first := uuid.New()
	second := uuid.New()

	cache.Set(first, map[string]int{"Lightning Bolt": 4})
	cache.Set(second, map[string]int{"Lightning Bolt": 1})

	cache.Invalidate(first)

	_, ok := cache.Get(first, "Lightning Bolt")
	assert.False(t, ok)

	count, ok := cache.Get(second, "Lightning Bolt")
	assert.True(t, ok)
	assert.Equal(t, 1, count)
}

func TestDuplicateCache_InvalidateUnknownPool(t *testing.T) {
	cache := NewDuplicateCache()
	cache.Invalidate(uuid.New())
}

func TestDuplicateCache_ConcurrentAccess(t *testing.T) {
	cache := NewDuplicateCache()
	poolID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Set(poolID, map[string]int{"Lightning Bolt": j})
				cache.Get(poolID, "Lightning Bolt")
				cache.Invalidate(poolID)
			}
		}()
	}
	wg.Wait()
}
