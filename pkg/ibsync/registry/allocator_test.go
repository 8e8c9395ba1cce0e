package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorSequence(t *testing.T) {
	a := NewAllocator(1000)

	assert.Equal(t, int64(1001), a.Next())
	assert.Equal(t, int64(1002), a.Next())
	assert.Equal(t, int64(1003), a.Next())
}

func TestAllocatorConcurrentUniqueness(t *testing.T) {
	const (
		goroutines = 16
		perG       = 500
	)

	a := NewAllocator(0)
	ids := make(chan int64, goroutines*perG)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perG {
				ids <- a.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, goroutines*perG)
	for id := range ids {
		require.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*perG)
}

func TestAllocatorSeed(t *testing.T) {
	t.Run("raises the floor", func(t *testing.T) {
		a := NewAllocator(0)
		a.Seed(42)

		assert.Equal(t, int64(43), a.Next())
	})

	t.Run("ignores lower seeds", func(t *testing.T) {
		a := NewAllocator(100)
		a.Seed(5)

		assert.Equal(t, int64(101), a.Next())
	})
}
