package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalClock_NextIsMonotonic(t *testing.T) {
	c := NewClock()

	assert.Equal(t, uint64(0), c.Current())
	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Next())
	assert.Equal(t, uint64(2), c.Current())
}

func TestLogicalClock_ObserveRatchets(t *testing.T) {
	c := NewClockAt(5)

	c.Observe(3)
	assert.Equal(t, uint64(5), c.Current(), "lower observation must not rewind")

	c.Observe(12)
	assert.Equal(t, uint64(12), c.Current())

	// Next after an observation stays ahead of everything merged.
	assert.Equal(t, uint64(13), c.Next())
}

func TestLogicalClock_ConcurrentObserve(t *testing.T) {
	c := NewClock()

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			c.Observe(v)
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, uint64(100), c.Current())
}
