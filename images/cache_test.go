package images

import (
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLifecycle(t *testing.T) {
	c := NewCache()

	state, img := c.Lookup("x")
	assert.Equal(t, StateAbsent, state)
	assert.Nil(t, img)

	require.True(t, c.MarkPending("x"), "first MarkPending should win")
	assert.False(t, c.MarkPending("x"), "second MarkPending should lose")
	state, _ = c.Lookup("x")
	assert.Equal(t, StatePending, state)

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	c.StoreLoaded("x", rgba)
	state, img = c.Lookup("x")
	assert.Equal(t, StateLoaded, state)
	assert.Same(t, rgba, img)
}

func TestCacheFailureIsPermanent(t *testing.T) {
	c := NewCache()
	c.MarkPending("x")
	boom := errors.New("boom")
	c.StoreFailed("x", boom)

	state, _ := c.Lookup("x")
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, c.Err("x"), boom)
	assert.False(t, c.MarkPending("x"), "failed key must not become pending again")

	// A late success does not resurrect a failed entry.
	c.StoreLoaded("x", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	state, _ = c.Lookup("x")
	assert.Equal(t, StateFailed, state)
}

func TestCacheLoadedIgnoresLateFailure(t *testing.T) {
	c := NewCache()
	c.MarkPending("x")
	c.StoreLoaded("x", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	c.StoreFailed("x", errors.New("late"))

	state, img := c.Lookup("x")
	assert.Equal(t, StateLoaded, state)
	assert.NotNil(t, img)
}

func TestCacheReset(t *testing.T) {
	c := NewCache()
	c.MarkPending("a")
	c.StoreFailed("a", errors.New("x"))
	c.MarkPending("b")
	require.Equal(t, 2, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.MarkPending("a"), "reset should clear failed entries")
}

func TestCacheMarkPendingSingleWinner(t *testing.T) {
	c := NewCache()
	const n = 32
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if c.MarkPending("shared") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins, "exactly one caller claims a miss")
}
