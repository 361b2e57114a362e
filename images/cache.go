package images

import (
	"image"
	"sync"
)

// State describes one cache entry's lifecycle. Entries move absent ->
// StatePending -> StateLoaded or StateFailed and never back; a failed
// locator stays failed until Reset.
type State int

const (
	StateAbsent State = iota
	StatePending
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "absent"
	}
}

type entry struct {
	state State
	img   *image.RGBA
	err   error
}

// Cache stores decoded images keyed by resolved locator. It is safe
// for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Lookup returns the state of a locator and, when loaded, its image.
func (c *Cache) Lookup(key string) (State, *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return StateAbsent, nil
	}
	return e.state, e.img
}

// Err returns the recorded failure for a failed locator, or nil.
func (c *Cache) Err(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.err
	}
	return nil
}

// MarkPending transitions an absent locator to pending. It returns
// false when the locator is already pending, loaded, or failed, so
// exactly one caller wins the right to load it.
func (c *Cache) MarkPending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return false
	}
	c.entries[key] = &entry{state: StatePending}
	return true
}

// StoreLoaded records a decoded image. Failed entries stay failed.
func (c *Cache) StoreLoaded(key string, img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	if e.state == StateFailed {
		return
	}
	e.state = StateLoaded
	e.img = img
}

// StoreFailed records a permanent failure for a locator.
func (c *Cache) StoreFailed(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	if e.state == StateLoaded {
		return
	}
	e.state = StateFailed
	e.img = nil
	e.err = err
}

// Len returns the number of entries in any state.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry, including failures.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}
