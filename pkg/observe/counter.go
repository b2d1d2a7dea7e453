package observe

import (
	"maps"
	"sync"

	"github.com/vango-dev/derive/pkg/reactive"
)

// Counter is an observer that counts evaluations per node label.
// It is safe to read from other goroutines while the runtime runs.
type Counter struct {
	mu      sync.Mutex
	updates map[string]int
	changes map[string]int
	failed  map[string]int
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter {
	return &Counter{
		updates: make(map[string]int),
		changes: make(map[string]int),
		failed:  make(map[string]int),
	}
}

func (c *Counter) OnCreate(reactive.NodeInfo) {}

func (c *Counter) OnUpdate(info reactive.NodeInfo) func(reactive.UpdateResult) {
	return func(res reactive.UpdateResult) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.updates[info.Label]++
		if res.Changed {
			c.changes[info.Label]++
		}
		if res.Err != nil {
			c.failed[info.Label]++
		}
	}
}

func (c *Counter) OnDestroy(reactive.NodeInfo) {}

func (c *Counter) OnSelfReference(reactive.NodeInfo) {}

// Updates returns how many times the node labelled label was evaluated.
func (c *Counter) Updates(label string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates[label]
}

// Changes returns how many evaluations of label produced a new value.
func (c *Counter) Changes(label string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changes[label]
}

// Failures returns how many evaluations of label panicked.
func (c *Counter) Failures(label string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[label]
}

// Snapshot returns a copy of the evaluation counts keyed by label.
func (c *Counter) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.updates)
}

// Reset clears all counts.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.updates)
	clear(c.changes)
	clear(c.failed)
}
