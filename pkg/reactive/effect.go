package reactive

import (
	"fmt"
)

// Cleanup is a function returned by effects to clean up resources.
// It is called before the effect re-runs and when the effect is destroyed.
type Cleanup func()

// Effect is a reactive side effect. It runs once when created and again on
// Flush after anything it read has changed.
//
// Effects created while a derived or effect is evaluated are owned by it,
// exactly like nested deriveds.
type Effect struct {
	node

	// fn is the effect function. nil once the effect is destroyed.
	fn func() Cleanup

	// cleanup is the cleanup function from the last run.
	cleanup Cleanup

	// scheduled is true while the effect sits in the runtime's queue.
	scheduled bool
}

// Effect creates and runs a new effect.
//
// Example:
//
//	rt.Effect(func() reactive.Cleanup {
//	    fmt.Println("total is", total.Get())
//	    return nil
//	})
func (rt *Runtime) Effect(fn func() Cleanup) *Effect {
	return rt.NamedEffect("", fn)
}

// NamedEffect is Effect with a label, set before the first run so that
// observers see it from the start.
func (rt *Runtime) NamedEffect(label string, fn func() Cleanup) *Effect {
	e := &Effect{fn: fn}
	e.node = rt.newNode(KindEffect, e)
	e.label = label
	e.flags = flagDirty
	rt.adopt(&e.node)
	rt.observer.OnCreate(e.info())

	e.update()
	return e
}

// update runs the effect: owned children are destroyed and the previous
// cleanup called before fn runs again.
func (e *Effect) update() {
	rt := e.rt
	n := &e.node

	span := rt.beginUpdate(n)
	defer span.abort()

	// Marked Clean first so writes made by fn can schedule it again.
	rt.setStatus(n, flagClean)

	rt.destroyChildren(n)
	e.runCleanup()
	e.cleanup = execute(rt, n, e.fn)

	span.finish(false)
}

func (e *Effect) runCleanup() {
	if e.cleanup != nil {
		c := e.cleanup
		e.cleanup = nil
		c()
	}
}

func (e *Effect) release() {
	e.runCleanup()
	e.fn = nil
}

// Dispose destroys the effect and everything it owns, and removes it from
// its owner. Disposing twice does nothing.
func (e *Effect) Dispose() {
	if e.flags&flagDestroyed != 0 {
		return
	}
	e.rt.unlink(&e.node)
	e.rt.destroy(&e.node)
}

// Named sets the label used in logs and metrics.
func (e *Effect) Named(label string) *Effect {
	e.label = label
	return e
}

// ID returns the unique identifier for this effect.
func (e *Effect) ID() uint64 {
	return e.id
}

// Status returns the invalidation status.
func (e *Effect) Status() Status {
	return e.status()
}

// schedule queues an effect for the next Flush.
func (rt *Runtime) schedule(n *node) {
	e, ok := n.impl.(*Effect)
	if !ok || e.scheduled {
		return
	}
	e.scheduled = true
	rt.pending = append(rt.pending, n)
}

// Pending returns the number of effects waiting for Flush.
func (rt *Runtime) Pending() int {
	return len(rt.pending)
}

// Flush re-runs invalidated effects until none are left. Effects whose
// dependencies turn out unchanged after validation are skipped.
//
// Effects that write sources they (or other effects) read cause more
// rounds. After MaxFlushIterations rounds the remaining queue is dropped and
// ErrFlushLimit is returned.
func (rt *Runtime) Flush() error {
	if rt.flushing {
		return nil
	}
	rt.flushing = true
	defer func() {
		rt.flushing = false
	}()

	for round := 0; len(rt.pending) > 0; round++ {
		if round >= rt.cfg.MaxFlushIterations {
			dropped := len(rt.pending)
			for _, n := range rt.pending {
				n.impl.(*Effect).scheduled = false
			}
			rt.pending = nil
			rt.log.Warn("effect flush did not settle",
				"rounds", round,
				"dropped", dropped)
			return fmt.Errorf("after %d rounds: %w", round, ErrFlushLimit)
		}

		batch := rt.pending
		rt.pending = nil
		rt.runBatch(batch)
	}
	return nil
}

// runBatch runs one round of scheduled effects. If an effect panics, the
// effects after it stay queued for the next Flush.
func (rt *Runtime) runBatch(batch []*node) {
	for _, n := range batch {
		n.impl.(*Effect).scheduled = false
	}

	next := 0
	defer func() {
		for _, n := range batch[next:] {
			rt.schedule(n)
		}
	}()

	for next < len(batch) {
		n := batch[next]
		next++
		if n.flags&flagDestroyed != 0 {
			continue
		}
		if rt.isDirty(n) && n.flags&flagDestroyed == 0 {
			n.impl.update()
		}
	}
}
