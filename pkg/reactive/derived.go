package reactive

import (
	errs "github.com/vango-dev/derive/internal/errors"
)

// Derived is a lazily computed, memoized value that tracks its dependencies.
//
// The compute function runs on the first read, not at creation. Afterwards
// reads are served from cache until a dependency changes; the next read then
// re-runs it. If the new value is equal to the cached one under the derived's
// equality policy, the cached value and its version are kept.
type Derived[T any] struct {
	node

	// fn computes the value. nil once the derived is destroyed.
	fn func() T

	// value is the cached result of the last change.
	value T

	// computed is false until the first evaluation.
	computed bool

	// equals decides whether a fresh result is unchanged.
	equals func(a, b T) bool
}

// Derive creates a derived value computed by fn.
//
// If a derived or effect is being evaluated, the new node becomes its owned
// child and is destroyed with it or before it re-evaluates. Otherwise the
// node is unowned, and is registered with the active Root if there is one.
//
// A derived that reads itself, directly or through other deriveds, is
// reported as ErrSelfReference only when diagnostics are on. Without them
// the cycle recurses until the goroutine stack overflows, which crashes the
// process.
func Derive[T any](rt *Runtime, fn func() T) *Derived[T] {
	d := &Derived[T]{
		fn:     fn,
		equals: Equals[T],
	}
	d.node = rt.newNode(KindDerived, d)
	d.flags = flagDirty
	rt.adopt(&d.node)
	rt.observer.OnCreate(d.info())
	return d
}

// DeriveSafeEqual creates a derived that uses SafeEquals. Use it when the
// value is a mutable container, so that every recomputation counts as a
// change.
func DeriveSafeEqual[T any](rt *Runtime, fn func() T) *Derived[T] {
	d := Derive(rt, fn)
	d.equals = SafeEquals[T]
	return d
}

// Get returns the value, recomputing it first if a dependency changed.
// Registers the derived as a dependency of the active reaction.
// Panics with ErrDestroyed if the derived was destroyed.
func (d *Derived[T]) Get() T {
	d.refresh()
	d.rt.recordDependency(&d.node)
	return d.value
}

// Peek returns the value without registering a dependency.
// Still recomputes if the value is stale.
func (d *Derived[T]) Peek() T {
	d.refresh()
	return d.value
}

// Cached returns the last computed value without validating or recomputing
// it. ok is false before the first evaluation and after destruction.
func (d *Derived[T]) Cached() (value T, ok bool) {
	return d.value, d.computed
}

// SafeGet is Get with panics converted to errors: the self-reference and
// destroyed errors, and failures of the compute function. Panic values that
// are errors are returned unchanged.
func (d *Derived[T]) SafeGet() (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return d.Get(), nil
}

func (d *Derived[T]) refresh() {
	if d.flags&flagDestroyed != 0 {
		panic(errs.New(errs.CodeDestroyed).WithNode(d.name()))
	}
	dirty := d.rt.isDirty(&d.node)
	if d.flags&flagDestroyed != 0 {
		panic(errs.New(errs.CodeDestroyed).WithNode(d.name()))
	}
	if dirty {
		d.update()
	}
}

// update recomputes a Dirty or MaybeDirty derived.
//
// Owned children are destroyed before fn runs. A version tick is minted
// only if the new value differs from the cached one; the first evaluation
// always counts as a change.
func (d *Derived[T]) update() {
	rt := d.rt
	n := &d.node

	if rt.cfg.Diagnostics {
		rt.pushUpdating(n)
		defer rt.popUpdating()
	}

	span := rt.beginUpdate(n)
	defer span.abort()

	// Stays Dirty if fn panics.
	rt.setStatus(n, flagDirty)

	rt.destroyChildren(n)
	value := execute(rt, n, d.fn)

	status := flagClean
	if (rt.tracking.skipReaction || n.flags&flagUnowned != 0) && len(n.deps) > 0 {
		status = flagMaybeDirty
	}
	rt.setStatus(n, status)

	changed := !d.computed || !d.equals(d.value, value)
	if changed {
		d.value = value
		d.computed = true
		d.version = rt.nextVersion()
	}
	span.finish(changed)
}

func (d *Derived[T]) release() {
	var zero T
	d.fn = nil
	d.value = zero
	d.computed = false
}

// Destroy destroys the derived and everything it owns, and removes it from
// its owner. Destroying a destroyed derived does nothing.
func (d *Derived[T]) Destroy() {
	if d.flags&flagDestroyed != 0 {
		return
	}
	d.rt.unlink(&d.node)
	d.rt.destroy(&d.node)
}

// WithEquals replaces the equality policy.
func (d *Derived[T]) WithEquals(fn func(a, b T) bool) *Derived[T] {
	d.equals = fn
	return d
}

// Named sets the label used in errors, logs and metrics.
func (d *Derived[T]) Named(label string) *Derived[T] {
	d.label = label
	return d
}

// Label returns the derived's label.
func (d *Derived[T]) Label() string {
	return d.name()
}

// ID returns the unique identifier for this derived.
func (d *Derived[T]) ID() uint64 {
	return d.id
}

// Status returns the invalidation status.
func (d *Derived[T]) Status() Status {
	return d.status()
}

// Unowned reports whether the derived was created outside any evaluation.
func (d *Derived[T]) Unowned() bool {
	return d.flags&flagUnowned != 0
}

// Version returns the tick at which the value last changed.
func (d *Derived[T]) Version() uint64 {
	return d.version
}

// Owned returns the number of deriveds and effects currently owned.
func (d *Derived[T]) Owned() (deriveds, effects int) {
	return len(d.deriveds), len(d.effects)
}

// Dependencies returns the number of nodes read during the last evaluation.
func (d *Derived[T]) Dependencies() int {
	return len(d.deps)
}
