package reactive

// Writable is a derived value that can be overridden by direct writes.
//
// It tracks upstream until Set is called, returns the written value from
// then on, and goes back to tracking upstream at the next upstream change.
type Writable[T any] struct {
	// local holds the last written or read value.
	local *Source[T]

	// linked recomputes from upstream, or returns the local value when an
	// override is pending.
	linked *Derived[T]

	// pendingLocalOverride is set only within Set. The linked derived's
	// next evaluation consumes it.
	pendingLocalOverride bool
}

// Linked creates a Writable tracking upstream.
//
// Example:
//
//	selected := reactive.Linked(rt, func() string { return options.Get()[0] })
//	selected.Get()      // first option
//	selected.Set("b")   // "b", until options changes
func Linked[T any](rt *Runtime, upstream func() T) *Writable[T] {
	var zero T
	w := &Writable[T]{
		local: NewSource(rt, zero),
	}
	w.linked = Derive(rt, func() T {
		local := w.local.Get()
		linked := upstream()

		if w.pendingLocalOverride {
			w.pendingLocalOverride = false
			return local
		}
		return linked
	})
	return w
}

// Get settles the linked derived and returns its value. The value is also
// stored in the local source without notifying anyone.
func (w *Writable[T]) Get() T {
	v := w.linked.Get()
	w.local.value = v
	return v
}

// Set overrides the value with v and returns it. The write always
// invalidates the linked derived, even when v equals the last value seen
// locally.
func (w *Writable[T]) Set(v T) T {
	w.pendingLocalOverride = true
	defer func() { w.pendingLocalOverride = false }()
	w.local.force(v)
	w.linked.Get()
	return v
}

// Accessor returns a function that reads when called with no arguments and
// writes its first argument otherwise.
func (w *Writable[T]) Accessor() func(v ...T) T {
	return func(v ...T) T {
		if len(v) > 0 {
			return w.Set(v[0])
		}
		return w.Get()
	}
}

// Derived returns the linked derived. Reading through it tracks the same
// dependency as Get.
func (w *Writable[T]) Derived() *Derived[T] {
	return w.linked
}

// Named labels the linked derived.
func (w *Writable[T]) Named(label string) *Writable[T] {
	w.linked.Named(label)
	w.local.Named(label + ".local")
	return w
}

// Destroy destroys the linked derived.
func (w *Writable[T]) Destroy() {
	w.linked.Destroy()
}
