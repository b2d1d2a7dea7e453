package reactive

// Source is a mutable reactive cell that deriveds and effects read from.
type Source[T any] struct {
	node

	value T

	// equal decides whether a write is a change.
	// If nil, Equals is used.
	equal func(a, b T) bool
}

// NewSource creates a source holding initial.
func NewSource[T any](rt *Runtime, initial T) *Source[T] {
	s := &Source[T]{value: initial}
	s.node = rt.newNode(KindSource, noopImpl{})
	return s
}

// Get returns the current value and registers the source as a dependency
// of the active reaction.
func (s *Source[T]) Get() T {
	s.rt.recordDependency(&s.node)
	return s.value
}

// Peek returns the current value without registering a dependency.
func (s *Source[T]) Peek() T {
	return s.value
}

// Set stores value. If it differs from the current value, the source gets a
// new version and everything that read it is invalidated.
func (s *Source[T]) Set(value T) {
	if s.equals(s.value, value) {
		return
	}
	s.value = value
	s.version = s.rt.nextVersion()
	s.rt.invalidate(&s.node)
}

// force stores value and invalidates readers without the equality check.
func (s *Source[T]) force(value T) {
	s.value = value
	s.version = s.rt.nextVersion()
	s.rt.invalidate(&s.node)
}

// Update replaces the value with fn applied to it.
func (s *Source[T]) Update(fn func(T) T) {
	s.Set(fn(s.value))
}

// WithEquals returns the source configured with a custom equality function.
func (s *Source[T]) WithEquals(fn func(a, b T) bool) *Source[T] {
	s.equal = fn
	return s
}

// Named sets the label used in logs and errors.
func (s *Source[T]) Named(label string) *Source[T] {
	s.label = label
	return s
}

// Label returns the source's label.
func (s *Source[T]) Label() string {
	return s.name()
}

// ID returns the unique identifier for this source.
func (s *Source[T]) ID() uint64 {
	return s.id
}

// Version returns the tick at which the value last changed.
func (s *Source[T]) Version() uint64 {
	return s.version
}

// Subscribers returns the number of deriveds and effects reading the source.
func (s *Source[T]) Subscribers() int {
	return len(s.reactions)
}

func (s *Source[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return Equals(a, b)
}
