package reactive

import "time"

// UpdateResult describes one completed or failed evaluation.
type UpdateResult struct {
	// Changed is true when the new value replaced the cached one and the
	// node's version advanced. Always false for effects.
	Changed bool

	// Status is the node's status after the evaluation.
	Status Status

	// Duration is the wall time spent evaluating, children teardown included.
	Duration time.Duration

	// Err is set when the evaluation panicked.
	Err error
}

// Observer is notified of node lifecycle events.
// Implementations live in pkg/observe.
type Observer interface {
	// OnCreate is called when a derived or effect is created.
	OnCreate(info NodeInfo)

	// OnUpdate is called when an evaluation starts. The returned function
	// is called exactly once when it ends.
	OnUpdate(info NodeInfo) func(UpdateResult)

	// OnDestroy is called when a derived or effect is destroyed.
	OnDestroy(info NodeInfo)

	// OnSelfReference is called when the recursion guard trips.
	OnSelfReference(info NodeInfo)
}

type nopObserver struct{}

func (nopObserver) OnCreate(NodeInfo)                     {}
func (nopObserver) OnUpdate(NodeInfo) func(UpdateResult) { return func(UpdateResult) {} }
func (nopObserver) OnDestroy(NodeInfo)                    {}
func (nopObserver) OnSelfReference(NodeInfo)              {}

// updateSpan reports one evaluation to the observer.
type updateSpan struct {
	n      *node
	report func(UpdateResult)
	start  time.Time
	done   bool
}

func (rt *Runtime) beginUpdate(n *node) *updateSpan {
	return &updateSpan{
		n:      n,
		report: rt.observer.OnUpdate(n.info()),
		start:  time.Now(),
	}
}

func (s *updateSpan) finish(changed bool) {
	s.done = true
	s.report(UpdateResult{
		Changed:  changed,
		Status:   s.n.status(),
		Duration: time.Since(s.start),
	})
}

// abort must be deferred. It reports a panicking evaluation and lets the
// panic continue unchanged.
func (s *updateSpan) abort() {
	if s.done {
		return
	}
	r := recover()
	if r == nil {
		return
	}
	s.done = true
	s.report(UpdateResult{
		Status:   s.n.status(),
		Duration: time.Since(s.start),
		Err:      panicError(r),
	})
	panic(r)
}
