package reactive

import (
	"slices"
)

// Root is a lifetime scope for deriveds and effects created outside any
// reaction. Disposing a Root destroys everything it owns.
//
// Roots form a hierarchy: a child Root is disposed with its parent.
type Root struct {
	rt *Runtime

	// parent is the parent Root in the hierarchy.
	// nil for a top-level Root.
	parent *Root

	// children are child Roots.
	children []*Root

	// nodes are the deriveds and effects owned by this scope.
	nodes []*node

	// cleanups are manual cleanup functions registered via OnCleanup.
	cleanups []func()

	disposed bool
}

// NewRoot creates a Root. If parent is not nil, the new Root is disposed
// together with it.
func (rt *Runtime) NewRoot(parent *Root) *Root {
	r := &Root{
		rt:     rt,
		parent: parent,
	}
	if parent != nil && !parent.disposed {
		parent.children = append(parent.children, r)
	}
	return r
}

// Run runs fn with r as the active Root. Deriveds and effects created in fn
// while no reaction is active are owned by r.
func (r *Root) Run(fn func()) {
	prev := r.rt.tracking.root
	r.rt.tracking.root = r
	defer func() {
		r.rt.tracking.root = prev
	}()
	fn()
}

// OnCleanup registers fn to run when r is disposed. On a disposed Root fn
// runs immediately.
func (r *Root) OnCleanup(fn func()) {
	if r.disposed {
		fn()
		return
	}
	r.cleanups = append(r.cleanups, fn)
}

// IsDisposed returns true if r has been disposed.
func (r *Root) IsDisposed() bool {
	return r.disposed
}

// Len returns the number of deriveds and effects owned by r.
func (r *Root) Len() int {
	return len(r.nodes)
}

func (r *Root) adopt(n *node) {
	if r.disposed {
		return
	}
	n.root = r
	r.nodes = append(r.nodes, n)
}

func (r *Root) remove(n *node) {
	if i := slices.Index(r.nodes, n); i >= 0 {
		r.nodes = slices.Delete(r.nodes, i, i+1)
	}
}

// Dispose destroys r's child Roots (last created first), then the nodes it
// owns (last created first), then runs cleanups in reverse order.
// Disposing twice does nothing.
func (r *Root) Dispose() {
	if r.disposed {
		return
	}
	r.disposed = true

	if r.parent != nil {
		if i := slices.Index(r.parent.children, r); i >= 0 {
			r.parent.children = slices.Delete(r.parent.children, i, i+1)
		}
	}

	children := r.children
	r.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	nodes := r.nodes
	r.nodes = nil
	for i := len(nodes) - 1; i >= 0; i-- {
		r.rt.destroy(nodes[i])
	}

	cleanups := r.cleanups
	r.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
