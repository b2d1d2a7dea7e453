package reactive

// TrackingContext is the evaluation state of a Runtime: which reaction reads
// are attributed to, and which Root owns nodes created outside reactions.
// It is saved before every evaluation and restored afterwards, including
// when the evaluated function panics.
type TrackingContext struct {
	// reaction is the derived or effect currently being evaluated.
	// Reads register as its dependencies; new deriveds and effects become
	// its children.
	reaction *node

	// root owns deriveds and effects created while no reaction is active.
	root *Root

	// skipReaction is set while an unowned derived is evaluated. Deriveds
	// that settle under it stay MaybeDirty.
	skipReaction bool

	// untracked suppresses dependency recording without changing ownership.
	untracked bool
}

// execute runs fn with n installed as the active reaction. The previous
// dependency edges of n are dropped first; every reactive read fn performs
// is recorded as a new one.
func execute[T any](rt *Runtime, n *node, fn func() T) T {
	prev := rt.tracking
	defer func() {
		rt.tracking = prev
	}()

	rt.removeDependencyEdges(n, 0)
	n.deps = n.deps[:0]

	rt.tracking.reaction = n
	rt.tracking.untracked = false
	rt.tracking.skipReaction = n.flags&flagUnowned != 0

	value := fn()
	n.verified = rt.clock
	return value
}

// Untrack runs fn without recording the reads it performs as dependencies
// of the active reaction. Deriveds and effects created inside fn are still
// owned by that reaction.
//
// Example:
//
//	total := reactive.Derive(rt, func() int {
//	    var rate int
//	    rt.Untrack(func() { rate = taxRate.Get() })
//	    return price.Get() * rate
//	})
func (rt *Runtime) Untrack(fn func()) {
	old := rt.tracking.untracked
	rt.tracking.untracked = true
	defer func() {
		rt.tracking.untracked = old
	}()
	fn()
}

// Active reports whether a derived or effect is currently being evaluated.
func (rt *Runtime) Active() bool {
	return rt.tracking.reaction != nil
}
