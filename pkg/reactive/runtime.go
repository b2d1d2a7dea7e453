package reactive

import (
	"log/slog"
	"slices"
)

// DefaultMaxFlushIterations bounds how many rounds of effect re-runs a
// single Flush performs before giving up with ErrFlushLimit.
const DefaultMaxFlushIterations = 1000

// Config configures a Runtime.
type Config struct {
	// Diagnostics enables the recursion guard that reports a derived reading
	// itself as ErrSelfReference.
	Diagnostics bool

	// Logger receives runtime diagnostics.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Observer is notified of node creation, recomputation and destruction.
	// If nil, nothing is observed.
	Observer Observer

	// MaxFlushIterations bounds effect re-runs per Flush.
	// Default: DefaultMaxFlushIterations.
	MaxFlushIterations int
}

// Option configures a Runtime.
type Option func(*Config)

// WithDiagnostics enables or disables the self-reference guard.
func WithDiagnostics(enabled bool) Option {
	return func(c *Config) {
		c.Diagnostics = enabled
	}
}

// WithLogger sets the logger used for runtime diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithObserver sets the observer notified of node lifecycle events.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		c.Observer = o
	}
}

// WithMaxFlushIterations bounds effect re-runs per Flush.
func WithMaxFlushIterations(n int) Option {
	return func(c *Config) {
		c.MaxFlushIterations = n
	}
}

// Runtime owns the version clock, the tracking context and the effect queue
// shared by every node created from it.
type Runtime struct {
	cfg      Config
	log      *slog.Logger
	observer Observer

	// clock is the last minted version tick.
	clock uint64

	// lastID is the last node identifier handed out.
	lastID uint64

	tracking TrackingContext

	// updating is the stack of in-flight derived recomputations.
	// Only maintained when diagnostics are enabled.
	updating []*node

	// markEpoch identifies one invalidation pass, so every node is
	// propagated through at most once per write.
	markEpoch uint64

	// pending are effects scheduled to re-run on the next Flush.
	pending  []*node
	flushing bool
}

// New creates a Runtime.
func New(opts ...Option) *Runtime {
	cfg := Config{MaxFlushIterations: DefaultMaxFlushIterations}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.MaxFlushIterations <= 0 {
		cfg.MaxFlushIterations = DefaultMaxFlushIterations
	}
	return &Runtime{
		cfg:      cfg,
		log:      cfg.Logger,
		observer: cfg.Observer,
	}
}

// Diagnostics reports whether the self-reference guard is enabled.
func (rt *Runtime) Diagnostics() bool {
	return rt.cfg.Diagnostics
}

// Clock returns the most recently minted version tick.
func (rt *Runtime) Clock() uint64 {
	return rt.clock
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.log
}

// nextVersion mints a new version tick.
func (rt *Runtime) nextVersion() uint64 {
	rt.clock++
	return rt.clock
}

func (rt *Runtime) newNode(kind Kind, impl nodeImpl) node {
	rt.lastID++
	return node{
		id:   rt.lastID,
		rt:   rt,
		kind: kind,
		impl: impl,
	}
}

// setStatus replaces the status bits of n, leaving unowned untouched.
func (rt *Runtime) setStatus(n *node, status flags) {
	n.flags = n.flags&^statusMask | status
}

// recordDependency registers dep as a dependency of the active reaction.
func (rt *Runtime) recordDependency(dep *node) {
	r := rt.tracking.reaction
	if r == nil || rt.tracking.untracked || r == dep {
		return
	}
	if slices.Contains(r.deps, dep) {
		return
	}
	r.deps = append(r.deps, dep)
	dep.reactions = append(dep.reactions, r)
}

// removeDependencyEdges detaches n from the subscriber lists of its
// dependencies, starting at index from. n.deps itself is left as is.
func (rt *Runtime) removeDependencyEdges(n *node, from int) {
	if from >= len(n.deps) {
		return
	}
	for _, dep := range n.deps[from:] {
		if i := slices.Index(dep.reactions, n); i >= 0 {
			dep.reactions = slices.Delete(dep.reactions, i, i+1)
		}
	}
}

// isDirty reports whether a reaction has to be re-evaluated before its
// value can be trusted. MaybeDirty nodes are validated by bringing their
// derived dependencies up to date and comparing versions; owned nodes that
// validate become Clean, unowned ones stay MaybeDirty. Updating a
// dependency can destroy n (when the dependency owns it); validation then
// stops and reports false, leaving n destroyed.
func (rt *Runtime) isDirty(n *node) bool {
	if n.flags&flagDirty != 0 {
		return true
	}
	if n.flags&flagMaybeDirty == 0 {
		return false
	}

	for _, dep := range n.deps {
		if dep.kind == KindDerived && dep.flags&flagDestroyed == 0 && rt.isDirty(dep) {
			dep.impl.update()
			if n.flags&flagDestroyed != 0 {
				return false
			}
		}
		if dep.version > n.verified {
			return true
		}
	}

	if n.flags&flagUnowned == 0 {
		rt.setStatus(n, flagClean)
	}
	return false
}

// invalidate pushes a change of n to everything downstream of it.
func (rt *Runtime) invalidate(n *node) {
	rt.markEpoch++
	rt.markReactions(n, flagDirty)
}

// markReactions sets status on the direct subscribers of n, MaybeDirty on
// everything further downstream, and schedules the effects it reaches.
func (rt *Runtime) markReactions(n *node, status flags) {
	for _, r := range n.reactions {
		if r.flags&flagDestroyed != 0 {
			continue
		}
		if r.flags&flagDirty == 0 {
			rt.setStatus(r, status)
		}
		if r.marked == rt.markEpoch {
			continue
		}
		r.marked = rt.markEpoch

		if r.kind == KindDerived {
			rt.markReactions(r, flagMaybeDirty)
		} else {
			rt.schedule(r)
		}
	}
}

// adopt records the owner of a freshly created derived or effect: the
// active reaction if there is one, otherwise the active Root. Deriveds
// created with no reaction active are marked unowned.
func (rt *Runtime) adopt(n *node) {
	parent := rt.tracking.reaction
	switch {
	case parent != nil:
		n.owner = parent
		if n.kind == KindDerived {
			parent.deriveds = append(parent.deriveds, n)
		} else {
			parent.effects = append(parent.effects, n)
		}
	case rt.tracking.root != nil:
		rt.tracking.root.adopt(n)
	}

	if n.kind == KindDerived && parent == nil {
		n.flags |= flagUnowned
	}
}

// unlink removes n from its owner's child list, so a later teardown of the
// owner does not visit it again.
func (rt *Runtime) unlink(n *node) {
	if p := n.owner; p != nil {
		list := &p.deriveds
		if n.kind == KindEffect {
			list = &p.effects
		}
		if i := slices.Index(*list, n); i >= 0 {
			*list = slices.Delete(*list, i, i+1)
		}
	}
	if r := n.root; r != nil {
		r.remove(n)
	}
	n.owner = nil
	n.root = nil
}

// destroyChildren destroys every owned effect and derived of n.
func (rt *Runtime) destroyChildren(n *node) {
	effects := n.effects
	n.effects = nil
	for _, e := range effects {
		rt.destroy(e)
	}

	deriveds := n.deriveds
	n.deriveds = nil
	for _, d := range deriveds {
		rt.destroy(d)
	}
}

// destroy tears n down: owned children first, then its dependency edges.
// The node ends Destroyed with its function, value and edges released.
func (rt *Runtime) destroy(n *node) {
	if n.flags&flagDestroyed != 0 {
		return
	}

	rt.destroyChildren(n)
	rt.removeDependencyEdges(n, 0)
	rt.setStatus(n, flagDestroyed)
	n.impl.release()

	n.deps = nil
	n.reactions = nil
	n.owner = nil
	n.root = nil

	rt.observer.OnDestroy(n.info())
}
