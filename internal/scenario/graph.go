package scenario

import (
	"math"

	"github.com/vango-dev/derive/internal/errors"
	"github.com/vango-dev/derive/pkg/reactive"
)

// Node is one built node of a Graph.
type Node struct {
	Spec NodeSpec

	source   *reactive.Source[float64]
	derived  *reactive.Derived[float64]
	writable *reactive.Writable[float64]
	effect   *reactive.Effect

	// runs are the values an effect computed, one per run.
	runs []float64
}

// NodeState is a point-in-time view of a node that does not trigger any
// evaluation.
type NodeState struct {
	Name    string   `json:"name" yaml:"name"`
	Kind    string   `json:"kind" yaml:"kind"`
	Status  string   `json:"status,omitempty" yaml:"status,omitempty"`
	Version uint64   `json:"version" yaml:"version"`
	Unowned bool     `json:"unowned,omitempty" yaml:"unowned,omitempty"`
	Value   *float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// Graph is a scenario's nodes built on a runtime. All nodes are owned by
// the graph's Root and destroyed by Close.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	rt    *reactive.Runtime
	root  *reactive.Root
	name  string
	nodes map[string]*Node
	order []string
}

// Build creates the nodes of sc on rt. Sources, deriveds and writables are
// created in declaration order, then effects, which run immediately. sc
// must be valid.
func Build(rt *reactive.Runtime, sc *Scenario) (*Graph, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		rt:    rt,
		root:  rt.NewRoot(nil),
		name:  sc.Name,
		nodes: make(map[string]*Node, len(sc.Nodes)),
	}

	var effects []NodeSpec
	g.root.Run(func() {
		for _, spec := range sc.Nodes {
			g.order = append(g.order, spec.Name)
			n := &Node{Spec: spec}
			g.nodes[spec.Name] = n

			switch spec.Kind {
			case KindSource:
				var initial float64
				if spec.Value != nil {
					initial = *spec.Value
				}
				n.source = reactive.NewSource(rt, initial).Named(spec.Name)
			case KindDerived:
				n.derived = reactive.Derive(rt, g.compute(spec)).Named(spec.Name)
			case KindSafe:
				n.derived = reactive.DeriveSafeEqual(rt, g.compute(spec)).Named(spec.Name)
			case KindWritable:
				n.writable = reactive.Linked(rt, g.compute(spec)).Named(spec.Name)
			case KindEffect:
				effects = append(effects, spec)
			}
		}
	})

	var err error
	g.root.Run(func() {
		err = catch(func() {
			for _, spec := range effects {
				n := g.nodes[spec.Name]
				compute := g.compute(spec)
				n.effect = rt.NamedEffect(spec.Name, func() reactive.Cleanup {
					n.runs = append(n.runs, compute())
					return nil
				})
			}
		})
	})
	if err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// compute returns the tracked compute function of spec.
func (g *Graph) compute(spec NodeSpec) func() float64 {
	if spec.Op == OpSelf {
		return func() float64 {
			return g.get(spec.Name)
		}
	}
	return func() float64 {
		args := make([]float64, len(spec.Args))
		for i, arg := range spec.Args {
			if v, ok := constant(arg); ok {
				args[i] = v
				continue
			}
			args[i] = g.get(arg)
		}
		return apply(spec.Op, args)
	}
}

// get reads a node as a dependency of the active reaction.
func (g *Graph) get(name string) float64 {
	n := g.nodes[name]
	switch {
	case n.source != nil:
		return n.source.Get()
	case n.derived != nil:
		return n.derived.Get()
	case n.writable != nil:
		return n.writable.Get()
	}
	return math.NaN()
}

// catch runs fn and converts a panic into an error.
func catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = errors.Newf(errors.CodeComputePanic, "%v", r)
		}
	}()
	fn()
	return nil
}

func (g *Graph) node(name string) (*Node, error) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, errors.Newf(errors.CodeUnknownNode, "Unknown node %q", name)
	}
	return n, nil
}

// Name returns the scenario name.
func (g *Graph) Name() string {
	return g.name
}

// Runtime returns the runtime the graph was built on.
func (g *Graph) Runtime() *reactive.Runtime {
	return g.rt
}

// Names returns the node names in declaration order.
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// Kind returns the kind of the node called name.
func (g *Graph) Kind(name string) (string, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return "", false
	}
	return n.Spec.Kind, true
}

// Read returns the current value of a node, recomputing it if needed.
// Effects return the value of their last run.
func (g *Graph) Read(name string) (float64, error) {
	n, err := g.node(name)
	if err != nil {
		return 0, err
	}

	switch {
	case n.source != nil:
		return n.source.Peek(), nil
	case n.derived != nil:
		return n.derived.SafeGet()
	case n.writable != nil:
		var v float64
		err := catch(func() { v = n.writable.Get() })
		return v, err
	}

	if len(n.runs) == 0 {
		return 0, errors.New(errors.CodeUnsupportedRead).WithNode(name)
	}
	return n.runs[len(n.runs)-1], nil
}

// Set writes a source.
func (g *Graph) Set(name string, v float64) error {
	n, err := g.node(name)
	if err != nil {
		return err
	}
	if n.source == nil {
		return errors.Newf(errors.CodeUnsupportedWrite, "Cannot set %s %q", n.Spec.Kind, name).
			WithSuggestion("Only sources can be set; use write for writables.")
	}
	n.source.Set(v)
	return nil
}

// Write overrides a writable until its upstream changes.
func (g *Graph) Write(name string, v float64) error {
	n, err := g.node(name)
	if err != nil {
		return err
	}
	if n.writable == nil {
		return errors.Newf(errors.CodeUnsupportedWrite, "Cannot write %s %q", n.Spec.Kind, name).
			WithSuggestion("Only writables can be written; use set for sources.")
	}
	return catch(func() { n.writable.Set(v) })
}

// Destroy destroys a derived, writable or effect. Sources cannot be
// destroyed.
func (g *Graph) Destroy(name string) error {
	n, err := g.node(name)
	if err != nil {
		return err
	}
	switch {
	case n.derived != nil:
		n.derived.Destroy()
	case n.writable != nil:
		n.writable.Destroy()
	case n.effect != nil:
		n.effect.Dispose()
	default:
		return errors.Newf(errors.CodeUnsupportedWrite, "Cannot destroy source %q", name)
	}
	return nil
}

// Flush re-runs invalidated effects.
func (g *Graph) Flush() error {
	var err error
	if perr := catch(func() { err = g.rt.Flush() }); perr != nil {
		return perr
	}
	return err
}

// Runs returns the values an effect computed, oldest first.
func (g *Graph) Runs(name string) []float64 {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return append([]float64(nil), n.runs...)
}

// State returns the state of one node without evaluating anything.
func (g *Graph) State(name string) (NodeState, error) {
	n, err := g.node(name)
	if err != nil {
		return NodeState{}, err
	}

	st := NodeState{Name: name, Kind: n.Spec.Kind}
	cached := func(d *reactive.Derived[float64]) {
		st.Status = d.Status().String()
		st.Version = d.Version()
		st.Unowned = d.Unowned()
		if v, ok := d.Cached(); ok {
			st.Value = &v
		}
	}

	switch {
	case n.source != nil:
		v := n.source.Peek()
		st.Version = n.source.Version()
		st.Value = &v
	case n.derived != nil:
		cached(n.derived)
	case n.writable != nil:
		cached(n.writable.Derived())
	case n.effect != nil:
		st.Status = n.effect.Status().String()
		if len(n.runs) > 0 {
			v := n.runs[len(n.runs)-1]
			st.Value = &v
		}
	}
	return st, nil
}

// States returns the state of every node in declaration order.
func (g *Graph) States() []NodeState {
	states := make([]NodeState, 0, len(g.order))
	for _, name := range g.order {
		st, _ := g.State(name)
		states = append(states, st)
	}
	return states
}

// Watch calls fn with the state of name now, and again after every flush
// in which the node's value may have changed. Disposing the returned effect
// stops the watch.
func (g *Graph) Watch(name string, fn func(NodeState)) (*reactive.Effect, error) {
	n, err := g.node(name)
	if err != nil {
		return nil, err
	}
	if n.effect != nil {
		return nil, errors.New(errors.CodeUnsupportedRead).
			WithNode(name).
			WithDetail("Effects cannot be watched")
	}

	var eff *reactive.Effect
	g.root.Run(func() {
		eff = g.rt.NamedEffect("watch:"+name, func() reactive.Cleanup {
			// A failing compute is reported through the state's status.
			_ = catch(func() { g.get(name) })
			st, _ := g.State(name)
			fn(st)
			return nil
		})
	})
	return eff, nil
}

// Close destroys every node of the graph.
func (g *Graph) Close() {
	g.root.Dispose()
}
