package reactive

import "fmt"

// nodeImpl is the behavior a node variant adds on top of the shared graph
// bookkeeping. Teardown and validation treat every kind through it.
type nodeImpl interface {
	// update re-evaluates the node. Sources never update.
	update()

	// release drops the node's function and cached state on destruction.
	release()
}

// node is the type-erased part of every source, derived and effect.
type node struct {
	id    uint64
	rt    *Runtime
	kind  Kind
	flags flags
	label string
	impl  nodeImpl

	// version is the tick at which the node's value last changed.
	version uint64

	// verified is the clock at the end of the node's last evaluation.
	// A dependency with a newer version invalidates it.
	verified uint64

	// marked is the invalidation pass that last propagated through the node.
	marked uint64

	// deps are the nodes read during the last evaluation, in read order.
	deps []*node

	// reactions are the deriveds and effects that read this node.
	reactions []*node

	// deriveds and effects are the children created during evaluation.
	// They are destroyed with this node and before it re-evaluates.
	deriveds []*node
	effects  []*node

	// owner is the reaction that created this node, if any.
	owner *node

	// root is the Root that owns this node when no reaction did.
	root *Root
}

// NodeInfo identifies a node to observers.
type NodeInfo struct {
	ID      uint64
	Label   string
	Kind    Kind
	Unowned bool
}

func (n *node) info() NodeInfo {
	return NodeInfo{
		ID:      n.id,
		Label:   n.name(),
		Kind:    n.kind,
		Unowned: n.flags&flagUnowned != 0,
	}
}

func (n *node) name() string {
	if n.label != "" {
		return n.label
	}
	return fmt.Sprintf("%s#%d", n.kind, n.id)
}

func (n *node) status() Status {
	return n.flags.status()
}

// noopImpl is used by sources, which never update.
type noopImpl struct{}

func (noopImpl) update()  {}
func (noopImpl) release() {}
