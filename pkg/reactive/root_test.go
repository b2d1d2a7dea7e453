package reactive

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRootDisposeOrder(t *testing.T) {
	rt := newTestRuntime()
	root := rt.NewRoot(nil)
	child := rt.NewRoot(root)
	var order []string

	child.Run(func() {
		rt.Effect(func() Cleanup {
			return func() { order = append(order, "child effect") }
		})
	})
	root.Run(func() {
		rt.Effect(func() Cleanup {
			return func() { order = append(order, "first effect") }
		})
		rt.Effect(func() Cleanup {
			return func() { order = append(order, "second effect") }
		})
	})
	root.OnCleanup(func() { order = append(order, "cleanup 1") })
	root.OnCleanup(func() { order = append(order, "cleanup 2") })

	root.Dispose()
	root.Dispose()

	want := []string{"child effect", "second effect", "first effect", "cleanup 2", "cleanup 1"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("dispose order mismatch (-want +got):\n%s", diff)
	}
	if !child.IsDisposed() {
		t.Error("expected child root disposed")
	}
}

func TestRootOwnsTopLevelDeriveds(t *testing.T) {
	rt := newTestRuntime()
	root := rt.NewRoot(nil)
	s := NewSource(rt, 1)

	var d *Derived[int]
	root.Run(func() {
		d = Derive(rt, func() int { return s.Get() })
	})
	d.Get()

	if !d.Unowned() {
		t.Error("expected a root-scoped derived to stay unowned")
	}
	if root.Len() != 1 {
		t.Errorf("expected root to own 1 node, got %d", root.Len())
	}

	root.Dispose()
	if d.Status() != Destroyed {
		t.Errorf("expected destroyed, got %s", d.Status())
	}
	if s.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", s.Subscribers())
	}
}

func TestRootForgetsDestroyedNodes(t *testing.T) {
	rt := newTestRuntime()
	root := rt.NewRoot(nil)

	var a, b *Derived[int]
	root.Run(func() {
		a = Derive(rt, func() int { return 1 })
		b = Derive(rt, func() int { return 2 })
	})

	a.Destroy()
	if root.Len() != 1 {
		t.Errorf("expected 1 remaining node, got %d", root.Len())
	}

	root.Dispose()
	if b.Status() != Destroyed {
		t.Errorf("expected destroyed, got %s", b.Status())
	}
}

func TestRootNestedReactionOwnsChildren(t *testing.T) {
	rt := newTestRuntime()
	root := rt.NewRoot(nil)

	var inner *Derived[int]
	root.Run(func() {
		outer := Derive(rt, func() int {
			inner = Derive(rt, func() int { return 1 })
			return inner.Get()
		})
		outer.Get()
	})

	if root.Len() != 1 {
		t.Errorf("expected only the outer derived on the root, got %d", root.Len())
	}
	root.Dispose()
	if inner.Status() != Destroyed {
		t.Errorf("expected inner destroyed with its owner, got %s", inner.Status())
	}
}

func TestRootOnCleanupAfterDispose(t *testing.T) {
	rt := newTestRuntime()
	root := rt.NewRoot(nil)
	root.Dispose()

	ran := false
	root.OnCleanup(func() { ran = true })
	if !ran {
		t.Error("expected cleanup on a disposed root to run immediately")
	}
}
