package reactive

import "testing"

func TestLinkedFollowsUpstream(t *testing.T) {
	rt := newTestRuntime()
	upstream := NewSource(rt, "U0")
	w := Linked(rt, func() string { return upstream.Get() })

	if got := w.Get(); got != "U0" {
		t.Errorf("expected U0, got %q", got)
	}

	if got := w.Set("X"); got != "X" {
		t.Errorf("expected Set to return X, got %q", got)
	}
	if got := w.Get(); got != "X" {
		t.Errorf("expected override X, got %q", got)
	}
	if got := w.Get(); got != "X" {
		t.Errorf("expected override to stick, got %q", got)
	}

	upstream.Set("U1")
	if got := w.Get(); got != "U1" {
		t.Errorf("expected upstream change to win, got %q", got)
	}
}

func TestLinkedSetSameValueTwice(t *testing.T) {
	rt := newTestRuntime()
	upstream := NewSource(rt, 1)
	w := Linked(rt, func() int { return upstream.Get() })

	w.Get()
	w.Set(5)
	w.Set(5)
	if w.pendingLocalOverride {
		t.Error("expected override flag cleared")
	}
	if got := w.Get(); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}

	upstream.Set(2)
	if got := w.Get(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestLinkedAccessor(t *testing.T) {
	rt := newTestRuntime()
	upstream := NewSource(rt, 3)
	value := Linked(rt, func() int { return upstream.Get() * 2 }).Accessor()

	if got := value(); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
	if got := value(9); got != 9 {
		t.Errorf("expected write to return 9, got %d", got)
	}
	if got := value(); got != 9 {
		t.Errorf("expected 9, got %d", got)
	}
}

func TestLinkedAsDependency(t *testing.T) {
	rt := newTestRuntime()
	upstream := NewSource(rt, 1)
	w := Linked(rt, func() int { return upstream.Get() })
	plusOne := Derive(rt, func() int { return w.Derived().Get() + 1 })

	if got := plusOne.Get(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	w.Set(10)
	if got := plusOne.Get(); got != 11 {
		t.Errorf("expected 11, got %d", got)
	}
}

func TestLinkedSetWithFailingUpstream(t *testing.T) {
	rt := newTestRuntime()
	fail := NewSource(rt, false)
	upstream := NewSource(rt, 1)
	w := Linked(rt, func() int {
		if fail.Get() {
			panic("upstream failed")
		}
		return upstream.Get()
	})
	w.Get()

	fail.Set(true)
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected Set to panic")
			}
		}()
		w.Set(7)
	}()
	if w.pendingLocalOverride {
		t.Error("expected override flag cleared after a failed write")
	}

	fail.Set(false)
	upstream.Set(2)
	if got := w.Get(); got != 2 {
		t.Errorf("expected upstream value 2, got %d", got)
	}
}

func TestLinkedSetAfterReadThroughDerived(t *testing.T) {
	rt := newTestRuntime()
	upstream := NewSource(rt, 1)
	w := Linked(rt, func() int { return upstream.Get() })

	w.Get()
	w.Set(5)
	upstream.Set(2)
	if got := w.Derived().Get(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}

	if got := w.Set(5); got != 5 {
		t.Errorf("expected Set to return 5, got %d", got)
	}
	if got := w.Get(); got != 5 {
		t.Errorf("expected override 5, got %d", got)
	}
}
