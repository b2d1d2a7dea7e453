package reactive

import "testing"

func TestClockAdvancesOnlyOnChange(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 1)

	if rt.Clock() != 0 {
		t.Errorf("expected clock 0, got %d", rt.Clock())
	}
	s.Set(1)
	if rt.Clock() != 0 {
		t.Errorf("expected equal write to leave the clock, got %d", rt.Clock())
	}
	s.Set(2)
	if rt.Clock() != 1 || s.Version() != 1 {
		t.Errorf("expected clock and version 1, got %d and %d", rt.Clock(), s.Version())
	}
}

func TestUntrack(t *testing.T) {
	rt := newTestRuntime()
	price := NewSource(rt, 10)
	rate := NewSource(rt, 2)
	computations := 0

	total := Derive(rt, func() int {
		computations++
		var r int
		rt.Untrack(func() { r = rate.Get() })
		return price.Get() * r
	})

	if total.Get() != 20 {
		t.Fatalf("expected 20, got %d", total.Get())
	}
	if total.Dependencies() != 1 {
		t.Errorf("expected 1 dependency, got %d", total.Dependencies())
	}

	rate.Set(3)
	if total.Get() != 20 {
		t.Errorf("expected untracked change ignored, got %d", total.Get())
	}
	price.Set(11)
	if total.Get() != 33 {
		t.Errorf("expected 33, got %d", total.Get())
	}
	if computations != 2 {
		t.Errorf("expected 2 computations, got %d", computations)
	}
}

func TestPeekDoesNotTrack(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 1)
	d := Derive(rt, func() int { return s.Peek() })

	d.Get()
	if d.Dependencies() != 0 {
		t.Errorf("expected no dependencies, got %d", d.Dependencies())
	}
	if s.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", s.Subscribers())
	}
}

func TestDependenciesReplacedOnRecompute(t *testing.T) {
	rt := newTestRuntime()
	useA := NewSource(rt, true)
	a := NewSource(rt, "a")
	b := NewSource(rt, "b")

	d := Derive(rt, func() string {
		if useA.Get() {
			return a.Get()
		}
		return b.Get()
	})

	d.Get()
	if a.Subscribers() != 1 || b.Subscribers() != 0 {
		t.Fatalf("expected subscribed to a only, got a=%d b=%d", a.Subscribers(), b.Subscribers())
	}

	useA.Set(false)
	if d.Get() != "b" {
		t.Errorf("expected b, got %q", d.Get())
	}
	if a.Subscribers() != 0 || b.Subscribers() != 1 {
		t.Errorf("expected subscribed to b only, got a=%d b=%d", a.Subscribers(), b.Subscribers())
	}
}

func TestRuntimeDefaults(t *testing.T) {
	rt := New(WithMaxFlushIterations(0))
	if rt.cfg.MaxFlushIterations != DefaultMaxFlushIterations {
		t.Errorf("expected default flush limit, got %d", rt.cfg.MaxFlushIterations)
	}
	if rt.Diagnostics() {
		t.Error("expected diagnostics off by default")
	}
	if rt.Logger() == nil {
		t.Error("expected a default logger")
	}
}

func TestKindAndStatusStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{KindSource.String(), "source"},
		{KindDerived.String(), "derived"},
		{KindEffect.String(), "effect"},
		{Clean.String(), "clean"},
		{Dirty.String(), "dirty"},
		{MaybeDirty.String(), "maybe_dirty"},
		{Destroyed.String(), "destroyed"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, tt.got)
		}
	}
}
