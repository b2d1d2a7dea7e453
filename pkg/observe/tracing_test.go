package observe

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/derive/pkg/reactive"
)

func newRecordingTracing(t *testing.T) (*Tracing, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	return NewTracing(WithTracerProvider(tp), WithAttributes(attribute.String("graph", "test"))), recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingNestsPullChain(t *testing.T) {
	tr, recorder := newRecordingTracing(t)
	rt := reactive.New(reactive.WithObserver(tr))

	s := reactive.NewSource(rt, 2)
	inner := reactive.Derive(rt, func() int { return s.Get() * 2 }).Named("inner")
	outer := reactive.Derive(rt, func() int { return inner.Get() + 1 }).Named("outer")

	if outer.Get() != 5 {
		t.Fatalf("expected 5, got %d", outer.Get())
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	// Children end first.
	innerSpan, outerSpan := spans[0], spans[1]
	if v, _ := spanAttr(innerSpan, "derive.node.label"); v.AsString() != "inner" {
		t.Errorf("expected first span for inner, got %q", v.AsString())
	}
	if innerSpan.Parent().SpanID() != outerSpan.SpanContext().SpanID() {
		t.Error("expected inner span to be a child of outer")
	}
	if v, ok := spanAttr(outerSpan, "derive.changed"); !ok || !v.AsBool() {
		t.Error("expected derive.changed=true")
	}
	if v, _ := spanAttr(outerSpan, "graph"); v.AsString() != "test" {
		t.Errorf("expected graph attribute, got %q", v.AsString())
	}
	if outerSpan.Status().Code != codes.Ok {
		t.Errorf("expected ok status, got %v", outerSpan.Status().Code)
	}
}

func TestTracingRecordsFailure(t *testing.T) {
	tr, recorder := newRecordingTracing(t)
	rt := reactive.New(reactive.WithObserver(tr))

	d := reactive.Derive(rt, func() int { panic(errors.New("boom")) })
	if _, err := d.SafeGet(); err == nil {
		t.Fatal("expected an error")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status().Code)
	}
	if len(tr.stack) != 1 {
		t.Errorf("expected span stack unwound, got depth %d", len(tr.stack))
	}

	// Top-level spans after a failure are roots again.
	rt.Effect(func() reactive.Cleanup { return nil })
	if got := recorder.Ended()[1].Parent().SpanID(); got.IsValid() {
		t.Error("expected a root span")
	}
}

func TestTracingRecordsTeardownEvents(t *testing.T) {
	tr, recorder := newRecordingTracing(t)
	rt := reactive.New(reactive.WithObserver(tr))

	s := reactive.NewSource(rt, 1)
	parent := reactive.Derive(rt, func() int {
		child := reactive.Derive(rt, func() int { return s.Get() })
		return child.Get()
	})
	parent.Get()
	s.Set(2)
	parent.Get()

	var destroyEvents int
	for _, span := range recorder.Ended() {
		for _, ev := range span.Events() {
			if ev.Name == "derive.destroy" {
				destroyEvents++
			}
		}
	}
	if destroyEvents != 1 {
		t.Errorf("expected 1 destroy event, got %d", destroyEvents)
	}
}
