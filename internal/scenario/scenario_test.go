package scenario

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/derive/internal/errors"
	"github.com/vango-dev/derive/pkg/reactive"
)

func quietOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	sc, err := Parse([]byte(src))
	require.NoError(t, err)
	return sc
}

func TestParse(t *testing.T) {
	sc := mustParse(t, `
name: demo
nodes:
  - {name: a, kind: source, value: 2}
  - {name: b, kind: derived, op: product, args: [a, "3"]}
steps:
  - {read: b, expect: 6, computes: 1}
  - {set: a, value: 4}
  - {flush: true}
`)

	assert.Equal(t, "demo", sc.Name)
	require.Len(t, sc.Nodes, 2)
	require.NotNil(t, sc.Nodes[0].Value)
	assert.Equal(t, 2.0, *sc.Nodes[0].Value)
	assert.Equal(t, []string{"a", "3"}, sc.Nodes[1].Args)
	require.Len(t, sc.Steps, 3)

	action, node, ok := sc.Steps[0].Action()
	assert.True(t, ok)
	assert.Equal(t, ActionRead, action)
	assert.Equal(t, "b", node)

	action, _, ok = sc.Steps[2].Action()
	assert.True(t, ok)
	assert.Equal(t, ActionFlush, action)

	require.NoError(t, sc.Validate())
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("nodes: [unclosed"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeScenarioParse)))
}

func TestLoadDefaultsName(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "cycle.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "cycle", sc.Name)
	assert.True(t, sc.Diagnostics)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "broken.yaml"))
	require.NoError(t, err)

	err = sc.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, stderrors.As(err, &merr))
	assert.Len(t, merr.Errors, 6, err.Error())
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeUnknownNode)))
}

func TestValidateCycleNeedsDiagnostics(t *testing.T) {
	sc := mustParse(t, `
name: loop
nodes:
  - {name: a, kind: derived, op: neg, args: [b]}
  - {name: b, kind: derived, op: neg, args: [a]}
`)

	err := sc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b -> a")

	sc.Diagnostics = true
	assert.NoError(t, sc.Validate())
}

func TestValidateSteps(t *testing.T) {
	tests := []struct {
		name string
		step string
	}{
		{"no action", `{expect: 1}`},
		{"two actions", `{read: s, flush: true}`},
		{"set without value", `{set: s}`},
		{"set derived", `{set: d, value: 1}`},
		{"write source", `{write: s, value: 1}`},
		{"expect on set", `{set: s, value: 1, expect: 1}`},
		{"unknown code", `{read: d, expectError: Z999}`},
		{"unknown node", `{read: nope}`},
		{"computes on flush", `{flush: true, computes: 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := mustParse(t, `
name: steps
nodes:
  - {name: s, kind: source}
  - {name: d, kind: derived, op: ref, args: [s]}
steps:
  - `+tt.step+`
`)
			assert.Error(t, sc.Validate())
		})
	}
}

func TestRunPricing(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "pricing.yaml"))
	require.NoError(t, err)

	report, g, err := Run(context.Background(), sc, quietOptions())
	require.NoError(t, err, "failed steps: %+v", report.Failed())
	defer g.Close()

	assert.Len(t, report.Steps, len(sc.Steps))
	assert.Empty(t, report.Failed())
	assert.Equal(t, 1, report.Computes["shifted"])
	assert.Equal(t, []float64{20, 40, 5}, g.Runs("audit"))
	assert.Equal(t, g.Runtime().Clock(), report.Clock)

	final := make(map[string]NodeState)
	for _, st := range report.Final {
		final[st.Name] = st
	}
	assert.Equal(t, "destroyed", final["parity"].Status)
	assert.Nil(t, final["parity"].Value)
	require.NotNil(t, final["override"].Value)
	assert.Equal(t, 4.0, *final["override"].Value)
}

func TestRunCycle(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "cycle.yaml"))
	require.NoError(t, err)

	report, g, err := Run(context.Background(), sc, quietOptions())
	require.NoError(t, err, "failed steps: %+v", report.Failed())
	defer g.Close()

	assert.Contains(t, report.Steps[0].Err, errors.CodeSelfReference)
}

func TestRunReportsFailedExpectations(t *testing.T) {
	sc := mustParse(t, `
name: wrong
nodes:
  - {name: s, kind: source, value: 1}
  - {name: d, kind: derived, op: sum, args: [s, "1"]}
steps:
  - {read: d, expect: 3}
  - {read: d, expect: 2, computes: 5}
  - {read: d, expect: 2}
  - {destroy: s}
`)

	report, g, err := Run(context.Background(), sc, quietOptions())
	require.Error(t, err)
	defer g.Close()

	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeExpectation)))
	failed := report.Failed()
	require.Len(t, failed, 3)
	assert.Equal(t, 1, failed[0].Index)
	assert.Equal(t, "expected 3, got 2", failed[0].Failure)
	assert.Equal(t, "expected 5 evaluations of d, got 1", failed[1].Failure)
	assert.Equal(t, 4, failed[2].Index)
	assert.Contains(t, failed[2].Err, errors.CodeUnsupportedWrite)
}

func TestRunCanceled(t *testing.T) {
	sc := mustParse(t, `
name: canceled
nodes:
  - {name: s, kind: source}
steps:
  - {read: s}
`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, g, err := Run(ctx, sc, quietOptions())
	require.Error(t, err)
	defer g.Close()
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestGraphOperations(t *testing.T) {
	sc := mustParse(t, `
name: ops
nodes:
  - {name: a, kind: source, value: 3}
  - {name: b, kind: source, value: 4}
  - {name: lo, kind: derived, op: min, args: [a, b]}
  - {name: hi, kind: derived, op: max, args: [a, b]}
  - {name: diff, kind: derived, op: sub, args: [hi, lo]}
  - {name: sel, kind: writable, op: ref, args: [lo]}
  - {name: log, kind: effect, op: ref, args: [diff]}
`)
	rt := reactive.New(reactive.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	g, err := Build(rt, sc)
	require.NoError(t, err)
	defer g.Close()

	v, err := g.Read("diff")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	require.NoError(t, g.Set("a", 10))
	v, err = g.Read("diff")
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	require.NoError(t, g.Flush())
	assert.Equal(t, []float64{1, 6}, g.Runs("log"))

	require.NoError(t, g.Write("sel", 42))
	v, err = g.Read("sel")
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	assert.Error(t, g.Write("a", 1))
	assert.Error(t, g.Set("sel", 1))
	_, err = g.Read("nope")
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeUnknownNode)))

	st, err := g.State("a")
	require.NoError(t, err)
	require.NotNil(t, st.Value)
	assert.Equal(t, 10.0, *st.Value)

	require.NoError(t, g.Destroy("log"))
	st, err = g.State("log")
	require.NoError(t, err)
	assert.Equal(t, "destroyed", st.Status)

	assert.Equal(t, []string{"a", "b", "lo", "hi", "diff", "sel", "log"}, g.Names())
}

func TestCloseDestroysNodes(t *testing.T) {
	sc := mustParse(t, `
name: close
nodes:
  - {name: s, kind: source, value: 1}
  - {name: d, kind: derived, op: neg, args: [s]}
`)
	rt := reactive.New()
	g, err := Build(rt, sc)
	require.NoError(t, err)

	_, err = g.Read("d")
	require.NoError(t, err)
	g.Close()

	_, err = g.Read("d")
	assert.True(t, stderrors.Is(err, reactive.ErrDestroyed))
}

func TestSameValue(t *testing.T) {
	assert.True(t, sameValue(0.3, 0.1+0.2))
	assert.False(t, sameValue(1, 1.001))
}

func TestWatch(t *testing.T) {
	sc := mustParse(t, `
name: watch
nodes:
  - {name: a, kind: source, value: 1}
  - {name: big, kind: derived, op: max, args: [a, "10"]}
  - {name: twice, kind: derived, op: sum, args: [a, a]}
  - {name: log, kind: effect, op: ref, args: [a]}
`)
	g, err := Build(reactive.New(), sc)
	require.NoError(t, err)
	defer g.Close()

	var seen []string
	record := func(st NodeState) {
		seen = append(seen, st.Name)
	}
	for _, name := range []string{"big", "twice"} {
		_, err := g.Watch(name, record)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"big", "twice"}, seen)

	seen = nil
	require.NoError(t, g.Set("a", 2))
	require.NoError(t, g.Flush())
	assert.Equal(t, []string{"twice"}, seen)

	_, err = g.Watch("log", record)
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeUnsupportedRead)))
	_, err = g.Watch("nope", record)
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.CodeUnknownNode)))
}

func TestWatchStopsOnDispose(t *testing.T) {
	sc := mustParse(t, `
name: dispose
nodes:
  - {name: a, kind: source, value: 1}
`)
	g, err := Build(reactive.New(), sc)
	require.NoError(t, err)
	defer g.Close()

	var values []float64
	eff, err := g.Watch("a", func(st NodeState) { values = append(values, *st.Value) })
	require.NoError(t, err)

	require.NoError(t, g.Set("a", 2))
	require.NoError(t, g.Flush())
	eff.Dispose()
	require.NoError(t, g.Set("a", 3))
	require.NoError(t, g.Flush())

	assert.Equal(t, []float64{1, 2}, values)
}
