package scenario

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/vango-dev/derive/internal/errors"
	"github.com/vango-dev/derive/pkg/observe"
	"github.com/vango-dev/derive/pkg/reactive"
)

// Options configures Run.
type Options struct {
	// Logger receives runtime diagnostics and step results.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Observer is notified of node lifecycle events in addition to the
	// run's own evaluation counter.
	Observer reactive.Observer

	// Diagnostics forces the self-reference guard on.
	Diagnostics bool

	// MaxFlushIterations is used when the scenario does not set one.
	MaxFlushIterations int
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index  int      `json:"index"`
	Action Action   `json:"action"`
	Node   string   `json:"node,omitempty"`
	Value  *float64 `json:"value,omitempty"`

	// Computes is the node's total evaluation count after the step.
	Computes int `json:"computes"`

	// Err is the error the step produced, expected or not.
	Err string `json:"error,omitempty"`

	// Failure explains why the step did not meet its expectations.
	Failure string `json:"failure,omitempty"`
}

// Passed reports whether the step met its expectations.
func (r StepResult) Passed() bool {
	return r.Failure == ""
}

// Report is the outcome of a scenario run.
type Report struct {
	Scenario string       `json:"scenario"`
	Steps    []StepResult `json:"steps"`

	// Computes is the evaluation count per node.
	Computes map[string]int `json:"computes"`

	// Clock is the runtime's version clock after the last step.
	Clock uint64 `json:"clock"`

	// Final is the state of every node after the last step.
	Final []NodeState `json:"final"`
}

// Failed returns the steps that did not meet their expectations.
func (r *Report) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if !s.Passed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Run builds sc on a fresh runtime and executes its steps in order.
//
// Every step runs even if an earlier one failed. The returned error
// aggregates the failed expectations; the report is returned in either
// case once the graph was built. The graph is returned open, for
// snapshotting or serving, and must be closed by the caller.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Report, *Graph, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxFlush := opts.MaxFlushIterations
	if sc.MaxFlushIterations > 0 {
		maxFlush = sc.MaxFlushIterations
	}

	counter := observe.NewCounter()
	rt := reactive.New(
		reactive.WithLogger(logger),
		reactive.WithDiagnostics(opts.Diagnostics || sc.Diagnostics),
		reactive.WithObserver(observe.Multi(counter, opts.Observer)),
		reactive.WithMaxFlushIterations(maxFlush),
	)

	g, err := Build(rt, sc)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{Scenario: sc.Name}
	var failures *multierror.Error

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, g, errors.New(errors.CodeCanceled).Wrap(err)
		}

		res := g.apply(i+1, step)
		if res.Node != "" {
			res.Computes = counter.Updates(res.Node)
		}
		if res.Failure == "" {
			res.Failure = checkComputes(step, res)
		}
		report.Steps = append(report.Steps, res)

		if res.Passed() {
			logger.Debug("step passed", "scenario", sc.Name, "step", res.Index, "action", res.Action, "node", res.Node)
			continue
		}
		logger.Warn("step failed", "scenario", sc.Name, "step", res.Index, "action", res.Action, "node", res.Node, "failure", res.Failure)
		failures = multierror.Append(failures, errors.New(errors.CodeExpectation).
			WithNode(res.Node).
			WithDetail(fmt.Sprintf("step %d (%s): %s", res.Index, res.Action, res.Failure)))
	}

	report.Computes = counter.Snapshot()
	report.Clock = rt.Clock()
	report.Final = g.States()

	return report, g, failures.ErrorOrNil()
}

// apply executes one step and checks its value and error expectations.
func (g *Graph) apply(index int, step Step) StepResult {
	action, node, _ := step.Action()
	res := StepResult{Index: index, Action: action, Node: node}

	var err error
	switch action {
	case ActionRead:
		var v float64
		if v, err = g.Read(node); err == nil {
			res.Value = &v
		}
	case ActionSet:
		err = g.Set(node, *step.Value)
	case ActionWrite:
		err = g.Write(node, *step.Value)
	case ActionDestroy:
		err = g.Destroy(node)
	case ActionFlush:
		err = g.Flush()
	}

	if err != nil {
		res.Err = err.Error()
	}
	res.Failure = checkResult(step, res.Value, err)
	return res
}

func checkResult(step Step, value *float64, err error) string {
	if step.ExpectError != "" {
		switch {
		case err == nil:
			return fmt.Sprintf("expected error %s, got none", step.ExpectError)
		case !stderrors.Is(err, errors.Sentinel(step.ExpectError)):
			return fmt.Sprintf("expected error %s, got %v", step.ExpectError, err)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}
	if step.Expect != nil && !sameValue(*step.Expect, *value) {
		return fmt.Sprintf("expected %v, got %v", *step.Expect, *value)
	}
	return ""
}

func checkComputes(step Step, res StepResult) string {
	if step.Computes == nil || *step.Computes == res.Computes {
		return ""
	}
	return fmt.Sprintf("expected %d evaluations of %s, got %d", *step.Computes, res.Node, res.Computes)
}

// sameValue compares with a small tolerance. NaN matches NaN.
func sameValue(want, got float64) bool {
	if math.IsNaN(want) || math.IsNaN(got) {
		return math.IsNaN(want) && math.IsNaN(got)
	}
	return math.Abs(want-got) <= 1e-9*math.Max(1, math.Abs(want))
}
