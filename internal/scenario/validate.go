package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/vango-dev/derive/internal/errors"
)

func invalid(format string, args ...any) *errors.Error {
	return errors.New(errors.CodeScenarioInvalid).WithDetail(fmt.Sprintf(format, args...))
}

// constant reports whether arg is a numeric literal rather than a node name.
func constant(arg string) (float64, bool) {
	v, err := strconv.ParseFloat(arg, 64)
	return v, err == nil
}

// Validate checks the scenario and reports every problem found.
//
// Cycles between nodes are only accepted with diagnostics enabled, since
// the self-reference guard is what turns them into errors.
func (sc *Scenario) Validate() error {
	var result *multierror.Error
	add := func(err error) {
		result = multierror.Append(result, err)
	}

	if sc.Name == "" {
		add(invalid("scenario has no name"))
	}
	if len(sc.Nodes) == 0 {
		add(invalid("scenario declares no nodes"))
	}
	if sc.MaxFlushIterations < 0 {
		add(invalid("maxFlushIterations must not be negative"))
	}

	kinds := make(map[string]string, len(sc.Nodes))
	for i, n := range sc.Nodes {
		if n.Name == "" {
			add(invalid("node %d has no name", i))
			continue
		}
		if _, ok := constant(n.Name); ok {
			add(invalid("node name %q is a number", n.Name))
		}
		if _, dup := kinds[n.Name]; dup {
			add(invalid("node %q is declared twice", n.Name))
			continue
		}
		kinds[n.Name] = n.Kind
	}

	for _, n := range sc.Nodes {
		if n.Name == "" {
			continue
		}
		for _, err := range validateNode(n, kinds) {
			add(err)
		}
	}

	if cycle := sc.findCycle(kinds); cycle != nil && !sc.Diagnostics {
		add(invalid("cycle %s requires diagnostics: true", strings.Join(cycle, " -> ")))
	}

	for i, s := range sc.Steps {
		for _, err := range validateStep(s, kinds) {
			add(fmt.Errorf("step %d: %w", i+1, err))
		}
	}

	return result.ErrorOrNil()
}

func validateNode(n NodeSpec, kinds map[string]string) []error {
	var errs []error

	switch n.Kind {
	case KindSource:
		if n.Op != "" || len(n.Args) > 0 {
			errs = append(errs, invalid("source %q takes a value, not an op", n.Name))
		}
		return errs
	case KindDerived, KindSafe, KindWritable, KindEffect:
	case "":
		return append(errs, invalid("node %q has no kind", n.Name))
	default:
		return append(errs, invalid("node %q has unknown kind %q", n.Name, n.Kind))
	}

	if n.Value != nil {
		errs = append(errs, invalid("only sources take a value, %q is a %s", n.Name, n.Kind))
	}

	bounds, ok := arity[n.Op]
	if !ok {
		return append(errs, invalid("node %q has unknown op %q", n.Name, n.Op))
	}
	if n.Op == OpSelf && n.Kind != KindDerived && n.Kind != KindSafe {
		errs = append(errs, invalid("op self is only available to deriveds, %q is a %s", n.Name, n.Kind))
	}
	if len(n.Args) < bounds.min || (bounds.max >= 0 && len(n.Args) > bounds.max) {
		errs = append(errs, invalid("op %s of %q takes %s, got %d", n.Op, n.Name, describeArity(bounds.min, bounds.max), len(n.Args)))
	}

	for _, arg := range n.Args {
		if _, ok := constant(arg); ok {
			continue
		}
		if _, ok := kinds[arg]; !ok {
			errs = append(errs, errors.Newf(errors.CodeUnknownNode, "Unknown node %q", arg).
				WithNode(n.Name))
			continue
		}
		if kinds[arg] == KindEffect {
			errs = append(errs, invalid("node %q reads effect %q", n.Name, arg))
		}
	}
	return errs
}

func describeArity(min, max int) string {
	switch {
	case min == max && min == 1:
		return "1 argument"
	case min == max:
		return fmt.Sprintf("%d arguments", min)
	case max < 0:
		return fmt.Sprintf("at least %d", min)
	default:
		return fmt.Sprintf("%d to %d arguments", min, max)
	}
}

func validateStep(s Step, kinds map[string]string) []error {
	action, node, ok := s.Action()
	if !ok {
		return []error{invalid("exactly one of read, set, write, destroy, flush is required")}
	}

	var errs []error
	if s.ExpectError != "" {
		if _, ok := errors.Lookup(s.ExpectError); !ok {
			errs = append(errs, invalid("unknown error code %q", s.ExpectError))
		}
	}
	if s.Expect != nil && action != ActionRead {
		errs = append(errs, invalid("expect is only valid on read"))
	}
	if s.Expect != nil && s.ExpectError != "" {
		errs = append(errs, invalid("expect and expectError are exclusive"))
	}
	if s.Computes != nil && action == ActionFlush {
		errs = append(errs, invalid("computes needs a node"))
	}
	if action == ActionFlush {
		return errs
	}

	kind, known := kinds[node]
	if !known {
		return append(errs, errors.Newf(errors.CodeUnknownNode, "Unknown node %q", node))
	}

	switch action {
	case ActionSet, ActionWrite:
		if s.Value == nil {
			errs = append(errs, invalid("%s %q needs a value", action, node))
		}
		// A mismatched kind is allowed when the step expects the error.
		if s.ExpectError == "" {
			if action == ActionSet && kind != KindSource {
				errs = append(errs, invalid("set targets sources, %q is a %s", node, kind))
			}
			if action == ActionWrite && kind != KindWritable {
				errs = append(errs, invalid("write targets writables, %q is a %s", node, kind))
			}
		}
	default:
		if s.Value != nil {
			errs = append(errs, invalid("%s takes no value", action))
		}
	}
	return errs
}

// findCycle returns the first dependency cycle among the declared nodes,
// as a path that starts and ends with the same node.
func (sc *Scenario) findCycle(kinds map[string]string) []string {
	const (
		unvisited = iota
		visiting
		done
	)

	edges := make(map[string][]string, len(sc.Nodes))
	for _, n := range sc.Nodes {
		if n.Op == OpSelf {
			edges[n.Name] = append(edges[n.Name], n.Name)
		}
		for _, arg := range n.Args {
			if _, ok := kinds[arg]; ok {
				edges[n.Name] = append(edges[n.Name], arg)
			}
		}
	}

	state := make(map[string]int, len(sc.Nodes))
	var path []string
	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = visiting
		path = append(path, name)
		for _, next := range edges[name] {
			switch state[next] {
			case visiting:
				for i, p := range path {
					if p == next {
						return append(append([]string{}, path[i:]...), next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for _, n := range sc.Nodes {
		if state[n.Name] == unvisited {
			if cycle := visit(n.Name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
