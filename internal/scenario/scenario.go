package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/derive/internal/errors"
)

// Node kinds.
const (
	KindSource   = "source"
	KindDerived  = "derived"
	KindSafe     = "safe"
	KindWritable = "writable"
	KindEffect   = "effect"
)

// Scenario is a graph definition plus the steps to run against it.
type Scenario struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Diagnostics enables the self-reference guard. Required when the
	// graph contains cycles.
	Diagnostics bool `yaml:"diagnostics,omitempty" json:"diagnostics,omitempty"`

	// MaxFlushIterations overrides the runtime's flush limit when set.
	MaxFlushIterations int `yaml:"maxFlushIterations,omitempty" json:"maxFlushIterations,omitempty"`

	Nodes []NodeSpec `yaml:"nodes" json:"nodes"`
	Steps []Step     `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// NodeSpec declares one node.
type NodeSpec struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"`

	// Value is the initial value of a source.
	Value *float64 `yaml:"value,omitempty" json:"value,omitempty"`

	// Op and Args define deriveds, writables and effects.
	Op   string   `yaml:"op,omitempty" json:"op,omitempty"`
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// Step is one operation. Exactly one of Read, Set, Write, Destroy and
// Flush is set.
type Step struct {
	Read    string `yaml:"read,omitempty" json:"read,omitempty"`
	Set     string `yaml:"set,omitempty" json:"set,omitempty"`
	Write   string `yaml:"write,omitempty" json:"write,omitempty"`
	Destroy string `yaml:"destroy,omitempty" json:"destroy,omitempty"`
	Flush   bool   `yaml:"flush,omitempty" json:"flush,omitempty"`

	// Value is the value written by set and write.
	Value *float64 `yaml:"value,omitempty" json:"value,omitempty"`

	// Expect is the value a read must return.
	Expect *float64 `yaml:"expect,omitempty" json:"expect,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expectError,omitempty" json:"expectError,omitempty"`

	// Computes is the number of evaluations the step's node must have had
	// in total once the step is done.
	Computes *int `yaml:"computes,omitempty" json:"computes,omitempty"`
}

// Action names a step's operation.
type Action string

const (
	ActionRead    Action = "read"
	ActionSet     Action = "set"
	ActionWrite   Action = "write"
	ActionDestroy Action = "destroy"
	ActionFlush   Action = "flush"
)

// Action returns the operation of s and the node it targets. ok is false
// unless exactly one operation is set.
func (s Step) Action() (action Action, node string, ok bool) {
	count := 0
	if s.Read != "" {
		action, node = ActionRead, s.Read
		count++
	}
	if s.Set != "" {
		action, node = ActionSet, s.Set
		count++
	}
	if s.Write != "" {
		action, node = ActionWrite, s.Write
		count++
	}
	if s.Destroy != "" {
		action, node = ActionDestroy, s.Destroy
		count++
	}
	if s.Flush {
		action, node = ActionFlush, ""
		count++
	}
	return action, node, count == 1
}

// Parse decodes a scenario. JSON is accepted as a subset of YAML.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.New(errors.CodeScenarioParse).Wrap(err)
	}
	return &sc, nil
}

// Load reads and parses the scenario file at path. Files ending in .json
// are decoded as JSON, anything else as YAML. The scenario name defaults
// to the file name.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeScenarioParse).
			WithDetail("Failed to read " + path).
			Wrap(err)
	}

	var sc *Scenario
	if strings.EqualFold(filepath.Ext(path), ".json") {
		sc = &Scenario{}
		if err := json.Unmarshal(data, sc); err != nil {
			return nil, errors.New(errors.CodeScenarioParse).Wrap(err)
		}
	} else if sc, err = Parse(data); err != nil {
		return nil, err
	}

	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Node returns the declaration of the node called name.
func (sc *Scenario) Node(name string) (NodeSpec, bool) {
	for _, n := range sc.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeSpec{}, false
}
