package errors

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// Registered error codes.
const (
	CodeSelfReference = "R001"
	CodeDestroyed     = "R002"
	CodeFlushLimit    = "R003"
	CodeComputePanic  = "R004"

	CodeScenarioInvalid  = "S001"
	CodeScenarioParse    = "S002"
	CodeUnknownNode      = "S003"
	CodeExpectation      = "S004"
	CodeUnsupportedWrite = "S005"
	CodeUnsupportedRead  = "S006"
	CodeCanceled         = "S007"

	CodeConfigInvalid  = "C001"
	CodeConfigParse    = "C002"
	CodeConfigNotFound = "C003"

	CodeSnapshotScheme   = "X001"
	CodeSnapshotNotFound = "X002"
	CodeSnapshotIO       = "X003"
	CodeSnapshotMismatch = "X004"
)

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Reactive Errors (R001-R099)
	// ============================================

	CodeSelfReference: {
		Category:   CategoryReactive,
		Message:    "Derived references itself",
		Detail:     "A derived value read itself, directly or through other deriveds, while it was being recomputed.",
		Suggestion: "Break the cycle, or read the previous value with Peek() inside an effect instead.",
	},
	CodeDestroyed: {
		Category:   CategoryReactive,
		Message:    "Derived read after destruction",
		Detail:     "The derived was destroyed together with its owner and its compute function has been released.",
		Suggestion: "Do not keep references to deriveds created inside another derived or effect.",
	},
	CodeFlushLimit: {
		Category:   CategoryReactive,
		Message:    "Effect flush did not settle",
		Detail:     "Effects kept invalidating each other beyond the configured number of flush iterations.",
		Suggestion: "Look for an effect that writes a source it also reads.",
	},
	CodeComputePanic: {
		Category: CategoryReactive,
		Message:  "Compute function panicked",
		Detail:   "A derived compute function panicked with a non-error value.",
	},

	// ============================================
	// Scenario Errors (S001-S099)
	// ============================================

	CodeScenarioInvalid: {
		Category: CategoryScenario,
		Message:  "Invalid scenario",
	},
	CodeScenarioParse: {
		Category:   CategoryScenario,
		Message:    "Scenario could not be parsed",
		Suggestion: "Check the YAML syntax of the scenario file.",
	},
	CodeUnknownNode: {
		Category: CategoryScenario,
		Message:  "Unknown node",
	},
	CodeExpectation: {
		Category: CategoryScenario,
		Message:  "Expectation failed",
	},
	CodeUnsupportedWrite: {
		Category:   CategoryScenario,
		Message:    "Operation not supported for this node kind",
		Suggestion: "Use set for sources and write for writables.",
	},
	CodeUnsupportedRead: {
		Category:   CategoryScenario,
		Message:    "Node has no value yet",
		Suggestion: "Effects only have a value after their first run.",
	},
	CodeCanceled: {
		Category: CategoryScenario,
		Message:  "Scenario run canceled",
	},

	// ============================================
	// Config Errors (C001-C099)
	// ============================================

	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
	CodeConfigParse: {
		Category:   CategoryConfig,
		Message:    "Configuration could not be parsed",
		Suggestion: "derive.json must be a JSON object.",
	},
	CodeConfigNotFound: {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create derive.json or pass --config.",
	},

	// ============================================
	// Snapshot Errors (X001-X099)
	// ============================================

	CodeSnapshotScheme: {
		Category:   CategorySnapshot,
		Message:    "Unsupported snapshot URL",
		Suggestion: "Use file://, s3://bucket/prefix or redis://host:port/db.",
	},
	CodeSnapshotNotFound: {
		Category: CategorySnapshot,
		Message:  "Snapshot not found",
	},
	CodeSnapshotIO: {
		Category: CategorySnapshot,
		Message:  "Snapshot store failure",
	},
	CodeSnapshotMismatch: {
		Category:   CategorySnapshot,
		Message:    "Snapshot belongs to another scenario",
		Suggestion: "Snapshots are keyed by scenario name; check the key or the scenario file.",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
