// Package errors provides structured, coded errors for derive.
//
// Every failure the reactive core or the tooling originates carries a stable
// code (e.g. "R001") that maps to a registered template:
//   - a short message describing the error
//   - a detailed explanation
//   - a hint on how to fix it
//
// # Error Categories
//
//   - reactive: failures raised by the derived-node lifecycle
//   - scenario: invalid or failing scenario files
//   - config: invalid derive.json
//   - snapshot: snapshot store failures
//
// # Usage
//
//	err := errors.New(errors.CodeSelfReference).
//	    WithNode("total").
//	    WithSuggestion("Break the cycle by reading the value with Peek()")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR R001: Derived references itself
//	//
//	//   node: total
//	//
//	//   A derived value read itself, directly or through other deriveds,
//	//   while it was being recomputed.
//	//
//	//   Hint: Break the cycle by reading the value with Peek()
//
// Errors compare by code with errors.Is, so a freshly built error matches the
// sentinel exported for the same code:
//
//	errors.Is(err, reactive.ErrSelfReference)
package errors
