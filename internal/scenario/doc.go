// Package scenario describes reactive graphs and the operations applied to
// them in YAML (or JSON) files, builds them on a reactive.Runtime and runs
// them step by step, checking expectations along the way.
//
// A scenario file:
//
//	name: pricing
//	nodes:
//	  - {name: price, kind: source, value: 10}
//	  - {name: qty, kind: source, value: 2}
//	  - {name: total, kind: derived, op: product, args: [price, qty]}
//	steps:
//	  - {read: total, expect: 20, computes: 1}
//	  - {set: qty, value: 3}
//	  - {read: total, expect: 30, computes: 2}
//
// Node kinds are source, derived, safe (a derived using SafeEquals),
// writable (a Linked derived that accepts writes) and effect. Operation
// arguments name other nodes or are numeric constants.
package scenario
