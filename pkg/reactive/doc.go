// Package reactive provides derived nodes for a fine-grained reactive graph.
//
// A Derived is a lazily computed, memoized value. It records every reactive
// read its compute function performs, and it is recomputed on the next read
// after one of those dependencies changes:
//
//	rt := reactive.New()
//	count := reactive.NewSource(rt, 2)
//	doubled := reactive.Derive(rt, func() int { return count.Get() * 2 })
//
//	doubled.Get() // 4, compute runs
//	doubled.Get() // 4, served from cache
//	count.Set(3)  // pushes invalidation, does not recompute
//	doubled.Get() // 6, compute runs again
//
// # Push and pull
//
// Writes push status changes through the graph: direct subscribers become
// Dirty, everything downstream MaybeDirty. Nothing is recomputed until a
// value is pulled. A MaybeDirty node is validated by bringing its derived
// dependencies up to date and comparing their versions with the tick at
// which the node was last evaluated.
//
// A version only advances when the equality policy reports the new value as
// different, so downstream nodes see no change when a recomputation yields
// an equal result.
//
// # Ownership
//
// Deriveds and effects created while another derived or effect is being
// evaluated are owned by it. Before every re-evaluation, and when the owner
// is destroyed, owned children are destroyed depth-first. Ownership is a
// tree; observation (dependencies) is a shared graph layered over it.
//
// A derived created with no evaluation in progress is Unowned. Unowned
// deriveds that have dependencies settle to MaybeDirty instead of Clean, so
// every read re-validates them.
//
// # Writable deriveds
//
// Linked builds a value that tracks an upstream computation until it is
// written to directly, and goes back to tracking upstream on the next
// upstream change.
//
// # Diagnostics
//
// With WithDiagnostics(true) the Runtime keeps a stack of in-flight
// recomputations and panics with ErrSelfReference when a derived reads
// itself, instead of recursing until the goroutine stack is exhausted.
//
// # Concurrency
//
// A Runtime and every node created from it must be confined to one
// goroutine at a time. Nothing in this package takes locks; callers that
// share a graph across goroutines serialize access themselves.
package reactive
