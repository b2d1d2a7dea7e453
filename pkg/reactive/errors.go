package reactive

import (
	"fmt"
	"slices"

	errs "github.com/vango-dev/derive/internal/errors"
)

// Sentinel errors, matched by code with errors.Is.
var (
	// ErrSelfReference is raised when a derived reads itself while it is
	// being recomputed. Only detected with diagnostics enabled.
	ErrSelfReference error = errs.Sentinel(errs.CodeSelfReference)

	// ErrDestroyed is raised when a destroyed derived is read.
	ErrDestroyed error = errs.Sentinel(errs.CodeDestroyed)

	// ErrFlushLimit is returned by Flush when effects keep re-scheduling
	// each other past the configured iteration limit.
	ErrFlushLimit error = errs.Sentinel(errs.CodeFlushLimit)

	// ErrComputePanic wraps non-error panic values recovered by SafeGet.
	ErrComputePanic error = errs.Sentinel(errs.CodeComputePanic)
)

// pushUpdating enters n into the recursion guard, panicking with
// ErrSelfReference if n is already being recomputed.
func (rt *Runtime) pushUpdating(n *node) {
	if slices.Contains(rt.updating, n) {
		err := errs.New(errs.CodeSelfReference).WithNode(n.name())
		rt.log.Error("derived references itself",
			"node", n.name(),
			"depth", len(rt.updating))
		rt.observer.OnSelfReference(n.info())
		panic(err)
	}
	rt.updating = append(rt.updating, n)
}

func (rt *Runtime) popUpdating() {
	rt.updating = rt.updating[:len(rt.updating)-1]
}

// panicError converts a recovered panic value into an error. Errors are
// returned as they are.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errs.New(errs.CodeComputePanic).Wrap(fmt.Errorf("%v", r))
}
