// Package rooting keeps engine-heap references visible to the garbage
// collector while native code holds them.
//
// A Root pins one reference in a per-context, per-kind intrusive list whose
// slots live in engine memory, so the collector can walk them during a
// collection. Roots follow stack discipline: they must be released in
// reverse order of creation, and violations are programming errors that
// panic rather than corrupt the root stack.
//
//	root := rooting.NewRoot(cx, obj)
//	defer root.Release()
//	use(root.Handle())
//
// Handle gives read-only access to a live root; MutableHandle additionally
// writes through the collector's post barrier.
package rooting
