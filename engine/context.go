package engine

import (
	"sync"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/errors"
)

// Context is the host-side view of one engine execution context. It caches
// the guest addresses of the per-kind root-list heads and tracks compartment
// nesting so guard misuse is caught at the boundary instead of corrupting
// engine state.
//
// A Context belongs to a single OS thread. It is not safe for concurrent
// use, by design: sharing one context across threads is the
// undefined-behavior case this layer exists to prevent.
type Context struct {
	backend   Backend
	ref       jsruntime.ContextRef
	rootHeads [jsruntime.NumRootKinds]uint32

	// compartment nesting depth, for LIFO enforcement
	depth int

	destroyOnce sync.Once
	destroyed   bool
}

// NewContext creates a context derived from parent (zero for the ancestor)
// and caches its root-list head addresses.
func NewContext(b Backend, parent jsruntime.ContextRef, heapSize uint32) (*Context, error) {
	if b == nil {
		return nil, errors.InvalidInput(errors.PhaseContext, "nil backend")
	}

	ref, err := b.NewContext(parent, heapSize)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseContext, errors.KindEngineTrap, err, "create context")
	}
	if ref.IsNull() {
		panic("engine: NewContext returned a null context")
	}

	cx := &Context{backend: b, ref: ref}
	for k := jsruntime.RootKind(0); k < jsruntime.NumRootKinds; k++ {
		cx.rootHeads[k] = b.RootListHead(ref, k)
	}
	return cx, nil
}

// Backend returns the engine backend this context was created from.
func (cx *Context) Backend() Backend { return cx.backend }

// Ref returns the raw context reference.
func (cx *Context) Ref() jsruntime.ContextRef { return cx.ref }

// Memory returns the engine's linear memory.
func (cx *Context) Memory() jsruntime.Memory { return cx.backend.Memory() }

// Allocator returns the engine's guest allocator.
func (cx *Context) Allocator() jsruntime.Allocator { return cx.backend.Allocator() }

// RootListHead returns the guest address of the head pointer for kind's
// root list.
func (cx *Context) RootListHead(kind jsruntime.RootKind) uint32 {
	if kind >= jsruntime.NumRootKinds {
		panic("engine: root kind out of range")
	}
	return cx.rootHeads[kind]
}

// PostBarrierObject forwards to the collector's object write barrier.
func (cx *Context) PostBarrierObject(slot uint32, prev, next jsruntime.ObjectRef) {
	cx.backend.PostBarrierObject(slot, prev, next)
}

// PostBarrierValue forwards to the collector's value write barrier.
func (cx *Context) PostBarrierValue(slot uint32, prev, next jsruntime.Value) {
	cx.backend.PostBarrierValue(slot, prev, next)
}

// Destroyed reports whether Destroy has run.
func (cx *Context) Destroyed() bool { return cx.destroyed }

// Destroy releases the context exactly once. Later calls are no-ops.
// The caller must have ended its execution request first.
func (cx *Context) Destroy() {
	cx.destroyOnce.Do(func() {
		cx.destroyed = true
		cx.backend.DestroyContext(cx.ref)
	})
}

func (cx *Context) assertLive() {
	if cx == nil {
		panic("engine: nil context")
	}
	if cx.destroyed {
		panic("engine: use of destroyed context")
	}
}
