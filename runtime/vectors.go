package runtime

import (
	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
)

// ObjectVector is an engine-allocated, rooted growable vector of objects.
// The engine traces its contents, so objects appended here need no
// separate root. Release frees the engine allocation and is idempotent.
type ObjectVector struct {
	cx       *engine.Context
	vec      uint32
	released bool
}

// NewObjectVector allocates an empty rooted object vector.
func NewObjectVector(cx *engine.Context) (*ObjectVector, error) {
	vec, err := cx.Backend().NewObjectVector(cx.Ref())
	if err != nil {
		return nil, err
	}
	return &ObjectVector{cx: cx, vec: vec}, nil
}

// Append adds obj to the vector. It reports false when the engine could
// not grow the backing store; the caller must check.
func (v *ObjectVector) Append(obj jsruntime.ObjectRef) bool {
	if v.released {
		panic("runtime: append to released object vector")
	}
	return v.cx.Backend().AppendObjectVector(v.vec, obj)
}

// Release frees the engine-side vector. Further Append calls panic; extra
// Release calls are no-ops.
func (v *ObjectVector) Release() {
	if v.released {
		return
	}
	v.released = true
	v.cx.Backend().FreeObjectVector(v.vec)
}

// IdVector is an engine-allocated, rooted vector of property ids. The
// engine fills it (property enumeration and similar APIs write into it by
// reference) and the host reads the result through Ids.
type IdVector struct {
	cx       *engine.Context
	vec      uint32
	released bool
}

// NewIdVector allocates an empty rooted id vector.
func NewIdVector(cx *engine.Context) (*IdVector, error) {
	vec, err := cx.Backend().NewIdVector(cx.Ref())
	if err != nil {
		return nil, err
	}
	return &IdVector{cx: cx, vec: vec}, nil
}

// Ref returns the engine-side vector reference, for passing to engine
// operations that fill the vector.
func (v *IdVector) Ref() (uint32, error) {
	if v.released {
		return 0, errors.Destroyed(errors.PhaseAlloc, "id vector")
	}
	return v.vec, nil
}

// Ids returns the vector's contents. The slice is a snapshot; it stays
// valid after Release.
func (v *IdVector) Ids() []jsruntime.PropertyId {
	if v.released {
		panic("runtime: read of released id vector")
	}
	return v.cx.Backend().SliceIdVector(v.vec)
}

// Release frees the engine-side vector. Idempotent.
func (v *IdVector) Release() {
	if v.released {
		return
	}
	v.released = true
	v.cx.Backend().FreeIdVector(v.vec)
}
