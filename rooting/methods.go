package rooting

import (
	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
)

// Rootable is the set of reference types that can be pinned in a root
// list. Each carries its own list kind and slot encoding.
type Rootable interface {
	comparable
	RootKind() jsruntime.RootKind
	Bits() uint64
}

// kindMethods describes how one root kind initializes and barriers its
// slots. Object and value slots are write-barriered so the collector's
// store buffer stays accurate; the remaining kinds need no barrier.
type kindMethods struct {
	initial uint64
	barrier func(cx *engine.Context, slot uint32, prev, next uint64)
}

func barrierObject(cx *engine.Context, slot uint32, prev, next uint64) {
	cx.PostBarrierObject(slot, jsruntime.ObjectRef(uint32(prev)), jsruntime.ObjectRef(uint32(next)))
}

func barrierValue(cx *engine.Context, slot uint32, prev, next uint64) {
	cx.PostBarrierValue(slot, jsruntime.ValueFromBits(prev), jsruntime.ValueFromBits(next))
}

var methodsByKind = [jsruntime.NumRootKinds]kindMethods{
	jsruntime.KindObject: {initial: 0, barrier: barrierObject},
	jsruntime.KindString: {initial: 0},
	jsruntime.KindSymbol: {initial: 0},
	jsruntime.KindScript: {initial: 0},
	jsruntime.KindId:     {initial: jsruntime.VoidId.Bits()},
	jsruntime.KindValue:  {initial: jsruntime.UndefinedValue().Bits()},
}

// fromBits decodes a slot encoding back into its Rootable type.
func fromBits[T Rootable](bits uint64) T {
	var zero T
	var out any
	switch any(zero).(type) {
	case jsruntime.ObjectRef:
		out = jsruntime.ObjectRef(uint32(bits))
	case jsruntime.FunctionRef:
		out = jsruntime.FunctionRef(uint32(bits))
	case jsruntime.StringRef:
		out = jsruntime.StringRef(uint32(bits))
	case jsruntime.SymbolRef:
		out = jsruntime.SymbolRef(uint32(bits))
	case jsruntime.ScriptRef:
		out = jsruntime.ScriptRef(uint32(bits))
	case jsruntime.PropertyId:
		out = jsruntime.PropertyId(uint32(bits))
	case jsruntime.Value:
		out = jsruntime.ValueFromBits(bits)
	default:
		panic("rooting: unsupported rootable type")
	}
	return out.(T)
}

// initialFor returns the kind's safe initial slot encoding: null for
// reference kinds, the void id, and the undefined value.
func initialFor(kind jsruntime.RootKind) uint64 {
	if kind >= jsruntime.NumRootKinds {
		panic("rooting: root kind out of range")
	}
	return methodsByKind[kind].initial
}
