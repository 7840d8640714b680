package jsruntime

import "fmt"

// RootKind selects the per-context root list a rooted slot links into.
// The set is closed: it indexes a fixed array of list heads inside the
// engine's rooting context.
type RootKind uint8

const (
	KindObject RootKind = iota
	KindString
	KindSymbol
	KindScript
	KindId
	KindValue

	NumRootKinds = 6
)

func (k RootKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindScript:
		return "script"
	case KindId:
		return "id"
	case KindValue:
		return "value"
	}
	return fmt.Sprintf("RootKind(%d)", uint8(k))
}

// ContextRef is a pointer to an execution context in WASM memory.
type ContextRef uint32

// IsNull reports whether the pointer is null (zero).
func (r ContextRef) IsNull() bool { return r == 0 }

func (r ContextRef) String() string { return fmt.Sprintf("ContextRef(0x%x)", uint32(r)) }

// CompartmentRef is a pointer to a compartment in WASM memory.
type CompartmentRef uint32

// IsNull reports whether the pointer is null (zero).
func (r CompartmentRef) IsNull() bool { return r == 0 }

func (r CompartmentRef) String() string { return fmt.Sprintf("CompartmentRef(0x%x)", uint32(r)) }

// ObjectRef is a pointer to an engine-heap object.
type ObjectRef uint32

// IsNull reports whether the pointer is null (zero).
func (r ObjectRef) IsNull() bool { return r == 0 }

func (r ObjectRef) String() string { return fmt.Sprintf("ObjectRef(0x%x)", uint32(r)) }

// RootKind returns the root list this reference kind links into.
func (ObjectRef) RootKind() RootKind { return KindObject }

// Bits returns the slot encoding of the reference.
func (r ObjectRef) Bits() uint64 { return uint64(uint32(r)) }

// StringRef is a pointer to an engine-heap string.
type StringRef uint32

// IsNull reports whether the pointer is null (zero).
func (r StringRef) IsNull() bool { return r == 0 }

func (r StringRef) String() string { return fmt.Sprintf("StringRef(0x%x)", uint32(r)) }

// RootKind returns the root list this reference kind links into.
func (StringRef) RootKind() RootKind { return KindString }

// Bits returns the slot encoding of the reference.
func (r StringRef) Bits() uint64 { return uint64(uint32(r)) }

// SymbolRef is a pointer to an engine-heap symbol.
type SymbolRef uint32

// IsNull reports whether the pointer is null (zero).
func (r SymbolRef) IsNull() bool { return r == 0 }

func (r SymbolRef) String() string { return fmt.Sprintf("SymbolRef(0x%x)", uint32(r)) }

// RootKind returns the root list this reference kind links into.
func (SymbolRef) RootKind() RootKind { return KindSymbol }

// Bits returns the slot encoding of the reference.
func (r SymbolRef) Bits() uint64 { return uint64(uint32(r)) }

// ScriptRef is a pointer to a compiled script in the engine heap.
type ScriptRef uint32

// IsNull reports whether the pointer is null (zero).
func (r ScriptRef) IsNull() bool { return r == 0 }

func (r ScriptRef) String() string { return fmt.Sprintf("ScriptRef(0x%x)", uint32(r)) }

// RootKind returns the root list this reference kind links into.
func (ScriptRef) RootKind() RootKind { return KindScript }

// Bits returns the slot encoding of the reference.
func (r ScriptRef) Bits() uint64 { return uint64(uint32(r)) }

// FunctionRef is a pointer to an engine-heap function. Functions are plain
// objects to the collector and root under the object kind.
type FunctionRef uint32

// IsNull reports whether the pointer is null (zero).
func (r FunctionRef) IsNull() bool { return r == 0 }

func (r FunctionRef) String() string { return fmt.Sprintf("FunctionRef(0x%x)", uint32(r)) }

// RootKind returns the root list this reference kind links into.
func (FunctionRef) RootKind() RootKind { return KindObject }

// Bits returns the slot encoding of the reference.
func (r FunctionRef) Bits() uint64 { return uint64(uint32(r)) }

// PropertyId identifies a property key (interned string or symbol).
// The zero value is the void sentinel.
type PropertyId uint32

// VoidId is the "no property" sentinel.
const VoidId PropertyId = 0

// IsVoid reports whether the id is the void sentinel.
func (id PropertyId) IsVoid() bool { return id == VoidId }

func (id PropertyId) String() string { return fmt.Sprintf("PropertyId(0x%x)", uint32(id)) }

// RootKind returns the root list this reference kind links into.
func (PropertyId) RootKind() RootKind { return KindId }

// Bits returns the slot encoding of the id.
func (id PropertyId) Bits() uint64 { return uint64(uint32(id)) }
