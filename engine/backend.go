package engine

import (
	jsruntime "github.com/wippyai/js-runtime"
)

// GCParamKey selects a collector tuning parameter.
type GCParamKey uint32

const (
	// GCParamMaxBytes caps the nominal heap size before a full collection
	// is forced. Pass ^uint32(0) to leave only the allocator's own
	// last-ditch trigger in effect.
	GCParamMaxBytes GCParamKey = iota
	GCParamIncrementalEnabled
)

// WarningReport carries one engine warning. Filenames arrive from the
// engine as narrow (Latin-1) strings; messages are UTF-16 and already
// decoded by the backend.
type WarningReport struct {
	Filename string
	Line     uint32
	Column   uint32
	Message  string
}

// WarningReporter receives non-fatal warnings raised during compilation
// or execution. Warnings never stop execution.
type WarningReporter func(WarningReport)

// FunctionDef describes one native method for DefineFunctions. The native
// callable is pinned in a hostfunc table and passed by id.
type FunctionDef struct {
	Name   string
	FuncID int32
	Nargs  uint16
	Flags  uint16
}

// PropertyDef describes one native accessor property for DefineProperties.
type PropertyDef struct {
	Name     string
	GetterID int32
	SetterID int32
	Flags    uint16
}

// Lifecycle is the engine's process and context management surface.
type Lifecycle interface {
	// InitProcess performs the engine's one-time process-wide setup.
	// A non-nil error is the engine's failure diagnostic; callers treat
	// it as fatal. The caller guards idempotency, not the backend.
	InitProcess() error

	// NewContext creates an execution context. A zero parent creates the
	// ancestor context; everything else derives from it.
	NewContext(parent jsruntime.ContextRef, heapSize uint32) (jsruntime.ContextRef, error)

	// InitSelfHostedCode loads the engine's self-hosted intrinsics into
	// the context. Must run before the context executes script.
	InitSelfHostedCode(cx jsruntime.ContextRef) error

	BeginRequest(cx jsruntime.ContextRef)
	EndRequest(cx jsruntime.ContextRef)

	// DestroyContext releases the context and every engine resource tied
	// to it. Must be called exactly once per context.
	DestroyContext(cx jsruntime.ContextRef)

	SetGCParameter(cx jsruntime.ContextRef, key GCParamKey, value uint32)

	// SetNativeStackQuota installs the three descending stack tiers:
	// system code, trusted script, untrusted script.
	SetNativeStackQuota(cx jsruntime.ContextRef, system, trusted, untrusted uint64)

	SetWarningReporter(cx jsruntime.ContextRef, reporter WarningReporter)
}

// Rooting exposes what the root-stack machinery needs: the per-kind list
// heads, guest memory, and the collector's post-write barriers.
type Rooting interface {
	// RootListHead returns the guest address of the head pointer for the
	// given kind's root list in cx.
	RootListHead(cx jsruntime.ContextRef, kind jsruntime.RootKind) uint32

	Memory() jsruntime.Memory
	Allocator() jsruntime.Allocator

	// PostBarrierObject notifies the collector that the object reference
	// stored at slot changed from prev to next.
	PostBarrierObject(slot uint32, prev, next jsruntime.ObjectRef)

	// PostBarrierValue notifies the collector that the tagged value stored
	// at slot changed from prev to next.
	PostBarrierValue(slot uint32, prev, next jsruntime.Value)
}

// Compartments exposes the engine's compartment enter/leave primitives.
type Compartments interface {
	// EnterCompartment makes global's compartment current and returns the
	// previously current compartment.
	EnterCompartment(cx jsruntime.ContextRef, global jsruntime.ObjectRef) jsruntime.CompartmentRef

	// LeaveCompartment restores prev as the current compartment.
	LeaveCompartment(cx jsruntime.ContextRef, prev jsruntime.CompartmentRef)
}

// Coercions are the engine's canonical (non-fast-path) conversions. They
// may run user script and therefore can fail with a pending exception.
type Coercions interface {
	ToBooleanSlow(cx jsruntime.ContextRef, v jsruntime.Value) (bool, error)
	ToNumberSlow(cx jsruntime.ContextRef, v jsruntime.Value) (float64, error)
	ToInt32Slow(cx jsruntime.ContextRef, v jsruntime.Value) (int32, error)
	ToUint32Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint32, error)
	ToUint16Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint16, error)
	ToInt64Slow(cx jsruntime.ContextRef, v jsruntime.Value) (int64, error)
	ToUint64Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint64, error)
	ToStringSlow(cx jsruntime.ContextRef, v jsruntime.Value) (jsruntime.StringRef, error)
}

// Compiler is the compile-options and evaluation surface.
type Compiler interface {
	// NewCompileOptions allocates a per-call compile-options object.
	NewCompileOptions(cx jsruntime.ContextRef, filename string, line uint32) (uint32, error)
	FreeCompileOptions(cx jsruntime.ContextRef, opts uint32)

	// Evaluate compiles and executes source (UTF-16 code units) under
	// opts. The result value is discarded. source is never nil, even for
	// zero-length scripts.
	Evaluate(cx jsruntime.ContextRef, opts uint32, source []uint16) error
}

// Collections exposes the engine-allocated auxiliary collections.
type Collections interface {
	NewObjectVector(cx jsruntime.ContextRef) (uint32, error)
	// AppendObjectVector reports false on allocation failure; the caller
	// must check.
	AppendObjectVector(vec uint32, obj jsruntime.ObjectRef) bool
	FreeObjectVector(vec uint32)

	NewIdVector(cx jsruntime.ContextRef) (uint32, error)
	// SliceIdVector returns a view valid only while the vector is alive.
	SliceIdVector(vec uint32) []jsruntime.PropertyId
	FreeIdVector(vec uint32)
}

// Definitions installs native method and property tables on an object.
type Definitions interface {
	DefineFunctions(cx jsruntime.ContextRef, obj jsruntime.ObjectRef, defs []FunctionDef) error
	DefineProperties(cx jsruntime.ContextRef, obj jsruntime.ObjectRef, defs []PropertyDef) error
}

// Globals creates global objects, each in a fresh compartment.
type Globals interface {
	NewGlobalObject(cx jsruntime.ContextRef) (jsruntime.ObjectRef, error)
}

// Backend is the complete primitive surface consumed from the embedded
// engine. WazeroBackend implements it over an engine wasm build;
// enginetest.Backend implements it in pure Go for tests.
type Backend interface {
	Lifecycle
	Rooting
	Compartments
	Coercions
	Compiler
	Collections
	Definitions
	Globals
}
