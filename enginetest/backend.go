// Package enginetest provides a pure-Go engine backend for tests. It
// models just enough engine behavior to exercise the layers above it:
// linear memory with a counting allocator, per-context root lists,
// compartment tracking, JavaScript coercion semantics, and recorded
// evaluations and definitions.
package enginetest

import (
	"fmt"
	"sync"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
)

// Ref counter bases keep the different reference spaces visually distinct
// in test failures.
const (
	contextBase     = 0x100
	objectBase      = 0x1000
	stringBase      = 0x2000
	symbolBase      = 0x3000
	compartmentBase = 0x4000
	optionsBase     = 0x5000
	vectorBase      = 0x6000
)

// Evaluation records one Evaluate call.
type Evaluation struct {
	Cx       jsruntime.ContextRef
	Filename string
	Line     uint32
	Source   string
}

// BarrierCall records one post-barrier invocation.
type BarrierCall struct {
	Slot uint32
	Prev uint64
	Next uint64
}

type fakeContext struct {
	parent    jsruntime.ContextRef
	heapSize  uint32
	destroyed bool

	rootHeads [jsruntime.NumRootKinds]uint32

	current     jsruntime.CompartmentRef
	selfHosted  bool
	requests    int
	gcParams    map[engine.GCParamKey]uint32
	stackQuotas [3]uint64
}

type compileOptions struct {
	filename string
	line     uint32
	freed    bool
}

// Backend is an in-memory engine double implementing engine.Backend.
// The zero value is not usable; call New.
type Backend struct {
	mu sync.Mutex

	memory *Memory
	alloc  *Allocator

	initCalls int

	nextRef  uint32
	contexts map[jsruntime.ContextRef]*fakeContext

	strings     map[jsruntime.StringRef]string
	stringIDs   map[string]jsruntime.StringRef
	nextString  uint32
	symbols     map[jsruntime.SymbolRef]string
	nextSymbol  uint32
	objects     map[jsruntime.ObjectRef]jsruntime.CompartmentRef
	nextObject  uint32
	nextCompart uint32

	reporters map[jsruntime.ContextRef]engine.WarningReporter

	options     map[uint32]*compileOptions
	nextOptions uint32

	evaluations []Evaluation
	evalHook    func(Evaluation) error

	objectVectors map[uint32][]jsruntime.ObjectRef
	idVectors     map[uint32][]jsruntime.PropertyId
	nextVector    uint32
	appendFails   bool

	functionDefs map[jsruntime.ObjectRef][]engine.FunctionDef
	propertyDefs map[jsruntime.ObjectRef][]engine.PropertyDef

	ObjectBarriers []BarrierCall
	ValueBarriers  []BarrierCall
}

var _ engine.Backend = (*Backend)(nil)

// New creates a backend with 1 MiB of linear memory.
func New() *Backend {
	mem := NewMemory(1 << 20)
	return &Backend{
		memory:        mem,
		alloc:         NewAllocator(mem),
		nextRef:       contextBase,
		contexts:      make(map[jsruntime.ContextRef]*fakeContext),
		strings:       make(map[jsruntime.StringRef]string),
		stringIDs:     make(map[string]jsruntime.StringRef),
		nextString:    stringBase,
		symbols:       make(map[jsruntime.SymbolRef]string),
		nextSymbol:    symbolBase,
		objects:       make(map[jsruntime.ObjectRef]jsruntime.CompartmentRef),
		nextObject:    objectBase,
		nextCompart:   compartmentBase,
		reporters:     make(map[jsruntime.ContextRef]engine.WarningReporter),
		options:       make(map[uint32]*compileOptions),
		nextOptions:   optionsBase,
		objectVectors: make(map[uint32][]jsruntime.ObjectRef),
		idVectors:     make(map[uint32][]jsruntime.PropertyId),
		nextVector:    vectorBase,
		functionDefs:  make(map[jsruntime.ObjectRef][]engine.FunctionDef),
		propertyDefs:  make(map[jsruntime.ObjectRef][]engine.PropertyDef),
	}
}

// Lifecycle

func (b *Backend) InitProcess() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initCalls++
	return nil
}

// InitCalls reports how many times InitProcess ran. The layer above must
// keep this at one.
func (b *Backend) InitCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initCalls
}

func (b *Backend) NewContext(parent jsruntime.ContextRef, heapSize uint32) (jsruntime.ContextRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if parent != 0 {
		if pcx, ok := b.contexts[parent]; !ok || pcx.destroyed {
			return 0, errors.InvalidInput(errors.PhaseContext, "unknown parent context")
		}
	}

	ref := jsruntime.ContextRef(b.nextRef)
	b.nextRef++
	fc := &fakeContext{
		parent:   parent,
		heapSize: heapSize,
		gcParams: make(map[engine.GCParamKey]uint32),
	}
	// Root list heads live in fake guest memory, one u32 per kind, so the
	// rooting layer can link slots through them for real.
	for k := 0; k < jsruntime.NumRootKinds; k++ {
		head, err := b.alloc.Alloc(4, 4)
		if err != nil {
			return 0, err
		}
		if err := b.memory.WriteU32(head, 0); err != nil {
			return 0, err
		}
		fc.rootHeads[k] = head
	}
	b.contexts[ref] = fc
	return ref, nil
}

func (b *Backend) context(cx jsruntime.ContextRef) *fakeContext {
	fc, ok := b.contexts[cx]
	if !ok {
		panic(fmt.Sprintf("enginetest: unknown context %v", cx))
	}
	if fc.destroyed {
		panic(fmt.Sprintf("enginetest: use of destroyed context %v", cx))
	}
	return fc
}

func (b *Backend) InitSelfHostedCode(cx jsruntime.ContextRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx).selfHosted = true
	return nil
}

func (b *Backend) BeginRequest(cx jsruntime.ContextRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx).requests++
}

func (b *Backend) EndRequest(cx jsruntime.ContextRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fc := b.context(cx)
	if fc.requests == 0 {
		panic("enginetest: EndRequest without BeginRequest")
	}
	fc.requests--
}

func (b *Backend) DestroyContext(cx jsruntime.ContextRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fc := b.context(cx)
	fc.destroyed = true
	delete(b.reporters, cx)
}

// Destroyed reports whether cx has been destroyed.
func (b *Backend) Destroyed(cx jsruntime.ContextRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	fc, ok := b.contexts[cx]
	return ok && fc.destroyed
}

func (b *Backend) SetGCParameter(cx jsruntime.ContextRef, key engine.GCParamKey, value uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx).gcParams[key] = value
}

// GCParameter returns the last value set for key on cx.
func (b *Backend) GCParameter(cx jsruntime.ContextRef, key engine.GCParamKey) (uint32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.context(cx).gcParams[key]
	return v, ok
}

func (b *Backend) SetNativeStackQuota(cx jsruntime.ContextRef, system, trusted, untrusted uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx).stackQuotas = [3]uint64{system, trusted, untrusted}
}

// StackQuotas returns the three quota tiers last set on cx.
func (b *Backend) StackQuotas(cx jsruntime.ContextRef) [3]uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.context(cx).stackQuotas
}

func (b *Backend) SetWarningReporter(cx jsruntime.ContextRef, reporter engine.WarningReporter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx)
	if reporter == nil {
		delete(b.reporters, cx)
		return
	}
	b.reporters[cx] = reporter
}

// EmitWarning delivers a warning to cx's registered reporter, as the
// engine would during compilation or execution.
func (b *Backend) EmitWarning(cx jsruntime.ContextRef, w engine.WarningReport) {
	b.mu.Lock()
	reporter := b.reporters[cx]
	b.mu.Unlock()
	if reporter != nil {
		reporter(w)
	}
}

// Globals

func (b *Backend) NewGlobalObject(cx jsruntime.ContextRef) (jsruntime.ObjectRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx)

	obj := jsruntime.ObjectRef(b.nextObject)
	b.nextObject++
	comp := jsruntime.CompartmentRef(b.nextCompart)
	b.nextCompart++
	b.objects[obj] = comp
	return obj, nil
}

// NewObject creates an object in the same compartment as sibling, or in a
// fresh compartment when sibling is null.
func (b *Backend) NewObject(sibling jsruntime.ObjectRef) jsruntime.ObjectRef {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj := jsruntime.ObjectRef(b.nextObject)
	b.nextObject++
	if comp, ok := b.objects[sibling]; ok {
		b.objects[obj] = comp
	} else {
		b.objects[obj] = jsruntime.CompartmentRef(b.nextCompart)
		b.nextCompart++
	}
	return obj
}

// Rooting

func (b *Backend) RootListHead(cx jsruntime.ContextRef, kind jsruntime.RootKind) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.context(cx).rootHeads[kind]
}

func (b *Backend) Memory() jsruntime.Memory { return b.memory }

func (b *Backend) Allocator() jsruntime.Allocator { return b.alloc }

func (b *Backend) PostBarrierObject(slot uint32, prev, next jsruntime.ObjectRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ObjectBarriers = append(b.ObjectBarriers, BarrierCall{Slot: slot, Prev: prev.Bits(), Next: next.Bits()})
}

func (b *Backend) PostBarrierValue(slot uint32, prev, next jsruntime.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ValueBarriers = append(b.ValueBarriers, BarrierCall{Slot: slot, Prev: prev.Bits(), Next: next.Bits()})
}

// RootedSlots walks cx's root list for kind and returns the slot
// encodings from top of stack down.
func (b *Backend) RootedSlots(cx jsruntime.ContextRef, kind jsruntime.RootKind) []uint64 {
	b.mu.Lock()
	head := b.context(cx).rootHeads[kind]
	b.mu.Unlock()

	var out []uint64
	slot, err := b.memory.ReadU32(head)
	if err != nil {
		return nil
	}
	for slot != 0 {
		bits, err := b.memory.ReadU64(slot + 8)
		if err != nil {
			return out
		}
		out = append(out, bits)
		slot, err = b.memory.ReadU32(slot)
		if err != nil {
			return out
		}
	}
	return out
}

// Compartments

func (b *Backend) EnterCompartment(cx jsruntime.ContextRef, global jsruntime.ObjectRef) jsruntime.CompartmentRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	fc := b.context(cx)

	comp, ok := b.objects[global]
	if !ok {
		panic(fmt.Sprintf("enginetest: EnterCompartment with unknown object %v", global))
	}
	prev := fc.current
	fc.current = comp
	return prev
}

func (b *Backend) LeaveCompartment(cx jsruntime.ContextRef, prev jsruntime.CompartmentRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx).current = prev
}

// CurrentCompartment returns cx's current compartment, zero when none has
// been entered.
func (b *Backend) CurrentCompartment(cx jsruntime.ContextRef) jsruntime.CompartmentRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.context(cx).current
}

// CompartmentOf returns the compartment an object was created in.
func (b *Backend) CompartmentOf(obj jsruntime.ObjectRef) jsruntime.CompartmentRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[obj]
}

// Strings and symbols

// InternString returns a stable StringRef for s.
func (b *Backend) InternString(s string) jsruntime.StringRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.internLocked(s)
}

func (b *Backend) internLocked(s string) jsruntime.StringRef {
	if ref, ok := b.stringIDs[s]; ok {
		return ref
	}
	ref := jsruntime.StringRef(b.nextString)
	b.nextString++
	b.strings[ref] = s
	b.stringIDs[s] = ref
	return ref
}

// StringContent returns the Go string behind ref.
func (b *Backend) StringContent(ref jsruntime.StringRef) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.strings[ref]
	return s, ok
}

// StringValue interns s and boxes it as a value.
func (b *Backend) StringValue(s string) jsruntime.Value {
	return jsruntime.StringValue(b.InternString(s))
}

// NewSymbol creates a symbol with the given description.
func (b *Backend) NewSymbol(desc string) jsruntime.SymbolRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := jsruntime.SymbolRef(b.nextSymbol)
	b.nextSymbol++
	b.symbols[ref] = desc
	return ref
}
