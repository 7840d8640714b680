package engine

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf16"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/errors"
)

// Global compilation cache. Shared across all backends so repeated loads of
// the same engine build reuse compiled machine code.
var (
	globalCache     wazero.CompilationCache
	globalCacheOnce sync.Once
)

func compilationCache() wazero.CompilationCache {
	globalCacheOnce.Do(func() {
		globalCache = wazero.NewCompilationCache()
	})
	return globalCache
}

// HostInvoker dispatches a guest-initiated native call to a pinned Go
// function. A non-nil error becomes a pending exception in the engine.
type HostInvoker func(cx jsruntime.ContextRef, funcID int32, args []jsruntime.Value) (jsruntime.Value, error)

// Option configures LoadEngine.
type Option func(*loadConfig)

type loadConfig struct {
	memoryLimitPages uint32
	invoker          HostInvoker
}

// WithMemoryLimitPages caps the engine instance's linear memory, in 64 KiB
// pages. Zero means the wazero default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *loadConfig) { c.memoryLimitPages = pages }
}

// WithHostInvoker installs the dispatcher for native method tables defined
// through DefineFunctions/DefineProperties.
func WithHostInvoker(inv HostInvoker) Option {
	return func(c *loadConfig) { c.invoker = inv }
}

// WazeroBackend implements Backend over a JavaScript engine compiled to
// wasm32 and hosted by wazero. The engine build exports a fixed C-style
// surface (jsrt_* functions plus malloc/free and its linear memory); this
// type resolves those exports once at load and forwards each Backend
// operation to the matching entry point.
//
// The engine build is single-threaded, so all calls into the instance are
// serialized on one mutex. Per-context state above this layer is still
// thread-confined; the mutex only protects the shared instance.
type WazeroBackend struct {
	runtime  wazero.Runtime
	instance api.Module
	memory   *WazeroMemory
	alloc    *wazeroAllocator
	ctx      context.Context

	mu      sync.Mutex
	scratch uint32 // 8-byte out-parameter buffer in guest memory

	reporters   map[jsruntime.ContextRef]WarningReporter
	reportersMu sync.RWMutex
	invoker     HostInvoker

	fns map[string]api.Function
}

// Export names of the engine build's collaborator surface.
var engineExports = []string{
	"jsrt_process_init",
	"jsrt_new_context",
	"jsrt_init_self_hosted",
	"jsrt_begin_request",
	"jsrt_end_request",
	"jsrt_destroy_context",
	"jsrt_set_gc_parameter",
	"jsrt_set_stack_quota",
	"jsrt_set_warning_reporter",
	"jsrt_new_global",
	"jsrt_root_list_head",
	"jsrt_post_barrier_object",
	"jsrt_post_barrier_value",
	"jsrt_enter_compartment",
	"jsrt_leave_compartment",
	"jsrt_to_boolean_slow",
	"jsrt_to_number_slow",
	"jsrt_to_int32_slow",
	"jsrt_to_uint32_slow",
	"jsrt_to_uint16_slow",
	"jsrt_to_int64_slow",
	"jsrt_to_uint64_slow",
	"jsrt_to_string_slow",
	"jsrt_new_compile_options",
	"jsrt_free_compile_options",
	"jsrt_evaluate",
	"jsrt_new_object_vector",
	"jsrt_append_object_vector",
	"jsrt_free_object_vector",
	"jsrt_new_id_vector",
	"jsrt_slice_id_vector",
	"jsrt_free_id_vector",
	"jsrt_define_functions",
	"jsrt_define_properties",
	"malloc",
	"free",
}

// LoadEngine compiles and instantiates an engine wasm build. WASI is
// instantiated first (engine builds target wasi_snapshot_preview1), then
// the host callback module, then the engine itself.
func LoadEngine(ctx context.Context, wasmBytes []byte, opts ...Option) (*WazeroBackend, error) {
	var cfg loadConfig
	for _, o := range opts {
		o(&cfg)
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCompilationCache(compilationCache())
	if cfg.memoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	b := &WazeroBackend{
		runtime:   r,
		ctx:       ctx,
		reporters: make(map[jsruntime.ContextRef]WarningReporter),
		invoker:   cfg.invoker,
		fns:       make(map[string]api.Function),
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindEngineTrap, err, "instantiate WASI")
	}

	if err := b.instantiateHostModule(ctx); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindEngineTrap, err, "compile engine module")
	}

	instance, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("engine"))
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindEngineTrap, err, "instantiate engine module")
	}
	b.instance = instance

	mem := instance.Memory()
	if mem == nil {
		_ = r.Close(ctx)
		return nil, errors.InvalidInput(errors.PhaseLoad, "engine module exports no memory")
	}
	b.memory = &WazeroMemory{mem: mem}

	for _, name := range engineExports {
		fn := instance.ExportedFunction(name)
		if fn == nil {
			_ = r.Close(ctx)
			return nil, errors.NotFound(errors.PhaseLoad, "engine export "+name)
		}
		b.fns[name] = fn
	}

	b.alloc = &wazeroAllocator{
		ctx:     ctx,
		allocFn: b.fns["malloc"],
		freeFn:  b.fns["free"],
	}

	scratch, err := b.alloc.Alloc(8, 8)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.AllocationFailed(errors.PhaseLoad, 8, 8)
	}
	b.scratch = scratch

	return b, nil
}

// instantiateHostModule registers the env callbacks the engine imports:
// warning delivery and native method invocation.
func (b *WazeroBackend) instantiateHostModule(ctx context.Context) error {
	_, err := b.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostReportWarning),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			nil).
		Export("host_report_warning").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostInvoke),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32}).
		Export("host_invoke").
		Instantiate(ctx)
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindEngineTrap, err, "instantiate host module")
	}
	return nil
}

// Close releases the wazero runtime and every module instantiated in it.
func (b *WazeroBackend) Close(ctx context.Context) error {
	return b.runtime.Close(ctx)
}

// call invokes a resolved engine export. A trap here means the engine
// itself is in an inconsistent state, so traps on infallible entry points
// are escalated by the callers rather than swallowed.
func (b *WazeroBackend) call(name string, params ...uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callLocked(name, params...)
}

func (b *WazeroBackend) callLocked(name string, params ...uint64) (uint64, error) {
	results, err := b.fns[name].Call(b.ctx, params...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

// mustCall is for entry points that cannot fail by contract. A trap is a
// fatal engine inconsistency.
func (b *WazeroBackend) mustCall(name string, params ...uint64) uint64 {
	v, err := b.call(name, params...)
	if err != nil {
		Logger().Error("engine trap on infallible entry point", zap.String("fn", name), zap.Error(err))
		panic(fmt.Sprintf("engine: %s trapped: %v", name, err))
	}
	return v
}

// writeCString copies s into guest memory as a NUL-terminated byte string.
func (b *WazeroBackend) writeCString(s string) (uint32, error) {
	buf := append([]byte(s), 0)
	ptr, err := b.alloc.Alloc(uint32(len(buf)), 1)
	if err != nil {
		return 0, err
	}
	if err := b.memory.Write(ptr, buf); err != nil {
		b.alloc.Free(ptr, uint32(len(buf)), 1)
		return 0, err
	}
	return ptr, nil
}

func (b *WazeroBackend) freeCString(ptr uint32, s string) {
	b.alloc.Free(ptr, uint32(len(s))+1, 1)
}

// readCString reads a NUL-terminated narrow string, decoding Latin-1.
func (b *WazeroBackend) readCString(ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	var runes []rune
	for off := ptr; ; off++ {
		c, err := b.memory.ReadU8(off)
		if err != nil || c == 0 {
			break
		}
		runes = append(runes, rune(c))
	}
	return string(runes)
}

// readUTF16String reads a zero-terminated UTF-16 string from guest memory.
func (b *WazeroBackend) readUTF16String(ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	var units []uint16
	for off := ptr; ; off += 2 {
		u, err := b.memory.ReadU16(off)
		if err != nil || u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// Lifecycle

func (b *WazeroBackend) InitProcess() error {
	diag := uint32(b.mustCall("jsrt_process_init"))
	if diag != 0 {
		// The engine returns a pointer to its failure diagnostic.
		return errors.New(errors.PhaseInit, errors.KindEngineTrap).
			Detail("engine initialization failed: %s", b.readCString(diag)).
			Build()
	}
	return nil
}

func (b *WazeroBackend) NewContext(parent jsruntime.ContextRef, heapSize uint32) (jsruntime.ContextRef, error) {
	ref, err := b.call("jsrt_new_context", uint64(parent), uint64(heapSize))
	if err != nil {
		return 0, err
	}
	if ref == 0 {
		return 0, errors.AllocationFailed(errors.PhaseContext, heapSize, 0)
	}
	return jsruntime.ContextRef(ref), nil
}

func (b *WazeroBackend) InitSelfHostedCode(cx jsruntime.ContextRef) error {
	if ok, err := b.call("jsrt_init_self_hosted", uint64(cx)); err != nil {
		return err
	} else if ok == 0 {
		return errors.New(errors.PhaseContext, errors.KindEngineTrap).
			Detail("self-hosted code initialization failed").Build()
	}
	return nil
}

func (b *WazeroBackend) BeginRequest(cx jsruntime.ContextRef) {
	b.mustCall("jsrt_begin_request", uint64(cx))
}

func (b *WazeroBackend) EndRequest(cx jsruntime.ContextRef) {
	b.mustCall("jsrt_end_request", uint64(cx))
}

func (b *WazeroBackend) DestroyContext(cx jsruntime.ContextRef) {
	b.mustCall("jsrt_destroy_context", uint64(cx))
	b.reportersMu.Lock()
	delete(b.reporters, cx)
	b.reportersMu.Unlock()
}

func (b *WazeroBackend) SetGCParameter(cx jsruntime.ContextRef, key GCParamKey, value uint32) {
	b.mustCall("jsrt_set_gc_parameter", uint64(cx), uint64(key), uint64(value))
}

func (b *WazeroBackend) SetNativeStackQuota(cx jsruntime.ContextRef, system, trusted, untrusted uint64) {
	b.mustCall("jsrt_set_stack_quota", uint64(cx), system, trusted, untrusted)
}

func (b *WazeroBackend) SetWarningReporter(cx jsruntime.ContextRef, reporter WarningReporter) {
	b.reportersMu.Lock()
	b.reporters[cx] = reporter
	b.reportersMu.Unlock()
	enable := uint64(0)
	if reporter != nil {
		enable = 1
	}
	b.mustCall("jsrt_set_warning_reporter", uint64(cx), enable)
}

func (b *WazeroBackend) NewGlobalObject(cx jsruntime.ContextRef) (jsruntime.ObjectRef, error) {
	ref, err := b.call("jsrt_new_global", uint64(cx))
	if err != nil {
		return 0, err
	}
	if ref == 0 {
		return 0, errors.AllocationFailed(errors.PhaseContext, 0, 0)
	}
	return jsruntime.ObjectRef(ref), nil
}

// Rooting

func (b *WazeroBackend) RootListHead(cx jsruntime.ContextRef, kind jsruntime.RootKind) uint32 {
	return uint32(b.mustCall("jsrt_root_list_head", uint64(cx), uint64(kind)))
}

func (b *WazeroBackend) Memory() jsruntime.Memory { return b.memory }

func (b *WazeroBackend) Allocator() jsruntime.Allocator { return b.alloc }

func (b *WazeroBackend) PostBarrierObject(slot uint32, prev, next jsruntime.ObjectRef) {
	b.mustCall("jsrt_post_barrier_object", uint64(slot), uint64(uint32(prev)), uint64(uint32(next)))
}

func (b *WazeroBackend) PostBarrierValue(slot uint32, prev, next jsruntime.Value) {
	b.mustCall("jsrt_post_barrier_value", uint64(slot), prev.Bits(), next.Bits())
}

// Compartments

func (b *WazeroBackend) EnterCompartment(cx jsruntime.ContextRef, global jsruntime.ObjectRef) jsruntime.CompartmentRef {
	return jsruntime.CompartmentRef(b.mustCall("jsrt_enter_compartment", uint64(cx), uint64(uint32(global))))
}

func (b *WazeroBackend) LeaveCompartment(cx jsruntime.ContextRef, prev jsruntime.CompartmentRef) {
	b.mustCall("jsrt_leave_compartment", uint64(cx), uint64(uint32(prev)))
}

// Coercions. Each slow path writes its result through the shared scratch
// buffer and reports success in the return value; failure means user
// script threw or allocation failed, and the exception is left pending.

func (b *WazeroBackend) coerceSlow(name string, cx jsruntime.ContextRef, v jsruntime.Value) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ok, err := b.callLocked(name, uint64(cx), v.Bits(), uint64(b.scratch))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseConvert, errors.KindEngineTrap, err, name)
	}
	if ok == 0 {
		return 0, errors.PendingException(errors.PhaseConvert, name+" failed")
	}
	out, err := b.memory.ReadU64(b.scratch)
	if err != nil {
		return 0, err
	}
	return out, nil
}

func (b *WazeroBackend) ToBooleanSlow(cx jsruntime.ContextRef, v jsruntime.Value) (bool, error) {
	out, err := b.coerceSlow("jsrt_to_boolean_slow", cx, v)
	return out != 0, err
}

func (b *WazeroBackend) ToNumberSlow(cx jsruntime.ContextRef, v jsruntime.Value) (float64, error) {
	out, err := b.coerceSlow("jsrt_to_number_slow", cx, v)
	return jsruntime.ValueFromBits(out).Double(), err
}

func (b *WazeroBackend) ToInt32Slow(cx jsruntime.ContextRef, v jsruntime.Value) (int32, error) {
	out, err := b.coerceSlow("jsrt_to_int32_slow", cx, v)
	return int32(uint32(out)), err
}

func (b *WazeroBackend) ToUint32Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint32, error) {
	out, err := b.coerceSlow("jsrt_to_uint32_slow", cx, v)
	return uint32(out), err
}

func (b *WazeroBackend) ToUint16Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint16, error) {
	out, err := b.coerceSlow("jsrt_to_uint16_slow", cx, v)
	return uint16(out), err
}

func (b *WazeroBackend) ToInt64Slow(cx jsruntime.ContextRef, v jsruntime.Value) (int64, error) {
	out, err := b.coerceSlow("jsrt_to_int64_slow", cx, v)
	return int64(out), err
}

func (b *WazeroBackend) ToUint64Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint64, error) {
	return b.coerceSlow("jsrt_to_uint64_slow", cx, v)
}

func (b *WazeroBackend) ToStringSlow(cx jsruntime.ContextRef, v jsruntime.Value) (jsruntime.StringRef, error) {
	out, err := b.coerceSlow("jsrt_to_string_slow", cx, v)
	return jsruntime.StringRef(uint32(out)), err
}

// Compiler

func (b *WazeroBackend) NewCompileOptions(cx jsruntime.ContextRef, filename string, line uint32) (uint32, error) {
	fnamePtr, err := b.writeCString(filename)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseCompile, uint32(len(filename))+1, 1)
	}
	defer b.freeCString(fnamePtr, filename)

	opts, err := b.call("jsrt_new_compile_options", uint64(cx), uint64(fnamePtr), uint64(line))
	if err != nil {
		return 0, err
	}
	if opts == 0 {
		return 0, errors.AllocationFailed(errors.PhaseCompile, 0, 0)
	}
	return uint32(opts), nil
}

func (b *WazeroBackend) FreeCompileOptions(cx jsruntime.ContextRef, opts uint32) {
	b.mustCall("jsrt_free_compile_options", uint64(cx), uint64(opts))
}

func (b *WazeroBackend) Evaluate(cx jsruntime.ContextRef, opts uint32, source []uint16) error {
	// The engine does not approve of null pointers, so a zero-length
	// script still gets a real allocation.
	byteLen := uint32(len(source)) * 2
	allocLen := byteLen
	if allocLen == 0 {
		allocLen = 2
	}
	ptr, err := b.alloc.Alloc(allocLen, 2)
	if err != nil || ptr == 0 {
		return errors.AllocationFailed(errors.PhaseEval, allocLen, 2)
	}
	defer b.alloc.Free(ptr, allocLen, 2)

	for i, u := range source {
		if err := b.memory.WriteU16(ptr+uint32(i)*2, u); err != nil {
			return err
		}
	}

	ok, err := b.call("jsrt_evaluate", uint64(cx), uint64(opts), uint64(ptr), uint64(len(source)))
	if err != nil {
		return errors.Wrap(errors.PhaseEval, errors.KindEngineTrap, err, "evaluate")
	}
	if ok == 0 {
		return errors.New(errors.PhaseEval, errors.KindEvalFailed).Detail("evaluation failed").Build()
	}
	return nil
}

// Collections

func (b *WazeroBackend) NewObjectVector(cx jsruntime.ContextRef) (uint32, error) {
	vec, err := b.call("jsrt_new_object_vector", uint64(cx))
	if err != nil {
		return 0, err
	}
	if vec == 0 {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, 0, 0)
	}
	return uint32(vec), nil
}

func (b *WazeroBackend) AppendObjectVector(vec uint32, obj jsruntime.ObjectRef) bool {
	return b.mustCall("jsrt_append_object_vector", uint64(vec), uint64(uint32(obj))) != 0
}

func (b *WazeroBackend) FreeObjectVector(vec uint32) {
	b.mustCall("jsrt_free_object_vector", uint64(vec))
}

func (b *WazeroBackend) NewIdVector(cx jsruntime.ContextRef) (uint32, error) {
	vec, err := b.call("jsrt_new_id_vector", uint64(cx))
	if err != nil {
		return 0, err
	}
	if vec == 0 {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, 0, 0)
	}
	return uint32(vec), nil
}

func (b *WazeroBackend) SliceIdVector(vec uint32) []jsruntime.PropertyId {
	b.mu.Lock()
	defer b.mu.Unlock()

	ptr, err := b.callLocked("jsrt_slice_id_vector", uint64(vec), uint64(b.scratch))
	if err != nil {
		panic(fmt.Sprintf("engine: jsrt_slice_id_vector trapped: %v", err))
	}
	length, err := b.memory.ReadU32(b.scratch)
	if err != nil {
		return nil
	}

	ids := make([]jsruntime.PropertyId, length)
	for i := uint32(0); i < length; i++ {
		raw, err := b.memory.ReadU32(uint32(ptr) + i*4)
		if err != nil {
			return ids[:i]
		}
		ids[i] = jsruntime.PropertyId(raw)
	}
	return ids
}

func (b *WazeroBackend) FreeIdVector(vec uint32) {
	b.mustCall("jsrt_free_id_vector", uint64(vec))
}

// Definitions. Tables are marshalled into guest memory as zero-terminated
// arrays matching the engine's spec struct layout.

const (
	functionDefSize = 12 // name u32, func_id i32, nargs u16, flags u16
	propertyDefSize = 16 // name u32, getter_id i32, setter_id i32, flags u16, pad u16
)

func (b *WazeroBackend) DefineFunctions(cx jsruntime.ContextRef, obj jsruntime.ObjectRef, defs []FunctionDef) error {
	total := uint32(len(defs)+1) * functionDefSize
	ptr, err := b.alloc.Alloc(total, 4)
	if err != nil || ptr == 0 {
		return errors.AllocationFailed(errors.PhaseHost, total, 4)
	}
	defer b.alloc.Free(ptr, total, 4)

	var names []uint32
	defer func() {
		for i, np := range names {
			b.freeCString(np, defs[i].Name)
		}
	}()

	for i, d := range defs {
		namePtr, err := b.writeCString(d.Name)
		if err != nil {
			return errors.AllocationFailed(errors.PhaseHost, uint32(len(d.Name))+1, 1)
		}
		names = append(names, namePtr)

		off := ptr + uint32(i)*functionDefSize
		if err := b.memory.WriteU32(off, namePtr); err != nil {
			return err
		}
		if err := b.memory.WriteU32(off+4, uint32(d.FuncID)); err != nil {
			return err
		}
		if err := b.memory.WriteU16(off+8, d.Nargs); err != nil {
			return err
		}
		if err := b.memory.WriteU16(off+10, d.Flags); err != nil {
			return err
		}
	}
	// zero terminator
	term := ptr + uint32(len(defs))*functionDefSize
	for i := uint32(0); i < functionDefSize; i += 4 {
		if err := b.memory.WriteU32(term+i, 0); err != nil {
			return err
		}
	}

	ok, err := b.call("jsrt_define_functions", uint64(cx), uint64(uint32(obj)), uint64(ptr))
	if err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindEngineTrap, err, "define functions")
	}
	if ok == 0 {
		return errors.New(errors.PhaseHost, errors.KindEngineTrap).Detail("define functions failed").Build()
	}
	return nil
}

func (b *WazeroBackend) DefineProperties(cx jsruntime.ContextRef, obj jsruntime.ObjectRef, defs []PropertyDef) error {
	total := uint32(len(defs)+1) * propertyDefSize
	ptr, err := b.alloc.Alloc(total, 4)
	if err != nil || ptr == 0 {
		return errors.AllocationFailed(errors.PhaseHost, total, 4)
	}
	defer b.alloc.Free(ptr, total, 4)

	var names []uint32
	defer func() {
		for i, np := range names {
			b.freeCString(np, defs[i].Name)
		}
	}()

	for i, d := range defs {
		namePtr, err := b.writeCString(d.Name)
		if err != nil {
			return errors.AllocationFailed(errors.PhaseHost, uint32(len(d.Name))+1, 1)
		}
		names = append(names, namePtr)

		off := ptr + uint32(i)*propertyDefSize
		if err := b.memory.WriteU32(off, namePtr); err != nil {
			return err
		}
		if err := b.memory.WriteU32(off+4, uint32(d.GetterID)); err != nil {
			return err
		}
		if err := b.memory.WriteU32(off+8, uint32(d.SetterID)); err != nil {
			return err
		}
		if err := b.memory.WriteU16(off+12, d.Flags); err != nil {
			return err
		}
		if err := b.memory.WriteU16(off+14, 0); err != nil {
			return err
		}
	}
	term := ptr + uint32(len(defs))*propertyDefSize
	for i := uint32(0); i < propertyDefSize; i += 4 {
		if err := b.memory.WriteU32(term+i, 0); err != nil {
			return err
		}
	}

	ok, err := b.call("jsrt_define_properties", uint64(cx), uint64(uint32(obj)), uint64(ptr))
	if err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindEngineTrap, err, "define properties")
	}
	if ok == 0 {
		return errors.New(errors.PhaseHost, errors.KindEngineTrap).Detail("define properties failed").Build()
	}
	return nil
}

// Host callbacks invoked by the engine.

// hostReportWarning decodes the engine's warning report struct:
// filename (Latin-1 cstring ptr), line u32, column u32, message (UTF-16
// zero-terminated ptr).
func (b *WazeroBackend) hostReportWarning(_ context.Context, _ api.Module, stack []uint64) {
	cx := jsruntime.ContextRef(uint32(stack[0]))
	report := uint32(stack[1])

	b.reportersMu.RLock()
	reporter := b.reporters[cx]
	b.reportersMu.RUnlock()
	if reporter == nil {
		return
	}

	fnamePtr, _ := b.memory.ReadU32(report)
	line, _ := b.memory.ReadU32(report + 4)
	column, _ := b.memory.ReadU32(report + 8)
	msgPtr, _ := b.memory.ReadU32(report + 12)

	fname := b.readCString(fnamePtr)
	if fname == "" {
		fname = "none"
	}

	reporter(WarningReport{
		Filename: fname,
		Line:     line,
		Column:   column,
		Message:  b.readUTF16String(msgPtr),
	})
}

// hostInvoke dispatches a native method call: (cx, func_id, argc, argv,
// rval) -> ok. Arguments are 64-bit value slots at argv; the result is
// written to rval. Returning 0 tells the engine to raise the pending
// exception path.
func (b *WazeroBackend) hostInvoke(_ context.Context, _ api.Module, stack []uint64) {
	cx := jsruntime.ContextRef(uint32(stack[0]))
	funcID := int32(uint32(stack[1]))
	argc := uint32(stack[2])
	argv := uint32(stack[3])
	rval := uint32(stack[4])

	if b.invoker == nil {
		stack[0] = 0
		return
	}

	args := make([]jsruntime.Value, argc)
	for i := uint32(0); i < argc; i++ {
		bits, err := b.memory.ReadU64(argv + i*8)
		if err != nil {
			stack[0] = 0
			return
		}
		args[i] = jsruntime.ValueFromBits(bits)
	}

	result, err := b.invoker(cx, funcID, args)
	if err != nil {
		Logger().Debug("host function failed", zap.Int32("func_id", funcID), zap.Error(err))
		stack[0] = 0
		return
	}
	if err := b.memory.WriteU64(rval, result.Bits()); err != nil {
		stack[0] = 0
		return
	}
	stack[0] = 1
}

// wazeroAllocator adapts the engine's malloc/free exports to the Allocator
// interface.
type wazeroAllocator struct {
	ctx     context.Context
	allocFn api.Function
	freeFn  api.Function
	mu      sync.Mutex
	stack   [1]uint64
}

func (a *wazeroAllocator) Alloc(size, align uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stack[0] = uint64(size)
	if err := a.allocFn.CallWithStack(a.ctx, a.stack[:1]); err != nil {
		return 0, err
	}
	return uint32(a.stack[0]), nil
}

func (a *wazeroAllocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stack[0] = uint64(ptr)
	if err := a.freeFn.CallWithStack(a.ctx, a.stack[:1]); err != nil {
		Logger().Warn("free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

// WazeroMemory wraps wazero memory to implement jsruntime.Memory
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

// Size returns the current memory size in bytes.
func (m *WazeroMemory) Size() uint32 { return m.mem.Size() }
