package runtime_test

import (
	stderrors "errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/enginetest"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/hostfunc"
	"github.com/wippyai/js-runtime/rooting"
	"github.com/wippyai/js-runtime/runtime"
)

// The first runtime binds the whole process to its backend, so every test
// in this package shares one.
var backend = enginetest.New()

func newRuntime(t *testing.T, opts ...runtime.Option) *runtime.Runtime {
	t.Helper()
	rt, err := runtime.New(backend, opts...)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	t.Cleanup(rt.Close)
	return rt
}

func newGlobal(t *testing.T, rt *runtime.Runtime) *rooting.Root[jsruntime.ObjectRef] {
	t.Helper()
	global, err := rt.NewGlobal()
	if err != nil {
		t.Fatalf("NewGlobal: %v", err)
	}
	t.Cleanup(global.Release)
	return global
}

func TestProcessInitRunsOnce(t *testing.T) {
	rt1 := newRuntime(t)
	rt2 := newRuntime(t)
	_ = rt1
	_ = rt2

	if got := backend.InitCalls(); got != 1 {
		t.Fatalf("InitProcess ran %d times, want 1", got)
	}
}

func TestNewRejectsDifferentBackend(t *testing.T) {
	newRuntime(t)

	other := enginetest.New()
	if _, err := runtime.New(other); err == nil {
		t.Fatal("expected error for mismatched backend")
	}
}

func TestEvaluate(t *testing.T) {
	rt := newRuntime(t)
	global := newGlobal(t, rt)

	before := len(backend.Evaluations())
	if err := rt.Evaluate(global.Handle(), "1 + 1", "test.js", 1); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	evals := backend.Evaluations()
	if len(evals) != before+1 {
		t.Fatalf("recorded %d evaluations, want %d", len(evals), before+1)
	}
	last := evals[len(evals)-1]
	if last.Source != "1 + 1" || last.Filename != "test.js" || last.Line != 1 {
		t.Errorf("evaluation = %+v", last)
	}
	if last.Cx != rt.Cx().Ref() {
		t.Errorf("evaluated on %v, want %v", last.Cx, rt.Cx().Ref())
	}

	// The compile options and the compartment are per-call state and must
	// not leak out of Evaluate.
	if n := backend.LiveCompileOptions(); n != 0 {
		t.Errorf("%d compile options still live", n)
	}
	if got := backend.CurrentCompartment(rt.Cx().Ref()); got != 0 {
		t.Errorf("compartment not restored: %v", got)
	}
}

func TestEvaluateEmptySource(t *testing.T) {
	rt := newRuntime(t)
	global := newGlobal(t, rt)

	// The backend panics on a nil source slice; success means the empty
	// script still reached it with a real pointer.
	if err := rt.Evaluate(global.Handle(), "", "empty.js", 1); err != nil {
		t.Fatalf("Evaluate(\"\"): %v", err)
	}
	evals := backend.Evaluations()
	if last := evals[len(evals)-1]; last.Source != "" {
		t.Errorf("source = %q, want empty", last.Source)
	}
}

func TestEvaluateFailure(t *testing.T) {
	rt := newRuntime(t)
	global := newGlobal(t, rt)

	err := rt.Evaluate(global.Handle(), "throw new Error('boom')", "boom.js", 3)
	if err == nil {
		t.Fatal("expected evaluation failure")
	}
	if !stderrors.Is(err, errors.Eval("", 0)) {
		t.Errorf("error kind = %v, want eval failure", err)
	}

	// Failure must restore the compartment like success does.
	if got := backend.CurrentCompartment(rt.Cx().Ref()); got != 0 {
		t.Errorf("compartment not restored after failure: %v", got)
	}
	if n := backend.LiveCompileOptions(); n != 0 {
		t.Errorf("%d compile options leaked on failure", n)
	}
}

func TestRuntimeConfiguresContext(t *testing.T) {
	rt := newRuntime(t)
	ref := rt.Cx().Ref()

	if v, ok := backend.GCParameter(ref, engine.GCParamMaxBytes); !ok || v != ^uint32(0) {
		t.Errorf("GC max bytes = %d, want unconstrained", v)
	}
	quotas := backend.StackQuotas(ref)
	if quotas[0] == 0 || quotas[0] <= quotas[1] || quotas[1] <= quotas[2] {
		t.Errorf("stack quotas not descending: %v", quotas)
	}
}

func TestWarningsReachLoggerAndReporter(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var reported []engine.WarningReport

	rt := newRuntime(t,
		runtime.WithLogger(zap.New(core)),
		runtime.WithWarningReporter(func(w engine.WarningReport) {
			reported = append(reported, w)
		}))

	backend.EmitWarning(rt.Cx().Ref(), engine.WarningReport{
		Filename: "warn.js",
		Line:     12,
		Column:   4,
		Message:  "unreachable code",
	})

	entries := logs.FilterMessage("script warning").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d warnings, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["filename"] != "warn.js" || fields["message"] != "unreachable code" {
		t.Errorf("log fields = %v", fields)
	}

	if len(reported) != 1 || reported[0].Line != 12 {
		t.Errorf("reporter saw %v", reported)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	rt, err := runtime.New(backend)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	ref := rt.Cx().Ref()

	rt.Close()
	if !backend.Destroyed(ref) {
		t.Fatal("context not destroyed on Close")
	}
	rt.Close()

	if err := rt.Evaluate(rooting.Handle[jsruntime.ObjectRef]{}, "1", "late.js", 1); err == nil {
		t.Fatal("expected error evaluating on closed runtime")
	}
}

func TestObjectVector(t *testing.T) {
	rt := newRuntime(t)

	vec, err := runtime.NewObjectVector(rt.Cx())
	if err != nil {
		t.Fatalf("NewObjectVector: %v", err)
	}

	o1 := backend.NewObject(0)
	o2 := backend.NewObject(0)
	if !vec.Append(o1) || !vec.Append(o2) {
		t.Fatal("append failed")
	}

	backend.FailAppends(true)
	if vec.Append(backend.NewObject(0)) {
		t.Error("append succeeded under allocation failure")
	}
	backend.FailAppends(false)

	live := backend.LiveObjectVectors()
	vec.Release()
	vec.Release() // idempotent
	if got := backend.LiveObjectVectors(); got != live-1 {
		t.Errorf("live vectors = %d, want %d", got, live-1)
	}
}

func TestIdVector(t *testing.T) {
	rt := newRuntime(t)

	vec, err := runtime.NewIdVector(rt.Cx())
	if err != nil {
		t.Fatalf("NewIdVector: %v", err)
	}
	defer vec.Release()

	ref, err := vec.Ref()
	if err != nil {
		t.Fatalf("Ref: %v", err)
	}
	want := []jsruntime.PropertyId{3, 5, 8}
	backend.FillIdVector(ref, want)

	got := vec.Ids()
	if len(got) != len(want) {
		t.Fatalf("Ids() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Ids()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDefineFunctions(t *testing.T) {
	rt := newRuntime(t)
	global := newGlobal(t, rt)
	table := hostfunc.NewTable()

	called := false
	specs := []runtime.FunctionSpec{{
		Name:  "greet",
		Nargs: 1,
		Func: func(cx jsruntime.ContextRef, args []jsruntime.Value) (jsruntime.Value, error) {
			called = true
			return jsruntime.UndefinedValue(), nil
		},
	}}

	ids, err := rt.DefineFunctions(global.Handle(), table, specs)
	if err != nil {
		t.Fatalf("DefineFunctions: %v", err)
	}
	if len(ids) != 1 || table.Len() != 1 {
		t.Fatalf("ids = %v, table len = %d", ids, table.Len())
	}

	defs := backend.DefinedFunctions(global.Get())
	if len(defs) != 1 || defs[0].Name != "greet" || defs[0].FuncID != ids[0] || defs[0].Nargs != 1 {
		t.Fatalf("installed defs = %+v", defs)
	}

	// Script calls arrive through the invoker by id.
	if _, err := table.Invoker()(rt.Cx().Ref(), ids[0], nil); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !called {
		t.Error("pinned function not called")
	}
}

func TestDefineFunctionsRejectsMalformedSpec(t *testing.T) {
	rt := newRuntime(t)
	global := newGlobal(t, rt)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nameless spec")
		}
	}()
	rt.DefineFunctions(global.Handle(), hostfunc.NewTable(), []runtime.FunctionSpec{{
		Func: func(jsruntime.ContextRef, []jsruntime.Value) (jsruntime.Value, error) {
			return jsruntime.UndefinedValue(), nil
		},
	}})
}

func TestDefineFunctionsUnpinsOnFailure(t *testing.T) {
	rt := newRuntime(t)
	table := hostfunc.NewTable()

	// An object the backend has never seen makes the definition fail.
	bogus := rooting.NewRoot(rt.Cx(), jsruntime.ObjectRef(0xDEAD))
	defer bogus.Release()

	_, err := rt.DefineFunctions(bogus.Handle(), table, []runtime.FunctionSpec{{
		Name: "f",
		Func: func(jsruntime.ContextRef, []jsruntime.Value) (jsruntime.Value, error) {
			return jsruntime.UndefinedValue(), nil
		},
	}})
	if err == nil {
		t.Fatal("expected definition failure")
	}
	if table.Len() != 0 {
		t.Errorf("table holds %d functions after failed define", table.Len())
	}
}

func TestDefineProperties(t *testing.T) {
	rt := newRuntime(t)
	global := newGlobal(t, rt)
	table := hostfunc.NewTable()

	get := func(jsruntime.ContextRef, []jsruntime.Value) (jsruntime.Value, error) {
		return jsruntime.Int32Value(99), nil
	}

	ids, err := rt.DefineProperties(global.Handle(), table, []runtime.PropertySpec{
		{Name: "answer", Getter: get},
		{Name: "mutable", Getter: get, Setter: get},
	})
	if err != nil {
		t.Fatalf("DefineProperties: %v", err)
	}
	// One getter plus a getter/setter pair.
	if len(ids) != 3 || table.Len() != 3 {
		t.Fatalf("ids = %v, table len = %d", ids, table.Len())
	}

	defs := backend.DefinedProperties(global.Get())
	if len(defs) != 2 {
		t.Fatalf("installed %d properties, want 2", len(defs))
	}
	if defs[0].SetterID != 0 {
		t.Errorf("read-only property has setter id %d", defs[0].SetterID)
	}
	if defs[1].SetterID == 0 {
		t.Errorf("read-write property lost its setter")
	}
}
