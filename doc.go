// Package jsruntime provides a Go host for an embedded, garbage-collected
// JavaScript engine compiled to WebAssembly.
//
// The library manages the native side of the engine's memory-safety contract:
// every engine-heap reference held by Go code is registered (rooted) with the
// collector for exactly as long as it is held, entry and exit into isolated
// execution compartments is balanced, and conversions between engine values
// and Go values take inline fast paths for the common representations.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	jsruntime/           Root package with value, reference, and memory types
//	├── runtime/         High-level API: lifecycle, evaluation, aux collections
//	├── engine/          Engine primitive surface and the wazero backend
//	├── rooting/         Scoped roots, handles, and GC barrier bindings
//	├── convert/         Fast-path value conversions
//	├── hostfunc/        Table pinning Go callbacks for guest invocation
//	├── enginetest/      Pure-Go fake backend for tests
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Load an engine build and evaluate a script:
//
//	backend, err := engine.LoadEngine(ctx, engineWasm)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, err := runtime.New(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	global, err := rt.NewGlobal()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer global.Release()
//
//	if err := rt.Evaluate(global.Handle(), "1+1", "test.js", 1); err != nil {
//	    log.Fatal(err)
//	}
//
// # Rooting
//
// Any engine reference that must survive a call that can allocate has to be
// rooted first. Roots are strictly scoped and must be released in reverse
// order of acquisition:
//
//	obj := rooting.NewRoot(cx, jsruntime.ObjectRef(0))
//	defer obj.Release()
//
//	h := obj.Handle()   // read-only view
//	mh := obj.Mutable() // read-write view, writes go through the GC barrier
//
// Releasing roots out of order corrupts the engine's root stack; the library
// detects this at release time and aborts rather than continue with a heap
// that can no longer be collected safely.
//
// # Thread Safety
//
// One execution context per OS thread. Contexts, roots, handles, and
// compartment state are context-local and must never be shared across
// goroutines. The process-wide parent context lives on a dedicated owner
// goroutine and is never used for execution directly.
package jsruntime
