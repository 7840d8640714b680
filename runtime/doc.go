// Package runtime manages engine lifecycle: one-time process setup, the
// long-lived ancestor context, per-thread derived runtimes, and script
// evaluation.
//
// The first Runtime created triggers process initialization and spins up
// the ancestor context on a dedicated OS thread that stays parked for the
// life of the process. Every Runtime derives its context from that
// ancestor, so engine internals shared across contexts stay alive as long
// as any runtime exists.
//
//	rt, err := runtime.New(backend)
//	if err != nil { ... }
//	defer rt.Close()
//
//	global, err := rt.NewGlobal()
//	if err != nil { ... }
//	defer global.Release()
//
//	err = rt.Evaluate(global.Handle(), "1 + 1", "inline.js", 1)
//
// A Runtime is confined to the goroutine that created it and is not safe
// for concurrent use.
package runtime
