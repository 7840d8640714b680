// Package hostfunc pins Go functions so the engine can call them by id.
//
// The engine's function and property tables carry 32-bit ids, not Go
// pointers. A Table maps ids to Go callables and keeps them reachable for
// as long as script can invoke them; the engine backend dispatches through
// Invoker.
package hostfunc

import (
	"sync"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
)

// Func is a native function callable from script. The arguments are
// unrooted snapshots valid for the duration of the call; a non-nil error
// becomes an exception in the calling script.
type Func func(cx jsruntime.ContextRef, args []jsruntime.Value) (jsruntime.Value, error)

// Table pins host functions by id. Id 0 is never issued; it marks an
// absent getter or setter in property tables.
type Table struct {
	mu     sync.RWMutex
	funcs  map[int32]Func
	nextID int32
	closed bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		funcs:  make(map[int32]Func),
		nextID: 1,
	}
}

// Insert pins fn and returns its id. Returns 0 if fn is nil or the table
// is closed.
func (t *Table) Insert(fn Func) int32 {
	if fn == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0
	}
	id := t.nextID
	t.nextID++
	t.funcs[id] = fn
	return id
}

// Get retrieves a pinned function by id.
func (t *Table) Get(id int32) (Func, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.funcs[id]
	return fn, ok
}

// Remove unpins a function and reports whether it was present. The caller
// must not remove a function the engine can still reach.
func (t *Table) Remove(id int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.funcs[id]; !ok {
		return false
	}
	delete(t.funcs, id)
	return true
}

// Len returns the number of pinned functions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.funcs)
}

// Close unpins everything and stops accepting inserts.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.funcs = make(map[int32]Func)
	return nil
}

// Invoker returns the dispatcher the engine backend calls for native
// invocations. An unknown id fails the call rather than panicking; script
// sees an exception.
func (t *Table) Invoker() engine.HostInvoker {
	return func(cx jsruntime.ContextRef, funcID int32, args []jsruntime.Value) (jsruntime.Value, error) {
		fn, ok := t.Get(funcID)
		if !ok {
			return jsruntime.UndefinedValue(), errors.NotFound(errors.PhaseHost, "host function")
		}
		return fn(cx, args)
	}
}
