package engine

import (
	jsruntime "github.com/wippyai/js-runtime"
)

// CompartmentGuard makes a global object's compartment current for a scope
// and restores the previous compartment on Leave. Guards nest, but must be
// left in exact reverse order of entry; the engine keeps a compartment
// stack and an out-of-order leave would unwind someone else's entry.
//
//	guard := engine.EnterCompartment(cx, global)
//	defer guard.Leave()
type CompartmentGuard struct {
	cx    *Context
	prev  jsruntime.CompartmentRef
	depth int
	left  bool
}

// EnterCompartment pushes global's compartment as current and records the
// previously current compartment.
func EnterCompartment(cx *Context, global jsruntime.ObjectRef) *CompartmentGuard {
	cx.assertLive()
	if global.IsNull() {
		panic("engine: EnterCompartment with null global")
	}

	prev := cx.backend.EnterCompartment(cx.ref, global)
	cx.depth++
	return &CompartmentGuard{cx: cx, prev: prev, depth: cx.depth}
}

// Leave restores the compartment that was current at entry. It must run on
// every exit path from the guarded region, including unwinds; callers defer
// it immediately after EnterCompartment.
func (g *CompartmentGuard) Leave() {
	if g.left {
		panic("engine: compartment guard left twice")
	}
	if g.cx.depth != g.depth {
		panic("engine: compartment guards left out of order")
	}
	g.left = true
	g.cx.depth--
	g.cx.backend.LeaveCompartment(g.cx.ref, g.prev)
}
