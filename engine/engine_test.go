package engine_test

import (
	"testing"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/enginetest"
)

func newTestContext(t *testing.T) (*enginetest.Backend, *engine.Context) {
	t.Helper()
	b := enginetest.New()
	if err := b.InitProcess(); err != nil {
		t.Fatalf("InitProcess: %v", err)
	}
	cx, err := engine.NewContext(b, 0, 1<<20)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return b, cx
}

func TestCompartmentGuardRestores(t *testing.T) {
	b, cx := newTestContext(t)
	defer cx.Destroy()

	g1, err := b.NewGlobalObject(cx.Ref())
	if err != nil {
		t.Fatalf("NewGlobalObject: %v", err)
	}
	g2, err := b.NewGlobalObject(cx.Ref())
	if err != nil {
		t.Fatalf("NewGlobalObject: %v", err)
	}

	if got := b.CurrentCompartment(cx.Ref()); got != 0 {
		t.Fatalf("initial compartment = %v, want none", got)
	}

	guard := engine.EnterCompartment(cx, g1)
	if got := b.CurrentCompartment(cx.Ref()); got != b.CompartmentOf(g1) {
		t.Fatalf("compartment = %v, want %v", got, b.CompartmentOf(g1))
	}

	inner := engine.EnterCompartment(cx, g2)
	if got := b.CurrentCompartment(cx.Ref()); got != b.CompartmentOf(g2) {
		t.Fatalf("nested compartment = %v, want %v", got, b.CompartmentOf(g2))
	}

	inner.Leave()
	if got := b.CurrentCompartment(cx.Ref()); got != b.CompartmentOf(g1) {
		t.Fatalf("after inner leave = %v, want %v", got, b.CompartmentOf(g1))
	}

	guard.Leave()
	if got := b.CurrentCompartment(cx.Ref()); got != 0 {
		t.Fatalf("after outer leave = %v, want none", got)
	}
}

func TestCompartmentGuardRestoresOnUnwind(t *testing.T) {
	b, cx := newTestContext(t)
	defer cx.Destroy()

	global, _ := b.NewGlobalObject(cx.Ref())

	func() {
		defer func() { recover() }()
		guard := engine.EnterCompartment(cx, global)
		defer guard.Leave()
		panic("early exit")
	}()

	if got := b.CurrentCompartment(cx.Ref()); got != 0 {
		t.Fatalf("compartment not restored after unwind: %v", got)
	}
}

func TestCompartmentGuardDoubleLeavePanics(t *testing.T) {
	b, cx := newTestContext(t)
	defer cx.Destroy()

	global, _ := b.NewGlobalObject(cx.Ref())
	guard := engine.EnterCompartment(cx, global)
	guard.Leave()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double leave")
		}
	}()
	guard.Leave()
}

func TestCompartmentGuardsLeaveInOrder(t *testing.T) {
	b, cx := newTestContext(t)
	defer cx.Destroy()

	g1, _ := b.NewGlobalObject(cx.Ref())
	g2, _ := b.NewGlobalObject(cx.Ref())

	outer := engine.EnterCompartment(cx, g1)
	inner := engine.EnterCompartment(cx, g2)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-order leave")
		}
		inner.Leave()
		outer.Leave()
	}()
	outer.Leave()
}

func TestEnterCompartmentNullGlobalPanics(t *testing.T) {
	_, cx := newTestContext(t)
	defer cx.Destroy()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on null global")
		}
	}()
	engine.EnterCompartment(cx, 0)
}

func TestContextDestroyOnce(t *testing.T) {
	b, cx := newTestContext(t)

	cx.Destroy()
	if !b.Destroyed(cx.Ref()) {
		t.Fatal("backend context not destroyed")
	}
	// A second destroy must be a no-op, not a second backend call.
	cx.Destroy()
	if !cx.Destroyed() {
		t.Fatal("Destroyed() = false after Destroy")
	}
}

func TestDestroyedContextRefusesCompartmentEntry(t *testing.T) {
	b, cx := newTestContext(t)

	global, _ := b.NewGlobalObject(cx.Ref())
	cx.Destroy()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic entering compartment on destroyed context")
		}
	}()
	engine.EnterCompartment(cx, global)
}

func TestRootListHeadsAreDistinct(t *testing.T) {
	_, cx := newTestContext(t)
	defer cx.Destroy()

	seen := make(map[uint32]jsruntime.RootKind)
	for k := jsruntime.RootKind(0); k < jsruntime.NumRootKinds; k++ {
		head := cx.RootListHead(k)
		if head == 0 {
			t.Fatalf("%v head is null", k)
		}
		if prev, dup := seen[head]; dup {
			t.Fatalf("%v and %v share head %#x", k, prev, head)
		}
		seen[head] = k
	}
}
