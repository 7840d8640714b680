package rooting_test

import (
	"testing"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/enginetest"
	"github.com/wippyai/js-runtime/rooting"
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
	t.Cleanup(cx.Destroy)
	return b, cx
}

func TestRootLinksIntoList(t *testing.T) {
	b, cx := newTestContext(t)

	obj := b.NewObject(0)
	root := rooting.NewRoot(cx, obj)

	slots := b.RootedSlots(cx.Ref(), jsruntime.KindObject)
	if len(slots) != 1 || slots[0] != obj.Bits() {
		t.Fatalf("root list = %#x, want [%#x]", slots, obj.Bits())
	}
	if got := root.Get(); got != obj {
		t.Fatalf("Get() = %v, want %v", got, obj)
	}

	root.Release()
	if slots := b.RootedSlots(cx.Ref(), jsruntime.KindObject); len(slots) != 0 {
		t.Fatalf("root list not empty after release: %#x", slots)
	}
}

func TestRootsAreLIFOPerKind(t *testing.T) {
	b, cx := newTestContext(t)

	o1 := rooting.NewRoot(cx, b.NewObject(0))
	o2 := rooting.NewRoot(cx, b.NewObject(0))
	// A different kind keeps its own list; interleaving is fine.
	s1 := rooting.NewRoot(cx, b.InternString("hello"))
	o3 := rooting.NewRoot(cx, b.NewObject(0))

	if n := len(b.RootedSlots(cx.Ref(), jsruntime.KindObject)); n != 3 {
		t.Fatalf("object root list has %d entries, want 3", n)
	}
	if n := len(b.RootedSlots(cx.Ref(), jsruntime.KindString)); n != 1 {
		t.Fatalf("string root list has %d entries, want 1", n)
	}

	o3.Release()
	s1.Release()
	o2.Release()
	o1.Release()

	for k := jsruntime.RootKind(0); k < jsruntime.NumRootKinds; k++ {
		if slots := b.RootedSlots(cx.Ref(), k); len(slots) != 0 {
			t.Errorf("%v root list not empty: %#x", k, slots)
		}
	}
}

func TestOutOfOrderReleasePanics(t *testing.T) {
	b, cx := newTestContext(t)

	r1 := rooting.NewRoot(cx, b.NewObject(0))
	r2 := rooting.NewRoot(cx, b.NewObject(0))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-order release")
		}
		// Clean up in the right order so Cleanup passes.
		r2.Release()
		r1.Release()
	}()
	r1.Release()
}

func TestUseAfterReleasePanics(t *testing.T) {
	b, cx := newTestContext(t)

	root := rooting.NewRoot(cx, b.NewObject(0))
	handle := root.Handle()
	root.Release()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on stale handle")
		}
	}()
	handle.Get()
}

func TestSetWritesThroughBarrier(t *testing.T) {
	b, cx := newTestContext(t)

	first := b.NewObject(0)
	second := b.NewObject(0)

	root := rooting.NewRoot(cx, first)
	defer root.Release()

	mut := root.Mutable()
	mut.Set(second)
	// A read-only handle from the same root sees the write.
	if got := root.Handle().Get(); got != second {
		t.Fatalf("Handle().Get() after Set = %v, want %v", got, second)
	}

	// Two barriered writes so far: null->first at creation, first->second
	// on Set.
	if len(b.ObjectBarriers) != 2 {
		t.Fatalf("barrier calls = %d, want 2", len(b.ObjectBarriers))
	}
	if b.ObjectBarriers[0].Next != first.Bits() || b.ObjectBarriers[0].Prev != 0 {
		t.Errorf("creation barrier = %+v", b.ObjectBarriers[0])
	}
	if b.ObjectBarriers[1].Prev != first.Bits() || b.ObjectBarriers[1].Next != second.Bits() {
		t.Errorf("set barrier = %+v", b.ObjectBarriers[1])
	}
}

func TestReleaseBarriersBackToNull(t *testing.T) {
	b, cx := newTestContext(t)

	obj := b.NewObject(0)
	root := rooting.NewRoot(cx, obj)
	root.Release()

	last := b.ObjectBarriers[len(b.ObjectBarriers)-1]
	if last.Prev != obj.Bits() || last.Next != 0 {
		t.Errorf("release barrier = %+v, want prev=%#x next=0", last, obj.Bits())
	}
}

func TestValueRootBarriers(t *testing.T) {
	b, cx := newTestContext(t)

	v := jsruntime.Int32Value(7)
	root := rooting.NewRoot(cx, v)
	defer root.Release()

	if got := root.Get(); got != v {
		t.Fatalf("Get() = %v, want %v", got, v)
	}
	if len(b.ValueBarriers) != 1 {
		t.Fatalf("value barrier calls = %d, want 1", len(b.ValueBarriers))
	}
	if b.ValueBarriers[0].Prev != jsruntime.UndefinedValue().Bits() {
		t.Errorf("creation barrier prev = %#x, want undefined", b.ValueBarriers[0].Prev)
	}
}

func TestStringRootsSkipBarrier(t *testing.T) {
	b, cx := newTestContext(t)

	root := rooting.NewRoot(cx, b.InternString("x"))
	root.Release()

	if len(b.ObjectBarriers) != 0 || len(b.ValueBarriers) != 0 {
		t.Errorf("string root triggered barriers: obj=%d val=%d",
			len(b.ObjectBarriers), len(b.ValueBarriers))
	}
}

func TestNewRootDefaultInitials(t *testing.T) {
	b, cx := newTestContext(t)

	obj := rooting.NewRootDefault[jsruntime.ObjectRef](cx)
	val := rooting.NewRootDefault[jsruntime.Value](cx)
	id := rooting.NewRootDefault[jsruntime.PropertyId](cx)
	defer func() {
		id.Release()
		val.Release()
		obj.Release()
	}()

	if got := obj.Get(); !got.IsNull() {
		t.Errorf("default object root = %v, want null", got)
	}
	if got := val.Get(); !got.IsUndefined() {
		t.Errorf("default value root = %v, want undefined", got)
	}
	if got := id.Get(); !got.IsVoid() {
		t.Errorf("default id root = %v, want void", got)
	}

	// Initializing to the initial value needs no barrier.
	if len(b.ObjectBarriers) != 0 || len(b.ValueBarriers) != 0 {
		t.Errorf("default roots triggered barriers")
	}
}

func TestReleaseFreesSlotMemory(t *testing.T) {
	b, cx := newTestContext(t)
	alloc := b.Allocator().(*enginetest.Allocator)

	before := alloc.Live()
	roots := make([]*rooting.Root[jsruntime.ObjectRef], 8)
	for i := range roots {
		roots[i] = rooting.NewRoot(cx, b.NewObject(0))
	}
	if alloc.Live() != before+8 {
		t.Fatalf("live allocations = %d, want %d", alloc.Live(), before+8)
	}
	for i := len(roots) - 1; i >= 0; i-- {
		roots[i].Release()
	}
	if alloc.Live() != before {
		t.Errorf("slot memory leaked: live = %d, want %d", alloc.Live(), before)
	}
}

func TestFunctionRootsShareObjectList(t *testing.T) {
	b, cx := newTestContext(t)

	fn := jsruntime.FunctionRef(uint32(b.NewObject(0)))
	root := rooting.NewRoot(cx, fn)
	defer root.Release()

	slots := b.RootedSlots(cx.Ref(), jsruntime.KindObject)
	if len(slots) != 1 || slots[0] != fn.Bits() {
		t.Fatalf("function not on object root list: %#x", slots)
	}
}
