package rooting

import (
	"fmt"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
)

// Slot record layout in engine memory. The collector walks the list by
// following prev pointers from the per-kind head.
//
//	offset 0: prev slot address (u32), zero terminates the list
//	offset 4: padding
//	offset 8: slot encoding (u64)
const (
	slotSize     = 16
	slotAlign    = 8
	slotValueOff = 8
)

// Root pins one engine-heap reference for the collector. The slot itself
// lives in engine memory and is linked into the context's root list for
// the reference's kind.
//
// Roots are strictly LIFO: releasing any root other than the most recently
// created live root of its kind panics. Pair every NewRoot with a deferred
// Release.
type Root[T Rootable] struct {
	cx       *engine.Context
	kind     jsruntime.RootKind
	head     uint32 // guest address of the kind's list head
	slot     uint32 // guest address of this root's slot record
	prev     uint32 // saved head value at link time
	released bool
}

// NewRoot allocates a slot in engine memory, links it at the top of the
// kind's root list, and stores v in it.
func NewRoot[T Rootable](cx *engine.Context, v T) *Root[T] {
	r := newSlot[T](cx)
	r.write(initialFor(r.kind), v.Bits())
	return r
}

// NewRootDefault roots the kind's safe initial value: a null reference, the
// void id, or the undefined value.
func NewRootDefault[T Rootable](cx *engine.Context) *Root[T] {
	r := newSlot[T](cx)
	// Initial to initial: no barrier needed, just make the slot readable.
	r.writeRaw(initialFor(r.kind))
	return r
}

func newSlot[T Rootable](cx *engine.Context) *Root[T] {
	var zero T
	kind := zero.RootKind()
	head := cx.RootListHead(kind)

	slot, err := cx.Allocator().Alloc(slotSize, slotAlign)
	if err != nil || slot == 0 {
		panic(fmt.Sprintf("rooting: slot allocation failed: %v", err))
	}

	mem := cx.Memory()
	prev, rerr := mem.ReadU32(head)
	if rerr != nil {
		panic(fmt.Sprintf("rooting: read list head: %v", rerr))
	}
	if werr := mem.WriteU32(slot, prev); werr != nil {
		panic(fmt.Sprintf("rooting: init slot link: %v", werr))
	}
	if werr := mem.WriteU32(head, slot); werr != nil {
		panic(fmt.Sprintf("rooting: push slot: %v", werr))
	}

	return &Root[T]{cx: cx, kind: kind, head: head, slot: slot, prev: prev}
}

// Get returns the rooted reference.
func (r *Root[T]) Get() T {
	r.assertLive()
	bits, err := r.cx.Memory().ReadU64(r.slot + slotValueOff)
	if err != nil {
		panic(fmt.Sprintf("rooting: read slot: %v", err))
	}
	return fromBits[T](bits)
}

// Set replaces the rooted reference, notifying the collector's write
// barrier for barriered kinds.
func (r *Root[T]) Set(v T) {
	r.assertLive()
	prev, err := r.cx.Memory().ReadU64(r.slot + slotValueOff)
	if err != nil {
		panic(fmt.Sprintf("rooting: read slot: %v", err))
	}
	r.write(prev, v.Bits())
}

// Release unlinks the root and frees its slot. It panics if this root is
// not at the top of its kind's list; out-of-order release would leave the
// list pointing at freed memory.
func (r *Root[T]) Release() {
	r.assertLive()
	mem := r.cx.Memory()

	top, err := mem.ReadU32(r.head)
	if err != nil {
		panic(fmt.Sprintf("rooting: read list head: %v", err))
	}
	if top != r.slot {
		panic(fmt.Sprintf("rooting: %s root released out of order", r.kind))
	}

	// Clear to the initial value through the barrier before unlinking so
	// the store buffer never holds a stale entry for freed memory.
	cur, err := mem.ReadU64(r.slot + slotValueOff)
	if err != nil {
		panic(fmt.Sprintf("rooting: read slot: %v", err))
	}
	r.write(cur, initialFor(r.kind))

	if werr := mem.WriteU32(r.head, r.prev); werr != nil {
		panic(fmt.Sprintf("rooting: pop slot: %v", werr))
	}
	r.cx.Allocator().Free(r.slot, slotSize, slotAlign)
	r.released = true
}

// Handle returns a read-only view of the root.
func (r *Root[T]) Handle() Handle[T] {
	r.assertLive()
	return Handle[T]{r: r}
}

// Mutable returns a read-write view of the root.
func (r *Root[T]) Mutable() MutableHandle[T] {
	r.assertLive()
	return MutableHandle[T]{r: r}
}

// write stores bits in the slot and runs the kind's post barrier.
func (r *Root[T]) write(prev, next uint64) {
	r.writeRaw(next)
	if m := methodsByKind[r.kind]; m.barrier != nil && prev != next {
		m.barrier(r.cx, r.slot+slotValueOff, prev, next)
	}
}

func (r *Root[T]) writeRaw(bits uint64) {
	if err := r.cx.Memory().WriteU64(r.slot+slotValueOff, bits); err != nil {
		panic(fmt.Sprintf("rooting: write slot: %v", err))
	}
}

func (r *Root[T]) assertLive() {
	if r == nil {
		panic("rooting: nil root")
	}
	if r.released {
		panic("rooting: use of released root")
	}
}

// Handle is a read-only view of a live root. It stays valid exactly as long
// as the root; use after Release panics.
type Handle[T Rootable] struct {
	r *Root[T]
}

// Get returns the rooted reference.
func (h Handle[T]) Get() T { return h.r.Get() }

// MutableHandle is a read-write view of a live root. Writes go through the
// collector's post barrier.
type MutableHandle[T Rootable] struct {
	r *Root[T]
}

// Get returns the rooted reference.
func (h MutableHandle[T]) Get() T { return h.r.Get() }

// Set replaces the rooted reference.
func (h MutableHandle[T]) Set(v T) { h.r.Set(v) }

// Handle narrows the view to read-only.
func (h MutableHandle[T]) Handle() Handle[T] { return Handle[T]{r: h.r} }
