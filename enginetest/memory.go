package enginetest

import (
	"encoding/binary"
	"fmt"
	"sync"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/errors"
)

// Memory is a fixed-size linear memory implementing jsruntime.Memory.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

var _ jsruntime.Memory = (*Memory)(nil)

// NewMemory allocates size bytes of zeroed memory. Offset zero is never
// handed out by the allocator, so zero stays a valid null.
func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return fmt.Errorf("out of bounds: offset=%d, length=%d, size=%d", offset, length, len(m.data))
	}
	return nil
}

func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[offset:offset+length])
	return out, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}

func (m *Memory) Size() uint32 { return uint32(len(m.data)) }

// Allocator is a bump allocator over a Memory that counts live
// allocations, for leak assertions in tests. Free does not recycle.
type Allocator struct {
	mu        sync.Mutex
	mem       *Memory
	next      uint32
	live      map[uint32]uint32
	allocs    int
	frees     int
	failAfter int // fail allocations once allocs reaches this; 0 disables
}

var _ jsruntime.Allocator = (*Allocator)(nil)

// NewAllocator creates an allocator over mem. The first 16 bytes are
// reserved so no allocation is ever at offset zero.
func NewAllocator(mem *Memory) *Allocator {
	return &Allocator{mem: mem, next: 16, live: make(map[uint32]uint32)}
}

// FailAfter makes allocation number n and onward fail, for exercising
// allocation failure paths.
func (a *Allocator) FailAfter(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failAfter = n
}

func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failAfter > 0 && a.allocs+1 >= a.failAfter {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
	}
	if align == 0 {
		align = 1
	}
	ptr := (a.next + align - 1) &^ (align - 1)
	if uint64(ptr)+uint64(size) > uint64(a.mem.Size()) {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
	}
	a.next = ptr + size
	a.live[ptr] = size
	a.allocs++
	return ptr, nil
}

func (a *Allocator) Free(ptr, size, align uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.live[ptr]; !ok {
		panic(fmt.Sprintf("enginetest: free of unallocated pointer 0x%x", ptr))
	}
	delete(a.live, ptr)
	a.frees++
}

// Live returns the number of outstanding allocations.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Counts returns total allocations and frees.
func (a *Allocator) Counts() (allocs, frees int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs, a.frees
}
