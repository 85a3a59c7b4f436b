// Package blockio implements the block I/O layer: synchronous, whole-block
// reads and writes against a device, and the scoped buffer pool that backs
// them.
//
// The pool stands in for the memory allocator the spec treats as an external
// collaborator (spec.md §1, "memory pools used to cache block buffers"):
// here it's a small fixed-width slab of block-sized byte slices, tracked with
// a bitmap so handing a slot back on Release doesn't need a GC-visible
// allocation on the steady-state path.
package blockio

import (
	"fmt"
	"sync"

	"github.com/boljen/go-bitmap"
)

// Pool hands out block-sized buffers and takes them back. It grows on demand
// but never shrinks; callers that need a block twice must call Acquire twice,
// since a Pool never caches contents across calls.
type Pool struct {
	mu        sync.Mutex
	blockSize uint
	slots     [][]byte
	inUse     bitmap.Bitmap
}

// NewPool creates a buffer pool for blocks of the given size, preallocating
// initialCapacity slots.
func NewPool(blockSize uint, initialCapacity int) *Pool {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	p := &Pool{
		blockSize: blockSize,
		slots:     make([][]byte, initialCapacity),
		inUse:     bitmap.NewSlice(initialCapacity),
	}
	for i := range p.slots {
		p.slots[i] = make([]byte, blockSize)
	}
	return p
}

// BlockSize returns the size, in bytes, of every buffer this pool hands out.
func (p *Pool) BlockSize() uint {
	return p.blockSize
}

// grow doubles the pool's capacity. Caller must hold p.mu.
func (p *Pool) grow() {
	newCap := len(p.slots) * 2
	newSlots := make([][]byte, newCap)
	copy(newSlots, p.slots)
	for i := len(p.slots); i < newCap; i++ {
		newSlots[i] = make([]byte, p.blockSize)
	}

	newInUse := bitmap.NewSlice(newCap)
	copy(newInUse, p.inUse)

	p.slots = newSlots
	p.inUse = newInUse
}

// Acquire reserves a zeroed, block-sized buffer. The returned Buffer must be
// released on every exit path, including error paths, via Release.
func (p *Pool) Acquire() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		for i := 0; i < len(p.slots); i++ {
			if !p.inUse.Get(i) {
				p.inUse.Set(i, true)
				data := p.slots[i]
				for j := range data {
					data[j] = 0
				}
				return &Buffer{pool: p, slot: i, data: data}
			}
		}
		p.grow()
	}
}

// release returns slot to the pool. It is a no-op if the slot is already
// free, so double-release is safe.
func (p *Pool) release(slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse.Set(slot, false)
}

// Buffer is a scoped handle over one block-sized region of memory owned by a
// Pool. The zero value is not valid; obtain one from Pool.Acquire.
type Buffer struct {
	pool     *Pool
	slot     int
	data     []byte
	released bool
}

// Bytes returns the backing storage for this buffer. The slice is valid only
// until Release is called.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Release returns the buffer to its pool. Calling Release more than once, or
// on a nil Buffer, is a safe no-op.
func (b *Buffer) Release() {
	if b == nil || b.released {
		return
	}
	b.released = true
	b.pool.release(b.slot)
}

// String implements fmt.Stringer for debugging pool exhaustion.
func (p *Pool) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	used := 0
	for i := 0; i < len(p.slots); i++ {
		if p.inUse.Get(i) {
			used++
		}
	}
	return fmt.Sprintf("blockio.Pool{blockSize=%d, used=%d/%d}", p.blockSize, used, len(p.slots))
}
