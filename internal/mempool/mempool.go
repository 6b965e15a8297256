// Package mempool is the kernel's bounded, segregated-fit allocator:
// spec.md section 4.5's size-class free lists over a bump-allocated arena.
// It backs both KMALLOC/KMFREE and the kernel-internal message-buffer
// headers in internal/mailbox, so allocator exhaustion surfaces identically
// regardless of call path.
//
// This is deliberately not sync.Pool: sync.Pool items are GC-transient and
// may vanish between a Put and a Get, which is the wrong model for a
// deterministic, boundedly-sized embedded heap that must report exhaustion
// rather than silently fall back to fresh allocation.
package mempool

import (
	"fmt"
	"sync"
)

// Block is an opaque allocation handle, the Go-native analogue of the
// pointer KMALLOC returns: opaque to callers, meaningful only to the pool
// that produced it.
type Block struct {
	class int
	buf   []byte
	pool  *Pool
}

// Bytes returns the block's storage. Its length is the size class it was
// carved from, which may be larger than the originally requested size —
// callers that care about the exact requested size track it themselves, the
// same way the original kernel's callers track the size they asked for
// rather than trusting the block header.
func (b *Block) Bytes() []byte { return b.buf }

// Pool is a segregated-fit allocator over a fixed set of size classes.
// Each class bump-carves from a shared arena on first need, then recycles
// freed blocks through an explicit free list.
type Pool struct {
	mu      sync.Mutex
	classes []int
	free    map[int][]*Block

	arena     []byte
	arenaUsed int
}

// New builds a Pool with the given size classes (ascending) and total arena
// size in bytes.
func New(classes []int, arenaSize int) *Pool {
	sorted := append([]int(nil), classes...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return &Pool{
		classes: sorted,
		free:    make(map[int][]*Block, len(sorted)),
		arena:   make([]byte, arenaSize),
	}
}

// classFor returns the smallest size class that can satisfy size, or -1 if
// no class is big enough.
func (p *Pool) classFor(size int) int {
	for _, c := range p.classes {
		if size <= c {
			return c
		}
	}
	return -1
}

// Alloc returns a Block able to hold size bytes, or nil on exhaustion
// (spec.md section 4.5: "Returns null on exhaustion"). Alloc is safe for
// concurrent use; the kernel loop is the only real caller, but tests that
// exercise the pool directly rely on this.
func (p *Pool) Alloc(size int) *Block {
	class := p.classFor(size)
	if class < 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if freelist := p.free[class]; len(freelist) > 0 {
		b := freelist[len(freelist)-1]
		p.free[class] = freelist[:len(freelist)-1]
		return b
	}

	if p.arenaUsed+class > len(p.arena) {
		return nil
	}
	buf := p.arena[p.arenaUsed : p.arenaUsed+class : p.arenaUsed+class]
	p.arenaUsed += class
	return &Block{class: class, buf: buf, pool: p}
}

// Free returns b to its size class's free list (spec.md section 4.5:
// "Fragmentation is bounded because size classes are fixed; coalescing is
// not performed"). Freeing a nil block or a block from a different pool is
// a programming error and panics, mirroring the original's unchecked
// kz_kmfree on a foreign pointer being undefined behavior rather than a
// recoverable condition.
func (p *Pool) Free(b *Block) {
	if b == nil {
		panic("mempool: free of nil block")
	}
	if b.pool != p {
		panic(fmt.Sprintf("mempool: block of class %d freed to a foreign pool", b.class))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free[b.class] = append(p.free[b.class], b)
}
