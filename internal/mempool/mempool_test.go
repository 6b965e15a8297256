package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAllocPicksSmallestAdequateClass(t *testing.T) {
	p := New([]int{16, 64, 256}, 1024)
	b := p.Alloc(20)
	require.NotNil(t, b)
	assert.Equal(t, 64, len(b.Bytes()))
}

func TestAllocReturnsNilWhenNoClassFits(t *testing.T) {
	p := New([]int{16, 64}, 1024)
	assert.Nil(t, p.Alloc(128))
}

func TestAllocExhaustsArena(t *testing.T) {
	p := New([]int{16}, 32)
	require.NotNil(t, p.Alloc(16))
	require.NotNil(t, p.Alloc(16))
	assert.Nil(t, p.Alloc(16), "a 32-byte arena of 16-byte blocks has room for exactly two")
}

func TestFreeThenAllocSucceeds(t *testing.T) {
	p := New([]int{16}, 16)
	b := p.Alloc(16)
	require.NotNil(t, b)
	require.Nil(t, p.Alloc(16), "arena exhausted")

	p.Free(b)
	b2 := p.Alloc(16)
	assert.NotNil(t, b2, "freeing must return the allocator to a state where the same-size alloc succeeds")
}

func TestFreeForeignBlockPanics(t *testing.T) {
	p1 := New([]int{16}, 16)
	p2 := New([]int{16}, 16)
	b := p1.Alloc(16)
	assert.Panics(t, func() { p2.Free(b) })
}

// TestAllocFreeRoundTrip is the property-level invariant of spec.md section
// 8: "KMALLOC(n) then KMFREE returns the allocator to a state where a
// subsequent KMALLOC(n) succeeds" — checked against randomized sequences of
// allocs and frees bounded by the arena's capacity.
func TestAllocFreeRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		classes := []int{16, 32, 64}
		p := New(classes, 256)
		var live []*Block

		steps := rapid.IntRange(1, 50).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if len(live) == 0 || rapid.Bool().Draw(rt, "allocate") {
				size := rapid.SampledFrom(classes).Draw(rt, "size")
				b := p.Alloc(size)
				if b != nil {
					live = append(live, b)
				}
			} else {
				idx := rapid.IntRange(0, len(live)-1).Draw(rt, "idx")
				freed := live[idx]
				p.Free(freed)
				live = append(live[:idx], live[idx+1:]...)

				again := p.Alloc(len(freed.Bytes()))
				require.NotNil(rt, again, "an alloc of the size just freed must succeed")
				p.Free(again)
			}
		}
	})
}
