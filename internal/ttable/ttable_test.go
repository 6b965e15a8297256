package ttable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func noopEntry(ThreadHandle, int, []string) {}

func TestAllocSlotFillsAndReportsFull(t *testing.T) {
	tb := New(2, 4)

	id1 := tb.AllocSlot("a", 1, InitTriple{Entry: noopEntry})
	id2 := tb.AllocSlot("b", 1, InitTriple{Entry: noopEntry})
	require.NotEqual(t, NoThread, id1)
	require.NotEqual(t, NoThread, id2)

	id3 := tb.AllocSlot("c", 1, InitTriple{Entry: noopEntry})
	assert.Equal(t, NoThread, id3, "table of capacity 2 must report full on the third alloc")
}

func TestExitReclaimsSlot(t *testing.T) {
	tb := New(1, 4)
	id := tb.AllocSlot("only", 1, InitTriple{Entry: noopEntry})
	require.NotEqual(t, NoThread, id)

	assert.Equal(t, NoThread, tb.AllocSlot("second", 1, InitTriple{Entry: noopEntry}))

	tb.FreeSlot(id)

	id2 := tb.AllocSlot("reborn", 1, InitTriple{Entry: noopEntry})
	assert.Equal(t, id, id2, "a freed slot is reused by the next alloc")
}

func TestThreadNameTruncation(t *testing.T) {
	tb := New(1, 4)
	longName := "this-name-is-far-too-long-for-the-table"
	id := tb.AllocSlot(longName, 1, InitTriple{Entry: noopEntry})
	tcb := tb.Get(id)
	assert.LessOrEqual(t, len(tcb.Name), 15)
	assert.Equal(t, longName[:15], tcb.Name)
}

func TestScheduleOrdersByPriority(t *testing.T) {
	tb := New(3, 4)
	low := tb.AllocSlot("low", 3, InitTriple{Entry: noopEntry})
	high := tb.AllocSlot("high", 1, InitTriple{Entry: noopEntry})
	mid := tb.AllocSlot("mid", 2, InitTriple{Entry: noopEntry})

	tb.AttachThread(tb.Get(low))
	tb.AttachThread(tb.Get(high))
	tb.AttachThread(tb.Get(mid))

	cur, ok := tb.Schedule()
	require.True(t, ok)
	assert.Equal(t, high, cur.ID(), "scheduler must pick the lowest-numbered non-empty priority")
}

func TestScheduleEmptyIsSystemDown(t *testing.T) {
	tb := New(1, 4)
	_, ok := tb.Schedule()
	assert.False(t, ok, "an empty ready set must report the system-down condition")
}

func TestDetachThenAttachRequeuesAtTail(t *testing.T) {
	tb := New(3, 4)
	a := tb.AllocSlot("a", 1, InitTriple{Entry: noopEntry})
	b := tb.AllocSlot("b", 1, InitTriple{Entry: noopEntry})
	tb.AttachThread(tb.Get(a))
	tb.AttachThread(tb.Get(b))

	cur, _ := tb.Schedule()
	require.Equal(t, a, cur.ID())

	tb.Detach()
	tb.Attach()

	// a must now be behind b: both are still linked, and the next schedule
	// yields b from the head of the queue.
	require.Equal(t, 2, tb.ReadyCount())
	cur, _ = tb.Schedule()
	assert.Equal(t, b, cur.ID(), "detach then attach must requeue a at the tail, behind b")
}

func TestAttachIdempotent(t *testing.T) {
	tb := New(1, 4)
	id := tb.AllocSlot("a", 1, InitTriple{Entry: noopEntry})
	tb.AttachThread(tb.Get(id))
	before := tb.ReadyCount()
	tb.AttachThread(tb.Get(id))
	assert.Equal(t, before, tb.ReadyCount(), "attach-current must be a no-op when already Ready")
}

func TestAttachWithNilCurrentIsNoOp(t *testing.T) {
	tb := New(1, 4)
	id := tb.AllocSlot("a", 1, InitTriple{Entry: noopEntry})
	tb.AttachThread(tb.Get(id))
	tb.Schedule()
	tb.ClearCurrent()
	assert.NotPanics(t, func() { tb.Attach() }, "attach-current with nil current (service-call mode) must be a silent no-op")
}

func TestRequeueChangesPriority(t *testing.T) {
	tb := New(1, 4)
	id := tb.AllocSlot("a", 2, InitTriple{Entry: noopEntry})
	tcb := tb.Get(id)
	tb.AttachThread(tcb)
	tb.Schedule()
	tb.Detach()
	tb.Requeue(tcb, 0)
	assert.Equal(t, 0, tcb.Priority)
	assert.True(t, tcb.Ready)
}

// TestReadyCountMatchesFlaggedTCBs is the property-level invariant of
// spec.md section 8: "the number of READY-flagged TCBs equals the total
// size of all ready queues," checked against randomized sequences of
// alloc/attach/detach/free operations.
func TestReadyCountMatchesFlaggedTCBs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 6).Draw(rt, "capacity")
		tb := New(capacity, 4)
		var ids []ThreadID

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0: // alloc
				pri := rapid.IntRange(0, 3).Draw(rt, "priority")
				id := tb.AllocSlot("t", pri, InitTriple{Entry: noopEntry})
				if id != NoThread {
					ids = append(ids, id)
					tb.AttachThread(tb.Get(id))
				}
			case 1: // free a random live one
				if len(ids) > 0 {
					idx := rapid.IntRange(0, len(ids)-1).Draw(rt, "idx")
					tb.FreeSlot(ids[idx])
					ids = append(ids[:idx], ids[idx+1:]...)
				}
			case 2: // detach+attach current via schedule
				if _, ok := tb.Schedule(); ok {
					tb.Detach()
					tb.Attach()
				}
			case 3: // schedule only
				tb.Schedule()
			}

			flagged := 0
			for _, id := range ids {
				if tcb := tb.Get(id); tcb != nil && tcb.Ready {
					flagged++
				}
			}
			assert.Equal(rt, flagged, tb.ReadyCount())
		}
	})
}
