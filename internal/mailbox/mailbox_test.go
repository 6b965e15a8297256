package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bobchin/kozos/internal/mempool"
	"github.com/bobchin/kozos/internal/syscall"
	"github.com/bobchin/kozos/internal/ttable"
)

func newTestTable() *Table {
	return New(2, mempool.New([]int{16, 32}, 1024))
}

func recvReadyTCB() *ttable.TCB {
	tb := ttable.New(1, 4)
	id := tb.AllocSlot("r", 1, ttable.InitTriple{Entry: func(ttable.ThreadHandle, int, []string) {}})
	tcb := tb.Get(id)
	tcb.Pending = &syscall.RecvParams{}
	return tcb
}

func TestSendThenRecvDeliversSynchronously(t *testing.T) {
	mb := newTestTable()
	payload := []byte("static memory\n")

	woken, ok := mb.Send(0, ttable.ThreadID(1), len(payload), payload)
	require.True(t, ok)
	assert.Nil(t, woken, "no receiver was parked, so Send must not report a woken thread")

	delivery, delivered, duplicate := mb.Recv(0, recvReadyTCB())
	require.False(t, duplicate)
	require.True(t, delivered)
	assert.Equal(t, len(payload), delivery.Size)
	assert.Equal(t, ttable.ThreadID(1), delivery.SenderID)
	// Exact pointer identity: the payload is conveyed, not copied.
	assert.Same(t, &payload[0], &delivery.Payload[0])
}

func TestBlockedRecvThenSendDelivers(t *testing.T) {
	mb := newTestTable()
	receiver := recvReadyTCB()

	_, delivered, duplicate := mb.Recv(0, receiver)
	require.False(t, duplicate)
	require.False(t, delivered, "an empty mailbox must leave the caller blocked")

	payload := make([]byte, 18)
	woken, ok := mb.Send(0, ttable.ThreadID(2), 18, payload)
	require.True(t, ok)
	require.Same(t, receiver, woken, "a send to a mailbox with a parked receiver must report it woken")

	params := receiver.Pending.(*syscall.RecvParams)
	assert.Equal(t, 18, params.ResultSize)
	assert.Equal(t, 2, params.ResultSenderID)
}

func TestDuplicateReceiverIsProtocolViolation(t *testing.T) {
	mb := newTestTable()
	_, _, duplicate1 := mb.Recv(0, recvReadyTCB())
	require.False(t, duplicate1)

	_, _, duplicate2 := mb.Recv(0, recvReadyTCB())
	assert.True(t, duplicate2, "a second RECV while a receiver is already parked must be reported as a protocol violation")
}

func TestSendExhaustionReportsNotOK(t *testing.T) {
	// A 16-byte arena with a single 16-byte class holds exactly one buffer
	// header; the first Send (no parked receiver, so the buffer is
	// enqueued and its header stays allocated) exhausts it.
	mb := New(1, mempool.New([]int{16}, 16))
	_, ok := mb.Send(0, ttable.ThreadID(1), 4, []byte("boo"))
	require.True(t, ok, "first send must fit in a 16-byte arena")

	_, ok = mb.Send(0, ttable.ThreadID(1), 4, []byte("boo"))
	assert.False(t, ok, "allocator exhaustion during SEND must be reported, the system-down trigger of spec.md section 4.7")
}

// TestAtMostOneReceiverOrEmptyFIFO is the property-level invariant of
// spec.md section 8: "for every mailbox, (pending_receiver != null AND
// fifo_nonempty) is false immediately after any request returns."
func TestAtMostOneReceiverOrEmptyFIFO(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		mb := New(1, mempool.New([]int{16, 32, 64}, 4096))
		var parked *ttable.TCB

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if parked == nil && rapid.Bool().Draw(rt, "recv") {
				candidate := recvReadyTCB()
				_, delivered, duplicate := mb.Recv(0, candidate)
				require.False(rt, duplicate)
				if !delivered {
					parked = candidate
				}
			} else {
				payload := make([]byte, 4)
				woken, ok := mb.Send(0, ttable.ThreadID(9), 4, payload)
				if !ok {
					break
				}
				if woken != nil {
					require.Same(rt, parked, woken)
					parked = nil
				}
			}

			box := &mb.boxes[0]
			violated := box.receiver != nil && len(box.fifo) > 0
			assert.False(rt, violated)
		}
	})
}
