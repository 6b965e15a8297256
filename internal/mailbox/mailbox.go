// Package mailbox is the kernel's message-box subsystem (spec.md section
// 4.4): a fixed-capacity array of mailboxes, each a FIFO of message buffers
// with at most one pending receiver. Message buffer headers are allocated
// from the same internal/mempool used for KMALLOC, so pool exhaustion during
// a SEND is indistinguishable from any other allocator exhaustion.
package mailbox

import (
	"github.com/bobchin/kozos/internal/mempool"
	"github.com/bobchin/kozos/internal/syscall"
	"github.com/bobchin/kozos/internal/ttable"
)

// Buffer is a message buffer: sender, size, and an uninterpreted payload.
// The kernel owns a Buffer between SEND and the matching RECV; the payload
// itself is never copied, only the pointer (here, the slice header) is
// conveyed, per spec.md section 3.
type Buffer struct {
	Sender  ttable.ThreadID
	Size    int
	Payload []byte

	header *mempool.Block
}

// Receiver captures a parked RECV: the waiting thread and where its result
// should land once a message arrives.
type Receiver struct {
	Thread *ttable.TCB
}

// Box is one mailbox: a FIFO of Buffers and at most one pending Receiver.
type Box struct {
	fifo     []*Buffer
	receiver *Receiver
}

// Table is the fixed array of mailboxes, indexed by mailbox ID.
type Table struct {
	boxes []Box
	pool  *mempool.Pool
}

// New builds a Table with n mailboxes, backed by pool for buffer headers.
func New(n int, pool *mempool.Pool) *Table {
	return &Table{
		boxes: make([]Box, n),
		pool:  pool,
	}
}

// Delivery is what a completed RECV learns, whether synchronously (the
// FIFO already held a message) or asynchronously (a later SEND woke it).
type Delivery struct {
	SenderID ttable.ThreadID
	Size     int
	Payload  []byte
}

// Send implements the send path of spec.md section 4.4. If a receiver is
// already parked, the message is delivered immediately and the receiver TCB
// is returned so the caller (the dispatcher) can re-attach it; otherwise
// the buffer is enqueued and Send returns (nil, true). It returns
// ok=false only on kernel allocator exhaustion, the system-down condition
// of spec.md section 4.7.
func (tb *Table) Send(boxID int, senderID ttable.ThreadID, size int, payload []byte) (woken *ttable.TCB, ok bool) {
	box := &tb.boxes[boxID]

	block := tb.pool.Alloc(1)
	if block == nil {
		return nil, false
	}

	buf := &Buffer{
		Sender:  senderID,
		Size:    size,
		Payload: payload,
		header:  block,
	}

	if box.receiver != nil {
		r := box.receiver
		box.receiver = nil
		tb.pool.Free(buf.header)
		deliverTo(r.Thread, senderID, size, payload)
		return r.Thread, true
	}

	box.fifo = append(box.fifo, buf)
	return nil, true
}

// Recv implements the receive path of spec.md section 4.4. If the FIFO
// already holds a message, it is delivered synchronously and delivered=true
// is returned. If the FIFO is empty, the caller is parked as the box's
// receiver and delivered=false is returned — the dispatcher leaves the
// caller detached. duplicate=true signals a second RECV arriving while a
// receiver is already parked, the protocol violation spec.md section 4.4
// and 4.7 say must trigger system-down.
func (tb *Table) Recv(boxID int, caller *ttable.TCB) (delivery Delivery, delivered bool, duplicate bool) {
	box := &tb.boxes[boxID]

	if box.receiver != nil {
		return Delivery{}, false, true
	}

	if len(box.fifo) > 0 {
		buf := box.fifo[0]
		box.fifo = box.fifo[1:]
		tb.pool.Free(buf.header)
		return Delivery{SenderID: buf.Sender, Size: buf.Size, Payload: buf.Payload}, true, false
	}

	box.receiver = &Receiver{Thread: caller}
	return Delivery{}, false, false
}

// deliverTo writes a delivery directly into the parked receiver's pending
// RECV result, mirroring recvmsg copying sender/size/payload into the
// blocked thread's parameter block before it is re-attached. It panics if
// the receiver's pending request is not a RECV, which would indicate a
// kernel bug (a non-receiving thread parked as a mailbox receiver).
func deliverTo(t *ttable.TCB, senderID ttable.ThreadID, size int, payload []byte) {
	params, ok := t.Pending.(*syscall.RecvParams)
	if !ok {
		panic("mailbox: parked receiver's pending request is not RECV")
	}
	params.ResultSenderID = int(senderID)
	params.ResultSize = size
	params.ResultPayload = payload
}
