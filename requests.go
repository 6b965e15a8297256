package kozos

import (
	"runtime"

	"github.com/bobchin/kozos/internal/mempool"
	"github.com/bobchin/kozos/internal/syscall"
	"github.com/bobchin/kozos/internal/ttable"
)

// Thread is the user-visible request API (spec.md section 6): a thin
// wrapper around a TCB that packs a tagged request and issues the trap
// from thread context. Every method blocks until the kernel loop has
// processed the request and re-dispatched, except Exit, which terminates
// the calling goroutine instead of returning.
type Thread struct {
	k   *Kernel
	tcb *ttable.TCB
}

// ID satisfies ttable.ThreadHandle and returns the thread's own id, the
// request-free form of GetID.
func (t *Thread) ID() ThreadID { return t.tcb.ID() }

// trap parks req in the TCB, signals the kernel loop, and blocks until
// redispatched, the Go-native form of issuing a software-trap interrupt and
// waiting for the scheduler to resume this thread.
func (t *Thread) trap(req syscall.Request) {
	t.tcb.Pending = req
	t.k.trapCh <- t.tcb
	<-t.tcb.Resume
}

// Run spawns a new thread (spec.md section 4.3, RUN). It returns NoThread
// if the thread table is full.
func (t *Thread) Run(name string, priority int, entry ttable.ThreadFunc, argc int, argv []string) ThreadID {
	req := &syscall.RunParams{Name: name, Priority: priority, Entry: entry, Argc: argc, Argv: argv}
	t.trap(req)
	return ThreadID(req.Result)
}

// RunWithStack is Run with an explicit stack-size hint, kept distinct from
// Run because only a minority of callers care (spec.md section 4.3 lists
// stacksize as a RUN input, but most test threads accept the default).
func (t *Thread) RunWithStack(name string, priority, stackSize int, entry ttable.ThreadFunc, argc int, argv []string) ThreadID {
	req := &syscall.RunParams{Name: name, Priority: priority, StackSize: stackSize, Entry: entry, Argc: argc, Argv: argv}
	t.trap(req)
	return ThreadID(req.Result)
}

// Exit terminates the calling thread (spec.md section 4.3, EXIT). It never
// returns to the caller; it is also invoked automatically when a thread's
// entry function returns (spec.md section 4.6).
func (t *Thread) Exit() {
	t.tcb.Pending = &syscall.ExitParams{}
	t.k.trapCh <- t.tcb
	// Deliberately do not wait on Resume: the slot is freed by the
	// dispatcher and this goroutine is done.
	runtime.Goexit()
}

// Wait yields at equal priority (spec.md section 4.3, WAIT): the caller is
// requeued at the tail of its priority's ready queue.
func (t *Thread) Wait() {
	req := &syscall.WaitParams{}
	t.trap(req)
}

// Sleep blocks the caller until a matching Wakeup (spec.md section 4.3,
// SLEEP).
func (t *Thread) Sleep() {
	req := &syscall.SleepParams{}
	t.trap(req)
}

// Wakeup re-attaches target to its ready queue (spec.md section 4.3,
// WAKEUP). It is idempotent if target is already ready.
func (t *Thread) Wakeup(target ThreadID) {
	req := &syscall.WakeupParams{Target: int(target)}
	t.trap(req)
}

// GetID returns the caller's own thread id (spec.md section 4.3, GETID).
func (t *Thread) GetID() ThreadID {
	req := &syscall.GetIDParams{}
	t.trap(req)
	return ThreadID(req.Result)
}

// ChPri changes the caller's priority and returns the previous one
// (spec.md section 4.3, CHPRI). A negative newPriority leaves priority
// unchanged.
func (t *Thread) ChPri(newPriority int) int {
	req := &syscall.ChPriParams{NewPriority: newPriority}
	t.trap(req)
	return req.Result
}

// KMalloc allocates size bytes from the kernel memory pool (spec.md
// section 4.3, KMALLOC). It returns nil on exhaustion.
func (t *Thread) KMalloc(size int) *mempool.Block {
	req := &syscall.KMallocParams{Size: size}
	t.trap(req)
	block, _ := req.Result.(*mempool.Block)
	return block
}

// KMFree returns block to the kernel memory pool (spec.md section 4.3,
// KMFREE).
func (t *Thread) KMFree(block *mempool.Block) {
	req := &syscall.KMFreeParams{Block: block}
	t.trap(req)
}

// Send enqueues a message on a mailbox (spec.md section 4.3, SEND). payload
// is conveyed by reference, not copied; ownership transfers to whichever
// thread eventually receives it.
func (t *Thread) Send(msgboxID int, payload []byte) int {
	req := &syscall.SendParams{MsgboxID: msgboxID, Size: len(payload), Payload: payload}
	t.trap(req)
	return req.Result
}

// Delivery is what Recv returns: the sender, size, and payload of a
// delivered message.
type Delivery struct {
	SenderID ThreadID
	Size     int
	Payload  []byte
}

// Recv receives a message from a mailbox, blocking if none is buffered
// (spec.md section 4.3, RECV). At most one thread may have a pending Recv
// on a given mailbox at a time; a second concurrent Recv is a protocol
// violation that brings down the kernel (spec.md section 4.4, 4.7).
func (t *Thread) Recv(msgboxID int) Delivery {
	req := &syscall.RecvParams{MsgboxID: msgboxID}
	t.trap(req)
	return Delivery{SenderID: ThreadID(req.ResultSenderID), Size: req.ResultSize, Payload: req.ResultPayload}
}

// SetIntr installs handler for vector (spec.md section 4.3, SETINTR).
func (t *Thread) SetIntr(vector int, handler Handler) {
	req := &syscall.SetIntrParams{Vector: vector, Handler: handler}
	t.trap(req)
}

// ServiceCall is the interrupt-handler-context variant of the request API
// (spec.md section 4.3's "Service-call variant" and section 6's "From
// interrupt-handler context, the service-call variant invokes the same
// dispatcher without a trap"). It is passed to a Handler and calls directly
// into the kernel's dispatch logic from inside the kernel loop, with no
// caller thread to re-attach.
type ServiceCall struct {
	k *Kernel
}

// Wakeup re-attaches target (spec.md section 4.3, WAKEUP).
func (s *ServiceCall) Wakeup(target ThreadID) {
	req := &syscall.WakeupParams{Target: int(target)}
	s.k.dispatch(req)
}

// Send enqueues a message on a mailbox from interrupt-handler context; the
// sender field of the delivered message reads NoThread, the direct
// consequence of the kernel clearing current before a service call runs
// (spec.md section 4.3: "the kernel first clears the current-thread
// pointer").
func (s *ServiceCall) Send(msgboxID int, payload []byte) int {
	req := &syscall.SendParams{MsgboxID: msgboxID, Size: len(payload), Payload: payload}
	s.k.dispatch(req)
	return req.Result
}

// GetID always returns NoThread from a service call: there is no current
// thread during interrupt-handler context.
func (s *ServiceCall) GetID() ThreadID {
	req := &syscall.GetIDParams{}
	s.k.dispatch(req)
	return ThreadID(req.Result)
}

// KMalloc allocates from the kernel memory pool from interrupt-handler
// context, used by device drivers building a message buffer before Send.
func (s *ServiceCall) KMalloc(size int) *mempool.Block {
	req := &syscall.KMallocParams{Size: size}
	s.k.dispatch(req)
	block, _ := req.Result.(*mempool.Block)
	return block
}

// KMFree returns block to the kernel memory pool from interrupt-handler
// context.
func (s *ServiceCall) KMFree(block *mempool.Block) {
	req := &syscall.KMFreeParams{Block: block}
	s.k.dispatch(req)
}
