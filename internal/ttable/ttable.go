// Package ttable is the kernel's thread table: a fixed-capacity array of
// thread control blocks (TCBs) plus one FIFO ready queue per priority level.
// It implements the detach-current/attach-current discipline of the ready
// queue (one TCB reachable from at most one queue at a time) the same way
// the teacher pack's internal/queue.Runner owns per-tag state transitions
// behind a small, single-purpose table type instead of scattering mutable
// fields across the caller.
package ttable

import (
	"fmt"

	"github.com/bobchin/kozos/internal/constants"
	"github.com/bobchin/kozos/internal/syscall"
)

// ThreadID identifies a TCB slot. The zero value is slot 0, a valid thread
// once populated, so callers distinguish "no thread" with the comparable
// NoThread constant.
type ThreadID int

// NoThread is the sentinel ID returned where the original kernel would
// return a null TCB pointer (e.g. RUN with no free slot).
const NoThread ThreadID = -1

// ThreadHandle is the minimal view of a running thread that an entry
// function needs. It exists to break the import cycle between this package
// (which TCB.Init.Entry must reference) and the root kernel package, which
// defines the full request-API type implementing ThreadHandle.
type ThreadHandle interface {
	ID() ThreadID
}

// ThreadFunc is a thread's entry point, the Go analogue of the original
// kernel's void (*)(int argc, char *argv[]) thread body.
type ThreadFunc func(h ThreadHandle, argc int, argv []string)

// InitTriple is the startup information captured at RUN time: entry point,
// argc, argv. The original calls this "init" in the TCB.
type InitTriple struct {
	Entry ThreadFunc
	Argc  int
	Argv  []string
}

// TCB is one thread control block. Fields mirror spec.md section 3 with the
// stack-bump and saved-stack-pointer fields replaced by a goroutine resume
// channel: in this Go-native reimplementation a "dispatch" is unblocking the
// owning goroutine rather than restoring a stack pointer.
type TCB struct {
	id       ThreadID
	Name     string
	Priority int
	Ready    bool
	Init     InitTriple

	// Pending is the request parked in this TCB while it is blocked inside
	// the kernel processing a syscall, mirroring the original's syscall
	// tag+pointer pair.
	Pending syscall.Request

	// Resume is the rendezvous the kernel dispatcher signals to let this
	// thread's goroutine proceed; it is the Go-native "saved_sp is valid"
	// moment.
	Resume chan struct{}

	// done is closed by FreeSlot when the slot is reclaimed. Nothing in
	// this module waits on it.
	done chan struct{}
}

// ID returns the TCB's slot ID, satisfying ThreadHandle.
func (t *TCB) ID() ThreadID { return t.id }

// free reports whether this slot holds no live thread (spec.md section 3:
// "A TCB slot is free iff its init.entry_function is the null value").
func (t *TCB) free() bool { return t.Init.Entry == nil }

// readyQueue is a strict FIFO of ready TCBs at one priority level.
type readyQueue struct {
	items []*TCB
}

func (q *readyQueue) pushBack(t *TCB) {
	q.items = append(q.items, t)
}

func (q *readyQueue) front() *TCB {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *readyQueue) popFront() *TCB {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t
}

// removeFront removes t from the head of the queue if it is there. It is an
// error (caught by the caller) for a ready TCB to be anywhere but the head,
// per spec.md section 4.1: "it is guaranteed to be at the head by
// construction".
func (q *readyQueue) removeFront(t *TCB) bool {
	if len(q.items) == 0 || q.items[0] != t {
		return false
	}
	q.items = q.items[1:]
	return true
}

func (q *readyQueue) len() int { return len(q.items) }

// removeAny removes t from wherever it sits in the queue. Only FreeSlot
// uses this: a normal EXIT always targets the already-detached current
// thread, but a TCB can in principle be reclaimed out of band (a thread
// killed by an outside supervisor, or a test harness exercising the table
// directly), and the queue must not be left holding a stale pointer into a
// reused slot.
func (q *readyQueue) removeAny(t *TCB) bool {
	for i, item := range q.items {
		if item == t {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Table is the kernel's thread table: fixed TCB slots plus one ready queue
// per priority, and the current-thread pointer.
type Table struct {
	slots    []TCB
	readyque []readyQueue
	current  *TCB
}

// New builds a Table with the given slot capacity and priority count.
func New(capacity, priorities int) *Table {
	return &Table{
		slots:    make([]TCB, capacity),
		readyque: make([]readyQueue, priorities),
	}
}

// NewDefault builds a Table using spec.md's canonical sizes.
func NewDefault() *Table {
	return New(constants.ThreadNum, constants.PriorityNum)
}

// Current returns the currently running TCB, or nil between start and the
// first dispatch (spec.md section 3: "non-null between the first dispatch
// and system shutdown; it is null only during start").
func (tb *Table) Current() *TCB { return tb.current }

// ReadyCount returns the total number of TCBs linked into any ready queue,
// used to check the property-level invariant in spec.md section 8: "the
// number of READY-flagged TCBs equals the total size of all ready queues."
func (tb *Table) ReadyCount() int {
	n := 0
	for i := range tb.readyque {
		n += tb.readyque[i].len()
	}
	return n
}

// AllocSlot finds a free TCB slot, populates it, and returns its ID. It
// returns NoThread if the table is full, the Go-native form of RUN
// returning -1 in spec.md section 4.3.
func (tb *Table) AllocSlot(name string, priority int, init InitTriple) ThreadID {
	for i := range tb.slots {
		if tb.slots[i].free() {
			if len(name) > constants.ThreadNameSize {
				name = name[:constants.ThreadNameSize]
			}
			tb.slots[i] = TCB{
				id:       ThreadID(i),
				Name:     name,
				Priority: priority,
				Init:     init,
				Resume:   make(chan struct{}),
				done:     make(chan struct{}),
			}
			return ThreadID(i)
		}
	}
	return NoThread
}

// Get returns the TCB for id, or nil if id is out of range or the slot is
// free.
func (tb *Table) Get(id ThreadID) *TCB {
	if id < 0 || int(id) >= len(tb.slots) {
		return nil
	}
	t := &tb.slots[id]
	if t.free() {
		return nil
	}
	return t
}

// FreeSlot zeroes a TCB, reclaiming its slot (spec.md section 4.3, EXIT:
// "Zeroes current TCB (slot freed; init.func=null)"). The slot's stack
// allocation, if any, is never reclaimed, per spec.md section 3.
func (tb *Table) FreeSlot(id ThreadID) {
	t := tb.Get(id)
	if t == nil {
		return
	}
	if t.Ready {
		tb.readyque[t.Priority].removeAny(t)
		t.Ready = false
	}
	if tb.current == t {
		tb.current = nil
	}
	close(t.done)
	tb.slots[id] = TCB{}
}

// ClearCurrent nulls the current-thread pointer without touching any ready
// queue, the service-call entry step of spec.md section 4.3: "the kernel
// first clears the current-thread pointer so handlers that read it
// (notably SEND's sender field) see null rather than a stale thread." The
// previously-current TCB remains linked in its ready queue exactly as
// before; Schedule re-establishes current once the handler returns.
func (tb *Table) ClearCurrent() {
	tb.current = nil
}

// Detach implements detach-current (spec.md section 4.1): if current is
// Ready, unlink it from the head of its priority queue and clear Ready. It
// panics if current is nil, mirroring "Fails only if current is null" —
// callers must never invoke a syscall handler without a current thread.
func (tb *Table) Detach() {
	if tb.current == nil {
		panic("ttable: detach-current with no current thread")
	}
	t := tb.current
	if !t.Ready {
		return
	}
	q := &tb.readyque[t.Priority]
	if !q.removeFront(t) {
		panic(fmt.Sprintf("ttable: thread %q not at head of priority %d queue", t.Name, t.Priority))
	}
	t.Ready = false
}

// Attach implements attach-current (spec.md section 4.1): if current is not
// Ready, append it to the tail of its priority queue. Idempotent. A nil
// current (the service-call case, where the kernel clears current before
// dispatching) is a silent no-op — this is exactly the mechanism by which a
// handler invoked from interrupt-handler context needs no special case to
// skip "re-attach the caller": there is no caller to re-attach.
func (tb *Table) Attach() {
	if tb.current == nil {
		return
	}
	tb.attach(tb.current)
}

// AttachThread appends an arbitrary (non-current) TCB to its priority
// queue's tail, used by WAKEUP and by SEND's receiver re-attach.
func (tb *Table) AttachThread(t *TCB) {
	tb.attach(t)
}

func (tb *Table) attach(t *TCB) {
	if t.Ready {
		return
	}
	tb.readyque[t.Priority].pushBack(t)
	t.Ready = true
}

// Requeue moves t to the tail of a possibly-new priority's queue, used by
// CHPRI: detach from the old queue (if linked) and attach under the new
// priority.
func (tb *Table) Requeue(t *TCB, newPriority int) {
	if t.Ready {
		q := &tb.readyque[t.Priority]
		q.removeFront(t)
		t.Ready = false
	}
	t.Priority = newPriority
	tb.attach(t)
}

// Schedule selects the next thread to run: the head of the lowest-numbered
// non-empty priority queue (spec.md section 4.2). It does NOT unlink the
// selected thread — the original's schedule() sets current = readyque[i].head
// without removing it from the queue; a running thread stays linked until a
// syscall detaches it. Schedule reports ok=false when every queue is empty,
// the system-down condition.
func (tb *Table) Schedule() (t *TCB, ok bool) {
	for i := range tb.readyque {
		if head := tb.readyque[i].front(); head != nil {
			tb.current = head
			return head, true
		}
	}
	tb.current = nil
	return nil, false
}
