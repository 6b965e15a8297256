// Package kozos is a single-CPU preemptive multitasking kernel, reimplemented
// as an in-process Go scheduler: one goroutine (the kernel loop) serializes
// every mutation of thread-table, ready-queue, mailbox, and memory-pool
// state, playing the role the original hardware's interrupt-disable
// discipline plays in the C source this module is ported from. "Threads"
// are goroutines that only run while holding the kernel's single dispatch
// token; everything else is parked on its own resume channel.
package kozos

import (
	"fmt"
	"time"

	"github.com/bobchin/kozos/internal/constants"
	"github.com/bobchin/kozos/internal/logging"
	"github.com/bobchin/kozos/internal/mailbox"
	"github.com/bobchin/kozos/internal/mempool"
	"github.com/bobchin/kozos/internal/platform"
	"github.com/bobchin/kozos/internal/syscall"
	"github.com/bobchin/kozos/internal/ttable"
)

// ThreadID identifies a thread, aliasing the thread-table's ID type so
// callers never need to import internal/ttable directly.
type ThreadID = ttable.ThreadID

// NoThread is the sentinel returned where the original kernel would return
// a null TCB pointer.
const NoThread = ttable.NoThread

// Handler is a device-interrupt handler installed via SetIntr. It runs
// synchronously inside the kernel loop with current cleared, and may issue
// service calls through sc.
type Handler func(sc *ServiceCall, vector int)

// Kernel is the kernel singleton: the thread table, mailboxes, memory pool,
// handler table, and the single dispatch loop that serializes all of it.
// Spec.md section 9 calls consolidating this state in one handle "the
// natural shape" for a language with strict aliasing rules; this is that
// handle.
type Kernel struct {
	table     *ttable.Table
	mailboxes *mailbox.Table
	pool      *mempool.Pool
	handlers  [constants.VectorNum]Handler

	console  platform.Console
	logger   *logging.Logger
	metrics  *Metrics
	observer Observer

	trapCh      chan *ttable.TCB
	interruptCh chan int

	down       chan struct{}
	downClosed bool

	// lastErr is the structured form of the most recent recoverable,
	// thread-fatal, or kernel-fatal error (spec.md section 7's three
	// classes), written only from the loop goroutine.
	lastErr *Error
}

// New builds a Kernel from Options, applying DefaultOptions for any unset
// field, but does not boot it — call Boot to create the idle thread and
// start the dispatch loop.
func New(opts Options) *Kernel {
	opts = opts.withDefaults()
	pool := mempool.New(opts.PoolClasses, opts.PoolArenaSize)
	k := &Kernel{
		table:       ttable.New(opts.ThreadCapacity, opts.Priorities),
		mailboxes:   mailbox.New(opts.Mailboxes, pool),
		pool:        pool,
		console:     opts.Console,
		logger:      opts.Logger,
		metrics:     NewMetrics(),
		observer:    opts.Observer,
		trapCh:      make(chan *ttable.TCB),
		interruptCh: make(chan int),
		down:        make(chan struct{}),
	}
	return k
}

// Boot creates the idle thread with the given entry point and starts the
// kernel loop, reproducing the original's kz_start: "initializes tables,
// creates first thread, performs first dispatch" (spec.md section 2). The
// idle thread is created at priority 0 (interrupt-disabled); per the
// startup sequence in original_source/src/12/os/main.c, the idle entry is
// expected to spawn worker threads and then call ChPri to a non-zero
// priority before parking.
func Boot(idle ttable.ThreadFunc, opts Options) *Kernel {
	k := New(opts)
	id := k.table.AllocSlot("idle", constants.IdlePriority, ttable.InitTriple{Entry: idle})
	tcb := k.table.Get(id)
	k.table.AttachThread(tcb)
	k.spawnThread(tcb)
	go k.loop()
	return k
}

// Metrics returns the kernel's built-in metrics collector.
func (k *Kernel) Metrics() *Metrics { return k.metrics }

// LastError returns the structured form of the most recent recoverable,
// thread-fatal, or kernel-fatal error (spec.md section 7), or nil if none
// has occurred yet.
func (k *Kernel) LastError() *Error { return k.lastErr }

// Down returns a channel that is closed when the kernel enters system-down.
func (k *Kernel) Down() <-chan struct{} { return k.down }

// Interrupt simulates a device interrupt firing on vector, the external
// trigger for a registered SetIntr handler. It blocks until the kernel loop
// has accepted the vector, not until the handler has run (or the kernel is
// down, in which case it returns immediately without effect — a downed
// kernel no longer services interrupts).
func (k *Kernel) Interrupt(vector int) {
	select {
	case k.interruptCh <- vector:
	case <-k.down:
	}
}

// spawnThread starts tcb's goroutine. It parks on Resume before running the
// thread's entry point, the Go-native form of "primed but not yet
// dispatched"; on the entry function's return it issues EXIT, mirroring the
// original's startup trampoline invoking EXIT on the thread body's return
// (spec.md section 4.6).
func (k *Kernel) spawnThread(tcb *ttable.TCB) {
	go func() {
		<-tcb.Resume
		handle := &Thread{k: k, tcb: tcb}
		faulted := false
		func() {
			defer func() {
				if r := recover(); r != nil {
					faulted = true
					tcb.Pending = &syscall.FaultParams{Cause: r}
					k.trapCh <- tcb
				}
			}()
			tcb.Init.Entry(handle, tcb.Init.Argc, tcb.Init.Argv)
		}()
		if !faulted {
			handle.Exit()
		}
	}()
}

// loop is the kernel's single serializing goroutine: the Go-native
// "interrupts disabled, no in-kernel locks needed" discipline of spec.md
// section 5. Only this goroutine ever mutates table/mailboxes/pool state.
func (k *Kernel) loop() {
	k.redispatch()
	for !k.isDown() {
		var intr chan int
		if cur := k.table.Current(); cur == nil || cur.Priority != constants.IdlePriority {
			intr = k.interruptCh
		}

		select {
		case tcb := <-k.trapCh:
			start := time.Now()
			k.table.Detach()
			req := tcb.Pending
			k.dispatch(req)
			k.observer.ObserveDispatch(int(req.Tag()), uint64(time.Since(start)))
			k.redispatch()
		case vec := <-intr:
			k.table.ClearCurrent()
			h := k.handlers[vec]
			if h != nil {
				h(&ServiceCall{k: k}, vec)
			}
			k.redispatch()
		}
	}
}

func (k *Kernel) isDown() bool {
	select {
	case <-k.down:
		return true
	default:
		return false
	}
}

// redispatch runs the scheduler (spec.md section 4.2) and resumes the
// chosen thread. An empty ready set triggers system-down.
func (k *Kernel) redispatch() {
	k.metrics.RecordReadyDepth(k.table.ReadyCount())
	next, ok := k.table.Schedule()
	if !ok {
		k.systemDown("no runnable thread", nil)
		return
	}
	next.Resume <- struct{}{}
}

// systemDown enters the kernel-fatal halt of spec.md section 4.7: prints
// "system error!" and stops servicing any further traps or interrupts.
// cause, if non-nil, is the recoverable *Error that escalated into this
// halt (e.g. allocator exhaustion during SEND); it is preserved in the
// resulting LastError via WrapError rather than replaced, so the root
// cause's code survives alongside the kernel-fatal context.
func (k *Kernel) systemDown(reason string, cause error) {
	if k.downClosed {
		return
	}
	k.downClosed = true
	if cause != nil {
		k.lastErr = WrapError("SYSTEM", cause)
	} else {
		k.lastErr = NewError("SYSTEM", ErrCodeSystemDown, reason)
	}
	k.console.Puts("system error!")
	k.logger.WithError(k.lastErr).SystemDown(reason)
	k.observer.ObserveSystemDown(reason)
	close(k.down)
}

// dispatch decodes a tagged request and mutates kernel state, the
// reimplementation of spec.md section 4.3's call_functions switch. It reads
// the calling thread, if any, via k.table.Current(): non-nil for a trapped
// syscall (detached but still "current"), nil for a service call (cleared
// by the interrupt path before dispatch is reached).
func (k *Kernel) dispatch(req syscall.Request) {
	switch p := req.(type) {
	case *syscall.RunParams:
		k.doRun(p)
	case *syscall.ExitParams:
		k.doExit(p)
	case *syscall.WaitParams:
		p.Result = 0
		k.table.Attach()
	case *syscall.SleepParams:
		p.Result = 0
		// leave detached: caller remains blocked until WAKEUP or a
		// matching SEND, per spec.md section 4.3.
	case *syscall.WakeupParams:
		k.doWakeup(p)
	case *syscall.GetIDParams:
		k.doGetID(p)
	case *syscall.ChPriParams:
		k.doChPri(p)
	case *syscall.KMallocParams:
		k.doKMalloc(p)
	case *syscall.KMFreeParams:
		k.doKMFree(p)
	case *syscall.SendParams:
		k.doSend(p)
	case *syscall.RecvParams:
		k.doRecv(p)
	case *syscall.SetIntrParams:
		k.doSetIntr(p)
	case *syscall.FaultParams:
		k.doFault(p)
	default:
		panic("kozos: unknown request type dispatched")
	}
}

func (k *Kernel) doRun(p *syscall.RunParams) {
	entry, _ := p.Entry.(ttable.ThreadFunc)
	stackSize := p.StackSize
	if stackSize <= 0 {
		stackSize = constants.DefaultStackSize
	}
	id := k.table.AllocSlot(p.Name, p.Priority, ttable.InitTriple{
		Entry: entry,
		Argc:  p.Argc,
		Argv:  p.Argv,
	})
	if id == ttable.NoThread {
		p.Result = int(ttable.NoThread)
		k.metrics.TableFullHits.Add(1)
		callerID := ttable.NoThread
		if cur := k.table.Current(); cur != nil {
			callerID = cur.ID()
		}
		k.lastErr = NewThreadError("RUN", callerID, ErrCodeTableFull, "thread table full")
		k.table.Attach()
		return
	}
	newTCB := k.table.Get(id)
	k.table.AttachThread(newTCB)
	k.spawnThread(newTCB)
	p.Result = int(id)
	k.table.Attach()
}

func (k *Kernel) doExit(p *syscall.ExitParams) {
	_ = p
	cur := k.table.Current()
	if cur == nil {
		return
	}
	name := cur.Name
	k.table.FreeSlot(cur.ID())
	k.console.Puts(name + " EXIT.")
	k.logger.ThreadExit(name)
	// caller is terminated, never re-attached.
}

func (k *Kernel) doWakeup(p *syscall.WakeupParams) {
	target := k.table.Get(ttable.ThreadID(p.Target))
	if target != nil {
		k.table.AttachThread(target)
	}
	p.Result = 0
	k.table.Attach()
}

func (k *Kernel) doGetID(p *syscall.GetIDParams) {
	cur := k.table.Current()
	if cur != nil {
		p.Result = int(cur.ID())
	} else {
		p.Result = int(ttable.NoThread)
	}
	k.table.Attach()
}

func (k *Kernel) doChPri(p *syscall.ChPriParams) {
	cur := k.table.Current()
	old := -1
	if cur != nil {
		old = cur.Priority
		if p.NewPriority >= 0 {
			k.table.Requeue(cur, p.NewPriority)
		} else {
			k.table.Attach()
		}
	}
	p.Result = old
}

func (k *Kernel) doKMalloc(p *syscall.KMallocParams) {
	block := k.pool.Alloc(p.Size)
	if block == nil {
		k.metrics.OOMHits.Add(1)
		callerID := ttable.NoThread
		if cur := k.table.Current(); cur != nil {
			callerID = cur.ID()
		}
		k.lastErr = NewThreadError("KMALLOC", callerID, ErrCodeOutOfMemory, "memory pool exhausted")
		p.Result = (*mempool.Block)(nil)
	} else {
		p.Result = block
	}
	k.table.Attach()
}

func (k *Kernel) doKMFree(p *syscall.KMFreeParams) {
	if block, ok := p.Block.(*mempool.Block); ok && block != nil {
		k.pool.Free(block)
	}
	p.Result = 0
	k.table.Attach()
}

func (k *Kernel) doSend(p *syscall.SendParams) {
	cur := k.table.Current()
	senderID := ttable.NoThread
	if cur != nil {
		senderID = cur.ID()
	}
	woken, ok := k.mailboxes.Send(p.MsgboxID, senderID, p.Size, p.Payload)
	if !ok {
		oom := NewThreadError("SEND", senderID, ErrCodeOutOfMemory, "memory pool exhausted during SEND")
		k.systemDown("memory pool exhausted during SEND", oom)
		return
	}
	if woken != nil {
		k.table.AttachThread(woken)
	}
	p.Result = p.Size
	k.table.Attach()
}

func (k *Kernel) doRecv(p *syscall.RecvParams) {
	cur := k.table.Current()
	delivery, delivered, duplicate := k.mailboxes.Recv(p.MsgboxID, cur)
	if duplicate {
		callerID := ttable.NoThread
		if cur != nil {
			callerID = cur.ID()
		}
		dup := NewThreadError("RECV", callerID, ErrCodeSystemDown, "duplicate mailbox receiver")
		k.systemDown("duplicate mailbox receiver", dup)
		return
	}
	if delivered {
		p.ResultSenderID = int(delivery.SenderID)
		p.ResultSize = delivery.Size
		p.ResultPayload = delivery.Payload
		k.table.Attach()
		return
	}
	// Blocked: left detached. The result slot's sentinel is never observed
	// by the thread before a matching SEND overwrites it (spec.md section
	// 9, Open question).
	p.ResultSenderID = int(ttable.NoThread)
}

func (k *Kernel) doSetIntr(p *syscall.SetIntrParams) {
	if fn, ok := p.Handler.(Handler); ok {
		k.handlers[p.Vector] = fn
	}
	p.Result = 0
	k.table.Attach()
}

// doFault terminates the calling thread the way a softerr trap does
// (spec.md section 4.7, section 7 class 2): a panic inside a thread's entry
// function stands in for "a trap from a user thread (illegal instruction,
// access violation)" on real hardware. It names the thread on the console
// and frees its slot rather than bringing down the kernel — the precise
// behavior spec.md section 8 scenario 5 requires.
func (k *Kernel) doFault(p *syscall.FaultParams) {
	cur := k.table.Current()
	if cur == nil {
		return
	}
	name := cur.Name
	id := cur.ID()
	k.table.FreeSlot(id)
	k.console.Puts(name + " DOWN.")
	k.logger.ThreadFault(name)
	k.observer.ObserveThreadFault(id)

	faultErr := NewThreadError("FAULT", id, ErrCodeThreadFault, name+" DOWN.")
	if cause, ok := p.Cause.(error); ok {
		faultErr.Inner = cause
	} else if p.Cause != nil {
		faultErr.Inner = fmt.Errorf("%v", p.Cause)
	}
	k.lastErr = faultErr
	// caller is terminated, never re-attached.
}
