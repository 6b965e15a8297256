// Package syscall models the kernel's system-call parameter blocks as a
// tagged sum type: one struct per request tag, each carrying its inputs and
// a Result field the dispatcher fills in before the caller resumes. This is
// the typed reimplementation spec.md section 9 calls for in place of the
// original's C union of parameter structs.
package syscall

// Tag identifies which system call a Request carries.
type Tag int

const (
	Run Tag = iota
	Exit
	Wait
	Sleep
	Wakeup
	GetID
	ChPri
	KMalloc
	KMFree
	Send
	Recv
	SetIntr

	// SoftErr is not part of the user-visible request API (spec.md
	// section 4.3 lists twelve request tags); it is routed through the
	// same trap channel as any other request so a thread-fatal panic is
	// handled by the single kernel loop with no separate code path.
	SoftErr
)

func (t Tag) String() string {
	switch t {
	case Run:
		return "RUN"
	case Exit:
		return "EXIT"
	case Wait:
		return "WAIT"
	case Sleep:
		return "SLEEP"
	case Wakeup:
		return "WAKEUP"
	case GetID:
		return "GETID"
	case ChPri:
		return "CHPRI"
	case KMalloc:
		return "KMALLOC"
	case KMFree:
		return "KMFREE"
	case Send:
		return "SEND"
	case Recv:
		return "RECV"
	case SetIntr:
		return "SETINTR"
	case SoftErr:
		return "SOFTERR"
	default:
		return "UNKNOWN"
	}
}

// Request is implemented by every per-tag parameter struct.
type Request interface {
	Tag() Tag
}

// RunParams carries RUN's inputs and result (spec.md section 4.3).
type RunParams struct {
	Name      string
	Priority  int
	StackSize int
	Entry     any // ttable.ThreadFunc; typed any to avoid an import cycle
	Argc      int
	Argv      []string

	Result int // new thread id, or -1 if the table is full
}

func (RunParams) Tag() Tag { return Run }

// ExitParams carries EXIT's (empty) inputs; it has no result.
type ExitParams struct{}

func (ExitParams) Tag() Tag { return Exit }

// WaitParams carries WAIT's (empty) inputs and its fixed result.
type WaitParams struct {
	Result int // always 0
}

func (WaitParams) Tag() Tag { return Wait }

// SleepParams carries SLEEP's (empty) inputs and its fixed result.
type SleepParams struct {
	Result int // always 0
}

func (SleepParams) Tag() Tag { return Sleep }

// WakeupParams carries WAKEUP's target thread id.
type WakeupParams struct {
	Target int

	Result int // always 0
}

func (WakeupParams) Tag() Tag { return Wakeup }

// GetIDParams carries GETID's (empty) inputs and result.
type GetIDParams struct {
	Result int // caller's own thread id
}

func (GetIDParams) Tag() Tag { return GetID }

// ChPriParams carries CHPRI's new priority and the previous one as result.
type ChPriParams struct {
	NewPriority int

	Result int // previous priority
}

func (ChPriParams) Tag() Tag { return ChPri }

// KMallocParams carries KMALLOC's requested size and the resulting handle.
type KMallocParams struct {
	Size int

	Result any // *mempool.Block, or nil on exhaustion; typed any to avoid an import cycle
}

func (KMallocParams) Tag() Tag { return KMalloc }

// KMFreeParams carries KMFREE's block handle.
type KMFreeParams struct {
	Block any // *mempool.Block

	Result int // always 0
}

func (KMFreeParams) Tag() Tag { return KMFree }

// SendParams carries SEND's mailbox id, payload, and the size echoed back.
type SendParams struct {
	MsgboxID int
	Size     int
	Payload  []byte

	Result int // size, echoed back to the sender
}

func (SendParams) Tag() Tag { return Send }

// RecvParams carries RECV's mailbox id and the delivered message.
type RecvParams struct {
	MsgboxID int

	ResultSenderID int    // sender's thread id, or -1 if blocked (never observed)
	ResultSize     int
	ResultPayload  []byte
}

func (RecvParams) Tag() Tag { return Recv }

// SetIntrParams carries SETINTR's vector type and handler.
type SetIntrParams struct {
	Vector  int
	Handler any // kozos.Handler; typed any to avoid an import cycle

	Result int // always 0
}

func (SetIntrParams) Tag() Tag { return SetIntr }

// FaultParams carries the recovered panic value for a thread-fatal
// termination (spec.md section 4.7: "a softerr vector is installed so that
// CPU traps from illegal instructions in a user thread terminate that
// thread"). It has no result: the thread is terminated, not resumed.
type FaultParams struct {
	Cause any
}

func (FaultParams) Tag() Tag { return SoftErr }
