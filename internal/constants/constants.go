// Package constants holds the fixed sizes and table bounds that the
// original KozOS kernel compiled in at build time (THREAD_NUM, PRIORITY_NUM,
// MSGBOX_ID_NUM, SOFTVEC_TYPE_NUM, ...). They are kept as untyped constants
// here, the same way the teacher pack keeps its device defaults in one
// place, so every package that needs a table bound imports one source of
// truth instead of re-declaring magic numbers.
package constants

// Thread table bounds (spec.md section 3: "typical capacity: 6").
const (
	// ThreadNum is the number of TCB slots in the fixed thread table.
	ThreadNum = 6

	// ThreadNameSize is the maximum number of visible characters in a
	// thread name (original: char name[THREAD_NAME_SIZE+1]).
	ThreadNameSize = 15

	// PriorityNum is the number of fixed priority levels; 0 is highest
	// and also denotes an interrupt-disabled thread.
	PriorityNum = 16

	// IdlePriority is the reserved interrupt-disabled priority level.
	IdlePriority = 0

	// DefaultStackSize is used when a caller does not override it.
	DefaultStackSize = 0x200
)

// Mailbox ID space (spec.md section 6: "a fixed small set").
const (
	MsgboxIDMsgbox1 = iota
	MsgboxIDMsgbox2
	MsgboxIDNum
)

// VectorType identifies a software interrupt vector: the syscall trap, the
// softerr trap, or a user-registered device vector (spec.md section 6).
type VectorType int

const (
	VectorSyscall VectorType = iota
	VectorSoftErr
	// VectorDeviceBase is the first vector slot available to SETINTR for
	// user/device handlers.
	VectorDeviceBase
)

// VectorNum bounds the interrupt handler table.
const VectorNum = 16

// Default memory-pool size classes in bytes: segregated free lists over a
// bump-carved arena (spec.md section 4.5). Small classes, sized for message
// buffer headers and short kmalloc'd strings, mirror the embedded target's
// "bounded" pool rather than the teacher's disk-I/O-sized buffer pool.
var DefaultPoolClasses = []int{16, 32, 64, 128, 256, 512}

// DefaultPoolArenaSize is the total bytes carved across all size classes
// before the pool reports exhaustion.
const DefaultPoolArenaSize = 16 * 1024
