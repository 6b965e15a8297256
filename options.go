package kozos

import (
	"github.com/bobchin/kozos/internal/constants"
	"github.com/bobchin/kozos/internal/logging"
	"github.com/bobchin/kozos/internal/platform"
)

// Options configures a Kernel, mirroring the teacher pack's
// DeviceParams/Options split: capacity and behavior knobs plus the
// collaborator implementations (Console, Logger, Observer) to wire in.
type Options struct {
	// ThreadCapacity is the number of TCB slots (spec.md section 3:
	// "typical capacity: 6").
	ThreadCapacity int

	// Priorities is the number of priority levels (spec.md section 3:
	// PRIORITY_NUM, 16).
	Priorities int

	// PoolClasses are the memory pool's size classes in bytes.
	PoolClasses []int

	// PoolArenaSize is the total arena size backing all size classes.
	PoolArenaSize int

	// Mailboxes is the number of mailbox IDs (spec.md section 6:
	// MSGBOX_ID_NUM).
	Mailboxes int

	Console  platform.Console
	Logger   *logging.Logger
	Observer Observer
}

// DefaultOptions returns the canonical H8-reminiscent sizing from spec.md
// section 3: 6 TCB slots, 16 priorities, the default memory-pool shape, and
// two mailboxes.
func DefaultOptions() Options {
	return Options{
		ThreadCapacity: constants.ThreadNum,
		Priorities:     constants.PriorityNum,
		PoolClasses:    constants.DefaultPoolClasses,
		PoolArenaSize:  constants.DefaultPoolArenaSize,
		Mailboxes:      constants.MsgboxIDNum,
		Console:        platform.NewStdConsole(nil),
		Logger:         logging.Default(),
		Observer:       NoOpObserver{},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ThreadCapacity <= 0 {
		o.ThreadCapacity = d.ThreadCapacity
	}
	if o.Priorities <= 0 {
		o.Priorities = d.Priorities
	}
	if len(o.PoolClasses) == 0 {
		o.PoolClasses = d.PoolClasses
	}
	if o.PoolArenaSize <= 0 {
		o.PoolArenaSize = d.PoolArenaSize
	}
	if o.Mailboxes <= 0 {
		o.Mailboxes = d.Mailboxes
	}
	if o.Console == nil {
		o.Console = d.Console
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.Observer == nil {
		o.Observer = d.Observer
	}
	return o
}
