package kozos

import (
	"bytes"

	"github.com/bobchin/kozos/internal/logging"
	"github.com/bobchin/kozos/internal/platform"
	"github.com/bobchin/kozos/internal/ttable"
)

// TestKernel bundles a booted Kernel with the in-memory collaborators tests
// need to assert against: what the console printed and what the logger
// emitted. It is the synchronous test harness promised by spec.md's ambient
// test tooling, modeled on the teacher pack's MockBackend: a double that
// tracks everything a test might want to check instead of touching a real
// stream or device.
type TestKernel struct {
	*Kernel
	Console *platform.BufferConsole
	Logs    *bytes.Buffer
}

// NewTestKernel boots a Kernel with a BufferConsole and an in-memory debug
// logger, running idle as the bootstrap thread. Callers typically have idle
// spawn the scenario's worker threads and signal a completion channel so
// the test goroutine can block until the scenario has run to a stable
// point, since only one thread is ever unblocked at a time in this kernel's
// single-dispatch-token model — there is no inherent race to wait out.
func NewTestKernel(idle ttable.ThreadFunc, overrides Options) *TestKernel {
	console := platform.NewBufferConsole()
	logs := &bytes.Buffer{}
	logger := logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Format: "text", Output: logs})

	opts := overrides
	opts.Console = console
	opts.Logger = logger

	k := Boot(idle, opts)
	return &TestKernel{Kernel: k, Console: console, Logs: logs}
}
