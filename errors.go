package kozos

import (
	"errors"
	"fmt"
)

// Error is a structured kernel error with enough context to tell which
// thread and which request produced it, modeled directly on the teacher
// pack's device/queue-scoped Error type.
type Error struct {
	Op       string    // request that failed (e.g. "RUN", "SEND")
	ThreadID ThreadID  // thread involved, NoThread if not applicable
	Vector   int       // interrupt vector involved, -1 if not applicable
	Code     ErrorCode // high-level error category
	Msg      string    // human-readable message
	Inner    error     // wrapped error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.ThreadID != NoThread {
		parts = append(parts, fmt.Sprintf("thread=%d", e.ThreadID))
	}
	if e.Vector >= 0 {
		parts = append(parts, fmt.Sprintf("vector=%d", e.Vector))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("kozos: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("kozos: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is compares by error code, so errors.Is(err, &Error{Code: ErrCodeTableFull})
// matches regardless of Op/ThreadID.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is a high-level error category, spanning the three classes of
// spec.md section 7: recoverable per-call codes, a thread-fatal marker, and
// a kernel-fatal marker.
type ErrorCode string

const (
	// Recoverable per-call errors (spec.md section 7, class 1).
	ErrCodeTableFull       ErrorCode = "thread table full"
	ErrCodeOutOfMemory     ErrorCode = "memory pool exhausted"
	ErrCodeInvalidThread   ErrorCode = "invalid thread id"
	ErrCodeInvalidMailbox  ErrorCode = "invalid mailbox id"
	ErrCodeInvalidPriority ErrorCode = "invalid priority"

	// ErrCodeThreadFault marks a thread-fatal termination (spec.md section
	// 7, class 2): a softerr trap from a user thread.
	ErrCodeThreadFault ErrorCode = "thread fault"

	// ErrCodeSystemDown marks a kernel-fatal halt (spec.md section 7,
	// class 3): empty ready queues at schedule time, allocator exhaustion
	// during SEND, or a duplicate mailbox receiver.
	ErrCodeSystemDown ErrorCode = "system down"
)

// NewError creates a structured error with no thread/vector context.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, ThreadID: NoThread, Vector: -1, Code: code, Msg: msg}
}

// NewThreadError creates a structured error scoped to a thread.
func NewThreadError(op string, id ThreadID, code ErrorCode, msg string) *Error {
	return &Error{Op: op, ThreadID: id, Vector: -1, Code: code, Msg: msg}
}

// NewVectorError creates a structured error scoped to an interrupt vector.
func NewVectorError(op string, vector int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, ThreadID: NoThread, Vector: vector, Code: code, Msg: msg}
}

// WrapError wraps an existing error with kozos context, preserving a nested
// *Error's code/thread/vector when re-wrapping.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ke, ok := inner.(*Error); ok {
		return &Error{
			Op:       op,
			ThreadID: ke.ThreadID,
			Vector:   ke.Vector,
			Code:     ke.Code,
			Msg:      ke.Msg,
			Inner:    ke.Inner,
		}
	}
	return &Error{Op: op, ThreadID: NoThread, Vector: -1, Code: ErrCodeInvalidThread, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code == code
	}
	return false
}
