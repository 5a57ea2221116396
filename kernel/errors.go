package kernel

import (
	"errors"
	"fmt"
)

// Sentinel errors for kernel-internal conditions, declared the way the
// teacher's eventloop/loop.go declares ErrLoopAlreadyRunning and friends —
// one var block of wrapped, comparable errors.
var (
	// ErrTableInUse is returned (and in a real build would panic, see
	// Kernel.enter) if kernel code attempts to reenter the task table while
	// already holding it. This is the Go stand-in for spec.md §5's
	// TASK_TABLE_IN_USE reentrancy guard: a bug in the kernel's own
	// layering, not a concurrency primitive.
	ErrTableInUse = errors.New("kernel: task table already in use (reentrant kernel entry)")

	// ErrSupervisorFault is returned by fault (fault.go) when task 0 itself
	// enters Faulted, and is passed up out of whichever kernel entry point
	// caused that fault (Send, Recv, Reply, Borrow, Dispatch and the kipc
	// ops). Kernel.Step never returns it. See SPEC_FULL.md §0.
	ErrSupervisorFault = errors.New("kernel: supervisor (task 0) faulted")

	// ErrNotRunning is returned by operations that require Startup to have
	// completed.
	ErrNotRunning = errors.New("kernel: not started")
)

// UserError is the kernel-internal representation of spec.md §7's "user
// errors": things a caller asked for that cannot happen, and which always
// become a fault on the caller rather than a syscall error return. It wraps
// a FaultInfo so every UserError is, syntactically, a reason to fault
// someone.
type UserError struct {
	Info FaultInfo
}

func (e *UserError) Error() string {
	return fmt.Sprintf("kernel: user error: %s", e.Info)
}

// usageError constructs a UserError carrying a SyscallUsage fault.
func usageError(kind UsageErrorKind) *UserError {
	return &UserError{Info: FaultInfo{Kind: FaultSyscallUsage, Usage: kind, Source: FaultSourceKernel}}
}

// memoryError constructs a UserError carrying a MemoryAccess fault.
func memoryError(address uint32) *UserError {
	return &UserError{Info: FaultInfo{Kind: FaultMemoryAccess, MemoryAddress: address, Source: FaultSourceKernel}}
}
