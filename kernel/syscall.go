package kernel

// Syscall operation numbers, the stable ABI the architecture layer
// translates a CPU syscall trap into, per spec.md §4.9.
const (
	SysSend           uint32 = 0
	SysRecv           uint32 = 1
	SysReply          uint32 = 2
	SysSetTimer       uint32 = 3
	SysBorrowRead     uint32 = 4
	SysBorrowWrite    uint32 = 5
	SysBorrowInfo     uint32 = 6
	SysIRQControl     uint32 = 7
	SysPanic          uint32 = 8
	SysGetTimer       uint32 = 9
	SysRefreshTaskID  uint32 = 10
	SysPost           uint32 = 11
	SysReplyFault     uint32 = 12
)

// DispatchResult carries whichever of a syscall's possible return values
// applies to the op that was actually dispatched; the architecture layer
// reads only the field(s) relevant to the op it issued.
type DispatchResult struct {
	Recv   RecvResult
	Borrow BorrowResult
	TaskId TaskId
	Timer  TimerArgs
}

// Dispatch is the single entry point the architecture layer calls on every
// syscall trap, translating a numeric op (spec.md §4.9's table) and its
// decoded Args into kernel action. Each handler returns a NextTask hint:
// NextSame (resume the caller), NextSpecific (yield directly to a named
// ready partner, the fast path for send/reply into an already-waiting
// peer), or NextReschedule (consult the scheduler).
func (k *Kernel) Dispatch(callerIdx int, op uint32, args Args) (DispatchResult, NextTask, error) {
	k.events.syscallEnter(callerIdx, op)
	defer k.events.syscallExit(callerIdx)

	switch op {
	case SysSend:
		next, err := k.Send(callerIdx, args.Send)
		return DispatchResult{}, next, err

	case SysRecv:
		next, err := k.Recv(callerIdx, args.Recv)
		// Only meaningful if the caller actually completed (Same or
		// Specific(callerIdx)); if it blocked (Reschedule), the
		// architecture layer won't resume this task to read it anyway.
		return DispatchResult{Recv: k.tasks[callerIdx].LastRecv}, next, err

	case SysReply:
		next, err := k.Reply(callerIdx, args.Reply)
		return DispatchResult{}, next, err

	case SysSetTimer:
		return k.sysSetTimer(callerIdx, args.Timer)

	case SysBorrowRead:
		args.Borrow.Kind = BorrowRead
		res, next, err := k.Borrow(callerIdx, args.Borrow)
		return DispatchResult{Borrow: res}, next, err

	case SysBorrowWrite:
		args.Borrow.Kind = BorrowWrite
		res, next, err := k.Borrow(callerIdx, args.Borrow)
		return DispatchResult{Borrow: res}, next, err

	case SysBorrowInfo:
		args.Borrow.Kind = BorrowInfo
		res, next, err := k.Borrow(callerIdx, args.Borrow)
		return DispatchResult{Borrow: res}, next, err

	case SysIRQControl:
		next, err := k.IRQControl(callerIdx, args.IRQ)
		return DispatchResult{}, next, err

	case SysPanic:
		return k.sysPanic(callerIdx, args.Panic)

	case SysGetTimer:
		return k.sysGetTimer(callerIdx)

	case SysRefreshTaskID:
		return k.sysRefreshTaskID(callerIdx, args.Refresh)

	case SysPost:
		return k.sysPost(callerIdx, args.Post)

	case SysReplyFault:
		return k.sysReplyFault(callerIdx, args.ReplyFault)

	default:
		if err := k.enter(); err != nil {
			return DispatchResult{}, NextTask{}, err
		}
		defer k.exit()
		if err := k.faultUser(callerIdx, usageError(BadSyscallNumber)); err != nil {
			return DispatchResult{}, Reschedule(), err
		}
		return DispatchResult{}, Reschedule(), nil
	}
}

func (k *Kernel) sysSetTimer(callerIdx int, args TimerArgs) (DispatchResult, NextTask, error) {
	if err := k.enter(); err != nil {
		return DispatchResult{}, NextTask{}, err
	}
	defer k.exit()

	t := k.tasks[callerIdx]
	if args.Clear {
		t.HasDeadline = false
		t.Deadline = 0
		t.TimerMask = 0
	} else {
		t.HasDeadline = true
		t.Deadline = args.Deadline
		t.TimerMask = args.Mask
	}
	return DispatchResult{}, Same(), nil
}

func (k *Kernel) sysGetTimer(callerIdx int) (DispatchResult, NextTask, error) {
	if err := k.enter(); err != nil {
		return DispatchResult{}, NextTask{}, err
	}
	defer k.exit()

	t := k.tasks[callerIdx]
	return DispatchResult{Timer: TimerArgs{Clear: !t.HasDeadline, Deadline: t.Deadline, Mask: t.TimerMask}}, Same(), nil
}

func (k *Kernel) sysPanic(callerIdx int, args PanicArgs) (DispatchResult, NextTask, error) {
	if err := k.enter(); err != nil {
		return DispatchResult{}, NextTask{}, err
	}
	defer k.exit()

	err := k.fault(callerIdx, FaultInfo{Kind: FaultPanic, PanicMessage: args.Message})
	return DispatchResult{}, Reschedule(), err
}

func (k *Kernel) sysRefreshTaskID(callerIdx int, args RefreshArgs) (DispatchResult, NextTask, error) {
	if err := k.enter(); err != nil {
		return DispatchResult{}, NextTask{}, err
	}
	defer k.exit()

	if int(args.Index) >= len(k.tasks) {
		if err := k.faultUser(callerIdx, usageError(TaskOutOfRange)); err != nil {
			return DispatchResult{}, Reschedule(), err
		}
		return DispatchResult{}, Reschedule(), nil
	}
	return DispatchResult{TaskId: k.tasks[args.Index].Id()}, Same(), nil
}

func (k *Kernel) sysPost(callerIdx int, args PostArgs) (DispatchResult, NextTask, error) {
	if err := k.enter(); err != nil {
		return DispatchResult{}, NextTask{}, err
	}
	defer k.exit()

	if int(args.Target) >= len(k.tasks) {
		if err := k.faultUser(callerIdx, usageError(TaskOutOfRange)); err != nil {
			return DispatchResult{}, Reschedule(), err
		}
		return DispatchResult{}, Reschedule(), nil
	}
	k.postNotification(int(args.Target), args.Bits)
	return DispatchResult{}, Same(), nil
}

// sysReplyFault implements reply_fault: instead of completing the task
// currently InReply to the caller with a normal response, force it
// straight into Faulted. Silently dropped under the same mismatch
// conditions as a normal reply (spec.md §4.4.3) — the sender has already
// moved on.
func (k *Kernel) sysReplyFault(callerIdx int, args ReplyFaultArgs) (DispatchResult, NextTask, error) {
	if err := k.enter(); err != nil {
		return DispatchResult{}, NextTask{}, err
	}
	defer k.exit()

	caller := k.tasks[callerIdx]
	if int(args.Sender.Index) >= len(k.tasks) {
		return DispatchResult{}, Same(), nil
	}
	sender := k.tasks[args.Sender.Index]
	if sender.Generation != args.Sender.Generation {
		return DispatchResult{}, Same(), nil
	}
	if !sender.State.IsHealthy() || sender.State.Sched.Kind != InReply || sender.State.Sched.Peer != caller.Id() {
		return DispatchResult{}, Same(), nil
	}

	info := FaultInfo{Kind: args.Kind, Usage: args.Usage}
	if err := k.fault(int(args.Sender.Index), info); err != nil {
		return DispatchResult{}, Reschedule(), err
	}
	return DispatchResult{}, Reschedule(), nil
}
