package kernel

import "github.com/oxidecomputer/gokernel/abi"

// MaxLeases is the lease-count limit for a single send (spec.md §4.4.4).
// Send does not check it: SendArgs.Leases and Task.Leases are slices, and a
// send's leases are kept whatever their count.
const MaxLeases = 8

// RegisterState is the architecture-specific saved register context a real
// target would hold (PC, SP, general-purpose registers). The actual layout
// is a property of the CPU the architecture layer targets and is out of
// scope for this kernel core (spec.md §1); this placeholder is enough to
// model "restart reinitializes registers and stack" (spec.md §3, §4.7).
type RegisterState struct {
	PC uint32
	SP uint32
}

// Args is the decoded argument surface for a syscall, as the architecture
// layer would have marshaled it out of the interrupted task's registers.
// Decoding raw registers into this shape is explicitly the architecture
// layer's job (spec.md §1); Dispatch (syscall.go) only ever sees this.
type Args struct {
	Send        SendArgs
	Recv        RecvArgs
	Reply       ReplyArgs
	Borrow      BorrowArgs
	Timer       TimerArgs
	IRQ         IRQCtlArgs
	Panic       PanicArgs
	Refresh     RefreshArgs
	Post        PostArgs
	ReplyFault  ReplyFaultArgs
}

// RefreshArgs is the argument surface of refresh_task_id: a task index
// whose current TaskId (post any restarts) the caller wants back, e.g.
// after observing a DEAD response and wanting to retry against the new
// generation.
type RefreshArgs struct {
	Index uint16
}

// PostArgs is the argument surface of post: a lightweight task-to-task
// notification raise, the unprivileged sibling of the IRQ bridge's
// postNotification — used when one task wants to signal another directly
// rather than through a hardware interrupt binding.
type PostArgs struct {
	Target uint16
	Bits   uint32
}

// ReplyFaultArgs is the argument surface of reply_fault: instead of
// completing the sender currently InReply to us with a normal response,
// force it directly into Faulted, as though it had been caught making a
// malformed request. The fault carries the Kind and Usage given here; no
// injector is recorded.
type ReplyFaultArgs struct {
	Sender TaskId
	Kind   FaultInfoKind
	Usage  UsageErrorKind
}

// SendArgs is the argument surface of the send syscall (spec.md §4.4.1).
type SendArgs struct {
	Target       uint16 // task table index of the intended peer
	TargetGen    abi.Generation
	Operation    uint32
	MessageBase  uint32
	MessageLen   uint32
	ResponseBase uint32
	ResponseCap  uint32
	Leases       []abi.ULease
}

// RecvArgs is the argument surface of the recv syscall (spec.md §4.4.2).
type RecvArgs struct {
	NotificationMask uint32
	FromSet          bool
	From             TaskId
	BufferBase       uint32
	BufferCap        uint32
}

// RecvResult is what a successful recv reports back to the caller.
type RecvResult struct {
	Sender      TaskId
	Operation   uint32
	MessageLen  uint32
	ResponseCap uint32
	LeaseCount  int
}

// ReplyArgs is the argument surface of the reply syscall (spec.md §4.4.3).
type ReplyArgs struct {
	Sender TaskId
	Code   uint32
	Base   uint32
	Len    uint32
}

// BorrowKind distinguishes the three lease-borrow syscalls.
type BorrowKind uint8

const (
	BorrowRead BorrowKind = iota
	BorrowWrite
	BorrowInfo
)

// BorrowArgs is the argument surface shared by borrow_read, borrow_write,
// and borrow_info (spec.md §4.4.4).
type BorrowArgs struct {
	Kind       BorrowKind
	Peer       TaskId
	LeaseIndex int
	Offset     uint32
	// Base/Len name the caller's own buffer: source for borrow_write,
	// destination for borrow_read. Ignored for borrow_info.
	Base uint32
	Len  uint32
}

// BorrowInfoResult is the response to a successful borrow_info.
type BorrowInfoResult struct {
	Attributes abi.LeaseAttributes
	Length     uint32
}

// TimerArgs is the argument surface of set_timer (spec.md §4.9).
type TimerArgs struct {
	Clear   bool // true means "cancel any pending deadline"
	Deadline uint64
	Mask    uint32
}

// IRQCtlArgs is the argument surface of irq_control (spec.md §4.6).
type IRQCtlArgs struct {
	Mask   uint32
	Enable bool
}

// PanicArgs is the argument surface of the panic syscall.
type PanicArgs struct {
	Message string
}

// TaskId is re-exported from abi for convenience within the kernel package.
type TaskId = abi.TaskId

// Task is spec.md §3's mutable task record.
type Task struct {
	Index int

	Regs RegisterState

	State TaskState

	Generation abi.Generation

	Pending    uint32
	NotifyMask uint32

	// recvBufferBase/recvBufferCap describe the buffer last passed to recv,
	// valid both while blocked in InRecv and at the instant of delivery.
	recvBufferBase uint32
	recvBufferCap  uint32

	// responseBufferBase/responseBufferCap describe the buffer a send
	// named for the eventual reply, valid for as long as this task remains
	// InReply.
	responseBufferBase uint32
	responseBufferCap  uint32

	HasDeadline bool
	Deadline    uint64
	TimerMask   uint32

	// Regions is this task's resolved region table, computed once at
	// startup (spec.md §3).
	Regions []abi.RegionDesc

	// Descriptor is the immutable, image-resident descriptor this task was
	// built from (kept for Restart to re-derive entry point/stack).
	Descriptor abi.TaskDesc

	// Leases are frozen at Send time and valid for borrowing for as long
	// as this task remains InReply to the peer that borrowed them.
	Leases []abi.ULease

	// inReplyTo records which task this task's leases were extended to.
	// Borrow does not read it; it validates the lender against
	// State.Sched.Peer instead.
	inReplyTo TaskId

	// LastRecv holds the values a successful recv/send-delivery wrote
	// for this task to observe on its next resumption: sender id,
	// operation, lengths.
	LastRecv RecvResult

	// PendingSend is set while this task is enqueued as InSend(peer),
	// holding the arguments it will hand a matching recv once a receiver
	// is ready to pair with it.
	PendingSend *SendArgs

	// ResponseCode/ResponseLen are written by reply or by a DEAD
	// completion, for the formerly-sending task to observe on resumption.
	ResponseCode uint32
	ResponseLen  uint32
}

// Id returns this task's current TaskId.
func (t *Task) Id() TaskId {
	return TaskId{Index: uint16(t.Index), Generation: t.Generation}
}

// newTask builds a Task record from its descriptor and resolved regions,
// in the Stopped state (Startup decides whether to promote to Runnable).
func newTask(index int, desc abi.TaskDesc, regions []abi.RegionDesc) *Task {
	t := &Task{
		Index:      index,
		Descriptor: desc,
		Regions:    regions,
		State:      Healthy(SchedStopped),
	}
	t.resetRegisters()
	return t
}

// resetRegisters reinitializes saved register state from the task's
// descriptor, as restart (spec.md §4.7) and startup both require.
func (t *Task) resetRegisters() {
	t.Regs = RegisterState{PC: t.Descriptor.EntryPoint, SP: t.Descriptor.InitialStack}
}
