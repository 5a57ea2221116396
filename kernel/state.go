package kernel

import "fmt"

// SchedKind enumerates the scheduling sub-states a Healthy task can be in.
// Mirrors spec.md §3's SchedState; modeled the way the teacher's
// eventloop/state.go models LoopState — an explicit enum with a String()
// method — but without atomics or CAS-based transitions, because spec.md §5
// requires the kernel to run single-threaded and non-preemptively: every
// transition happens under the caller's exclusive hold of the task table
// (see Kernel.enter), so a plain field write is correct and a
// lock-free state machine would be solving a problem this kernel doesn't
// have.
type SchedKind uint8

const (
	// Stopped is not runnable; used when a restart is requested but start
	// is deferred.
	Stopped SchedKind = iota
	// Runnable may be selected by the scheduler.
	Runnable
	// InSend is waiting to deliver a message to Peer.
	InSend
	// InReply is waiting for Peer's reply, having already delivered.
	InReply
	// InRecv is waiting to receive. If PeerSet is true the receive is
	// closed (only from Peer); otherwise it is open (from any task, or a
	// notification).
	InRecv
)

func (k SchedKind) String() string {
	switch k {
	case Stopped:
		return "Stopped"
	case Runnable:
		return "Runnable"
	case InSend:
		return "InSend"
	case InReply:
		return "InReply"
	case InRecv:
		return "InRecv"
	default:
		return "Unknown"
	}
}

// Sched is a task's scheduling sub-state, the payload of TaskState_Healthy.
type Sched struct {
	Kind SchedKind
	// Peer is meaningful for InSend, InReply, and closed InRecv.
	Peer TaskId
	// PeerSet distinguishes InRecv(Some(peer)) from InRecv(None); ignored
	// for all other Kind values.
	PeerSet bool
}

func (s Sched) String() string {
	switch s.Kind {
	case InSend, InReply:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Peer)
	case InRecv:
		if s.PeerSet {
			return fmt.Sprintf("InRecv(Some(%s))", s.Peer)
		}
		return "InRecv(None)"
	default:
		return s.Kind.String()
	}
}

// SchedRunnable is the zero-argument Runnable sched state.
var SchedRunnable = Sched{Kind: Runnable}

// SchedStopped is the zero-argument Stopped sched state.
var SchedStopped = Sched{Kind: Stopped}

// SchedInSend returns the InSend(peer) sched state.
func SchedInSend(peer TaskId) Sched { return Sched{Kind: InSend, Peer: peer} }

// SchedInReply returns the InReply(peer) sched state.
func SchedInReply(peer TaskId) Sched { return Sched{Kind: InReply, Peer: peer} }

// SchedInRecvClosed returns the InRecv(Some(peer)) sched state.
func SchedInRecvClosed(peer TaskId) Sched {
	return Sched{Kind: InRecv, Peer: peer, PeerSet: true}
}

// SchedInRecvOpen returns the InRecv(None) sched state.
var SchedInRecvOpen = Sched{Kind: InRecv}

// FaultSource identifies where a fault was detected.
type FaultSource uint8

const (
	FaultSourceUser FaultSource = iota
	FaultSourceKernel
)

// UsageErrorKind enumerates the "user error" taxonomy of spec.md §7: things
// the caller asked for that cannot happen.
type UsageErrorKind uint8

const (
	BadKernelMessage UsageErrorKind = iota
	TaskOutOfRange
	IllegalTask
	BadSyscallNumber
	BadBorrowIndex
	UnalignedAccess
)

func (k UsageErrorKind) String() string {
	switch k {
	case BadKernelMessage:
		return "BadKernelMessage"
	case TaskOutOfRange:
		return "TaskOutOfRange"
	case IllegalTask:
		return "IllegalTask"
	case BadSyscallNumber:
		return "BadSyscallNumber"
	case BadBorrowIndex:
		return "BadBorrowIndex"
	case UnalignedAccess:
		return "UnalignedAccess"
	default:
		return "Unknown"
	}
}

// FaultInfo is the payload of TaskState_Faulted, modeling spec.md §7's two
// fault taxonomies as they land in a task record (as opposed to how they
// surface to a caller, which is UserError, see errors.go).
type FaultInfo struct {
	Kind FaultInfoKind
	// Usage is populated when Kind == FaultSyscallUsage.
	Usage UsageErrorKind
	// MemoryAddress is populated when Kind == FaultMemoryAccess.
	MemoryAddress uint32
	// Source distinguishes a user-detected condition (e.g. CPU MMU fault)
	// from one the kernel itself detected while servicing a syscall.
	Source FaultSource
	// Injector is populated when Kind == FaultInjected.
	Injector TaskId
	// PanicMessage is populated when Kind == FaultPanic.
	PanicMessage string
}

// FaultInfoKind enumerates the ways a task can come to be Faulted, per
// spec.md §4.7.
type FaultInfoKind uint8

const (
	FaultMemoryAccess FaultInfoKind = iota
	FaultSyscallUsage
	FaultPanic
	FaultInjected
)

func (k FaultInfoKind) String() string {
	switch k {
	case FaultMemoryAccess:
		return "MemoryAccess"
	case FaultSyscallUsage:
		return "SyscallUsage"
	case FaultPanic:
		return "Panic"
	case FaultInjected:
		return "Injected"
	default:
		return "Unknown"
	}
}

func (f FaultInfo) String() string {
	switch f.Kind {
	case FaultMemoryAccess:
		return fmt.Sprintf("MemoryAccess{address=%#x}", f.MemoryAddress)
	case FaultSyscallUsage:
		return fmt.Sprintf("SyscallUsage(%s)", f.Usage)
	case FaultPanic:
		return fmt.Sprintf("Panic(%q)", f.PanicMessage)
	case FaultInjected:
		return fmt.Sprintf("Injected(%s)", f.Injector)
	default:
		return "Unknown"
	}
}

// TaskStateKind discriminates the TaskState sum type.
type TaskStateKind uint8

const (
	TaskHealthy TaskStateKind = iota
	TaskFaulted
)

// TaskState is spec.md §3's TaskState: Healthy(sched) | Faulted(info,
// prior_sched).
type TaskState struct {
	Kind  TaskStateKind
	Sched Sched // meaningful when Kind == TaskHealthy, or as PriorSched when Faulted
	Fault FaultInfo
}

func (s TaskState) String() string {
	switch s.Kind {
	case TaskHealthy:
		return fmt.Sprintf("Healthy(%s)", s.Sched)
	case TaskFaulted:
		return fmt.Sprintf("Faulted(%s, prior=%s)", s.Fault, s.Sched)
	default:
		return "Unknown"
	}
}

// Healthy constructs a Healthy(sched) TaskState.
func Healthy(sched Sched) TaskState {
	return TaskState{Kind: TaskHealthy, Sched: sched}
}

// Faulted constructs a Faulted(info, priorSched) TaskState.
func Faulted(info FaultInfo, priorSched Sched) TaskState {
	return TaskState{Kind: TaskFaulted, Fault: info, Sched: priorSched}
}

// IsHealthy reports whether the state is Healthy.
func (s TaskState) IsHealthy() bool { return s.Kind == TaskHealthy }

// IsFaulted reports whether the state is Faulted.
func (s TaskState) IsFaulted() bool { return s.Kind == TaskFaulted }
