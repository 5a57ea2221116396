package kernel

import "github.com/oxidecomputer/gokernel/abi"

// fault transitions task idx into Faulted(info, prior_sched), preserving
// its scheduling state for a debugger (spec.md §4.7), and posts the
// build-time supervisor-fault notification bit to task 0 — unless idx is
// task 0 itself, in which case there is no one left to notify and the
// kernel instead reports ErrSupervisorFault to its caller. See
// SPEC_FULL.md §0 for why that error, rather than a silent no-op, is the
// chosen handling of the spec's open question on supervisor self-fault.
// The error goes back to whoever called the kernel entry point; cmd/kernsim
// issues no syscalls, so it never receives it.
//
// fault assumes the table guard is already held; callers are always
// already inside Send/Recv/Reply/Borrow*/Dispatch, which acquired it.
func (k *Kernel) fault(idx int, info FaultInfo) error {
	t := k.tasks[idx]
	prior := t.State.Sched
	t.State = Faulted(info, prior)
	t.PendingSend = nil

	k.logFault(idx, info)

	if idx == 0 {
		return ErrSupervisorFault
	}
	k.postNotification(0, 1<<k.supervisorFaultBit)
	return nil
}

// faultUser is a convenience for the common case of faulting the caller of
// a syscall that turned out to name something illegal, wrapping a
// *UserError's FaultInfo.
func (k *Kernel) faultUser(idx int, err *UserError) error {
	return k.fault(idx, err.Info)
}

// restart implements kipc op 2 (spec.md §4.7): bump generation, clear
// notifications and timer, reinitialize registers/stack, and transition to
// Runnable or Stopped per the start flag. It also walks every other task
// and forcibly unblocks any still referencing the old generation via
// InSend/InReply/InRecv(Some), delivering a DEAD response code carrying
// that old generation — ported from
// original_source/kern/src/kipc.rs's restart_task, which performs the same
// sweep for the same reason: a peer blocked against a generation that is
// about to stop existing must never wait forever.
func (k *Kernel) restart(idx int, start bool) {
	t := k.tasks[idx]
	oldGen := t.Generation
	oldId := abi.TaskId{Index: uint16(idx), Generation: oldGen}

	t.Generation++
	t.Pending = 0
	t.NotifyMask = 0
	t.HasDeadline = false
	t.Deadline = 0
	t.TimerMask = 0
	t.Leases = nil
	t.inReplyTo = abi.TaskId{}
	t.PendingSend = nil
	t.resetRegisters()

	if start {
		t.State = Healthy(SchedRunnable)
	} else {
		t.State = Healthy(SchedStopped)
	}

	deadCode := abi.DeadResponseCode(oldGen)

	for i, other := range k.tasks {
		if i == idx || !other.State.IsHealthy() {
			continue
		}
		sched := other.State.Sched
		switch sched.Kind {
		case InSend, InReply:
			if sched.Peer == oldId {
				other.ResponseCode = deadCode
				other.ResponseLen = 0
				other.PendingSend = nil
				other.State = Healthy(SchedRunnable)
			}
		case InRecv:
			if sched.PeerSet && sched.Peer == oldId {
				other.ResponseCode = deadCode
				other.ResponseLen = 0
				other.State = Healthy(SchedRunnable)
			}
		}
	}
}
