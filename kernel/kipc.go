package kernel

import (
	"github.com/oxidecomputer/gokernel/abi/wire"
)

// Kernel-task operation codes, stable ABI per spec.md §4.8.
const (
	kipcReadTaskStatus uint32 = 1
	kipcRestartTask    uint32 = 2
	kipcFaultTask      uint32 = 3
	kipcReadImageID    uint32 = 4
)

// kipcResponseBufSize bounds the scratch buffer every kipc response is
// encoded into before being copied (and possibly truncated) into the
// caller's actual response buffer. The largest response, a serialized
// TaskState, comfortably fits in 16 bytes; this is sized generously.
const kipcResponseBufSize = 32

// sendToKernelTask implements spec.md §4.8: a send addressed to
// abi.KernelTaskId does not rendezvous with a user task. The kernel decodes
// args.Operation as a kipc op number and args.MessageBase/Len as its
// compact-encoded payload (abi/wire), and always completes the caller
// synchronously — there is no receiver to block on.
func (k *Kernel) sendToKernelTask(callerIdx int, args SendArgs) (NextTask, error) {
	payload := k.mem.ReadAt(args.MessageBase, args.MessageLen)

	switch args.Operation {
	case kipcReadTaskStatus:
		return k.kipcReadTaskStatus(callerIdx, payload, args)
	case kipcRestartTask:
		return k.kipcRestartTask(callerIdx, payload, args)
	case kipcFaultTask:
		return k.kipcFaultTask(callerIdx, payload, args)
	case kipcReadImageID:
		return k.kipcReadImageID(callerIdx, args)
	default:
		if err := k.faultUser(callerIdx, usageError(BadKernelMessage)); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}
}

// completeKipc writes an encoded response into the caller's response
// buffer, truncated to its capacity, while reporting the full (untruncated)
// size in ResponseLen so truncation is visible by length mismatch rather
// than by fault (spec.md §9).
func (k *Kernel) completeKipc(callerIdx int, args SendArgs, code uint32, encoded []byte) {
	caller := k.tasks[callerIdx]
	n := uint32(len(encoded))
	toCopy := n
	if toCopy > args.ResponseCap {
		toCopy = args.ResponseCap
	}
	if toCopy > 0 && CheckAccess(caller.Regions, args.ResponseBase, toCopy, AccessWrite) {
		k.mem.WriteAt(args.ResponseBase, encoded[:toCopy])
	}
	caller.ResponseCode = code
	caller.ResponseLen = n
	caller.State = Healthy(SchedRunnable)
}

func (k *Kernel) kipcReadTaskStatus(callerIdx int, payload []byte, args SendArgs) (NextTask, error) {
	d := wire.NewDecoder(payload)
	idx := int(d.Uint32())
	if d.Err() != nil || idx < 0 || idx >= len(k.tasks) {
		if err := k.faultUser(callerIdx, usageError(TaskOutOfRange)); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}

	t := k.tasks[idx]
	var buf [kipcResponseBufSize]byte
	e := wire.NewEncoder(buf[:])
	encodeTaskState(e, t)

	k.completeKipc(callerIdx, args, 0, buf[:e.Len()])
	return Reschedule(), nil
}

// encodeTaskState writes a compact encoding of t's TaskState: a
// discriminant byte, then kind-specific fields. This is an internal wire
// format private to this kernel and its supervisor task, not part of the
// stable cross-image ABI, so its exact layout is free to evolve.
func encodeTaskState(e *wire.Encoder, t *Task) {
	e.PutUint8(uint8(t.State.Kind))
	switch t.State.Kind {
	case TaskHealthy:
		e.PutUint8(uint8(t.State.Sched.Kind))
		e.PutUint16(t.State.Sched.Peer.Index)
		e.PutUint8(uint8(t.State.Sched.Peer.Generation))
		e.PutBool(t.State.Sched.PeerSet)
	case TaskFaulted:
		e.PutUint8(uint8(t.State.Fault.Kind))
		e.PutUint32(t.State.Fault.MemoryAddress)
		e.PutUint8(uint8(t.State.Fault.Usage))
	}
	e.PutUint8(uint8(t.Generation))
}

func (k *Kernel) kipcRestartTask(callerIdx int, payload []byte, args SendArgs) (NextTask, error) {
	d := wire.NewDecoder(payload)
	idx := int(d.Uint32())
	start := d.Bool()
	if d.Err() != nil || idx < 0 || idx >= len(k.tasks) {
		if err := k.faultUser(callerIdx, usageError(TaskOutOfRange)); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}

	restartingSelf := idx == callerIdx
	k.logRestart(idx, start)
	k.restart(idx, start)

	if restartingSelf {
		// spec.md §4.8 op 2: "if index == caller, caller yields without
		// reply" — restart already overwrote the caller's own state, so
		// there is nothing left to complete.
		return Reschedule(), nil
	}

	k.completeKipc(callerIdx, args, 0, nil)
	return Reschedule(), nil
}

func (k *Kernel) kipcFaultTask(callerIdx int, payload []byte, args SendArgs) (NextTask, error) {
	d := wire.NewDecoder(payload)
	idx := int(d.Uint32())
	if d.Err() != nil || idx < 0 || idx >= len(k.tasks) {
		if err := k.faultUser(callerIdx, usageError(TaskOutOfRange)); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}
	if idx == 0 || idx == callerIdx {
		if err := k.faultUser(callerIdx, usageError(IllegalTask)); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}

	info := FaultInfo{Kind: FaultInjected, Injector: k.tasks[callerIdx].Id()}
	if err := k.fault(idx, info); err != nil {
		return Reschedule(), err
	}

	k.completeKipc(callerIdx, args, 0, nil)
	return Reschedule(), nil
}

func (k *Kernel) kipcReadImageID(callerIdx int, args SendArgs) (NextTask, error) {
	var buf [8]byte
	e := wire.NewEncoder(buf[:])
	e.PutUint64(k.imageID)
	k.completeKipc(callerIdx, args, 0, buf[:e.Len()])
	return Reschedule(), nil
}
