package kernel

import "github.com/oxidecomputer/gokernel/abi"

// Send implements spec.md §4.4.1. The table guard must not already be
// held; Send acquires it itself (syscall.go's Dispatch is the only other
// caller, and it never nests calls into this package).
func (k *Kernel) Send(callerIdx int, args SendArgs) (NextTask, error) {
	if err := k.enter(); err != nil {
		return NextTask{}, err
	}
	defer k.exit()
	return k.send(callerIdx, args)
}

func (k *Kernel) send(callerIdx int, args SendArgs) (NextTask, error) {
	caller := k.tasks[callerIdx]

	if !CheckAccess(caller.Regions, args.MessageBase, args.MessageLen, AccessRead) {
		if err := k.fault(callerIdx, FaultInfo{Kind: FaultMemoryAccess, MemoryAddress: args.MessageBase}); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}
	if !CheckAccess(caller.Regions, args.ResponseBase, args.ResponseCap, AccessWrite) {
		if err := k.fault(callerIdx, FaultInfo{Kind: FaultMemoryAccess, MemoryAddress: args.ResponseBase}); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}

	if args.Target == abi.KernelTaskIndex {
		return k.sendToKernelTask(callerIdx, args)
	}

	if int(args.Target) >= len(k.tasks) {
		if err := k.faultUser(callerIdx, usageError(TaskOutOfRange)); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}

	caller.responseBufferBase = args.ResponseBase
	caller.responseBufferCap = args.ResponseCap

	target := k.tasks[args.Target]
	if target.Generation != args.TargetGen {
		caller.ResponseCode = abi.DeadResponseCode(args.TargetGen)
		caller.ResponseLen = 0
		caller.State = Healthy(SchedRunnable)
		return Reschedule(), nil
	}

	if k.readyToReceiveFrom(target, caller) {
		return k.deliverSend(callerIdx, int(args.Target), args), nil
	}

	caller.State = Healthy(SchedInSend(target.Id()))
	argsCopy := args
	caller.PendingSend = &argsCopy
	return Reschedule(), nil
}

// readyToReceiveFrom reports whether target is blocked in a receive that
// would immediately pair with a send from sender. The pending-notification
// check is defensive: by the time a task is sitting in InRecv(None), any
// notification bits matching its mask should already have completed that
// recv via postNotification, so this should never actually be false
// because of it — but spec.md §4.4.1's "notifications win" race is stated
// as an explicit invariant, so it is checked explicitly rather than relied
// upon implicitly.
func (k *Kernel) readyToReceiveFrom(target, sender *Task) bool {
	if !target.State.IsHealthy() {
		return false
	}
	sc := target.State.Sched
	if sc.Kind != InRecv {
		return false
	}
	if sc.PeerSet {
		return sc.Peer == sender.Id()
	}
	if target.Pending&target.NotifyMask != 0 {
		return false
	}
	return true
}

// deliverSend performs the rendezvous copy and state transitions common to
// both an immediate send (§4.4.1 step 3) and a send dequeued by a matching
// recv (§4.4.2). senderIdx's message is copied into receiverIdx's
// receive buffer (truncated to its capacity, though the reported
// MessageLen is always the untruncated length — the same
// "report-the-real-size, let the caller notice truncation" convention used
// for kernel-task replies, spec.md §9), leases are frozen onto the sender,
// and the sender transitions to InReply while the receiver becomes
// Runnable.
func (k *Kernel) deliverSend(senderIdx, receiverIdx int, args SendArgs) NextTask {
	sender := k.tasks[senderIdx]
	receiver := k.tasks[receiverIdx]

	n := args.MessageLen
	if n > receiver.recvBufferCap {
		n = receiver.recvBufferCap
	}
	if n > 0 {
		k.mem.WriteAt(receiver.recvBufferBase, k.mem.ReadAt(args.MessageBase, n))
	}

	receiver.LastRecv = RecvResult{
		Sender:      sender.Id(),
		Operation:   args.Operation,
		MessageLen:  args.MessageLen,
		ResponseCap: args.ResponseCap,
		LeaseCount:  len(args.Leases),
	}
	receiver.State = Healthy(SchedRunnable)

	sender.Leases = args.Leases
	sender.inReplyTo = receiver.Id()
	sender.PendingSend = nil
	sender.State = Healthy(SchedInReply(receiver.Id()))

	return SpecificTask(receiverIdx)
}

// Recv implements spec.md §4.4.2.
func (k *Kernel) Recv(callerIdx int, args RecvArgs) (NextTask, error) {
	if err := k.enter(); err != nil {
		return NextTask{}, err
	}
	defer k.exit()
	return k.recv(callerIdx, args)
}

func (k *Kernel) recv(callerIdx int, args RecvArgs) (NextTask, error) {
	caller := k.tasks[callerIdx]

	if !CheckAccess(caller.Regions, args.BufferBase, args.BufferCap, AccessWrite) {
		if err := k.fault(callerIdx, FaultInfo{Kind: FaultMemoryAccess, MemoryAddress: args.BufferBase}); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}

	if args.FromSet && int(args.From.Index) >= len(k.tasks) {
		if err := k.faultUser(callerIdx, usageError(TaskOutOfRange)); err != nil {
			return Reschedule(), err
		}
		return Reschedule(), nil
	}

	caller.recvBufferBase = args.BufferBase
	caller.recvBufferCap = args.BufferCap
	caller.NotifyMask = args.NotificationMask

	if !args.FromSet && caller.Pending&args.NotificationMask != 0 {
		k.completeNotificationRecv(caller)
		return Same(), nil
	}

	if senderIdx := k.findWaitingSender(callerIdx, args); senderIdx >= 0 {
		sender := k.tasks[senderIdx]
		sendArgs := *sender.PendingSend
		return k.deliverSend(senderIdx, callerIdx, sendArgs), nil
	}

	if args.FromSet {
		caller.State = Healthy(SchedInRecvClosed(args.From))
	} else {
		caller.State = Healthy(SchedInRecvOpen)
	}
	return Reschedule(), nil
}

// findWaitingSender scans for the earliest-indexed task InSend(callerId),
// optionally restricted to a single candidate when args.FromSet (spec.md
// §4.4.2's "earliest index wins").
func (k *Kernel) findWaitingSender(callerIdx int, args RecvArgs) int {
	callerId := k.tasks[callerIdx].Id()

	if args.FromSet {
		idx := int(args.From.Index)
		if idx < 0 || idx >= len(k.tasks) {
			return -1
		}
		t := k.tasks[idx]
		if t.Generation != args.From.Generation {
			return -1
		}
		if t.State.IsHealthy() && t.State.Sched.Kind == InSend && t.State.Sched.Peer == callerId {
			return idx
		}
		return -1
	}

	for i, t := range k.tasks {
		if !t.State.IsHealthy() || t.State.Sched.Kind != InSend {
			continue
		}
		if t.State.Sched.Peer == callerId {
			return i
		}
	}
	return -1
}

// Reply implements spec.md §4.4.3. Never blocks; mismatches (the named
// sender is no longer InReply to us, e.g. it was restarted or faulted in
// the meantime) are silently dropped, exactly as spec.md requires, since
// the kernel already told the original sender about that via the restart
// sweep (fault.go). A bad reply-data pointer is a memory-access error on
// the caller, same as Send, so it faults the caller instead.
func (k *Kernel) Reply(callerIdx int, args ReplyArgs) (NextTask, error) {
	if err := k.enter(); err != nil {
		return NextTask{}, err
	}
	defer k.exit()

	caller := k.tasks[callerIdx]
	if int(args.Sender.Index) >= len(k.tasks) {
		return Same(), nil
	}
	sender := k.tasks[args.Sender.Index]
	if sender.Generation != args.Sender.Generation {
		return Same(), nil
	}
	if !sender.State.IsHealthy() || sender.State.Sched.Kind != InReply || sender.State.Sched.Peer != caller.Id() {
		return Same(), nil
	}

	n := args.Len
	if n > sender.responseBufferCap {
		n = sender.responseBufferCap
	}
	if n > 0 {
		if !CheckAccess(caller.Regions, args.Base, n, AccessRead) {
			if err := k.fault(callerIdx, FaultInfo{Kind: FaultMemoryAccess, MemoryAddress: args.Base}); err != nil {
				return Reschedule(), err
			}
			return Reschedule(), nil
		}
		data := k.mem.ReadAt(args.Base, n)
		// sender's response buffer was validated against its own regions
		// back when it issued Send; this recheck is defensive, mirroring
		// readyToReceiveFrom's pending-notification check.
		if CheckAccess(sender.Regions, sender.responseBufferBase, n, AccessWrite) {
			k.mem.WriteAt(sender.responseBufferBase, data)
		}
	}

	sender.ResponseCode = args.Code
	sender.ResponseLen = n
	sender.Leases = nil
	sender.inReplyTo = abi.TaskId{}
	sender.State = Healthy(SchedRunnable)

	return Reschedule(), nil
}
