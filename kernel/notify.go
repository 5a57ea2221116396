package kernel

import "github.com/oxidecomputer/gokernel/abi"

// PostNotification implements spec.md §4.5: OR bits into a task's pending
// word. If the task is currently blocked in an open receive whose mask
// intersects the posted bits, the receive completes immediately with a
// synthetic message from the kernel (spec.md §4.4.2); otherwise the bits
// merely accumulate (posting an already-set bit is a documented no-op,
// spec.md §8).
func (k *Kernel) PostNotification(idx int, bits uint32) error {
	if err := k.enter(); err != nil {
		return err
	}
	defer k.exit()
	k.postNotification(idx, bits)
	return nil
}

// postNotification is the task-table-lock-already-held implementation
// shared by the public PostNotification and kernel-internal callers
// (irq.go, fault.go) that post a notification as a side effect of an
// operation already holding the guard.
func (k *Kernel) postNotification(idx int, bits uint32) {
	t := k.tasks[idx]
	t.Pending |= bits

	if t.State.IsHealthy() && t.State.Sched.Kind == InRecv && !t.State.Sched.PeerSet {
		if t.Pending&t.NotifyMask != 0 {
			k.completeNotificationRecv(t)
		}
	}
}

// completeNotificationRecv delivers the synthetic notification message to a
// task blocked in InRecv(None), per spec.md §4.4.2: sender is the kernel
// TaskId, payload is the consumed bit pattern, length 4 bytes. Consuming
// bits means clearing exactly the ones that matched the mask.
func (k *Kernel) completeNotificationRecv(t *Task) {
	consumed := t.Pending & t.NotifyMask
	t.Pending &^= consumed

	n := t.Regions
	if CheckAccess(n, t.recvBufferBase, 4, AccessWrite) {
		k.mem.WriteAt(t.recvBufferBase, encodeU32(consumed))
	}

	t.LastRecv = RecvResult{
		Sender:      abi.KernelTaskId,
		Operation:   0,
		MessageLen:  4,
		ResponseCap: 0,
		LeaseCount:  0,
	}
	t.State = Healthy(SchedRunnable)
}

func encodeU32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
