package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/gokernel/abi"
)

// ipcRegions gives a task a single RAM region big enough for small test
// messages, spanning the whole of mem.
func ipcRegions(memLen uint32) []abi.RegionDesc {
	return []abi.RegionDesc{memRegion(0, memLen, abi.AttrRead|abi.AttrWrite)}
}

func TestSendRecvImmediateRendezvous(t *testing.T) {
	mem := make(Memory, 0x100)
	copy(mem[0x10:], []byte("hello"))

	receiver := newTestTask(0, ipcRegions(0x100))
	receiver.State = Healthy(SchedInRecvOpen)
	receiver.recvBufferBase = 0x40
	receiver.recvBufferCap = 0x10

	sender := newTestTask(1, ipcRegions(0x100))

	k := newTestKernel(mem, receiver, sender)

	next, err := k.Send(1, SendArgs{
		Target:       0,
		TargetGen:    0,
		Operation:    7,
		MessageBase:  0x10,
		MessageLen:   5,
		ResponseBase: 0x80,
		ResponseCap:  0x10,
	})
	require.NoError(t, err)
	require.Equal(t, NextSpecific, next.Kind)
	require.Equal(t, 0, next.Index)
	require.Equal(t, "hello", string(mem[0x40:0x45]))
	require.EqualValues(t, 7, receiver.LastRecv.Operation)
	require.EqualValues(t, 5, receiver.LastRecv.MessageLen)
	require.Equal(t, InReply, sender.State.Sched.Kind)
	require.Equal(t, receiver.Id(), sender.State.Sched.Peer)
	require.Equal(t, Runnable, receiver.State.Sched.Kind)
}

func TestSendBlocksWhenNoReceiverWaiting(t *testing.T) {
	mem := make(Memory, 0x100)
	receiver := newTestTask(0, ipcRegions(0x100))
	sender := newTestTask(1, ipcRegions(0x100))
	k := newTestKernel(mem, receiver, sender)

	next, err := k.Send(1, SendArgs{Target: 0, MessageBase: 0, MessageLen: 0, ResponseBase: 0, ResponseCap: 0})
	require.NoError(t, err)
	require.Equal(t, NextReschedule, next.Kind)
	require.Equal(t, InSend, sender.State.Sched.Kind)
	require.Equal(t, receiver.Id(), sender.State.Sched.Peer)
	require.NotNil(t, sender.PendingSend, "sender.PendingSend should be set while enqueued")
}

func TestRecvDequeuesWaitingSender(t *testing.T) {
	mem := make(Memory, 0x100)
	copy(mem[0:], []byte("abcd"))
	receiver := newTestTask(0, ipcRegions(0x100))
	sender := newTestTask(1, ipcRegions(0x100))
	k := newTestKernel(mem, receiver, sender)

	_, err := k.Send(1, SendArgs{Target: 0, MessageBase: 0, MessageLen: 4, ResponseBase: 0x20, ResponseCap: 0x10})
	require.NoError(t, err)

	next, err := k.Recv(0, RecvArgs{BufferBase: 0x40, BufferCap: 0x10})
	require.NoError(t, err)
	// deliverSend always names the receiver (here, the recv caller itself)
	// as the next task to run: it just got the message, while the sender
	// transitioned into InReply and is now blocked.
	require.Equal(t, NextSpecific, next.Kind)
	require.Equal(t, 0, next.Index)
	require.Equal(t, "abcd", string(mem[0x40:0x44]))
}

// TestNotificationPreemptsOpenRecv pins spec.md §4.4.1's race: a
// notification posted to a task blocked in an open receive completes that
// receive immediately, and a sender arriving afterwards is queued rather
// than paired, until the receiver issues another recv.
func TestNotificationPreemptsOpenRecv(t *testing.T) {
	mem := make(Memory, 0x100)
	receiver := newTestTask(0, ipcRegions(0x100))
	receiver.State = Healthy(SchedInRecvOpen)
	receiver.NotifyMask = 0x1
	receiver.recvBufferBase = 0x40
	receiver.recvBufferCap = 0x10
	sender := newTestTask(1, ipcRegions(0x100))
	k := newTestKernel(mem, receiver, sender)

	k.postNotification(0, 0x1)
	require.Equal(t, Runnable, receiver.State.Sched.Kind, "notification should have completed the open receive")

	next, err := k.Send(1, SendArgs{Target: 0, MessageBase: 0, MessageLen: 0})
	require.NoError(t, err)
	require.Equal(t, NextReschedule, next.Kind, "send should have queued behind the already-notified receiver")
}

func TestSendGenerationMismatchReturnsDead(t *testing.T) {
	mem := make(Memory, 0x100)
	receiver := newTestTask(0, ipcRegions(0x100))
	receiver.Generation = 5
	sender := newTestTask(1, ipcRegions(0x100))
	k := newTestKernel(mem, receiver, sender)

	next, err := k.Send(1, SendArgs{Target: 0, TargetGen: 3})
	require.NoError(t, err)
	require.Equal(t, NextReschedule, next.Kind)
	require.Equal(t, abi.DeadResponseCode(3), sender.ResponseCode)
	require.Equal(t, Runnable, sender.State.Sched.Kind, "sender should be immediately Runnable on a dead target")
}

func TestReplyDeliversResponse(t *testing.T) {
	mem := make(Memory, 0x100)
	copy(mem[0x60:], []byte("reply"))
	receiver := newTestTask(0, ipcRegions(0x100))
	receiver.State = Healthy(SchedInRecvOpen)
	sender := newTestTask(1, ipcRegions(0x100))
	k := newTestKernel(mem, receiver, sender)

	_, err := k.Send(1, SendArgs{Target: 0, ResponseBase: 0x80, ResponseCap: 0x10})
	require.NoError(t, err)

	next, err := k.Reply(0, ReplyArgs{Sender: sender.Id(), Code: 9, Base: 0x60, Len: 5})
	require.NoError(t, err)
	require.Equal(t, NextReschedule, next.Kind)
	require.EqualValues(t, 9, sender.ResponseCode)
	require.EqualValues(t, 5, sender.ResponseLen)
	require.Equal(t, "reply", string(mem[0x80:0x85]))
	require.Equal(t, Runnable, sender.State.Sched.Kind, "sender should be Runnable after reply")
}

func TestReplyToStaleSenderIsSilentlyDropped(t *testing.T) {
	mem := make(Memory, 0x100)
	receiver := newTestTask(0, ipcRegions(0x100))
	sender := newTestTask(1, ipcRegions(0x100))
	k := newTestKernel(mem, receiver, sender)
	// sender never sent anything, so it is not InReply to receiver.
	next, err := k.Reply(0, ReplyArgs{Sender: sender.Id(), Code: 1})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind, "Reply to a non-matching sender should be a silent no-op")
}

// TestReplyWithBadBaseFaultsReplier covers a replying task whose own
// reply-data pointer lies outside its regions: the sender must not be told
// a successful copy happened, and the replier (not the sender) is faulted,
// mirroring Send's MemoryAccess handling.
func TestReplyWithBadBaseFaultsReplier(t *testing.T) {
	mem := make(Memory, 0x100)
	supervisor := newTestTask(0, ipcRegions(0x100))
	// replier's only region is a tiny slice; args.Base below lies outside it.
	narrow := []abi.RegionDesc{memRegion(0x0, 0x10, abi.AttrRead|abi.AttrWrite)}
	replier := newTestTask(1, narrow)
	replier.State = Healthy(SchedInRecvOpen)
	sender := newTestTask(2, ipcRegions(0x100))
	k := newTestKernel(mem, supervisor, replier, sender)

	_, err := k.Send(2, SendArgs{Target: 1, ResponseBase: 0x80, ResponseCap: 0x10})
	require.NoError(t, err)

	next, err := k.Reply(1, ReplyArgs{Sender: sender.Id(), Code: 9, Base: 0x50, Len: 5})
	require.NoError(t, err)
	require.Equal(t, NextReschedule, next.Kind)
	require.True(t, replier.State.IsFaulted(), "replier should be faulted for an out-of-region reply pointer")
	require.Equal(t, FaultMemoryAccess, replier.State.Fault.Kind)
	require.Equal(t, InReply, sender.State.Sched.Kind, "sender must remain InReply, not be told a copy succeeded")
	require.Zero(t, sender.ResponseCode)
	require.Zero(t, sender.ResponseLen)
}
