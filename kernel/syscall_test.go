package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func syscallKernel(t *testing.T) (k *Kernel, caller, other *Task) {
	t.Helper()
	mem := make(Memory, 0x200)
	supervisor := newTestTask(0, ipcRegions(0x200))
	caller = newTestTask(1, ipcRegions(0x200))
	other = newTestTask(2, ipcRegions(0x200))
	k = newTestKernel(mem, supervisor, caller, other)
	return
}

func TestDispatchUnknownOpFaultsCaller(t *testing.T) {
	k, caller, _ := syscallKernel(t)
	_, next, err := k.Dispatch(caller.Index, 0xFFFF, Args{})
	require.NoError(t, err)
	require.Equal(t, NextReschedule, next.Kind)
	require.True(t, caller.State.IsFaulted())
	require.Equal(t, BadSyscallNumber, caller.State.Fault.Usage)
}

func TestSysSetTimerAndGetTimerRoundTrip(t *testing.T) {
	k, caller, _ := syscallKernel(t)

	_, next, err := k.Dispatch(caller.Index, SysSetTimer, Args{Timer: TimerArgs{Deadline: 42, Mask: 0x2}})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind)
	require.True(t, caller.HasDeadline)
	require.EqualValues(t, 42, caller.Deadline)
	require.EqualValues(t, 0x2, caller.TimerMask)

	res, next, err := k.Dispatch(caller.Index, SysGetTimer, Args{})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind)
	require.False(t, res.Timer.Clear)
	require.EqualValues(t, 42, res.Timer.Deadline)
	require.EqualValues(t, 0x2, res.Timer.Mask)
}

func TestSysSetTimerClear(t *testing.T) {
	k, caller, _ := syscallKernel(t)
	caller.HasDeadline = true
	caller.Deadline = 10
	caller.TimerMask = 0x1

	_, _, err := k.Dispatch(caller.Index, SysSetTimer, Args{Timer: TimerArgs{Clear: true}})
	require.NoError(t, err)
	require.False(t, caller.HasDeadline, "timer should be fully cleared")
	require.Zero(t, caller.Deadline)
	require.Zero(t, caller.TimerMask)
}

func TestSysPanicFaultsCaller(t *testing.T) {
	k, caller, _ := syscallKernel(t)
	_, next, err := k.Dispatch(caller.Index, SysPanic, Args{Panic: PanicArgs{Message: "oops"}})
	require.NoError(t, err)
	require.Equal(t, NextReschedule, next.Kind)
	require.True(t, caller.State.IsFaulted())
	require.Equal(t, FaultPanic, caller.State.Fault.Kind)
	require.Equal(t, "oops", caller.State.Fault.PanicMessage)
}

func TestSysRefreshTaskIDReturnsCurrentGeneration(t *testing.T) {
	k, caller, other := syscallKernel(t)
	other.Generation = 7

	res, next, err := k.Dispatch(caller.Index, SysRefreshTaskID, Args{Refresh: RefreshArgs{Index: uint16(other.Index)}})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind)
	require.Equal(t, other.Id(), res.TaskId)
}

func TestSysRefreshTaskIDOutOfRangeFaults(t *testing.T) {
	k, caller, _ := syscallKernel(t)
	_, _, err := k.Dispatch(caller.Index, SysRefreshTaskID, Args{Refresh: RefreshArgs{Index: 99}})
	require.NoError(t, err)
	require.True(t, caller.State.IsFaulted())
	require.Equal(t, TaskOutOfRange, caller.State.Fault.Usage)
}

func TestSysPostDeliversNotificationBits(t *testing.T) {
	k, caller, other := syscallKernel(t)
	_, _, err := k.Dispatch(caller.Index, SysPost, Args{Post: PostArgs{Target: uint16(other.Index), Bits: 0x5}})
	require.NoError(t, err)
	require.EqualValues(t, 0x5, other.Pending)
}

func TestSysPostOutOfRangeFaultsCaller(t *testing.T) {
	k, caller, _ := syscallKernel(t)
	_, _, err := k.Dispatch(caller.Index, SysPost, Args{Post: PostArgs{Target: 99}})
	require.NoError(t, err)
	require.True(t, caller.State.IsFaulted())
	require.Equal(t, TaskOutOfRange, caller.State.Fault.Usage)
}

func TestSysReplyFaultForcesSenderIntoFaulted(t *testing.T) {
	k, caller, other := syscallKernel(t)
	other.State = Healthy(SchedInReply(caller.Id()))

	_, next, err := k.Dispatch(caller.Index, SysReplyFault, Args{ReplyFault: ReplyFaultArgs{
		Sender: other.Id(), Kind: FaultSyscallUsage, Usage: BadKernelMessage,
	}})
	require.NoError(t, err)
	require.Equal(t, NextReschedule, next.Kind)
	require.True(t, other.State.IsFaulted())
	require.Equal(t, BadKernelMessage, other.State.Fault.Usage)
}

func TestSysReplyFaultDroppedWhenSenderNotWaitingOnCaller(t *testing.T) {
	k, caller, other := syscallKernel(t)
	// other never sent to caller: not InReply to it.
	_, next, err := k.Dispatch(caller.Index, SysReplyFault, Args{ReplyFault: ReplyFaultArgs{Sender: other.Id()}})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind, "a mismatched reply_fault should be a silent no-op")
	require.False(t, other.State.IsFaulted(), "other should be untouched")
}

func TestDispatchSendIntegratesWithSyscallTable(t *testing.T) {
	k, caller, other := syscallKernel(t)
	other.State = Healthy(SchedInRecvOpen)
	other.recvBufferBase = 0x40
	other.recvBufferCap = 0x10

	_, next, err := k.Dispatch(caller.Index, SysSend, Args{Send: SendArgs{
		Target: uint16(other.Index), MessageLen: 0,
	}})
	require.NoError(t, err)
	require.Equal(t, NextSpecific, next.Kind)
	require.Equal(t, other.Index, next.Index)
}
