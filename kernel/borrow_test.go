package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/gokernel/abi"
)

// setupBorrowScenario builds a lender currently InReply to a receiver
// (caller), holding one lease over lender's own memory range
// [leaseBase, leaseBase+leaseLen). A dummy task 0 stands in for the
// supervisor so the receiver/lender indices (1, 2) never collide with
// fault.go's supervisor-self-fault special case.
func setupBorrowScenario(t *testing.T, leaseAttrs abi.LeaseAttributes, leaseBase, leaseLen uint32) (k *Kernel, mem Memory, receiver, lender *Task) {
	t.Helper()
	mem = make(Memory, 0x200)
	supervisor := newTestTask(0, ipcRegions(0x200))
	receiver = newTestTask(1, ipcRegions(0x200))
	lender = newTestTask(2, ipcRegions(0x200))
	lender.State = Healthy(SchedInReply(receiver.Id()))
	lender.Leases = []abi.ULease{{Attributes: leaseAttrs, BaseAddress: leaseBase, Length: leaseLen}}
	k = newTestKernel(mem, supervisor, receiver, lender)
	return
}

func TestBorrowInfo(t *testing.T) {
	k, _, receiver, lender := setupBorrowScenario(t, abi.LeaseRead|abi.LeaseWrite, 0x10, 8)
	res, next, err := k.Borrow(receiver.Index, BorrowArgs{Kind: BorrowInfo, Peer: lender.Id(), LeaseIndex: 0})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind)
	require.EqualValues(t, 8, res.Info.Length)
	require.Equal(t, abi.LeaseRead|abi.LeaseWrite, res.Info.Attributes)
}

func TestBorrowReadCopiesFromLenderToCaller(t *testing.T) {
	k, mem, receiver, lender := setupBorrowScenario(t, abi.LeaseRead, 0x10, 8)
	copy(mem[0x10:], []byte("leased!!"))

	res, next, err := k.Borrow(receiver.Index, BorrowArgs{
		Kind: BorrowRead, Peer: lender.Id(), LeaseIndex: 0, Offset: 0, Base: 0x50, Len: 8,
	})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind)
	require.Zero(t, res.Code)
	require.Equal(t, "leased!!", string(mem[0x50:0x58]))
}

func TestBorrowWriteCopiesFromCallerToLender(t *testing.T) {
	k, mem, receiver, lender := setupBorrowScenario(t, abi.LeaseWrite, 0x10, 8)
	copy(mem[0x50:], []byte("fromcall"))

	_, next, err := k.Borrow(receiver.Index, BorrowArgs{
		Kind: BorrowWrite, Peer: lender.Id(), LeaseIndex: 0, Offset: 0, Base: 0x50, Len: 8,
	})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind)
	require.Equal(t, "fromcall", string(mem[0x10:0x18]))
}

func TestBorrowReadRejectsWithoutLeaseReadAttribute(t *testing.T) {
	k, _, receiver, lender := setupBorrowScenario(t, abi.LeaseWrite, 0x10, 8)
	res, next, err := k.Borrow(receiver.Index, BorrowArgs{Kind: BorrowRead, Peer: lender.Id(), LeaseIndex: 0, Len: 8, Base: 0x50})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind)
	require.Equal(t, abi.RespDefect, res.Code)
}

func TestBorrowDefectsWhenLenderNotInReplyToCaller(t *testing.T) {
	mem := make(Memory, 0x200)
	supervisor := newTestTask(0, ipcRegions(0x200))
	receiver := newTestTask(1, ipcRegions(0x200))
	lender := newTestTask(2, ipcRegions(0x200))
	// lender never sent to receiver: not InReply.
	k := newTestKernel(mem, supervisor, receiver, lender)

	res, next, err := k.Borrow(receiver.Index, BorrowArgs{Kind: BorrowInfo, Peer: lender.Id(), LeaseIndex: 0})
	require.NoError(t, err)
	require.Equal(t, NextSame, next.Kind)
	require.Equal(t, abi.RespDefect, res.Code)
}

func TestBorrowDefectsOnGenerationMismatch(t *testing.T) {
	k, _, receiver, lender := setupBorrowScenario(t, abi.LeaseRead, 0x10, 8)
	stalePeer := lender.Id()
	stalePeer.Generation++

	res, _, err := k.Borrow(receiver.Index, BorrowArgs{Kind: BorrowInfo, Peer: stalePeer, LeaseIndex: 0})
	require.NoError(t, err)
	require.Equal(t, abi.RespDefect, res.Code)
}

func TestBorrowOffsetBeyondLeaseFaultsCaller(t *testing.T) {
	k, _, receiver, lender := setupBorrowScenario(t, abi.LeaseRead, 0x10, 8)
	_, _, err := k.Borrow(receiver.Index, BorrowArgs{Kind: BorrowRead, Peer: lender.Id(), LeaseIndex: 0, Offset: 100, Len: 1, Base: 0x50})
	require.NoError(t, err)
	require.True(t, receiver.State.IsFaulted(), "caller should be faulted for an out-of-range offset")
	require.Equal(t, UnalignedAccess, receiver.State.Fault.Usage)
}

func TestBorrowBadLeaseIndexFaultsCaller(t *testing.T) {
	k, _, receiver, lender := setupBorrowScenario(t, abi.LeaseRead, 0x10, 8)
	_, _, err := k.Borrow(receiver.Index, BorrowArgs{Kind: BorrowRead, Peer: lender.Id(), LeaseIndex: 5})
	require.NoError(t, err)
	require.True(t, receiver.State.IsFaulted())
	require.Equal(t, BadBorrowIndex, receiver.State.Fault.Usage)
}
