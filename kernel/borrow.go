package kernel

import "github.com/oxidecomputer/gokernel/abi"

// BorrowResult is the outcome of a borrow_read/borrow_write/borrow_info
// syscall: Code is abi.RespDefect if the lender has gone away, if the lease
// does not grant the requested direction, or if the lender's own leased
// range fails the memory check; 0 on success. Info is populated only for
// BorrowInfo.
type BorrowResult struct {
	Code uint32
	Info BorrowInfoResult
}

// Borrow implements spec.md §4.4.4's three lease-borrow operations,
// unified because they share every validation step and differ only in
// which direction (if any) bytes move. The caller (args.Peer in spec.md's
// terms is the lender; the caller of Borrow is always the receiver of the
// original send) names a lease index on a task it is currently the
// receiver for.
func (k *Kernel) Borrow(callerIdx int, args BorrowArgs) (BorrowResult, NextTask, error) {
	if err := k.enter(); err != nil {
		return BorrowResult{}, NextTask{}, err
	}
	defer k.exit()
	return k.borrow(callerIdx, args)
}

func (k *Kernel) borrow(callerIdx int, args BorrowArgs) (BorrowResult, NextTask, error) {
	caller := k.tasks[callerIdx]

	if int(args.Peer.Index) >= len(k.tasks) {
		if err := k.faultUser(callerIdx, usageError(TaskOutOfRange)); err != nil {
			return BorrowResult{}, Reschedule(), err
		}
		return BorrowResult{}, Reschedule(), nil
	}
	lender := k.tasks[args.Peer.Index]

	defected := lender.Generation != args.Peer.Generation ||
		!lender.State.IsHealthy() ||
		lender.State.Sched.Kind != InReply ||
		lender.State.Sched.Peer != caller.Id()
	if defected {
		return BorrowResult{Code: abi.RespDefect}, Same(), nil
	}

	if args.LeaseIndex < 0 || args.LeaseIndex >= len(lender.Leases) {
		if err := k.faultUser(callerIdx, usageError(BadBorrowIndex)); err != nil {
			return BorrowResult{}, Reschedule(), err
		}
		return BorrowResult{}, Reschedule(), nil
	}
	lease := lender.Leases[args.LeaseIndex]

	if args.Kind == BorrowInfo {
		return BorrowResult{Info: BorrowInfoResult{Attributes: lease.Attributes, Length: lease.Length}}, Same(), nil
	}

	if args.Offset > lease.Length {
		if err := k.faultUser(callerIdx, usageError(UnalignedAccess)); err != nil {
			return BorrowResult{}, Reschedule(), err
		}
		return BorrowResult{}, Reschedule(), nil
	}
	n := args.Len
	if max := lease.Length - args.Offset; n > max {
		n = max
	}
	leaseBase := lease.BaseAddress + args.Offset

	switch args.Kind {
	case BorrowRead:
		// Copy from the lender's memory into the caller's own buffer.
		if !lease.Attributes.Has(abi.LeaseRead) {
			return BorrowResult{Code: abi.RespDefect}, Same(), nil
		}
		if !CheckAccess(lender.Regions, leaseBase, n, AccessRead) {
			if err := k.fault(int(args.Peer.Index), memoryFault(leaseBase)); err != nil {
				return BorrowResult{}, Reschedule(), err
			}
			return BorrowResult{Code: abi.RespDefect}, Same(), nil
		}
		if !CheckAccess(caller.Regions, args.Base, n, AccessWrite) {
			if err := k.fault(callerIdx, memoryFault(args.Base)); err != nil {
				return BorrowResult{}, Reschedule(), err
			}
			return BorrowResult{}, Reschedule(), nil
		}
		if n > 0 {
			k.mem.WriteAt(args.Base, k.mem.ReadAt(leaseBase, n))
		}
	case BorrowWrite:
		// Copy from the caller's own buffer into the lender's memory.
		if !lease.Attributes.Has(abi.LeaseWrite) {
			return BorrowResult{Code: abi.RespDefect}, Same(), nil
		}
		if !CheckAccess(caller.Regions, args.Base, n, AccessRead) {
			if err := k.fault(callerIdx, memoryFault(args.Base)); err != nil {
				return BorrowResult{}, Reschedule(), err
			}
			return BorrowResult{}, Reschedule(), nil
		}
		if !CheckAccess(lender.Regions, leaseBase, n, AccessWrite) {
			if err := k.fault(int(args.Peer.Index), memoryFault(leaseBase)); err != nil {
				return BorrowResult{}, Reschedule(), err
			}
			return BorrowResult{Code: abi.RespDefect}, Same(), nil
		}
		if n > 0 {
			k.mem.WriteAt(leaseBase, k.mem.ReadAt(args.Base, n))
		}
	}

	return BorrowResult{}, Same(), nil
}

func memoryFault(address uint32) FaultInfo {
	return FaultInfo{Kind: FaultMemoryAccess, MemoryAddress: address}
}
