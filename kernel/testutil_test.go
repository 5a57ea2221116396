package kernel

import "github.com/oxidecomputer/gokernel/abi"

// memRegion is a convenience for building a single-region task in tests:
// one RAM-like region granting the given attributes, starting at base and
// extending for size bytes.
func memRegion(base, size uint32, attrs abi.RegionAttributes) abi.RegionDesc {
	return abi.RegionDesc{Base: base, Size: size, Attributes: attrs}
}

// newTestTask builds a healthy, Runnable task directly (bypassing
// abi.ParseImage/Startup), for unit tests that only care about one kernel
// subsystem at a time.
func newTestTask(index int, regions []abi.RegionDesc) *Task {
	t := newTask(index, abi.TaskDesc{Priority: uint32(index)}, regions)
	t.State = Healthy(SchedRunnable)
	return t
}

// newTestKernel wires up a Kernel directly from already-built tasks and a
// backing memory, for tests exercising ipc.go/borrow.go/notify.go/fault.go
// in isolation from image parsing. mem should be large enough to cover
// every region any task names.
func newTestKernel(mem Memory, tasks ...*Task) *Kernel {
	k := &Kernel{
		tasks:              tasks,
		mem:                mem,
		mpu:                newSimMPU(),
		logger:             defaultLogger(),
		irqs:               map[uint32]abi.Interrupt{},
		irqEnabled:         map[uint32]bool{},
		irqCounters:        newIRQCounters(),
		supervisorFaultBit: 1,
		current:            -1,
	}
	return k
}
