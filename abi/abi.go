// Package abi defines the wire-stable, image-resident types shared between
// the kernel and the application image it boots: the task/region/interrupt
// descriptor tables, lease descriptors, and response codes. Nothing in this
// package depends on the kernel package; it is the ABI boundary.
package abi

import "fmt"

// CurrentAppMagic is the magic value that must appear at the start of every
// application image header.
const CurrentAppMagic uint32 = 0x1DEFA7A1

// RegionsPerTask is the fixed number of region slots named by each task
// descriptor. Unused slots must name a no-access region.
const RegionsPerTask = 8

// Priority is a task's scheduling priority. Numerically lower priorities are
// more important: priority 0 is scheduled ahead of priority 1, and so on.
type Priority uint8

// IsMoreImportantThan reports whether p is strictly more important than
// other, i.e. numerically lower.
func (p Priority) IsMoreImportantThan(other Priority) bool {
	return p < other
}

// TaskFlags holds boolean flags controlling task behavior at (re)start.
type TaskFlags uint32

const (
	// FlagStartAtBoot marks a task as runnable immediately at startup,
	// rather than Stopped.
	FlagStartAtBoot TaskFlags = 1 << 0

	// flagsReserved is the mask of bits that must be zero.
	flagsReserved = ^TaskFlags(FlagStartAtBoot)
)

// RegionAttributes describes what may be done with a memory region.
type RegionAttributes uint32

const (
	AttrRead    RegionAttributes = 1 << 0
	AttrWrite   RegionAttributes = 1 << 1
	AttrExecute RegionAttributes = 1 << 2
	AttrDevice  RegionAttributes = 1 << 3
	AttrDMA     RegionAttributes = 1 << 4

	attrReserved = ^(AttrRead | AttrWrite | AttrExecute | AttrDevice | AttrDMA)
)

func (a RegionAttributes) Has(bits RegionAttributes) bool { return a&bits == bits }

// LeaseAttributes describes the permissions granted by one lease.
type LeaseAttributes uint32

const (
	LeaseRead  LeaseAttributes = 1 << 0
	LeaseWrite LeaseAttributes = 1 << 1

	leaseReserved = ^(LeaseRead | LeaseWrite)
)

func (a LeaseAttributes) Has(bits LeaseAttributes) bool { return a&bits == bits }

// Response codes, part of the stable syscall ABI.
const (
	// RespDead is returned to a task that was blocked against a peer that
	// has since been restarted. Some encodings pack the dead peer's prior
	// generation into the low byte; see DeadResponseCode.
	RespDead uint32 = 0xFFFFFFFF
	// RespDefect is returned on a lease borrow whose lender has gone away.
	RespDefect uint32 = 1
)

// DeadResponseCode encodes a dead peer's prior generation into a DEAD
// response, per spec: low byte carries the generation.
func DeadResponseCode(priorGeneration Generation) uint32 {
	return (RespDead &^ 0xFF) | uint32(priorGeneration)
}

// TaskDesc is one task's immutable, image-resident descriptor.
type TaskDesc struct {
	// Regions names, by index into the image's RegionDesc table, the
	// regions this task may access. Exactly RegionsPerTask slots.
	Regions [RegionsPerTask]uint8
	// EntryPoint must lie within one of the task's regions.
	EntryPoint uint32
	// InitialStack must lie within, or one byte past, one of the task's
	// regions.
	InitialStack uint32
	Priority     uint32
	Flags        TaskFlags
}

// RegionDesc is one memory region's immutable, image-resident descriptor.
type RegionDesc struct {
	Base       uint32
	Size       uint32
	Attributes RegionAttributes
}

// Interrupt is one IRQ-to-notification binding.
type Interrupt struct {
	IRQ          uint32
	Task         uint32
	Notification uint32
}

// ULease describes a sub-slice of the sender's memory exposed to the
// receiver for the duration of one send/reply transaction.
type ULease struct {
	Attributes  LeaseAttributes
	BaseAddress uint32
	Length      uint32
}

// Generation is a per-task restart counter, narrow by design: see
// SPEC_FULL.md §0 for why 8 bits was chosen over a wider field.
type Generation uint8

// TaskId identifies a particular incarnation of a task: its table index,
// plus the generation that was current when the id was captured.
type TaskId struct {
	Index      uint16
	Generation Generation
}

func (id TaskId) String() string {
	return fmt.Sprintf("task[%d]#%d", id.Index, id.Generation)
}

// KernelTaskIndex is the reserved task index sending to which addresses the
// kernel pseudo-task rather than a real task.
const KernelTaskIndex uint16 = 0xFFFF

// KernelTaskId is the reserved TaskId for the kernel pseudo-task. Its
// generation is always 0 and is never compared; no real task can ever
// acquire KernelTaskIndex because image validation rejects task counts
// anywhere near that value.
var KernelTaskId = TaskId{Index: KernelTaskIndex, Generation: 0}

// IsKernel reports whether id addresses the kernel pseudo-task.
func (id TaskId) IsKernel() bool { return id.Index == KernelTaskIndex }
