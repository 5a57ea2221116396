// Package testimage builds flat application images in memory, for tests
// and manual cmd/kernsim runs that would otherwise need a real linker and
// image-building toolchain (spec.md §6, §9) to produce one. It encodes the
// exact byte layout abi.ParseImage expects: nothing here bypasses parsing,
// so a bug in the encoder would show up as a parse failure rather than a
// silently-wrong Image.
package testimage

import (
	"encoding/binary"

	"github.com/oxidecomputer/gokernel/abi"
)

// Builder accumulates regions, tasks, and interrupts, then serializes them
// into a byte slice acceptable to abi.ParseImage.
type Builder struct {
	regions []abi.RegionDesc
	tasks   []taskSpec
	irqs    []abi.Interrupt
}

type taskSpec struct {
	regions      [abi.RegionsPerTask]uint8
	entryPoint   uint32
	initialStack uint32
	priority     uint32
	flags        abi.TaskFlags
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddRegion appends a region descriptor and returns its index, for use in
// AddTask's regions argument.
func (b *Builder) AddRegion(base, size uint32, attrs abi.RegionAttributes) uint8 {
	b.regions = append(b.regions, abi.RegionDesc{Base: base, Size: size, Attributes: attrs})
	return uint8(len(b.regions) - 1)
}

// AddTask appends a task descriptor. regions is padded/truncated to
// abi.RegionsPerTask slots; unused slots repeat the last given region (or 0
// if none given), matching the "unused slots must name a no-access region"
// convention as long as the caller's last real region is no-access, or the
// caller supplies all eight explicitly.
func (b *Builder) AddTask(regions []uint8, entryPoint, initialStack uint32, priority uint32, flags abi.TaskFlags) int {
	var ts taskSpec
	for i := range ts.regions {
		if i < len(regions) {
			ts.regions[i] = regions[i]
		} else if len(regions) > 0 {
			ts.regions[i] = regions[len(regions)-1]
		}
	}
	ts.entryPoint = entryPoint
	ts.initialStack = initialStack
	ts.priority = priority
	ts.flags = flags
	b.tasks = append(b.tasks, ts)
	return len(b.tasks) - 1
}

// AddInterrupt appends an IRQ-to-notification binding.
func (b *Builder) AddInterrupt(irq, task, notification uint32) {
	b.irqs = append(b.irqs, abi.Interrupt{IRQ: irq, Task: task, Notification: notification})
}

// Build serializes the accumulated tables into a flat image, little-endian,
// matching the layout abi.ParseImage decodes.
func (b *Builder) Build() []byte {
	const appHeaderSize = 32
	const taskDescSize = abi.RegionsPerTask + 4 + 4 + 4 + 4
	const regionDescSize = 4 + 4 + 4 + 4
	const interruptSize = 4 + 4 + 4

	size := appHeaderSize +
		len(b.tasks)*taskDescSize +
		len(b.regions)*regionDescSize +
		len(b.irqs)*interruptSize
	buf := make([]byte, size)

	binary.LittleEndian.PutUint32(buf[0:4], abi.CurrentAppMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(b.tasks)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(b.regions)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(b.irqs)))

	off := appHeaderSize
	for _, t := range b.tasks {
		copy(buf[off:off+abi.RegionsPerTask], t.regions[:])
		p := off + abi.RegionsPerTask
		binary.LittleEndian.PutUint32(buf[p:], t.entryPoint)
		binary.LittleEndian.PutUint32(buf[p+4:], t.initialStack)
		binary.LittleEndian.PutUint32(buf[p+8:], t.priority)
		binary.LittleEndian.PutUint32(buf[p+12:], uint32(t.flags))
		off += taskDescSize
	}

	for _, r := range b.regions {
		binary.LittleEndian.PutUint32(buf[off:], r.Base)
		binary.LittleEndian.PutUint32(buf[off+4:], r.Size)
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(r.Attributes))
		binary.LittleEndian.PutUint32(buf[off+12:], 0)
		off += regionDescSize
	}

	for _, irq := range b.irqs {
		binary.LittleEndian.PutUint32(buf[off:], irq.IRQ)
		binary.LittleEndian.PutUint32(buf[off+4:], irq.Task)
		binary.LittleEndian.PutUint32(buf[off+8:], irq.Notification)
		off += interruptSize
	}

	return buf
}

// TwoTaskEcho returns a ready-made two-task image: task 0 (the supervisor,
// priority 0, START_AT_BOOT) with a 256-byte RAM region at 0x2000_0000 and a
// 4KiB code region at 0x0000_0000, and task 1 (priority 1, START_AT_BOOT)
// with an identical shape at offset regions, suited to basic send/recv/
// reply round-trip tests. Both regions are sized/aligned to satisfy
// ARMv7-M's power-of-two rule, so the same image parses under either MPU
// variant.
func TwoTaskEcho() []byte {
	b := NewBuilder()
	code0 := b.AddRegion(0x00000000, 0x1000, abi.AttrRead|abi.AttrExecute)
	ram0 := b.AddRegion(0x20000000, 0x100, abi.AttrRead|abi.AttrWrite)
	code1 := b.AddRegion(0x00001000, 0x1000, abi.AttrRead|abi.AttrExecute)
	ram1 := b.AddRegion(0x20001000, 0x100, abi.AttrRead|abi.AttrWrite)

	b.AddTask([]uint8{code0, ram0}, 0x00000000, 0x20000080, 0, abi.FlagStartAtBoot)
	b.AddTask([]uint8{code1, ram1}, 0x00001000, 0x20001080, 1, abi.FlagStartAtBoot)

	return b.Build()
}
