package abi

import (
	"encoding/binary"
	"fmt"
)

// appHeaderSize is the on-disk size of the App header: magic, task_count,
// region_count, irq_count, each a u32, padded to 32 bytes.
const appHeaderSize = 32

const (
	taskDescSize   = RegionsPerTask + 4 + 4 + 4 + 4 // regions[8] + entry + stack + priority + flags
	regionDescSize = 4 + 4 + 4 + 4                  // base + size + attributes + reserved
	interruptSize  = 4 + 4 + 4                      // irq + task + notification
)

// MPUVariant selects the alignment rule a target's MPU imposes on region
// base/size, per spec.md §3.
type MPUVariant int

const (
	// MPUArmV7M requires naturally-aligned, power-of-two sizes >= 32 bytes.
	MPUArmV7M MPUVariant = iota
	// MPUArmV8M requires 32-byte granularity (base and size both multiples
	// of 32), without the power-of-two constraint.
	MPUArmV8M
)

// Image is a fully parsed and validated application image: the header plus
// its task, region, and interrupt tables.
type Image struct {
	TaskCount   uint32
	RegionCount uint32
	IRQCount    uint32

	Tasks     []TaskDesc
	Regions   []RegionDesc
	Interrupts []Interrupt
}

// ParseImage parses and validates a flat little-endian application image,
// per spec.md §6. It never returns a partially-valid Image: either every
// invariant below holds, or err is non-nil.
func ParseImage(data []byte, mpu MPUVariant) (*Image, error) {
	if len(data) < appHeaderSize {
		return nil, fmt.Errorf("abi: image too short for header: %d bytes", len(data))
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != CurrentAppMagic {
		return nil, fmt.Errorf("abi: bad magic %#08x, want %#08x", magic, CurrentAppMagic)
	}
	taskCount := binary.LittleEndian.Uint32(data[4:8])
	regionCount := binary.LittleEndian.Uint32(data[8:12])
	irqCount := binary.LittleEndian.Uint32(data[12:16])
	if taskCount >= uint32(KernelTaskIndex) {
		return nil, fmt.Errorf("abi: task count %d collides with the kernel task index", taskCount)
	}
	for _, b := range data[16:appHeaderSize] {
		if b != 0 {
			return nil, fmt.Errorf("abi: header reserved expansion space is not zero")
		}
	}

	off := appHeaderSize

	tasks := make([]TaskDesc, taskCount)
	for i := range tasks {
		end := off + taskDescSize
		if end > len(data) {
			return nil, fmt.Errorf("abi: image truncated in task descriptor %d", i)
		}
		rec := data[off:end]
		var td TaskDesc
		copy(td.Regions[:], rec[0:RegionsPerTask])
		p := RegionsPerTask
		td.EntryPoint = binary.LittleEndian.Uint32(rec[p:])
		td.InitialStack = binary.LittleEndian.Uint32(rec[p+4:])
		td.Priority = binary.LittleEndian.Uint32(rec[p+8:])
		td.Flags = TaskFlags(binary.LittleEndian.Uint32(rec[p+12:]))
		if td.Flags&flagsReserved != 0 {
			return nil, fmt.Errorf("abi: task %d has reserved flag bits set", i)
		}
		for _, ri := range td.Regions {
			if uint32(ri) >= regionCount {
				return nil, fmt.Errorf("abi: task %d names out-of-range region %d", i, ri)
			}
		}
		tasks[i] = td
		off = end
	}

	regions := make([]RegionDesc, regionCount)
	for i := range regions {
		end := off + regionDescSize
		if end > len(data) {
			return nil, fmt.Errorf("abi: image truncated in region descriptor %d", i)
		}
		rec := data[off:end]
		rd := RegionDesc{
			Base:       binary.LittleEndian.Uint32(rec[0:4]),
			Size:       binary.LittleEndian.Uint32(rec[4:8]),
			Attributes: RegionAttributes(binary.LittleEndian.Uint32(rec[8:12])),
		}
		if binary.LittleEndian.Uint32(rec[12:16]) != 0 {
			return nil, fmt.Errorf("abi: region %d reserved word is not zero", i)
		}
		if rd.Attributes&attrReserved != 0 {
			return nil, fmt.Errorf("abi: region %d has reserved attribute bits set", i)
		}
		if err := validateRegionAlignment(mpu, rd); err != nil {
			return nil, fmt.Errorf("abi: region %d: %w", i, err)
		}
		regions[i] = rd
		off = end
	}

	irqs := make([]Interrupt, irqCount)
	for i := range irqs {
		end := off + interruptSize
		if end > len(data) {
			return nil, fmt.Errorf("abi: image truncated in interrupt descriptor %d", i)
		}
		rec := data[off:end]
		irq := Interrupt{
			IRQ:          binary.LittleEndian.Uint32(rec[0:4]),
			Task:         binary.LittleEndian.Uint32(rec[4:8]),
			Notification: binary.LittleEndian.Uint32(rec[8:12]),
		}
		if irq.Task >= taskCount {
			return nil, fmt.Errorf("abi: interrupt %d names out-of-range task %d", i, irq.Task)
		}
		irqs[i] = irq
		off = end
	}

	img := &Image{
		TaskCount:  taskCount,
		RegionCount: regionCount,
		IRQCount:   irqCount,
		Tasks:      tasks,
		Regions:    regions,
		Interrupts: irqs,
	}

	if err := img.validateEntryPoints(); err != nil {
		return nil, err
	}

	return img, nil
}

// validateRegionAlignment enforces spec.md §3's MPU alignment rules.
func validateRegionAlignment(mpu MPUVariant, rd RegionDesc) error {
	switch mpu {
	case MPUArmV7M:
		if rd.Size < 32 || rd.Size&(rd.Size-1) != 0 {
			return fmt.Errorf("size %d is not a power of two >= 32 (ARMv7-M)", rd.Size)
		}
		if rd.Base%rd.Size != 0 {
			return fmt.Errorf("base %#x is not naturally aligned to size %d (ARMv7-M)", rd.Base, rd.Size)
		}
	case MPUArmV8M:
		if rd.Base%32 != 0 || rd.Size%32 != 0 {
			return fmt.Errorf("base %#x / size %d is not 32-byte granular (ARMv8-M)", rd.Base, rd.Size)
		}
	default:
		return fmt.Errorf("unknown MPU variant %d", mpu)
	}
	return nil
}

// validateEntryPoints enforces that every task's entry point lies within one
// of its regions, and its initial stack lies within or one byte past one of
// its regions.
func (img *Image) validateEntryPoints() error {
	for i, td := range img.Tasks {
		var entryOK, stackOK bool
		for _, ri := range td.Regions {
			r := img.Regions[ri]
			if r.Size == 0 {
				continue
			}
			if td.EntryPoint >= r.Base && td.EntryPoint < r.Base+r.Size {
				entryOK = true
			}
			if td.InitialStack >= r.Base && td.InitialStack <= r.Base+r.Size {
				stackOK = true
			}
		}
		if !entryOK {
			return fmt.Errorf("abi: task %d entry point %#x is outside all of its regions", i, td.EntryPoint)
		}
		if !stackOK {
			return fmt.Errorf("abi: task %d initial stack %#x is outside all of its regions", i, td.InitialStack)
		}
	}
	return nil
}
