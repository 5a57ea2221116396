package kernel

import "github.com/oxidecomputer/gokernel/abi"

// Startup builds a Kernel from a parsed, validated image and a backing
// memory space, resolving each task's region table once (spec.md §3's
// "resolved region table: a small fixed-size array of references to that
// task's region descriptors, computed once at startup") and promoting
// tasks flagged START_AT_BOOT to Runnable.
func Startup(image *abi.Image, mem Memory, opts ...Option) (*Kernel, error) {
	c := resolveOptions(opts)

	k := &Kernel{
		mem:                mem,
		mpu:                c.mpu,
		events:             c.events,
		logger:             c.logger,
		faultLogLimiter:    c.faultLogLimiter,
		imageID:            c.imageID,
		supervisorFaultBit: c.supervisorFaultBit,
		irqs:               make(map[uint32]abi.Interrupt, len(image.Interrupts)),
		irqEnabled:         make(map[uint32]bool, len(image.Interrupts)),
		irqCounters:        newIRQCounters(),
		tickSource:         c.tickSource,
		current:            -1,
	}

	k.tasks = make([]*Task, len(image.Tasks))
	for i, desc := range image.Tasks {
		regions := make([]abi.RegionDesc, 0, len(desc.Regions))
		for _, ri := range desc.Regions {
			regions = append(regions, image.Regions[ri])
		}
		t := newTask(i, desc, regions)
		if desc.Flags&abi.FlagStartAtBoot != 0 {
			t.State = Healthy(SchedRunnable)
		}
		k.tasks[i] = t
	}

	for _, irq := range image.Interrupts {
		k.irqs[irq.IRQ] = irq
		k.irqEnabled[irq.IRQ] = true
	}

	if len(k.tasks) > 0 {
		if err := k.mpu.Load(k.tasks[0].Regions); err != nil {
			return nil, err
		}
	}

	return k, nil
}
