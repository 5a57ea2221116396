package kernel

// IRQFire implements spec.md §4.6: looks up irq in the image's interrupt
// table, ORs its notification bits into the target task's pending word,
// then masks the IRQ until the target re-enables it via IRQControl. This
// provides backpressure: a task that cannot keep up with its IRQ will not
// be re-entered. Firing an IRQ with no binding, or one already masked, is
// a silent no-op — the architecture layer is responsible for only calling
// this for IRQs the image actually declared.
func (k *Kernel) IRQFire(irq uint32) error {
	if err := k.enter(); err != nil {
		return err
	}
	defer k.exit()

	k.events.isrEnter(irq)
	defer k.events.isrExit(irq)

	if k.irqCounters != nil {
		k.irqCounters.record(irq)
	}

	if !k.irqEnabled[irq] {
		// Already masked at the controller; the architecture layer should
		// not be delivering a masked IRQ, but treat it as a no-op rather
		// than a kernel-detected fault.
		return nil
	}
	desc, ok := k.irqs[irq]
	if !ok {
		return nil
	}

	k.irqEnabled[irq] = false
	k.postNotification(int(desc.Task), desc.Notification)
	return nil
}

// IRQControl implements the irq_control syscall (spec.md §4.6): a task
// re-enables (or disables) delivery of the IRQs bound to it by mask. There
// is no validation that the calling task actually owns every bit in mask —
// an image that misconfigures IRQ ownership is a build-time defect, not a
// runtime one this kernel is positioned to detect cheaply.
func (k *Kernel) IRQControl(callerIdx int, args IRQCtlArgs) (NextTask, error) {
	if err := k.enter(); err != nil {
		return NextTask{}, err
	}
	defer k.exit()

	for irq, desc := range k.irqs {
		if desc.Task == uint32(callerIdx) && args.Mask&desc.Notification != 0 {
			k.irqEnabled[irq] = args.Enable
		}
	}
	return Same(), nil
}

// TimerTick implements spec.md §4.6's special timer-IRQ handling: scan
// every task for a passed deadline, post its timer-notification bits, and
// clear the deadline. No re-arming is required; set_timer (syscall.go)
// installs the next one.
func (k *Kernel) TimerTick() error {
	if err := k.enter(); err != nil {
		return err
	}
	defer k.exit()

	k.events.timerISREnter()
	defer k.events.timerISRExit()

	k.tick++
	now := k.now()

	for _, t := range k.tasks {
		if t.HasDeadline && t.Deadline <= now {
			t.HasDeadline = false
			k.postNotification(t.Index, t.TimerMask)
		}
	}
	return nil
}
