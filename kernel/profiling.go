package kernel

// EventsTable is an optional table of profiling hooks, invoked around the
// events spec.md's architecture layer would want to instrument: syscall
// entry/exit, ISR entry/exit, timer-ISR entry/exit, and context switches.
// Ported from original_source/sys/kern/src/profiling.rs's EventsTable,
// which does the same thing via a macro-generated struct of function
// pointers read out of a linker-placed symbol; here it is just a struct of
// Go closures, installed via WithEventsTable. Any nil field is skipped.
type EventsTable struct {
	SyscallEnter func(task int, syscallNum uint32)
	SyscallExit  func(task int)
	ISREnter     func(irq uint32)
	ISRExit      func(irq uint32)
	TimerISREnter func()
	TimerISRExit  func()
	ContextSwitch func(task int)
}

func (e *EventsTable) syscallEnter(task int, num uint32) {
	if e != nil && e.SyscallEnter != nil {
		e.SyscallEnter(task, num)
	}
}

func (e *EventsTable) syscallExit(task int) {
	if e != nil && e.SyscallExit != nil {
		e.SyscallExit(task)
	}
}

func (e *EventsTable) isrEnter(irq uint32) {
	if e != nil && e.ISREnter != nil {
		e.ISREnter(irq)
	}
}

func (e *EventsTable) isrExit(irq uint32) {
	if e != nil && e.ISRExit != nil {
		e.ISRExit(irq)
	}
}

func (e *EventsTable) timerISREnter() {
	if e != nil && e.TimerISREnter != nil {
		e.TimerISREnter()
	}
}

func (e *EventsTable) timerISRExit() {
	if e != nil && e.TimerISRExit != nil {
		e.TimerISRExit()
	}
}

func (e *EventsTable) contextSwitch(task int) {
	if e != nil && e.ContextSwitch != nil {
		e.ContextSwitch(task)
	}
}

// IRQCounters tracks, per IRQ number, how many times IRQFire was called for
// it, including calls while the IRQ was masked or had no binding, which
// deliver no notification. Grounded on
// original_source/sys/kern/src/isr_counts.rs's per-IRQ firing counters,
// collapsed here from a fixed-size linker-placed array to a map since the
// IRQ numbering space is supplied by the image rather than fixed at
// kernel-build time.
type IRQCounters struct {
	counts map[uint32]uint64
}

func newIRQCounters() *IRQCounters {
	return &IRQCounters{counts: make(map[uint32]uint64)}
}

func (c *IRQCounters) record(irq uint32) {
	c.counts[irq]++
}

// Count returns how many times irq has fired.
func (c *IRQCounters) Count(irq uint32) uint64 {
	return c.counts[irq]
}
