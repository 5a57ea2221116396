package kernel

import (
	"github.com/joeycumines/go-catrate"
	"github.com/oxidecomputer/gokernel/abi"
)

// Kernel is the runtime state of a single running image: the task table,
// the flat memory the architecture layer maps tasks into, the currently
// armed IRQ-to-notification table, and everything Startup resolved once
// from an abi.Image. There is exactly one Kernel per boot — restart
// (fault.go) mutates tasks in place rather than replacing the Kernel.
//
// Every exported method that touches the task table funnels through
// enter/exit, the Go expression of spec.md §5's TASK_TABLE_IN_USE guard: the
// kernel never runs two operations concurrently (there is only ever one
// goroutine driving it — see cmd/kernsim), but a bug that caused one kernel
// entry point to call another reentrantly is exactly the class of defect
// the guard exists to catch loudly instead of corrupting state silently.
type Kernel struct {
	tasks []*Task
	mem   Memory

	// current is the index of the task the scheduler last selected.
	current int

	mpu    MPUDriver
	events *EventsTable
	logger *log

	faultLogLimiter *catrate.Limiter

	imageID            uint64
	supervisorFaultBit uint32

	irqs        map[uint32]abi.Interrupt
	irqEnabled  map[uint32]bool
	irqCounters *IRQCounters

	tickSource func() uint64
	tick       uint64

	inUse bool
}

// NextTaskKind discriminates the NextTask hint a syscall handler returns to
// Dispatch's caller, telling it what the scheduler should do next.
type NextTaskKind uint8

const (
	// NextSame means the calling task remains Runnable and may continue
	// executing without a context switch (spec.md §4.9's common case: a
	// syscall that neither blocks nor affects another Runnable task of
	// equal or higher importance).
	NextSame NextTaskKind = iota
	// NextReschedule means the scheduler must re-run Select, because the
	// calling task blocked, or another task's runnability may have
	// changed (e.g. a higher-priority peer was just unblocked).
	NextReschedule
	// NextSpecific means a specific task (not necessarily the caller)
	// should run next, bypassing Select. deliverSend (ipc.go) returns it to
	// hand the CPU to the receiver that was just given a message; no
	// priority comparison against other Runnable tasks is made.
	NextSpecific
)

// NextTask is the scheduling hint threaded back out of every syscall
// handler in syscall.go.
type NextTask struct {
	Kind  NextTaskKind
	Index int
}

// Same constructs the NextSame hint.
func Same() NextTask { return NextTask{Kind: NextSame} }

// Reschedule constructs the NextReschedule hint.
func Reschedule() NextTask { return NextTask{Kind: NextReschedule} }

// SpecificTask constructs the NextSpecific hint.
func SpecificTask(idx int) NextTask { return NextTask{Kind: NextSpecific, Index: idx} }

// enter acquires the task-table reentrancy guard, returning ErrTableInUse
// if it is already held. Paired with exit via defer at every public entry
// point (Dispatch, PostNotification, IRQFire, TimerTick, Step).
func (k *Kernel) enter() error {
	if k.inUse {
		return ErrTableInUse
	}
	k.inUse = true
	return nil
}

func (k *Kernel) exit() {
	k.inUse = false
}

// now returns the kernel's current tick count, via the configured
// tickSource (TimerTick's default, or a deterministic test override
// installed with WithTickSource).
func (k *Kernel) now() uint64 {
	if k.tickSource != nil {
		return k.tickSource()
	}
	return k.tick
}

// Step runs one round of scheduling: selects the highest-importance
// Runnable task starting the circular scan just after whichever task last
// ran, reprograms the MPU if the selection changed, and returns its index.
// A return of -1 means no task is Runnable (the image is fully idle,
// waiting on external events) — spec.md does not mandate a behavior here
// beyond "the kernel need not busy-loop", which cmd/kernsim implements by
// blocking on its event sources instead of calling Step again immediately.
func (k *Kernel) Step() (int, error) {
	if err := k.enter(); err != nil {
		return -1, err
	}
	defer k.exit()

	if len(k.tasks) == 0 {
		return -1, ErrNotRunning
	}

	next := Select(k.tasks, k.current)
	if next < 0 {
		return -1, nil
	}

	if next != k.current {
		if err := k.mpu.Load(k.tasks[next].Regions); err != nil {
			return -1, err
		}
		k.events.contextSwitch(next)
		k.current = next
	}

	return next, nil
}

// Task returns the task record at idx, or nil if out of range. Exposed
// read-only for cmd/kernsim and tests; kernel-internal code always indexes
// k.tasks directly since it already holds the table.
func (k *Kernel) Task(idx int) *Task {
	if idx < 0 || idx >= len(k.tasks) {
		return nil
	}
	return k.tasks[idx]
}

// TaskCount reports the number of tasks in the image.
func (k *Kernel) TaskCount() int { return len(k.tasks) }

// Current reports the index of the task Step last selected.
func (k *Kernel) Current() int { return k.current }
