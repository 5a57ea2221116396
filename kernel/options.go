package kernel

import "github.com/joeycumines/go-catrate"

// config holds build-time kernel configuration. Ported from the teacher's
// loopOptions/LoopOption/resolveLoopOptions pattern in eventloop/options.go:
// an unexported config struct, an Option interface backed by a closure
// type, and a resolve function that applies a default then each option in
// order. Unlike the teacher's Loop, nothing here is runtime-mutable — the
// image is statically configured (spec.md §1, §9) — so there is no
// WithX(enabled bool) pair of setters, only construction-time values.
type config struct {
	supervisorFaultBit uint32
	imageID            uint64
	mpu                MPUDriver
	events             *EventsTable
	faultLogLimiter    *catrate.Limiter
	tickSource         func() uint64
	logger             *log
}

// Option configures a Kernel at Startup.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithSupervisorFaultBit sets the notification bit posted to task 0 when
// any other task faults (spec.md §4.7). Defaults to bit 1.
func WithSupervisorFaultBit(bit uint32) Option {
	return optionFunc(func(c *config) { c.supervisorFaultBit = bit })
}

// WithImageID sets the build-time 64-bit image identifier returned by kipc
// op 4 (spec.md §4.8).
func WithImageID(id uint64) Option {
	return optionFunc(func(c *config) { c.imageID = id })
}

// WithMPUDriver overrides the MPU driver. Defaults to an in-memory
// simulation (simMPU), appropriate for tests and cmd/kernsim; a real target
// would supply its ARMv7-M/ARMv8-M register-programming implementation
// here.
func WithMPUDriver(m MPUDriver) Option {
	return optionFunc(func(c *config) { c.mpu = m })
}

// WithEventsTable installs a profiling hook table (spec.md §4, "optional
// profiling hook table"; see also profiling.go and
// original_source/sys/kern/src/profiling.rs, which this is ported from).
func WithEventsTable(t *EventsTable) Option {
	return optionFunc(func(c *config) { c.events = t })
}

// WithFaultLogRateLimit installs a catrate.Limiter bounding how often the
// kernel will emit a structured log line for repeated faults/restarts of
// the same task. IRQ delivery is not logged and so is not limited by it.
// See faultrate.go.
func WithFaultLogRateLimit(l *catrate.Limiter) Option {
	return optionFunc(func(c *config) { c.faultLogLimiter = l })
}

// WithLogger overrides the structured logger used for fault/restart
// diagnostics (logging.go). Defaults to defaultLogger(), writing
// newline-delimited JSON to os.Stderr via stumpy.
func WithLogger(l *log) Option {
	return optionFunc(func(c *config) { c.logger = l })
}

// WithTickSource overrides the function the kernel calls to read the
// current monotonic tick count, for deterministic tests. Defaults to an
// internal counter advanced only by TimerTick.
func WithTickSource(f func() uint64) Option {
	return optionFunc(func(c *config) { c.tickSource = f })
}

func resolveOptions(opts []Option) *config {
	c := &config{
		supervisorFaultBit: 1,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(c)
	}
	if c.mpu == nil {
		c.mpu = newSimMPU()
	}
	if c.logger == nil {
		c.logger = defaultLogger()
	}
	if c.faultLogLimiter == nil {
		c.faultLogLimiter = catrate.NewLimiter(defaultFaultLogRates)
	}
	return c
}
