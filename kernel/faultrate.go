package kernel

import "time"

// defaultFaultLogRates bounds diagnostic log volume for repeated faults of
// the same task (e.g. a driver stuck in a crash loop) to 5 per second and
// 60 per minute, per category. This only throttles the *logging* of a
// fault/restart, grounded on the teacher's catrate package (go-catrate);
// the fault and restart bookkeeping itself (state transitions, generation
// bump, notification delivery) is never rate-limited — spec.md requires
// those to be unconditional and immediate.
var defaultFaultLogRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// shouldLogFault reports whether a fault/restart of the given task should
// be logged right now, consulting the configured catrate.Limiter (if any).
// With no limiter configured, every fault is logged.
func (k *Kernel) shouldLogFault(idx int) bool {
	if k.faultLogLimiter == nil {
		return true
	}
	_, ok := k.faultLogLimiter.Allow(idx)
	return ok
}
