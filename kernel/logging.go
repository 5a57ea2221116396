package kernel

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// log is the logger type used throughout the kernel package: logiface's
// generic Logger instantiated over stumpy's own Event implementation (a
// compact structured-JSON writer), exactly as the teacher's own packages
// configure logiface over a concrete Event type (see
// logiface-slog/logger.go's matching pattern for its own Event). A kernel
// running on a real target would swap WithStumpy for a UART/semihosting
// writer; the logging call sites never need to know the difference.
type log = logiface.Logger[*stumpy.Event]

// defaultLogger builds the kernel's default logger, writing newline-
// delimited JSON to os.Stderr via stumpy. Startup uses this unless an
// Option overrides it.
func defaultLogger() *log {
	return logiface.New[*stumpy.Event](stumpy.WithStumpy())
}

// logFault emits a structured diagnostic for a task entering Faulted,
// subject to shouldLogFault's rate limiting (faultrate.go). Fields mirror
// spec.md §4.7's FaultInfo payload.
func (k *Kernel) logFault(idx int, info FaultInfo) {
	if !k.shouldLogFault(idx) {
		return
	}
	k.logger.Warning().
		Int(`task`, idx).
		Str(`kind`, info.Kind.String()).
		Log(`task faulted`)
}

// logRestart emits a structured diagnostic for a task restart.
func (k *Kernel) logRestart(idx int, start bool) {
	if !k.shouldLogFault(idx) {
		return
	}
	k.logger.Info().
		Int(`task`, idx).
		Str(`sched`, boolSched(start)).
		Log(`task restarted`)
}

func boolSched(start bool) string {
	if start {
		return "started"
	}
	return "stopped"
}
