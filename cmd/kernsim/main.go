// Command kernsim runs a gokernel image on the host, standing in for the
// architecture layer that a real ARMv7-M/ARMv8-M target would provide:
// it owns the flat memory the kernel copies IPC payloads through, drives
// Kernel.Step to pick the next task, and feeds Kernel.TimerTick from a
// host-monotonic periodic wakeup (tick_linux.go / tick_other.go) since
// there is no SysTick here. It does not execute task code — there is none
// to execute, the kernel core being the entire subject of this module —
// it only exercises the kernel's scheduling and timer machinery against a
// real parsed image, which is what makes it useful for manual testing.
// Since it issues no syscalls, it never sees ErrSupervisorFault and has no
// reboot path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/oxidecomputer/gokernel/abi"
	"github.com/oxidecomputer/gokernel/kernel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "kernsim:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		imagePath = flag.String("image", "", "path to a flat application image (spec.md §6 layout)")
		memSize   = flag.Uint64("memsize", 1<<20, "size in bytes of the simulated flat address space")
		tickHz    = flag.Uint("tick-hz", 100, "simulated timer tick frequency")
		mpuArch   = flag.String("mpu", "v7m", "MPU variant: v7m or v8m")
	)
	flag.Parse()

	if *imagePath == "" {
		return errors.New("-image is required")
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	variant := abi.MPUArmV7M
	if *mpuArch == "v8m" {
		variant = abi.MPUArmV8M
	}

	image, err := abi.ParseImage(data, variant)
	if err != nil {
		return fmt.Errorf("parsing image: %w", err)
	}

	log := logiface.New[*stumpy.Event](stumpy.WithStumpy())

	mem := make(kernel.Memory, *memSize)

	k, err := boot(image, mem, log)
	if err != nil {
		return err
	}

	if *tickHz == 0 {
		*tickHz = 100
	}
	ticks, err := newTickSource(time.Second / time.Duration(*tickHz))
	if err != nil {
		return fmt.Errorf("creating tick source: %w", err)
	}
	defer ticks.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().Int(`tasks`, k.TaskCount()).Log(`kernel started`)

	for {
		select {
		case <-ctx.Done():
			log.Info().Log(`shutting down`)
			return nil
		default:
		}

		n, err := ticks.Wait()
		if err != nil {
			return fmt.Errorf("waiting for tick: %w", err)
		}
		for i := uint64(0); i < n; i++ {
			if err := k.TimerTick(); err != nil {
				return fmt.Errorf("timer tick: %w", err)
			}
		}

		// Step only schedules; it cannot itself return ErrSupervisorFault
		// (that comes back from Dispatch, which only a real syscall-issuing
		// task would drive — see kernel/fault_test.go for the reboot policy
		// this harness has nothing to exercise it with).
		idx, err := k.Step()
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		_ = idx
	}
}

// boot starts a Kernel over freshly zeroed memory, the way a real reset
// leaves RAM in a known state. run calls it once.
func boot(image *abi.Image, mem kernel.Memory, log *logiface.Logger[*stumpy.Event]) (*kernel.Kernel, error) {
	for i := range mem {
		mem[i] = 0
	}
	return kernel.Startup(image, mem, kernel.WithLogger(log))
}
