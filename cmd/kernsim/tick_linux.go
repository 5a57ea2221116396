//go:build linux

package main

import (
	"time"

	"golang.org/x/sys/unix"
)

// tickSource is a monotonic, periodic wakeup used as the host-side stand-in
// for a real target's SysTick interrupt. Grounded on the teacher's
// eventloop/wakeup_linux.go, which reaches for golang.org/x/sys/unix
// instead of the standard library to get a raw, signal-safe OS primitive
// (there: eventfd for cross-goroutine wakeup; here: timerfd for a periodic
// monotonic deadline) rather than layering on time.Ticker's goroutine and
// channel machinery.
type tickSource struct {
	fd int
}

func newTickSource(period time.Duration) (*tickSource, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(period.Nanoseconds()),
		Value:    unix.NsecToTimespec(period.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &tickSource{fd: fd}, nil
}

// Wait blocks until the next periodic deadline, returning the number of
// ticks that elapsed (normally 1, but more if the host starved kernsim).
func (t *tickSource) Wait() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(t.fd, buf[:])
	if err != nil {
		return 0, err
	}
	if n != 8 {
		return 1, nil
	}
	return uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56, nil
}

func (t *tickSource) Close() error {
	return unix.Close(t.fd)
}
