//go:build linux

package engine

import (
	"time"

	"golang.org/x/sys/unix"
)

// Waiter is the single suspension point of the event loop (§5): it blocks
// until the virtual device or the socket is readable, or timeout elapses.
// Abstracted behind an interface so the dispatch logic can be driven by a
// scripted fake in tests without real file descriptors.
type Waiter interface {
	// Wait blocks for at most timeout; a timeout <= 0 checks readiness
	// without blocking. It reports which of the two watched descriptors
	// became readable.
	Wait(timeout time.Duration) (devReady, sockReady bool, err error)
}

// pollWaiter waits on two raw file descriptors via poll(2).
type pollWaiter struct {
	fds [2]unix.PollFd
}

// NewPollWaiter builds a Waiter over the virtual device and socket
// descriptors, device first so callers can read Revents positionally.
func NewPollWaiter(devFd, sockFd int32) Waiter {
	return &pollWaiter{fds: [2]unix.PollFd{
		{Fd: devFd, Events: unix.POLLIN},
		{Fd: sockFd, Events: unix.POLLIN},
	}}
}

func (w *pollWaiter) Wait(timeout time.Duration) (devReady, sockReady bool, err error) {
	w.fds[0].Revents = 0
	w.fds[1].Revents = 0
	ms := durationToPollMillis(timeout)
	n, perr := unix.Poll(w.fds[:], ms)
	if perr != nil {
		if perr == unix.EINTR {
			return false, false, nil
		}
		return false, false, perr
	}
	if n == 0 {
		return false, false, nil
	}
	devReady = w.fds[0].Revents&unix.POLLIN != 0
	sockReady = w.fds[1].Revents&unix.POLLIN != 0
	return devReady, sockReady, nil
}

// durationToPollMillis converts a trigger-clock remaining-time duration
// into a poll(2) timeout, rounding up so the loop never busy-spins ahead
// of the period deadline.
func durationToPollMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > int64(^uint32(0)>>1) {
		ms = int64(^uint32(0) >> 1)
	}
	return int(ms)
}
