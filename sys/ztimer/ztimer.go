// Package ztimer provides the system clock and timed sleeps for threads.
package ztimer

import (
	"sync/atomic"
	"time"

	"omibyte.io/riot/core/irq"
	"omibyte.io/riot/core/thread"
)

// Clock returns the time since boot in nanoseconds.
type Clock interface {
	Now() (nsec uint64)
}

// HostClock counts from the moment it was created.
type HostClock struct {
	start time.Time
}

func NewHostClock() *HostClock {
	return &HostClock{start: time.Now()}
}

func (c *HostClock) Now() uint64 {
	return uint64(time.Since(c.start))
}

// Scheduler is the part of the scheduler a sleeping thread needs.
type Scheduler interface {
	Active() thread.PID
	Sleep()
	Wakeup(pid thread.PID) bool
}

// Interrupter raises interrupts.
type Interrupter interface {
	Trigger(name string, h irq.Handler)
}

// Sleep suspends the calling thread for at least d. The wake-up is delivered
// as a timer interrupt, so other threads and the idle task run meanwhile.
// A thread woken early by someone else is not woken again by a timer
// interrupt still pending from this sleep.
func Sleep(s Scheduler, ctl Interrupter, d time.Duration) {
	pid := s.Active()
	if pid == thread.Undef {
		return
	}
	var armed atomic.Bool
	armed.Store(true)
	t := time.AfterFunc(d, func() {
		ctl.Trigger("ztimer", func() {
			if armed.CompareAndSwap(true, false) {
				s.Wakeup(pid)
			}
		})
	})
	s.Sleep()
	armed.Store(false)
	t.Stop()
}
