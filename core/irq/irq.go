// Package irq emulates the interrupt controller of a single-core target.
//
// Interrupts are raised from any goroutine with Trigger and are only run at
// interrupt boundaries, when the thread that owns the CPU calls Service. While
// interrupts are disabled Service leaves them pending.
package irq

import (
	"sync"
	"sync/atomic"
)

// State is the interrupt mask returned by Disable and Enable.
type State uint32

const (
	Masked   State = 0
	Unmasked State = 1
)

// Handler is an interrupt service routine.
type Handler func()

type pending struct {
	name    string
	handler Handler
}

type Controller struct {
	mu      sync.Mutex
	enabled bool
	queue   []pending
	wake    chan struct{}

	inISR    atomic.Bool
	serviced atomic.Uint64
}

// NewController returns a controller with interrupts disabled, the state a
// core comes out of reset in.
func NewController() *Controller {
	return &Controller{
		wake: make(chan struct{}, 1),
	}
}

func (c *Controller) set(enabled bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := Masked
	if c.enabled {
		old = Unmasked
	}
	c.enabled = enabled
	if enabled && len(c.queue) > 0 {
		c.notify()
	}
	return old
}

// Disable masks interrupts and returns the previous state.
func (c *Controller) Disable() State {
	return c.set(false)
}

// Enable unmasks interrupts and returns the previous state.
func (c *Controller) Enable() State {
	return c.set(true)
}

// Restore puts back a state returned by Disable or Enable.
func (c *Controller) Restore(state State) {
	c.set(state == Unmasked)
}

func (c *Controller) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// InISR reports whether an interrupt handler is currently running.
func (c *Controller) InISR() bool {
	return c.inISR.Load()
}

// Serviced returns how many handlers have run so far.
func (c *Controller) Serviced() uint64 {
	return c.serviced.Load()
}

func (c *Controller) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Trigger raises an interrupt. It may be called from any goroutine.
func (c *Controller) Trigger(name string, h Handler) {
	c.mu.Lock()
	c.queue = append(c.queue, pending{name: name, handler: h})
	if c.enabled {
		c.notify()
	}
	c.mu.Unlock()
}

// Pending returns the number of interrupts waiting to be serviced.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Wait blocks until a deliverable interrupt is pending or halt is closed. It
// reports false in the latter case.
func (c *Controller) Wait(halt <-chan struct{}) bool {
	for {
		c.mu.Lock()
		ready := c.enabled && len(c.queue) > 0
		c.mu.Unlock()
		if ready {
			return true
		}

		select {
		case <-c.wake:
		case <-halt:
			return false
		}
	}
}

// Service runs every pending handler in the order they were raised, provided
// interrupts are enabled. It returns the number of handlers run.
func (c *Controller) Service() int {
	n := 0
	for {
		c.mu.Lock()
		if !c.enabled || len(c.queue) == 0 {
			c.mu.Unlock()
			return n
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.inISR.Store(true)
		if next.handler != nil {
			next.handler()
		}
		c.inISR.Store(false)
		c.serviced.Add(1)
		n++
	}
}
