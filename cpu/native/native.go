// Package native is the hosted platform: a single simulated core running
// inside the current process.
package native

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"go.uber.org/zap"

	"omibyte.io/riot/core/irq"
	"omibyte.io/riot/core/sched"
	"omibyte.io/riot/core/thread"
	"omibyte.io/riot/sys/pm"
	"omibyte.io/riot/sys/stdio"
	"omibyte.io/riot/sys/vfs"
	"omibyte.io/riot/sys/ztimer"
)

var (
	ErrFault        = errors.New("machine fault")
	ErrAlreadyReset = errors.New("machine already reset")
	ErrNoClock      = errors.New("system clock not started")
)

type Options struct {
	// Args are passed to main on hosted images.
	Args []string
	// Stdio defaults to the process stdout.
	Stdio  stdio.Backend
	Logger golog.Logger

	OnDispatch func(info thread.Info)
}

type Machine struct {
	IRQ   *irq.Controller
	Sched *sched.Scheduler
	PM    *pm.Manager
	VFS   *vfs.Table
	Stdio stdio.Backend

	args []string
	log  golog.Logger

	mu       sync.Mutex
	clock    ztimer.Clock
	retval   int
	recorded bool
	fault    error
	reset    bool
}

func New(opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	backend := opts.Stdio
	if backend == nil {
		backend = stdio.Native()
	}

	m := &Machine{
		IRQ:   irq.NewController(),
		VFS:   vfs.NewTable(),
		Stdio: backend,
		args:  append([]string(nil), opts.Args...),
		log:   logger,
	}
	m.Sched = sched.New(m.IRQ, sched.Options{
		Logger:     logger,
		OnDispatch: opts.OnDispatch,
	})
	m.PM = pm.New(m, logger)
	return m
}

// SetMode is the power mode backend. Every mode waits for the next interrupt
// and then lets the scheduler act on it.
func (m *Machine) SetMode(mode int) {
	if !m.IRQ.Wait(m.Sched.Done()) {
		runtime.Goexit()
	}
	m.Sched.Preempt()
}

// Off halts the machine.
func (m *Machine) Off() {
	m.log.Debugw("machine off", "retval", m.Retval(), "uptime", m.Uptime())
	m.Sched.Shutdown()
}

// Halt is closed once the machine is off.
func (m *Machine) Halt() <-chan struct{} {
	return m.Sched.Done()
}

// Spin is one round of an idle loop without power management.
func (m *Machine) Spin() {
	m.Sched.Preempt()
}

// StartClock starts the system clock. Timed sleeps are only available once
// it runs. Starting it again keeps the running clock.
func (m *Machine) StartClock() ztimer.Clock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clock == nil {
		m.clock = ztimer.NewHostClock()
	}
	return m.clock
}

// Clock returns the system clock, or nil before StartClock.
func (m *Machine) Clock() ztimer.Clock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

// Uptime is the time since the clock started.
func (m *Machine) Uptime() time.Duration {
	c := m.Clock()
	if c == nil {
		return 0
	}
	return time.Duration(c.Now())
}

// Sleep suspends the calling thread for at least d, measured on the system
// clock. A thread woken before its deadline goes back to sleep. Before the
// clock starts Sleep fails with ErrNoClock. Outside a thread it returns at
// once.
func (m *Machine) Sleep(d time.Duration) error {
	c := m.Clock()
	if c == nil {
		m.log.Errorw("sleep before clock start", "duration", d)
		return ErrNoClock
	}
	if m.Sched.Active() == thread.Undef {
		return nil
	}
	deadline := c.Now() + uint64(d)
	for now := c.Now(); now < deadline; now = c.Now() {
		ztimer.Sleep(m.Sched, m.IRQ, time.Duration(deadline-now))
	}
	return nil
}

func (m *Machine) Args() []string {
	return append([]string(nil), m.args...)
}

// RecordRetval sets the process return code unless the platform already set
// one. It reports whether code was taken.
func (m *Machine) RecordRetval(code int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorded {
		return false
	}
	m.retval = code
	m.recorded = true
	return true
}

// SetRetval sets the return code unconditionally.
func (m *Machine) SetRetval(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retval = code
	m.recorded = true
}

func (m *Machine) Retval() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retval
}

// Reset starts the core: handler runs on a fresh goroutine, the way a reset
// handler runs on the boot stack. A panic in handler is a fault and halts the
// machine.
func (m *Machine) Reset(handler func()) error {
	m.mu.Lock()
	if m.reset {
		m.mu.Unlock()
		return ErrAlreadyReset
	}
	m.reset = true
	m.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.mu.Lock()
				if err, ok := r.(error); ok {
					m.fault = fmt.Errorf("%w: %w", ErrFault, err)
				} else {
					m.fault = fmt.Errorf("%w: %v", ErrFault, r)
				}
				m.mu.Unlock()
				m.log.Errorw("fault in reset handler", "panic", r)
				m.Sched.Shutdown()
			}
		}()
		handler()
	}()
	return nil
}

// Wait blocks until the machine is off or ctx is done, and returns the
// process return code. A cancelled context halts the machine.
func (m *Machine) Wait(ctx context.Context) (int, error) {
	select {
	case <-m.Sched.Done():
	case <-ctx.Done():
		m.Sched.Shutdown()
		return m.Retval(), ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retval, m.fault
}
