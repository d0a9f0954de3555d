// Package sched is the hosted priority scheduler.
//
// Every thread runs on its own goroutine but only the thread that owns the
// CPU makes progress; all others are parked on their resume channel. The CPU
// changes hands only at scheduling points (Yield, Sleep, Wakeup, Preempt,
// thread exit), which makes the model fully deterministic. Interrupts raised
// through the irq controller are serviced at Preempt and while the CPU idles.
//
// The kernel API must be called from the goroutine of the thread that owns the
// CPU, or from an interrupt handler. Other goroutines raise interrupts instead.
package sched

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/edaniels/golog"
	"go.uber.org/zap"

	"omibyte.io/riot/core/irq"
	"omibyte.io/riot/core/thread"
)

var (
	ErrStackTooSmall   = errors.New("stack too small")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrTooManyThreads  = errors.New("too many threads")
	ErrNoEntry         = errors.New("thread has no entry function")
	ErrAlreadyRunning  = errors.New("scheduler already running")
)

type hostContext struct {
	resume chan struct{}
}

type Options struct {
	Logger golog.Logger

	// OnDispatch is called with the scheduler lock held every time a thread
	// gets the CPU. It must not call back into the scheduler.
	OnDispatch func(info thread.Info)

	// ArchIdle waits for an interrupt when no thread is runnable. It returns
	// false once the machine halts. Defaults to waiting on the controller.
	ArchIdle func(halt <-chan struct{}) bool
}

type Scheduler struct {
	mu sync.Mutex

	irq       *irq.Controller
	threads   [thread.MaxThreads + 1]*thread.Thread
	contexts  [thread.MaxThreads + 1]*hostContext
	runqueues [thread.PriorityLevels]thread.Queue
	bitcache  uint32

	active        *thread.Thread
	numThreads    int
	created       int
	running       bool
	switchRequest bool

	halt     chan struct{}
	haltOnce sync.Once

	switches atomic.Uint64

	log        golog.Logger
	onDispatch func(thread.Info)
	archIdle   func(halt <-chan struct{}) bool
}

func New(ctl *irq.Controller, opts Options) *Scheduler {
	s := &Scheduler{
		irq:        ctl,
		halt:       make(chan struct{}),
		log:        opts.Logger,
		onDispatch: opts.OnDispatch,
		archIdle:   opts.ArchIdle,
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	if s.archIdle == nil {
		s.archIdle = ctl.Wait
	}
	return s
}

// Create sets up a new thread on the given stack. Unless CreateWithoutYield
// is set and the scheduler is already running, the caller yields to the new
// thread if it is more urgent.
func (s *Scheduler) Create(stack thread.Stack, prio thread.Priority, flags thread.Flags, fn thread.Func, arg any, name string) (thread.PID, error) {
	switch {
	case fn == nil:
		return thread.Undef, ErrNoEntry
	case !prio.Valid():
		return thread.Undef, fmt.Errorf("%w: %d", ErrInvalidPriority, prio)
	case len(stack) < thread.StackSizeMin:
		return thread.Undef, fmt.Errorf("%w: %d < %d bytes", ErrStackTooSmall, len(stack), thread.StackSizeMin)
	}

	s.mu.Lock()
	pid := thread.Undef
	for i := thread.First; int(i) < len(s.threads); i++ {
		if s.threads[i] == nil {
			pid = i
			break
		}
	}
	if pid == thread.Undef {
		s.mu.Unlock()
		return thread.Undef, ErrTooManyThreads
	}

	t := &thread.Thread{
		PID:      pid,
		Name:     name,
		Priority: prio,
		Flags:    flags,
		Stack:    stack,
		Entry:    fn,
		Arg:      arg,
	}
	if flags.Has(thread.CreateStackTest) {
		stack.Fill()
	}
	t.InitFrame()

	ctx := &hostContext{resume: make(chan struct{}, 1)}
	s.threads[pid] = t
	s.contexts[pid] = ctx
	s.numThreads++
	s.created++

	if flags.Has(thread.CreateSleeping) {
		t.Status = thread.Sleeping
	} else {
		s.setRunnableLocked(t)
	}

	s.log.Debugw("thread created", "pid", pid, "name", name, "priority", prio, "stack", len(stack))
	go s.start(t, ctx)

	if s.running && !flags.Has(thread.CreateWithoutYield) && t.Status.Runnable() {
		s.yieldHigherLocked()
		return pid, nil
	}
	s.mu.Unlock()
	return pid, nil
}

func (s *Scheduler) start(t *thread.Thread, ctx *hostContext) {
	if !s.park(ctx) {
		return
	}
	t.Entry(t.Arg)
	s.exit(t)
}

func (s *Scheduler) park(ctx *hostContext) bool {
	select {
	case <-ctx.resume:
		return true
	case <-s.halt:
		return false
	}
}

func (s *Scheduler) setRunnableLocked(t *thread.Thread) {
	if t.Status.Runnable() {
		return
	}
	t.Status = thread.Pending
	s.runqueues[t.Priority].Push(t)
	s.bitcache |= 1 << t.Priority
}

func (s *Scheduler) removeRunnableLocked(t *thread.Thread, status thread.Status) {
	if t.Status.Runnable() {
		rq := &s.runqueues[t.Priority]
		rq.Remove(t)
		if rq.Empty() {
			s.bitcache &^= 1 << t.Priority
		}
	}
	t.Status = status
}

// pickLocked returns the head of the most urgent non-empty run queue.
func (s *Scheduler) pickLocked() *thread.Thread {
	if s.bitcache == 0 {
		return nil
	}
	return s.runqueues[bits.TrailingZeros32(s.bitcache)].Peek()
}

func (s *Scheduler) dispatchLocked(next *thread.Thread) {
	s.active = next
	next.Status = thread.Running
	s.switches.Add(1)
	if s.onDispatch != nil {
		s.onDispatch(next.Info())
	}
	s.contexts[next.PID].resume <- struct{}{}
}

// rescheduleLocked hands the CPU from cur to the most urgent runnable thread.
// It is called with the lock held and releases it. If cur loses the CPU and is
// still alive, the call blocks until cur is dispatched again.
func (s *Scheduler) rescheduleLocked(cur *thread.Thread) {
	next := s.pickLocked()
	if next == cur {
		s.mu.Unlock()
		return
	}
	if cur.Status == thread.Running {
		cur.Status = thread.Pending
	}
	if next != nil {
		s.dispatchLocked(next)
	} else {
		s.active = nil
		go s.idle()
	}
	ctx := s.contexts[cur.PID]
	stopped := cur.Status == thread.Stopped
	s.mu.Unlock()

	if stopped {
		return
	}
	if !s.park(ctx) {
		runtime.Goexit()
	}
}

func (s *Scheduler) yieldHigherLocked() {
	if s.irq.InISR() {
		s.switchRequest = true
		s.mu.Unlock()
		return
	}
	if s.active == nil {
		s.mu.Unlock()
		return
	}
	s.rescheduleLocked(s.active)
}

// idle owns the CPU while no thread is runnable. It services interrupts until
// one of them makes a thread runnable.
func (s *Scheduler) idle() {
	for {
		if !s.archIdle(s.halt) {
			return
		}
		s.irq.Service()

		s.mu.Lock()
		s.switchRequest = false
		if next := s.pickLocked(); next != nil && !s.halted() {
			s.dispatchLocked(next)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// SwitchContextExit performs the first dispatch. It enables interrupts, gives
// the CPU to the most urgent runnable thread and abandons the calling context:
// the call never returns. Once the machine halts the calling goroutine is
// terminated with runtime.Goexit.
func (s *Scheduler) SwitchContextExit() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		panic(ErrAlreadyRunning)
	}
	s.running = true
	s.irq.Enable()
	if next := s.pickLocked(); next != nil {
		s.log.Debugw("first dispatch", "pid", next.PID, "name", next.Name)
		s.dispatchLocked(next)
	} else {
		go s.idle()
	}
	s.mu.Unlock()

	<-s.halt
	runtime.Goexit()
}

// Yield moves the calling thread to the end of its run queue and lets the
// most urgent runnable thread run.
func (s *Scheduler) Yield() {
	s.mu.Lock()
	cur := s.active
	if cur == nil {
		s.mu.Unlock()
		return
	}
	s.runqueues[cur.Priority].Rotate()
	s.rescheduleLocked(cur)
}

// Sleep suspends the calling thread until Wakeup is called for it.
func (s *Scheduler) Sleep() {
	s.mu.Lock()
	cur := s.active
	if cur == nil {
		s.mu.Unlock()
		return
	}
	s.removeRunnableLocked(cur, thread.Sleeping)
	s.rescheduleLocked(cur)
}

// Wakeup makes a sleeping thread runnable again. It reports false if pid does
// not name a sleeping thread. Called from an interrupt handler, the switch is
// deferred to the end of the interrupt.
func (s *Scheduler) Wakeup(pid thread.PID) bool {
	s.mu.Lock()
	t := s.getLocked(pid)
	if t == nil || t.Status != thread.Sleeping {
		s.mu.Unlock()
		return false
	}
	s.setRunnableLocked(t)
	if s.running && s.active != nil && t.Priority.MoreUrgent(s.active.Priority) {
		s.yieldHigherLocked()
		return true
	}
	s.mu.Unlock()
	return true
}

// Preempt marks an interrupt boundary for the calling thread: pending
// interrupts are serviced and the CPU goes to a more urgent thread if one
// became runnable.
func (s *Scheduler) Preempt() {
	if s.halted() {
		runtime.Goexit()
	}
	s.irq.Service()

	s.mu.Lock()
	cur := s.active
	if cur == nil {
		s.mu.Unlock()
		return
	}
	requested := s.switchRequest
	s.switchRequest = false
	if next := s.pickLocked(); requested || next != cur {
		s.rescheduleLocked(cur)
		return
	}
	s.mu.Unlock()
	runtime.Gosched()
}

func (s *Scheduler) exit(t *thread.Thread) {
	s.mu.Lock()
	if s.halted() {
		s.mu.Unlock()
		return
	}
	s.removeRunnableLocked(t, thread.Stopped)
	s.threads[t.PID] = nil
	s.numThreads--
	s.log.Debugw("thread exited", "pid", t.PID, "name", t.Name)
	if s.active == t {
		s.rescheduleLocked(t)
		return
	}
	s.mu.Unlock()
}

func (s *Scheduler) getLocked(pid thread.PID) *thread.Thread {
	if pid < thread.First || int(pid) >= len(s.threads) {
		return nil
	}
	return s.threads[pid]
}

func (s *Scheduler) halted() bool {
	select {
	case <-s.halt:
		return true
	default:
		return false
	}
}

// Shutdown halts the machine. Parked threads terminate; the thread that owns
// the CPU keeps running until its next scheduling point.
func (s *Scheduler) Shutdown() {
	s.haltOnce.Do(func() {
		close(s.halt)
	})
}

// Done is closed once the machine halts.
func (s *Scheduler) Done() <-chan struct{} {
	return s.halt
}

// Running reports whether the first dispatch has happened.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Active returns the PID of the thread that owns the CPU, or thread.Undef
// while the CPU idles.
func (s *Scheduler) Active() thread.PID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return thread.Undef
	}
	return s.active.PID
}

func (s *Scheduler) NumThreads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numThreads
}

// Created returns how many threads were ever created.
func (s *Scheduler) Created() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Switches returns how many dispatches happened so far.
func (s *Scheduler) Switches() uint64 {
	return s.switches.Load()
}

// Get returns a snapshot of the thread with the given PID.
func (s *Scheduler) Get(pid thread.PID) (thread.Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.getLocked(pid)
	if t == nil {
		return thread.Info{}, false
	}
	return t.Info(), true
}

// Threads returns snapshots of all live threads ordered by PID.
func (s *Scheduler) Threads() []thread.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []thread.Info
	for _, t := range s.threads {
		if t != nil {
			result = append(result, t.Info())
		}
	}
	return result
}
