package boot

import (
	"fmt"

	"omibyte.io/riot/core/caps"
	"omibyte.io/riot/core/thread"
)

const bootFlags = thread.CreateWithoutYield | thread.CreateStackTest

// EarlyInit brings up what has to work before the scheduler exists: the LEDs
// and stdio, and the stdio descriptors when there is a file system layer.
// Calling it again is harmless.
func (s *Sequencer) EarlyInit() {
	if s.caps.Has(caps.LEDs) && s.c.LEDs != nil {
		s.c.LEDs.Init()
	}

	if err := s.c.Stdio.Init(); err != nil {
		s.log.Warnw("stdio init failed", "backend", s.c.Stdio.Name(), "error", err)
	} else {
		s.stdioReady = true
	}

	if s.caps.Has(caps.VFS) && s.c.VFS != nil {
		if err := s.c.VFS.BindStdio(s.c.Stdio); err != nil {
			s.log.Debugw("stdio descriptors not bound", "error", err)
		}
	}
}

// KernelInit starts the system and never returns.
//
// Without threads the main trampoline runs right here and the boot context
// then idles until the machine halts. Otherwise the idle and main threads are
// created with interrupts masked and the scheduler takes over.
func (s *Sequencer) KernelInit() {
	if !s.caps.Has(caps.Threads) {
		s.log.Debugw("threadless boot")
		s.MainTrampoline(nil)
		s.park()
	}

	s.c.IRQ.Disable()

	if s.caps.Has(caps.IdleThread) {
		s.create(s.cfg.IdleStack, thread.PriorityIdle, s.Idle, "idle")
	}
	s.create(s.cfg.MainStack, thread.PriorityMain, s.MainTrampoline, "main")

	s.log.Debugw("switching to scheduler")
	s.c.Threads.SwitchContextExit()
}

func (s *Sequencer) create(stack thread.Stack, prio thread.Priority, fn thread.Func, name string) thread.PID {
	pid, err := s.c.Threads.Create(stack, prio, bootFlags, fn, nil, name)
	if err != nil {
		s.fatal(name, err)
	}
	s.log.Debugw("boot thread created", "name", name, "pid", pid, "priority", prio, "stack", len(stack))
	return pid
}

// fatal stops the boot. There is nothing to fall back to without the boot
// threads, so the error is reported on stdio when possible and then raised
// as a panic.
func (s *Sequencer) fatal(name string, cause error) {
	err := fmt.Errorf("%w: %s thread: %w", ErrBootResources, name, cause)
	if s.stdioReady {
		fmt.Fprintf(s.c.Stdio, "kernel_init(): %v\n", err)
	}
	s.log.Errorw("kernel init failed", "thread", name, "error", cause)
	panic(err)
}
