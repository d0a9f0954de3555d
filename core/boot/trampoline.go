package boot

import (
	"fmt"

	"omibyte.io/riot/core/caps"
	"omibyte.io/riot/sys/stdio"
)

// MainTrampoline is the body of the main thread. It runs the auto-init
// modules, prints the banner, calls the application and then deals with its
// exit code. The return value is always nil.
func (s *Sequencer) MainTrampoline(arg any) any {
	if s.caps.Has(caps.AutoInit) && s.c.AutoInit != nil {
		s.autoInit.Do(func() {
			s.log.Debugw("auto_init")
			if err := s.c.AutoInit.RunAll(); err != nil {
				s.log.Errorw("auto_init failed", "error", err)
			}
		})
	}

	if s.caps.Has(caps.BootBanner) && !stdio.IsNull(s.c.Stdio) {
		fmt.Fprintln(s.c.Stdio, s.cfg.Banner)
	}

	var args []string
	if s.caps.Has(caps.Hosted) && s.c.Host != nil {
		args = s.c.Host.Args()
	}
	code := s.cfg.Main(args)
	s.setResult(code)
	s.log.Debugw("main returned", "code", code)

	if s.caps.Has(caps.TestExitCallback) && s.c.TestExit != nil {
		s.c.TestExit(code)
	}

	if s.caps.Has(caps.StackUsageMetrics) && s.caps.Has(caps.IdleThread) && s.c.StackMetric != nil {
		s.c.StackMetric("idle", s.cfg.IdleStack, len(s.cfg.IdleStack))
	}

	if s.caps.Has(caps.Hosted) && s.c.Host != nil {
		s.c.Host.RecordRetval(code)
	}

	if s.caps.Has(caps.ExitWithMain) && s.caps.Has(caps.PowerManagement) && s.c.PM != nil {
		s.log.Debugw("main exited, powering off")
		s.c.PM.Off()
	}
	return nil
}
