package boot

import "omibyte.io/riot/core/caps"

// Idle is the body of the idle thread. It never returns: each round asks for
// the lowest power mode, which returns on the next interrupt, or spins when
// there is no power management.
func (s *Sequencer) Idle(arg any) any {
	usePM := s.caps.Has(caps.PowerManagement) && s.c.PM != nil
	for {
		if usePM {
			s.c.PM.SetLowest()
		} else {
			s.c.Spin()
		}
	}
}
