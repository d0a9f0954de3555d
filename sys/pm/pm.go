// Package pm selects the power mode the CPU enters when it has nothing to do.
//
// Modes are numbered from 0 (deepest) to NumModes-1 (lightest). Drivers that
// cannot tolerate a mode block it; SetLowest enters the deepest mode that is
// not blocked, or plain idle when every mode is blocked.
package pm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
)

const NumModes = 4

// Idle is passed to Backend.SetMode when every mode is blocked.
const Idle = NumModes

var (
	ErrInvalidMode  = errors.New("invalid power mode")
	ErrNotBlocked   = errors.New("power mode is not blocked")
	ErrBlockOverrun = errors.New("power mode blocked too often")
)

// PowerManager is what the kernel needs from power management.
type PowerManager interface {
	// SetLowest enters the lowest usable power mode and returns after the
	// next wake-up event.
	SetLowest()
	// Off powers the system down.
	Off()
}

// Backend performs the platform specific transitions.
type Backend interface {
	SetMode(mode int)
	Off()
}

type Manager struct {
	mu      sync.Mutex
	backend Backend
	blocks  [NumModes]uint8
	entries [NumModes + 1]uint64
	off     bool
	log     golog.Logger
}

func New(backend Backend, logger golog.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{backend: backend, log: logger}
}

// Block prevents mode from being entered until a matching Unblock.
func (m *Manager) Block(mode int) error {
	if mode < 0 || mode >= NumModes {
		return fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocks[mode] == ^uint8(0) {
		return fmt.Errorf("%w: %d", ErrBlockOverrun, mode)
	}
	m.blocks[mode]++
	return nil
}

func (m *Manager) Unblock(mode int) error {
	if mode < 0 || mode >= NumModes {
		return fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocks[mode] == 0 {
		return fmt.Errorf("%w: %d", ErrNotBlocked, mode)
	}
	m.blocks[mode]--
	return nil
}

// Lowest returns the mode SetLowest would enter right now.
func (m *Manager) Lowest() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lowestLocked()
}

func (m *Manager) lowestLocked() int {
	for mode, blocked := range m.blocks {
		if blocked == 0 {
			return mode
		}
	}
	return Idle
}

func (m *Manager) SetLowest() {
	m.mu.Lock()
	mode := m.lowestLocked()
	m.entries[mode]++
	m.mu.Unlock()
	m.backend.SetMode(mode)
}

// Entries returns how often the given mode was entered. Idle counts the
// entries with every mode blocked.
func (m *Manager) Entries(mode int) uint64 {
	if mode < 0 || mode > Idle {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[mode]
}

func (m *Manager) Off() {
	m.mu.Lock()
	m.off = true
	m.mu.Unlock()
	m.log.Debugw("power off")
	m.backend.Off()
}

// IsOff reports whether Off was called.
func (m *Manager) IsOff() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.off
}
