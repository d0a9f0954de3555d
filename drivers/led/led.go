// Package led drives the on-board LEDs. The hosted bank keeps their state in
// memory and logs every change.
package led

import (
	"errors"
	"fmt"
	"sync"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
)

// MaxLEDs is the number of LEDs a board may declare.
const MaxLEDs = 8

var (
	ErrNoSuchLED      = errors.New("no such led")
	ErrNotInitialized = errors.New("leds not initialized")
)

// Initializer is what early boot needs from the LED driver.
type Initializer interface {
	Init()
}

type Bank struct {
	mu    sync.Mutex
	count int
	state uint8
	init  bool
	log   golog.Logger
}

func NewBank(count int, logger golog.Logger) *Bank {
	if count < 0 {
		count = 0
	} else if count > MaxLEDs {
		count = MaxLEDs
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bank{count: count, log: logger}
}

// Init configures the LED pins and switches every LED off.
func (b *Bank) Init() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = 0
	b.init = true
	b.log.Debugw("leds initialized", "count", b.count)
}

func (b *Bank) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.init
}

func (b *Bank) Count() int {
	return b.count
}

func (b *Bank) set(n int, fn func(state, mask uint8) uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.init {
		return ErrNotInitialized
	}
	if n < 0 || n >= b.count {
		return fmt.Errorf("%w: LED%d", ErrNoSuchLED, n)
	}
	b.state = fn(b.state, 1<<n)
	b.log.Debugw("led", "n", n, "on", b.state&(1<<n) != 0)
	return nil
}

func (b *Bank) On(n int) error {
	return b.set(n, func(state, mask uint8) uint8 { return state | mask })
}

func (b *Bank) Off(n int) error {
	return b.set(n, func(state, mask uint8) uint8 { return state &^ mask })
}

func (b *Bank) Toggle(n int) error {
	return b.set(n, func(state, mask uint8) uint8 { return state ^ mask })
}

// State reports whether LED n is lit. Unknown LEDs are always off.
func (b *Bank) State(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n < 0 || n >= b.count {
		return false
	}
	return b.state&(1<<n) != 0
}
