// Package boot takes a freshly reset machine to scheduled execution.
//
// EarlyInit brings up the LEDs and stdio. KernelInit creates the idle and main
// threads and hands the CPU to the scheduler; it never returns. The main
// thread runs the main trampoline, which wraps the application entry point
// with auto-initialisation, the boot banner and exit handling.
package boot

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/edaniels/golog"
	"go.uber.org/zap"

	"omibyte.io/riot/core/caps"
	"omibyte.io/riot/core/irq"
	"omibyte.io/riot/core/thread"
	"omibyte.io/riot/drivers/led"
	"omibyte.io/riot/sys/pm"
	"omibyte.io/riot/sys/stdio"
	"omibyte.io/riot/sys/vfs"
)

var (
	ErrBootResources = errors.New("boot resources exhausted")
	ErrNoMain        = errors.New("no main function")
	ErrMissing       = errors.New("missing collaborator")
)

// MainFunc is the application entry point. Bare-metal images get a nil args
// slice.
type MainFunc func(args []string) int

// Scheduler is what the boot code needs from the thread scheduler.
type Scheduler interface {
	Create(stack thread.Stack, prio thread.Priority, flags thread.Flags, fn thread.Func, arg any, name string) (thread.PID, error)
	// SwitchContextExit performs the first dispatch and never returns.
	SwitchContextExit()
}

type InterruptController interface {
	Disable() irq.State
}

type AutoInitializer interface {
	RunAll() error
}

// Host is the process layer of hosted builds.
type Host interface {
	Args() []string
	// RecordRetval sets the process exit code unless one was set already.
	RecordRetval(code int) bool
}

type Config struct {
	Capabilities caps.Set

	// Stacks of the two boot threads. Missing stacks are allocated with the
	// default sizes when the sequencer is created.
	IdleStack thread.Stack
	MainStack thread.Stack

	// Banner defaults to DefaultBanner(Version).
	Banner  string
	Version string

	Main MainFunc
}

// Collaborators are the subsystems the boot code drives. Optional ones may be
// nil; they are only used when the matching capability is set.
type Collaborators struct {
	Threads  Scheduler
	IRQ      InterruptController
	Stdio    stdio.Backend
	VFS      *vfs.Table
	LEDs     led.Initializer
	PM       pm.PowerManager
	AutoInit AutoInitializer
	Host     Host

	TestExit    func(code int)
	StackMetric func(name string, stack []byte, size int)

	// Spin is one iteration of the idle loop when there is no power
	// management. Defaults to runtime.Gosched.
	Spin func()

	// Halt is closed when the machine is powered down. Contexts that never
	// return terminate at that point.
	Halt <-chan struct{}

	Logger golog.Logger
}

// Result is the exit result of the application.
type Result struct {
	Code int
}

type Sequencer struct {
	cfg  Config
	caps caps.Set
	c    Collaborators
	log  golog.Logger

	stdioReady bool
	autoInit   sync.Once

	mu     sync.Mutex
	result *Result
}

// DefaultBanner is the line printed before main runs.
func DefaultBanner(version string) string {
	return fmt.Sprintf("main(): This is RIOT! (Version: %s)", version)
}

func New(cfg Config, collab Collaborators) (*Sequencer, error) {
	if cfg.Main == nil {
		return nil, ErrNoMain
	}
	if err := cfg.Capabilities.Validate(); err != nil {
		return nil, err
	}

	set := cfg.Capabilities
	if set.Has(caps.Threads) {
		if collab.Threads == nil {
			return nil, fmt.Errorf("%w: scheduler", ErrMissing)
		}
		if collab.IRQ == nil {
			return nil, fmt.Errorf("%w: interrupt controller", ErrMissing)
		}
		if cfg.MainStack == nil {
			cfg.MainStack = thread.NewStack(thread.StackSizeMain)
		}
		if set.Has(caps.IdleThread) && cfg.IdleStack == nil {
			cfg.IdleStack = thread.NewStack(thread.StackSizeIdle)
		}
	}
	if cfg.Banner == "" {
		version := cfg.Version
		if version == "" {
			version = "unknown"
		}
		cfg.Banner = DefaultBanner(version)
	}

	if collab.Stdio == nil {
		collab.Stdio = stdio.Null{}
	}
	if collab.Spin == nil {
		collab.Spin = runtime.Gosched
	}
	if collab.Logger == nil {
		collab.Logger = zap.NewNop().Sugar()
	}

	return &Sequencer{
		cfg:  cfg,
		caps: set,
		c:    collab,
		log:  collab.Logger,
	}, nil
}

// Capabilities returns the capability set the sequencer was built with.
func (s *Sequencer) Capabilities() caps.Set {
	return s.caps
}

// IdleStack returns the stack of the idle thread, nil without one.
func (s *Sequencer) IdleStack() thread.Stack {
	return s.cfg.IdleStack
}

// MainStack returns the stack of the main thread.
func (s *Sequencer) MainStack() thread.Stack {
	return s.cfg.MainStack
}

// Result returns the exit result once main has returned.
func (s *Sequencer) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

func (s *Sequencer) setResult(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = &Result{Code: code}
}

// park abandons the calling context. The goroutine ends once the machine
// halts.
func (s *Sequencer) park() {
	<-s.c.Halt
	runtime.Goexit()
}
