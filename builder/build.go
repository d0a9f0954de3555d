package builder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/edaniels/golog"
	"github.com/google/shlex"
	"github.com/inhies/go-bytesize"
	"go.uber.org/zap"

	"omibyte.io/riot/core/boot"
	"omibyte.io/riot/core/caps"
	"omibyte.io/riot/core/thread"
	"omibyte.io/riot/cpu/native"
	"omibyte.io/riot/drivers/led"
	"omibyte.io/riot/sys/autoinit"
	"omibyte.io/riot/sys/ps"
	"omibyte.io/riot/sys/stdio"
	"omibyte.io/riot/sys/testutils"
	"omibyte.io/riot/targets"
)

// Image is an application configured for one board.
type Image struct {
	Board         targets.Board
	App           App
	Caps          caps.Set
	Stdio         string
	IdleStackSize int
	MainStackSize int
	Version       string
	// Args includes the application name as the first element.
	Args []string
}

func Build(ctx context.Context, opts Options) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := opts.Environment
	if env == nil {
		env = Environment()
	}

	board, err := targets.All().FindByBoard(first(opts.Board, env.Value("BOARD"), DefaultBoard))
	if err != nil {
		return nil, err
	}
	app, err := FindApp(first(opts.App, env.Value("APPLICATION")))
	if err != nil {
		return nil, err
	}

	set, err := board.Caps()
	if err != nil {
		return nil, err
	}
	enable, err := caps.Parse(append(append([]string(nil), app.Requires...), opts.Enable...))
	if err != nil {
		return nil, err
	}
	disable, err := caps.Parse(opts.Disable)
	if err != nil {
		return nil, err
	}
	set = (set | enable) &^ disable
	if err := set.Validate(); err != nil {
		return nil, err
	}

	idle, main := board.StackSizes()
	if idle, err = stackSize(opts.IdleStackSize, idle); err != nil {
		return nil, err
	}
	if main, err = stackSize(opts.MainStackSize, main); err != nil {
		return nil, err
	}

	args, err := shlex.Split(first(opts.Args, env.Value("RIOT_TERMFLAGS")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if len(args) > 0 && !set.Has(caps.Hosted) {
		return nil, fmt.Errorf("%w: %s takes no command line", ErrUnsupportedOption, board.Name)
	}

	return &Image{
		Board:         board,
		App:           app,
		Caps:          set,
		Stdio:         first(opts.Stdio, board.Stdio, "native"),
		IdleStackSize: idle,
		MainStackSize: main,
		Version:       first(opts.Version, env.Value("RIOT_VERSION"), DefaultVersion),
		Args:          append([]string{app.Name}, args...),
	}, nil
}

// Boot runs the image on a simulated core until it powers off or ctx is done,
// and returns the process return code. A nil backend opens the image's stdio.
// Images without exit_with_main keep idling after main returns; ending ctx
// then stops them with main's return code and no error.
func (img *Image) Boot(ctx context.Context, backend stdio.Backend, logger golog.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if backend == nil {
		var err error
		if backend, err = stdio.Open(img.Stdio); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrNoStdio, err)
		}
	}
	if c, ok := backend.(io.Closer); ok {
		defer c.Close()
	}

	m := native.New(native.Options{Args: img.Args, Stdio: backend, Logger: logger})
	sys := &System{
		Machine:  m,
		Board:    img.Board,
		LEDs:     led.NewBank(img.Board.LEDs, logger),
		AutoInit: autoinit.NewRegistry(logger),
		Log:      logger,
	}
	modules := []autoinit.Module{{
		Name:     "ztimer",
		Priority: autoinit.PrioTimers,
		Init: func() {
			m.StartClock()
		},
	}}
	if img.App.Modules != nil {
		modules = append(modules, img.App.Modules(sys)...)
	}
	for _, mod := range modules {
		if err := sys.AutoInit.Register(mod); err != nil {
			return 0, err
		}
	}

	seq, err := boot.New(boot.Config{
		Capabilities: img.Caps,
		IdleStack:    thread.NewStack(img.IdleStackSize),
		MainStack:    thread.NewStack(img.MainStackSize),
		Version:      img.Version,
		Main: func(args []string) int {
			return img.App.Main(sys, args)
		},
	}, boot.Collaborators{
		Threads:  m.Sched,
		IRQ:      m.IRQ,
		Stdio:    backend,
		VFS:      m.VFS,
		LEDs:     sys.LEDs,
		PM:       m.PM,
		AutoInit: sys.AutoInit,
		Host:     m,
		TestExit: testutils.MainExitCallback(backend),
		StackMetric: func(name string, stack []byte, size int) {
			ps.PrintStackUsageMetric(backend, name, stack, size)
		},
		Spin:   m.Spin,
		Halt:   m.Halt(),
		Logger: logger,
	})
	if err != nil {
		return 0, err
	}

	logger.Debugw("booting", "board", img.Board.Name, "app", img.App.Name, "caps", img.Caps.String())
	if err := m.Reset(func() {
		seq.EarlyInit()
		seq.KernelInit()
	}); err != nil {
		return 0, err
	}
	code, err := m.Wait(ctx)
	if err != nil && errors.Is(err, ctx.Err()) {
		if res, ok := seq.Result(); ok {
			logger.Debugw("stopped after main returned", "retval", res.Code)
			return res.Code, nil
		}
	}
	return code, err
}

func stackSize(s string, _default int) (int, error) {
	if s == "" {
		return _default, nil
	}
	size, err := bytesize.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStackSize, err)
	}
	if int(size) < thread.StackSizeMin {
		return 0, fmt.Errorf("%w: %s is below %d bytes", ErrInvalidStackSize, s, thread.StackSizeMin)
	}
	return int(size), nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
