package builder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edaniels/golog"

	"omibyte.io/riot/core/thread"
	"omibyte.io/riot/cpu/native"
	"omibyte.io/riot/drivers/led"
	"omibyte.io/riot/sys/autoinit"
	"omibyte.io/riot/sys/ps"
	"omibyte.io/riot/targets"
)

// System is what an application sees of the image it runs in.
type System struct {
	*native.Machine
	Board    targets.Board
	LEDs     *led.Bank
	AutoInit *autoinit.Registry
	Log      golog.Logger
}

// Printf writes to stdio.
func (s *System) Printf(format string, args ...any) {
	fmt.Fprintf(s.Stdio, format, args...)
}

// Go starts fn on a new thread with a default sized stack.
func (s *System) Go(name string, prio thread.Priority, fn func()) (thread.PID, error) {
	stack := thread.NewStack(thread.StackSizeDefault)
	return s.Sched.Create(stack, prio, thread.CreateStackTest, func(any) any {
		fn()
		return nil
	}, nil, name)
}

// Ps prints the thread table to stdio.
func (s *System) Ps() error {
	return ps.List(s.Stdio, s.Sched.Threads())
}

type App struct {
	Name        string
	Description string
	// Requires lists capabilities the application cannot run without.
	Requires []string
	// Modules are added to the auto-init registry before boot.
	Modules func(sys *System) []autoinit.Module
	Main    func(sys *System, args []string) int
}

var (
	appsMu sync.Mutex
	apps   = map[string]App{}
)

func Register(list ...App) error {
	appsMu.Lock()
	defer appsMu.Unlock()
	for _, app := range list {
		if _, ok := apps[app.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateApp, app.Name)
		}
		apps[app.Name] = app
	}
	return nil
}

// Apps returns the registered applications sorted by name.
func Apps() []App {
	appsMu.Lock()
	defer appsMu.Unlock()
	result := make([]App, 0, len(apps))
	for _, app := range apps {
		result = append(result, app)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

func FindApp(name string) (App, error) {
	appsMu.Lock()
	defer appsMu.Unlock()
	app, ok := apps[name]
	if !ok {
		return App{}, fmt.Errorf("%w: %q", ErrUnknownApp, name)
	}
	return app, nil
}
