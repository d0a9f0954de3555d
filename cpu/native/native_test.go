package native

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edaniels/golog"

	"omibyte.io/riot/core/boot"
	"omibyte.io/riot/core/caps"
	"omibyte.io/riot/core/thread"
	"omibyte.io/riot/sys/pm"
	"omibyte.io/riot/sys/ps"
	"omibyte.io/riot/sys/stdio"
	"omibyte.io/riot/sys/testutils"
)

func newSequencer(t *testing.T, m *Machine, set caps.Set, main boot.MainFunc) *boot.Sequencer {
	t.Helper()
	seq, err := boot.New(boot.Config{
		Capabilities: set,
		Version:      "test",
		Main:         main,
	}, boot.Collaborators{
		Threads:     m.Sched,
		IRQ:         m.IRQ,
		Stdio:       m.Stdio,
		VFS:         m.VFS,
		PM:          m.PM,
		Host:        m,
		TestExit:    testutils.MainExitCallback(m.Stdio),
		StackMetric: func(name string, stack []byte, size int) { ps.PrintStackUsageMetric(m.Stdio, name, stack, size) },
		Spin:        m.Spin,
		Halt:        m.Halt(),
		Logger:      golog.NewTestLogger(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	return seq
}

func run(t *testing.T, m *Machine, seq *boot.Sequencer) (int, error) {
	t.Helper()
	if err := m.Reset(func() {
		seq.EarlyInit()
		seq.KernelInit()
	}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Wait(ctx)
}

func TestBootToPowerOff(t *testing.T) {
	out := stdio.NewBuffer()
	var dispatched []string
	m := New(Options{
		Args:       []string{"riot", "-v"},
		Stdio:      out,
		Logger:     golog.NewTestLogger(t),
		OnDispatch: func(info thread.Info) { dispatched = append(dispatched, info.Name) },
	})
	m.StartClock()

	set := caps.Of(caps.Threads, caps.IdleThread, caps.BootBanner, caps.ExitWithMain,
		caps.PowerManagement, caps.TestExitCallback, caps.StackUsageMetrics, caps.VFS, caps.Hosted)
	var gotArgs []string
	seq := newSequencer(t, m, set, func(args []string) int {
		gotArgs = args
		// Sleeping leaves only the idle thread runnable.
		m.Sleep(10 * time.Millisecond)
		return 7
	})

	code, err := run(t, m, seq)
	if err != nil {
		t.Fatal(err)
	}
	if code != 7 {
		t.Errorf("expected retval 7, got %d", code)
	}
	if strings.Join(gotArgs, " ") != "riot -v" {
		t.Errorf("expected process args, got %v", gotArgs)
	}

	expected := "main(): This is RIOT! (Version: test)\n" +
		"main(): returned 7\n" +
		`{"threads": [{"name": "idle", "stack_size": 256, "stack_used": 80}]}` + "\n"
	if out.String() != expected {
		t.Errorf("expected output\n%s\ngot\n%s", expected, out.String())
	}

	if m.PM.Entries(0) == 0 {
		t.Error("expected the idle thread to enter a power mode while main slept")
	}
	if !m.PM.IsOff() {
		t.Error("expected power off after main returned")
	}
	if len(dispatched) < 3 || dispatched[0] != "main" || dispatched[1] != "idle" || dispatched[2] != "main" {
		t.Errorf("expected main, idle, main dispatch order, got %v", dispatched)
	}
}

func TestIdleSpinsWithoutPM(t *testing.T) {
	m := New(Options{Stdio: stdio.NewBuffer(), Logger: golog.NewTestLogger(t)})
	m.StartClock()
	done := make(chan struct{})
	seq := newSequencer(t, m, caps.Of(caps.Threads, caps.IdleThread), func([]string) int {
		m.Sleep(5 * time.Millisecond)
		close(done)
		return 0
	})
	if err := m.Reset(func() {
		seq.EarlyInit()
		seq.KernelInit()
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main never woke up while idle spun")
	}

	// Nothing powers the machine off, so only the context ends the run.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the machine to keep idling, got %v", err)
	}
}

func TestThreadlessBoot(t *testing.T) {
	out := stdio.NewBuffer()
	m := New(Options{Stdio: out})
	set := caps.Of(caps.BootBanner, caps.ExitWithMain, caps.PowerManagement, caps.Hosted)
	seq := newSequencer(t, m, set, func([]string) int { return 3 })

	code, err := run(t, m, seq)
	if err != nil || code != 3 {
		t.Fatalf("expected retval 3, got %d %v", code, err)
	}
	if m.Sched.Created() != 0 {
		t.Errorf("expected no threads, got %d", m.Sched.Created())
	}
	if !strings.HasPrefix(out.String(), "main(): This is RIOT!") {
		t.Errorf("expected banner, got %q", out.String())
	}
}

func TestRetval(t *testing.T) {
	m := New(Options{Stdio: stdio.Null{}})
	if !m.RecordRetval(1) {
		t.Fatal("expected first value to be recorded")
	}
	if m.RecordRetval(2) || m.Retval() != 1 {
		t.Errorf("expected the first recorded value to stick, got %d", m.Retval())
	}
	m.SetRetval(5)
	if m.Retval() != 5 {
		t.Errorf("expected SetRetval to overwrite, got %d", m.Retval())
	}
}

func TestResetFault(t *testing.T) {
	m := New(Options{Stdio: stdio.Null{}})
	if err := m.Reset(func() { panic(boot.ErrBootResources) }); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(func() {}); !errors.Is(err, ErrAlreadyReset) {
		t.Errorf("expected ErrAlreadyReset, got %v", err)
	}
	_, err := m.Wait(context.Background())
	if !errors.Is(err, ErrFault) || !errors.Is(err, boot.ErrBootResources) {
		t.Errorf("expected a boot fault, got %v", err)
	}
}

func TestPowerModeLowest(t *testing.T) {
	m := New(Options{Stdio: stdio.Null{}})
	if err := m.PM.Block(0); err != nil {
		t.Fatal(err)
	}
	if m.PM.Lowest() != 1 {
		t.Errorf("expected mode 1 with mode 0 blocked, got %d", m.PM.Lowest())
	}
	var _ pm.Backend = m
}

func TestSleepNeedsClock(t *testing.T) {
	m := New(Options{Stdio: stdio.Null{}, Logger: golog.NewTestLogger(t)})
	if m.Clock() != nil || m.Uptime() != 0 {
		t.Fatal("expected no clock before StartClock")
	}
	if err := m.Sleep(time.Millisecond); !errors.Is(err, ErrNoClock) {
		t.Errorf("expected ErrNoClock, got %v", err)
	}

	c := m.StartClock()
	if m.StartClock() != c {
		t.Error("expected a second start to keep the running clock")
	}
	// Outside a thread there is nothing to suspend.
	if err := m.Sleep(time.Hour); err != nil {
		t.Errorf("expected an immediate return, got %v", err)
	}
	time.Sleep(time.Millisecond)
	if m.Uptime() < time.Millisecond {
		t.Errorf("expected the clock to advance, got %s", m.Uptime())
	}
}

func TestSleepLastsUntilDeadline(t *testing.T) {
	m := New(Options{Stdio: stdio.NewBuffer(), Logger: golog.NewTestLogger(t)})
	clock := m.StartClock()
	const delay = 20 * time.Millisecond
	slept := make(chan time.Duration, 1)
	seq := newSequencer(t, m, caps.Of(caps.Threads, caps.IdleThread, caps.ExitWithMain, caps.PowerManagement), func([]string) int {
		worker, err := m.Sched.Create(thread.NewStack(thread.StackSizeDefault), thread.PriorityMain-1, thread.CreateWithoutYield, func(any) any {
			start := clock.Now()
			if err := m.Sleep(delay); err != nil {
				t.Error(err)
			}
			slept <- time.Duration(clock.Now() - start)
			return nil
		}, nil, "worker")
		if err != nil {
			t.Error(err)
			return 1
		}
		m.Sched.Yield()
		// An early wakeup sends the worker back to sleep.
		m.Sched.Wakeup(worker)
		for len(slept) == 0 {
			m.Sleep(time.Millisecond)
		}
		return 0
	})

	if _, err := run(t, m, seq); err != nil {
		t.Fatal(err)
	}
	select {
	case d := <-slept:
		if d < delay {
			t.Errorf("expected to sleep at least %s, slept %s", delay, d)
		}
	default:
		t.Error("worker never finished its sleep")
	}
}
