// Package thread holds the thread descriptor shared by the scheduler and the
// boot code. It does not run anything by itself.
package thread

import "fmt"

// PID identifies a thread. PIDs are handed out from 1 upwards and never reused
// while the thread exists.
type PID int16

const (
	Undef PID = -1
	First PID = 1

	// MaxThreads is the size of the thread table.
	MaxThreads = 32
)

func (p PID) String() string {
	if p == Undef {
		return "undef"
	}
	return fmt.Sprintf("%d", int16(p))
}

// Priority of a thread. Lower values are more urgent.
type Priority uint8

const (
	PriorityLevels = 16

	PriorityMin  Priority = PriorityLevels - 1
	PriorityIdle          = PriorityMin
	PriorityMain          = PriorityMin - PriorityLevels/2
)

// Valid reports whether p is a usable priority level.
func (p Priority) Valid() bool {
	return p < PriorityLevels
}

// MoreUrgent reports whether p is scheduled in preference to other.
func (p Priority) MoreUrgent(other Priority) bool {
	return p < other
}

type Flags uint8

const (
	// CreateSleeping leaves the new thread in the Sleeping state until it is
	// woken up explicitly.
	CreateSleeping Flags = 1 << iota
	_
	// CreateWithoutYield stops thread creation from switching to the new
	// thread, even when it is more urgent than the creator.
	CreateWithoutYield
	// CreateStackTest fills the stack with a canary so that its high-water
	// mark can be measured later.
	CreateStackTest
)

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

type Status uint8

const (
	Stopped Status = iota
	Sleeping
	Pending
	Running
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Sleeping:
		return "sleeping"
	case Pending:
		return "pending"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Runnable reports whether a thread in this state belongs on a run queue.
func (s Status) Runnable() bool {
	return s >= Pending
}

// Func is the entry point of a thread. The returned value is discarded by the
// scheduler.
type Func func(arg any) any

// Thread is the descriptor of one execution context.
type Thread struct {
	PID      PID
	Name     string
	Priority Priority
	Flags    Flags
	Status   Status
	Stack    Stack

	// Bytes at the top of the stack taken by the control block and the
	// initial context frame.
	Reserved int

	Entry Func
	Arg   any

	// Next links the thread into a run queue.
	Next *Thread
}

func (t *Thread) String() string {
	return fmt.Sprintf("%s(%s, prio %d, %s)", t.Name, t.PID, t.Priority, t.Status)
}

// Info is a snapshot of a thread, safe to hand out of the scheduler lock.
type Info struct {
	PID       PID
	Name      string
	Priority  Priority
	Status    Status
	StackSize int
	StackFree int
	StackTest bool
}

func (t *Thread) Info() Info {
	info := Info{
		PID:       t.PID,
		Name:      t.Name,
		Priority:  t.Priority,
		Status:    t.Status,
		StackSize: len(t.Stack),
		StackTest: t.Flags.Has(CreateStackTest),
	}
	if info.StackTest {
		info.StackFree = MeasureStackFree(t.Stack)
	}
	return info
}
