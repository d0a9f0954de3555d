// Package caps describes the optional kernel behaviours that are compiled into
// an image. A Set is resolved once before boot and is read-only afterwards.
package caps

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Capability uint16

const (
	Threads Capability = 1 << iota
	IdleThread
	AutoInit
	BootBanner
	ExitWithMain
	PowerManagement
	TestExitCallback
	StackUsageMetrics
	LEDs
	VFS
	Hosted

	numCapabilities = iota
)

var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrInconsistentSet   = errors.New("inconsistent capability set")
)

var names = map[Capability]string{
	Threads:           "threads",
	IdleThread:        "idle_thread",
	AutoInit:          "auto_init",
	BootBanner:        "boot_banner",
	ExitWithMain:      "exit_with_main",
	PowerManagement:   "pm",
	TestExitCallback:  "test_exit_cb",
	StackUsageMetrics: "stack_metrics",
	LEDs:              "leds",
	VFS:               "vfs",
	Hosted:            "hosted",
}

func (c Capability) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%#x)", uint16(c))
}

// Lookup returns the capability with the given board file name.
func Lookup(name string) (Capability, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range names {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Set is a bitset of capabilities.
type Set uint32

// Of builds a set from the given capabilities.
func Of(cs ...Capability) Set {
	var s Set
	for _, c := range cs {
		s |= Set(c)
	}
	return s
}

// All returns a set with every known capability enabled.
func All() Set {
	return Set(1<<numCapabilities - 1)
}

func (s Set) Has(c Capability) bool {
	return s&Set(c) != 0
}

func (s Set) With(cs ...Capability) Set {
	return s | Of(cs...)
}

func (s Set) Without(cs ...Capability) Set {
	return s &^ Of(cs...)
}

// Names returns the board file names of the capabilities in s, sorted.
func (s Set) Names() []string {
	var result []string
	for c, name := range names {
		if s.Has(c) {
			result = append(result, name)
		}
	}
	slices.Sort(result)
	return result
}

func (s Set) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), ",")
}

// Validate checks that every capability in s has the capabilities it needs.
func (s Set) Validate() error {
	var errs []error
	for _, c := range []Capability{IdleThread, StackUsageMetrics} {
		if s.Has(c) && !s.Has(Threads) {
			errs = append(errs, fmt.Errorf("%w: %s requires %s", ErrInconsistentSet, c, Threads))
		}
	}
	return errors.Join(errs...)
}

// Parse builds a set from board file names.
func Parse(list []string) (Set, error) {
	var s Set
	for _, name := range list {
		c, ok := Lookup(name)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
		}
		s |= Set(c)
	}
	return s, nil
}

// Known returns every board file name that Parse accepts.
func Known() []string {
	result := maps.Values(names)
	slices.Sort(result)
	return result
}
