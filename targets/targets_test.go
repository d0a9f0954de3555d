package targets

import (
	"errors"
	"testing"

	"omibyte.io/riot/core/caps"
	"omibyte.io/riot/core/thread"
)

func TestFindByBoard(t *testing.T) {
	tests := []struct {
		name   string
		cpu    string
		hosted bool
		err    error
	}{
		{"native", "native", true, nil},
		{"NATIVE", "native", true, nil},
		{"samr21-xpro", "samd21", false, nil},
		{"nrf52840dk", "nrf52", false, nil},
		{"esp32-wroom", "", false, ErrBoardNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			board, err := All().FindByBoard(tc.name)
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if err == nil && (board.Cpu != tc.cpu || board.Hosted != tc.hosted) {
				t.Errorf("unexpected profile %+v", board)
			}
		})
	}
}

func TestFindByCpu(t *testing.T) {
	boards, err := All().FindByCpu("native")
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range boards {
		if !b.Hosted {
			t.Errorf("native cpu board %s is not hosted", b.Name)
		}
	}
	if _, err := All().FindByCpu("z80"); !errors.Is(err, ErrBoardNotFound) {
		t.Errorf("expected ErrBoardNotFound, got %v", err)
	}
	if len(All().FindByTag("cortexm")) < 2 {
		t.Error("expected several cortex-m boards")
	}
}

func TestNativeProfile(t *testing.T) {
	board, err := All().FindByBoard("native")
	if err != nil {
		t.Fatal(err)
	}
	set, err := board.Caps()
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []caps.Capability{caps.Threads, caps.IdleThread, caps.Hosted, caps.ExitWithMain, caps.PowerManagement} {
		if !set.Has(c) {
			t.Errorf("native profile lacks %s", c)
		}
	}
	if idle, main := board.StackSizes(); idle != 8192 || main != 12288 {
		t.Errorf("unexpected stack sizes %d/%d", idle, main)
	}

	board, _ = All().FindByBoard("native-nothreads")
	if idle, main := board.StackSizes(); idle != thread.StackSizeIdle || main != thread.StackSizeMain {
		t.Errorf("expected default stack sizes, got %d/%d", idle, main)
	}
}

func TestParseRejectsBadProfiles(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"unknown capability", "boards:\n  - board: x\n    capabilities: [warp_drive]\n", caps.ErrUnknownCapability},
		{"idle without threads", "boards:\n  - board: x\n    capabilities: [idle_thread]\n", caps.ErrInconsistentSet},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parse([]byte(tc.raw)); !errors.Is(err, tc.err) {
				t.Errorf("expected %v, got %v", tc.err, err)
			}
		})
	}
	if names := All().Names(); len(names) != len(All()) || names[0] != "arduino-uno" {
		t.Errorf("unexpected sorted names %v", names)
	}
}
