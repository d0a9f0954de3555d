package caps

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  Set
		err   error
	}{
		{"empty", nil, 0, nil},
		{"single", []string{"threads"}, Of(Threads), nil},
		{"mixed case", []string{" Idle_Thread ", "THREADS"}, Of(Threads, IdleThread), nil},
		{"unknown", []string{"threads", "warp_drive"}, 0, ErrUnknownCapability},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected error %v, got %v", tc.err, err)
			}
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSetOperations(t *testing.T) {
	s := Of(Threads).With(IdleThread, AutoInit).Without(AutoInit)
	if !s.Has(Threads) || !s.Has(IdleThread) {
		t.Fatalf("expected threads and idle_thread in %s", s)
	}
	if s.Has(AutoInit) {
		t.Fatalf("auto_init should have been removed from %s", s)
	}
	if got, exp := s.String(), "idle_thread,threads"; got != exp {
		t.Errorf("expected %q, got %q", exp, got)
	}
	if got := Set(0).String(); got != "none" {
		t.Errorf("expected empty set to print as none, got %q", got)
	}
}

func TestAllCoversKnownNames(t *testing.T) {
	all := All()
	if got, exp := len(all.Names()), len(Known()); got != exp {
		t.Fatalf("All() has %d capabilities, Known() lists %d", got, exp)
	}
	parsed, err := Parse(Known())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != all {
		t.Errorf("expected %s, got %s", all, parsed)
	}
}

func TestValidate(t *testing.T) {
	if err := Of(Threads, IdleThread, StackUsageMetrics).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Of(IdleThread).Validate(); !errors.Is(err, ErrInconsistentSet) {
		t.Fatalf("expected ErrInconsistentSet, got %v", err)
	}
	if err := Of(BootBanner, ExitWithMain).Validate(); err != nil {
		t.Fatalf("threadless sets without thread capabilities are valid, got %v", err)
	}
}
