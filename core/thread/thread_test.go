package thread

import "testing"

func TestPriorityOrdering(t *testing.T) {
	if !PriorityMain.MoreUrgent(PriorityIdle) {
		t.Fatalf("main priority %d must be more urgent than idle %d", PriorityMain, PriorityIdle)
	}
	for p := Priority(0); p < PriorityIdle; p++ {
		if !p.Valid() {
			t.Fatalf("priority %d should be valid", p)
		}
		if !p.MoreUrgent(PriorityIdle) {
			t.Errorf("priority %d should be more urgent than idle", p)
		}
	}
	if Priority(PriorityLevels).Valid() {
		t.Errorf("priority %d should be invalid", PriorityLevels)
	}
}

func TestStackMeasurement(t *testing.T) {
	tests := []struct {
		name string
		size int
		used int
	}{
		{"untouched", 256, 0},
		{"partially used", 256, 40},
		{"full", 128, 128},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStack(tc.size)
			s.Fill()
			for i := len(s) - tc.used; i < len(s); i++ {
				s[i] = 0xAA
			}
			if got, exp := MeasureStackFree(s), len(s)-tc.used; got != exp {
				t.Errorf("expected %d free bytes, got %d", exp, got)
			}
		})
	}
}

func TestInitFrame(t *testing.T) {
	th := &Thread{PID: 3, Name: "idle", Priority: PriorityIdle, Flags: CreateStackTest, Stack: NewStack(StackSizeIdle)}
	th.Stack.Fill()

	used := th.InitFrame()
	if used != controlBlockSize+frameSize {
		t.Fatalf("expected %d reserved bytes, got %d", controlBlockSize+frameSize, used)
	}
	info := th.Info()
	if got, exp := info.StackFree, StackSizeIdle-used; got != exp {
		t.Errorf("expected %d free bytes after frame init, got %d", exp, got)
	}

	small := &Thread{Stack: NewStack(32)}
	if got := small.InitFrame(); got != 0 {
		t.Errorf("expected tiny stack to be left alone, got %d reserved", got)
	}
}

func TestQueue(t *testing.T) {
	var q Queue
	a, b, c := &Thread{Name: "a"}, &Thread{Name: "b"}, &Thread{Name: "c"}
	q.Push(a)
	q.Push(b)
	q.Push(c)
	if q.Len() != 3 {
		t.Fatalf("expected 3 queued threads, got %d", q.Len())
	}

	q.Rotate()
	if got := q.Peek(); got != b {
		t.Fatalf("expected b at the head after rotate, got %v", got)
	}
	if !q.Remove(c) || q.Remove(c) {
		t.Fatal("expected c to be removed exactly once")
	}
	for _, exp := range []*Thread{b, a} {
		if got := q.Pop(); got != exp {
			t.Fatalf("expected %s, got %v", exp.Name, got)
		}
	}
	if !q.Empty() || q.Pop() != nil {
		t.Fatal("expected queue to be empty")
	}
}
