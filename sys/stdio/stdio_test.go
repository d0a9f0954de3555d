package stdio

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		spec string
		name string
		err  error
	}{
		{"null", "null", nil},
		{"native", "native", nil},
		{"", "native", nil},
		{"buffer", "buffer", nil},
		{"uart:/dev/ttyACM0", "uart", nil},
		{"uart:/dev/ttyACM0@9600", "uart", nil},
		{"uart:", "", ErrUnknownBackend},
		{"uart:/dev/ttyACM0@fast", "", ErrUnknownBackend},
		{"rtt", "", ErrUnknownBackend},
	}

	for _, tc := range tests {
		t.Run(tc.spec, func(t *testing.T) {
			b, err := Open(tc.spec)
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if err == nil && b.Name() != tc.name {
				t.Errorf("expected backend %q, got %q", tc.name, b.Name())
			}
		})
	}
}

func TestIsNull(t *testing.T) {
	if !IsNull(Null{}) || !IsNull(nil) {
		t.Fatal("expected null and nil backends to count as null")
	}
	if IsNull(NewBuffer()) {
		t.Fatal("buffer backend is not null")
	}
	if n, err := (Null{}).Write([]byte("dropped")); n != 7 || err != nil {
		t.Errorf("null write: %d %v", n, err)
	}
	if _, err := (Null{}).Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("expected EOF from null read, got %v", err)
	}
}

func TestBufferRequiresInit(t *testing.T) {
	b := NewBuffer()
	if _, err := b.Write([]byte("early")); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(b, "hello\n"); err != nil {
		t.Fatal(err)
	}
	if got := b.String(); got != "hello\n" {
		t.Errorf("expected %q, got %q", "hello\n", got)
	}

	b.Feed([]byte("in"))
	buf := make([]byte, 4)
	if n, _ := b.Read(buf); string(buf[:n]) != "in" {
		t.Errorf("expected fed input, got %q", buf[:n])
	}
}

func TestUART(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()

	var opened string
	var openedBaud int
	origOpen := openPort
	openPort = func(name string, baud int) (io.ReadWriteCloser, error) {
		opened, openedBaud = name, baud
		return device, nil
	}
	defer func() {
		openPort = origOpen
	}()

	u := NewUART("/dev/ttyUSB0", 57600)
	if _, err := u.Write([]byte("x")); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := u.Init(); err != nil {
		t.Fatal(err)
	}
	if opened != "/dev/ttyUSB0" || openedBaud != 57600 {
		t.Fatalf("opened %q at %d baud", opened, openedBaud)
	}

	go u.Write([]byte("boot\n"))
	buf := make([]byte, 5)
	host.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(host, buf); err != nil || string(buf) != "boot\n" {
		t.Fatalf("expected boot line on the wire, got %q %v", buf, err)
	}

	go host.Write([]byte("ps\n"))
	got := make([]byte, 0, 3)
	for len(got) < 3 {
		n, err := u.Read(buf)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "ps\n" {
		t.Errorf("expected %q, got %q", "ps\n", got)
	}

	if err := u.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := u.Read(buf); err != io.EOF {
		t.Errorf("expected EOF after close, got %v", err)
	}
}
