// Package stdio provides the character I/O backends the kernel writes its
// boot messages to. A backend must be usable before any thread exists, so
// Init never blocks on the scheduler.
package stdio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var (
	ErrUnknownBackend = errors.New("unknown stdio backend")
	ErrNotInitialized = errors.New("stdio backend not initialized")
)

type Backend interface {
	io.ReadWriter
	Name() string
	Init() error
}

// IsNull reports whether b is the null backend. Backends are told apart by
// name, the way boards select stdio_null.
func IsNull(b Backend) bool {
	return b == nil || b.Name() == "null"
}

// Null is the stdio_null backend: writes vanish, reads hit EOF.
type Null struct{}

func (Null) Name() string                { return "null" }
func (Null) Init() error                 { return nil }
func (Null) Write(p []byte) (int, error) { return len(p), nil }
func (Null) Read([]byte) (int, error)    { return 0, io.EOF }

// Writer forwards output to an io.Writer and reads from an optional reader.
type Writer struct {
	name string
	mu   sync.Mutex
	w    io.Writer
	r    io.Reader
	init bool
}

func NewWriter(name string, w io.Writer, r io.Reader) *Writer {
	return &Writer{name: name, w: w, r: r}
}

// Native returns the backend of hosted builds: the process stdout, through a
// colour aware writer when it is a terminal.
func Native() *Writer {
	var out io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		out = colorable.NewColorableStdout()
	} else {
		out = colorable.NewNonColorable(os.Stdout)
	}
	return NewWriter("native", out, os.Stdin)
}

func (w *Writer) Name() string { return w.name }

func (w *Writer) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.init = true
	return nil
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.init {
		return 0, ErrNotInitialized
	}
	return w.w.Write(p)
}

func (w *Writer) Read(p []byte) (int, error) {
	if w.r == nil {
		return 0, io.EOF
	}
	return w.r.Read(p)
}

// Buffer keeps all output in memory. Input is whatever was passed to Feed.
type Buffer struct {
	mu   sync.Mutex
	out  bytes.Buffer
	in   bytes.Buffer
	init bool
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Name() string { return "buffer" }

func (b *Buffer) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init = true
	return nil
}

func (b *Buffer) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.init
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.init {
		return 0, ErrNotInitialized
	}
	return b.out.Write(p)
}

func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.in.Read(p)
}

// Feed queues input for Read.
func (b *Buffer) Feed(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.in.Write(p)
}

// String returns everything written so far.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.String()
}

// Open creates a backend from its textual description:
//
//	null | native | buffer | uart:<port>[@<baud>]
func Open(spec string) (Backend, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	switch strings.ToLower(kind) {
	case "null":
		return Null{}, nil
	case "", "native":
		return Native(), nil
	case "buffer":
		return NewBuffer(), nil
	case "uart":
		port, baudStr, hasBaud := strings.Cut(arg, "@")
		if port == "" {
			return nil, fmt.Errorf("%w: uart needs a port name", ErrUnknownBackend)
		}
		baud := DefaultBaudrate
		if hasBaud {
			var err error
			if baud, err = strconv.Atoi(baudStr); err != nil || baud <= 0 {
				return nil, fmt.Errorf("%w: bad baudrate %q", ErrUnknownBackend, baudStr)
			}
		}
		return NewUART(port, baud), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, spec)
	}
}
