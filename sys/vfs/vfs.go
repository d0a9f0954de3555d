// Package vfs is a minimal file descriptor table. Only what the kernel needs
// to expose stdio through descriptors 0, 1 and 2 is implemented.
package vfs

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2

	MaxOpenFiles = 16
)

var (
	ErrBadFD     = errors.New("bad file descriptor")
	ErrFDInUse   = errors.New("file descriptor in use")
	ErrTableFull = errors.New("too many open files")
	ErrNotOpen   = errors.New("file not readable or writable")
)

// File is anything that can sit behind a descriptor. Missing Read or Write
// support is reported as ErrNotOpen.
type File interface{}

type Table struct {
	mu    sync.Mutex
	files [MaxOpenFiles]File
}

func NewTable() *Table {
	return &Table{}
}

func checkFD(fd int) error {
	if fd < 0 || fd >= MaxOpenFiles {
		return fmt.Errorf("%w: %d", ErrBadFD, fd)
	}
	return nil
}

// Bind attaches f to a specific descriptor.
func (t *Table) Bind(fd int, f File) error {
	if err := checkFD(fd); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.files[fd] != nil {
		return fmt.Errorf("%w: %d", ErrFDInUse, fd)
	}
	t.files[fd] = f
	return nil
}

// Open attaches f to the lowest free descriptor.
func (t *Table) Open(f File) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd, cur := range t.files {
		if cur == nil {
			t.files[fd] = f
			return fd, nil
		}
	}
	return -1, ErrTableFull
}

func (t *Table) Lookup(fd int) (File, error) {
	if err := checkFD(fd); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.files[fd] == nil {
		return nil, fmt.Errorf("%w: %d", ErrBadFD, fd)
	}
	return t.files[fd], nil
}

func (t *Table) Write(fd int, p []byte) (int, error) {
	f, err := t.Lookup(fd)
	if err != nil {
		return 0, err
	}
	w, ok := f.(io.Writer)
	if !ok {
		return 0, ErrNotOpen
	}
	return w.Write(p)
}

func (t *Table) Read(fd int, p []byte) (int, error) {
	f, err := t.Lookup(fd)
	if err != nil {
		return 0, err
	}
	r, ok := f.(io.Reader)
	if !ok {
		return 0, ErrNotOpen
	}
	return r.Read(p)
}

// Close detaches the descriptor and closes the file if it supports it.
func (t *Table) Close(fd int) error {
	if err := checkFD(fd); err != nil {
		return err
	}
	t.mu.Lock()
	f := t.files[fd]
	t.files[fd] = nil
	t.mu.Unlock()
	if f == nil {
		return fmt.Errorf("%w: %d", ErrBadFD, fd)
	}
	if c, ok := f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BindStdio maps stdin, stdout and stderr onto one stdio backend.
func (t *Table) BindStdio(rw io.ReadWriter) error {
	var errs []error
	for _, fd := range []int{Stdin, Stdout, Stderr} {
		errs = append(errs, t.Bind(fd, rw))
	}
	return errors.Join(errs...)
}
