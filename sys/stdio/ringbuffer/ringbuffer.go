package ringbuffer

import "errors"

type RingBuffer struct {
	buffer []byte
	begin  int
	end    int
	full   bool
}

var (
	ErrBufferIsEmpty = errors.New("buffer is empty")
	ErrBufferIsFull  = errors.New("buffer is full")
)

const (
	defaultBufferSz = 256
)

func New(sz int) RingBuffer {
	if sz <= 0 {
		sz = defaultBufferSz
	}

	return RingBuffer{
		buffer: make([]byte, sz),
	}
}

func (r *RingBuffer) advance(i, n int) int {
	return (i + n) % len(r.buffer)
}

// Read drains up to len(p) bytes. It returns ErrBufferIsEmpty when there was
// nothing to read.
func (r *RingBuffer) Read(p []byte) (n int, err error) {
	if r.Len() == 0 {
		return 0, ErrBufferIsEmpty
	}

	for n < len(p) && r.Len() > 0 {
		var chunk []byte
		if r.end > r.begin {
			// Copy between start and end
			chunk = r.buffer[r.begin:r.end]
		} else {
			// Copy to end of buffer first
			chunk = r.buffer[r.begin:]
		}
		copied := copy(p[n:], chunk)
		n += copied
		r.begin = r.advance(r.begin, copied)
		r.full = false
	}
	return n, nil
}

// Write stores as much of p as fits. It returns ErrBufferIsFull if some of p
// had to be dropped.
func (r *RingBuffer) Write(p []byte) (n int, err error) {
	for n < len(p) {
		if r.full {
			return n, ErrBufferIsFull
		}

		var free []byte
		if r.end >= r.begin {
			free = r.buffer[r.end:]
		} else {
			free = r.buffer[r.end:r.begin]
		}
		copied := copy(free, p[n:])
		n += copied
		r.end = r.advance(r.end, copied)

		if r.end == r.begin {
			// The buffer is full
			r.full = true
		}
	}
	return n, nil
}

func (r *RingBuffer) Len() int {
	if r.full {
		return len(r.buffer)
	} else if r.end >= r.begin {
		return r.end - r.begin
	} else {
		return (len(r.buffer) - r.begin) + r.end
	}
}

func (r *RingBuffer) Cap() int {
	return len(r.buffer)
}
