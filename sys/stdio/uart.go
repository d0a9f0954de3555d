package stdio

import (
	"errors"
	"io"
	"sync"

	"go.bug.st/serial"

	"omibyte.io/riot/sys/stdio/ringbuffer"
)

const (
	DefaultBaudrate = 115200
	rxBufferSize    = 64
)

var ErrUARTClosed = errors.New("uart closed")

// openPort is replaced by tests.
var openPort = func(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// UART is the stdio_uart backend. Received bytes are moved into a small ring
// buffer by a receive goroutine, the hosted stand-in for the RX interrupt;
// bytes that do not fit are dropped.
type UART struct {
	port string
	baud int

	mu      sync.Mutex
	cond    *sync.Cond
	conn    io.ReadWriteCloser
	rx      ringbuffer.RingBuffer
	dropped int
	closed  bool
}

func NewUART(port string, baud int) *UART {
	u := &UART{port: port, baud: baud, rx: ringbuffer.New(rxBufferSize)}
	u.cond = sync.NewCond(&u.mu)
	return u
}

func (u *UART) Name() string { return "uart" }

func (u *UART) Init() error {
	conn, err := openPort(u.port, u.baud)
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.conn = conn
	u.closed = false
	u.mu.Unlock()
	go u.receive(conn)
	return nil
}

func (u *UART) receive(conn io.Reader) {
	buf := make([]byte, rxBufferSize)
	for {
		n, err := conn.Read(buf)
		u.mu.Lock()
		if n > 0 {
			written, _ := u.rx.Write(buf[:n])
			u.dropped += n - written
			u.cond.Broadcast()
		}
		if err != nil {
			u.closed = true
			u.cond.Broadcast()
			u.mu.Unlock()
			return
		}
		u.mu.Unlock()
	}
}

func (u *UART) Write(p []byte) (int, error) {
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		return 0, ErrNotInitialized
	}
	return conn.Write(p)
}

// Read blocks until at least one byte was received.
func (u *UART) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for u.rx.Len() == 0 {
		if u.closed || u.conn == nil {
			return 0, io.EOF
		}
		u.cond.Wait()
	}
	return u.rx.Read(p)
}

// Dropped returns how many received bytes did not fit the receive buffer.
func (u *UART) Dropped() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dropped
}

func (u *UART) Close() error {
	u.mu.Lock()
	conn := u.conn
	u.closed = true
	u.cond.Broadcast()
	u.mu.Unlock()
	if conn == nil {
		return ErrUARTClosed
	}
	return conn.Close()
}
