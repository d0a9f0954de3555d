package thread

import (
	"encoding/binary"
	"hash/fnv"
)

const (
	StackSizeMin     = 128
	StackSizeIdle    = 256
	StackSizeDefault = 1024
	StackSizeMain    = StackSizeDefault + 512

	stackAlign = 8

	// Fake address of the first stack byte, so that canary words look like
	// the self-referencing pointers a real target writes.
	stackBaseAddr = 0x2000_0000
)

// Stack is a fixed-size region owned by exactly one thread.
type Stack []byte

// NewStack allocates a stack of the given size, rounded down to the stack
// alignment.
func NewStack(size int) Stack {
	return make(Stack, size-size%stackAlign)
}

func canary(offset int) uint32 {
	return uint32(stackBaseAddr + offset)
}

// Fill writes the stack-test canary over the whole stack.
func (s Stack) Fill() {
	for off := 0; off+4 <= len(s); off += 4 {
		binary.LittleEndian.PutUint32(s[off:], canary(off))
	}
}

// MeasureStackFree returns how many bytes from the bottom of a canary-filled
// stack were never written.
func MeasureStackFree(s []byte) int {
	off := 0
	for ; off+4 <= len(s); off += 4 {
		if binary.LittleEndian.Uint32(s[off:]) != canary(off) {
			break
		}
	}
	return off
}

type registers struct {
	R4, R5, R6, R7, R8, R9, R10, R11 uint32
}

type exceptionFrame struct {
	regs registers
	R0   uint32
	R1   uint32
	R2   uint32
	R3   uint32
	R12  uint32
	LR   uint32
	PC   uint32
	PSR  uint32
}

type controlBlock struct {
	PID      int16
	Priority uint8
	Flags    uint8
	NameHash uint32
	StackLen uint32
	_        uint32
}

const (
	frameSize        = 16 * 4
	controlBlockSize = 16

	taskStartAddr = 0x0000_0101
	returnAddr    = 0xFFFF_FFFD
	thumbBit      = 0x0100_0000
)

// InitFrame carves the control block and the initial context frame out of
// the top of the stack. It returns the number of bytes taken. Stacks too small
// to hold both are left untouched and 0 is returned.
func (t *Thread) InitFrame() int {
	top := len(t.Stack) - len(t.Stack)%stackAlign
	if top < controlBlockSize+frameSize {
		return 0
	}

	h := fnv.New32a()
	h.Write([]byte(t.Name))

	cb := controlBlock{
		PID:      int16(t.PID),
		Priority: uint8(t.Priority),
		Flags:    uint8(t.Flags),
		NameHash: h.Sum32(),
		StackLen: uint32(len(t.Stack)),
	}
	cbOff := top - controlBlockSize
	binary.LittleEndian.PutUint16(t.Stack[cbOff:], uint16(cb.PID))
	t.Stack[cbOff+2] = cb.Priority
	t.Stack[cbOff+3] = cb.Flags
	binary.LittleEndian.PutUint32(t.Stack[cbOff+4:], cb.NameHash)
	binary.LittleEndian.PutUint32(t.Stack[cbOff+8:], cb.StackLen)
	binary.LittleEndian.PutUint32(t.Stack[cbOff+12:], 0)

	// The frame resumes in the task start stub with the thread identity in
	// R0 and returns to thread mode on the process stack.
	frame := exceptionFrame{
		R0:  uint32(t.PID),
		R1:  uint32(t.Priority),
		LR:  returnAddr,
		PC:  taskStartAddr,
		PSR: thumbBit,
	}
	frameOff := cbOff - frameSize
	words := []uint32{
		frame.regs.R4, frame.regs.R5, frame.regs.R6, frame.regs.R7,
		frame.regs.R8, frame.regs.R9, frame.regs.R10, frame.regs.R11,
		frame.R0, frame.R1, frame.R2, frame.R3,
		frame.R12, frame.LR, frame.PC, frame.PSR,
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(t.Stack[frameOff+i*4:], w)
	}

	t.Reserved = len(t.Stack) - frameOff
	return t.Reserved
}
