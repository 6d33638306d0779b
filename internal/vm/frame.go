package vm

import "sherbet/internal/object"

// Frame is one active call. Slot base holds the callee; its locals start
// at base+1.
type Frame struct {
	cl   *object.Closure
	ip   int
	base int
}

func NewFrame(cl *object.Closure, base int) Frame {
	return Frame{cl: cl, ip: -1, base: base}
}

func (f *Frame) Instructions() []byte { return f.cl.Fn.Chunk.Code }

func (f *Frame) constant(k int) object.Value { return f.cl.Fn.Chunk.Constants[k] }
