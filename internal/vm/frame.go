package vm

import (
	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
)

// handlerEntry is one live push_handler registration: sp is the operand
// stack depth to truncate back to before resuming at targetPC (spec
// §4.3's exception-frame lowering unwinds the stack that accumulated
// since the handler was pushed); classConst is the index into the
// owning unit's Consts holding the catch's class-name String, or -1 for
// a catch-all (a `finally` block's outermost handler; every `catch`
// clause carries a class-name constant).
type handlerEntry struct {
	sp         int
	targetPC   int
	classConst int
}

// Frame is one activation of a compiled Unit (spec §4.5 "the VM's frame
// stack (locals and operand stacks of all active frames)" is a GC root
// set). fn is nil for a directly-run top-level Unit; otherwise it is the
// closure this frame is an invocation of, supplying upvalues and ns.
type Frame struct {
	unit    *compiler.Unit
	fn      *fnObj
	ns      *nsenv.Namespace
	locals  []value.Value
	stack   []value.Value
	pc      int
	handlers []handlerEntry

	// captureFill tracks how many make_fn/capture pairs have filled the
	// pending closure's upvalue array; reset to 0 on make_fn (see vm.go).
	captureFill int
}

func newFrame(unit *compiler.Unit, fn *fnObj, ns *nsenv.Namespace) *Frame {
	return &Frame{
		unit:   unit,
		fn:     fn,
		ns:     ns,
		locals: make([]value.Value, unit.NumLocals),
	}
}

func (fr *Frame) push(v value.Value) { fr.stack = append(fr.stack, v) }

func (fr *Frame) pop() value.Value {
	n := len(fr.stack) - 1
	v := fr.stack[n]
	fr.stack = fr.stack[:n]
	return v
}

func (fr *Frame) popN(n int) []value.Value {
	out := make([]value.Value, n)
	copy(out, fr.stack[len(fr.stack)-n:])
	fr.stack = fr.stack[:len(fr.stack)-n]
	return out
}

func (fr *Frame) top() value.Value { return fr.stack[len(fr.stack)-1] }

// TraceChildren roots this frame's locals, operand stack, and (if any)
// the closure it's executing — every Value a running frame can still
// reach (spec §4.5).
func (fr *Frame) TraceChildren(visit func(gc.Object)) {
	for _, v := range fr.locals {
		if v.Obj() != nil {
			visit(v.Obj())
		}
	}
	for _, v := range fr.stack {
		if v.Obj() != nil {
			visit(v.Obj())
		}
	}
	if fr.fn != nil {
		visit(fr.fn)
	}
	if fr.ns != nil {
		visit(fr.ns)
	}
}
