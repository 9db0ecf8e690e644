package compiler

import (
	"encoding/binary"

	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// emitter accumulates one Unit's code stream, constant pool, and position
// table. A label is just a pc recorded for later use as a jump target;
// jumps are written with a placeholder operand and patched once the
// target pc is known (spec §4.3's jumps are forward and backward, so a
// simple two-pass patch list is enough — no need for a relocation table
// that survives past this one compile).
type emitter struct {
	unit     *Unit
	curDepth int // current operand-stack depth estimate, for MaxStack
}

func newEmitter(name string, numLocals int) *emitter {
	return &emitter{unit: &Unit{Name: name, NumLocals: numLocals}}
}

func (e *emitter) pc() int { return len(e.unit.Code) }

func (e *emitter) emitOp(op Op) int {
	pc := e.pc()
	e.unit.Code = append(e.unit.Code, byte(op))
	return pc
}

func (e *emitter) emitOpI32(op Op, operand int) int {
	pc := e.emitOp(op)
	e.emitI32(operand)
	return pc
}

func (e *emitter) emitI32(v int) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(v)))
	e.unit.Code = append(e.unit.Code, buf[:]...)
}

// patchI32At overwrites the 4-byte operand written at offset (the pc
// returned by emitOpI32, plus 1 to skip the opcode byte itself).
func (e *emitter) patchI32At(offset int, v int) {
	binary.LittleEndian.PutUint32(e.unit.Code[offset:offset+4], uint32(int32(v)))
}

// emitJump writes op followed by a placeholder relative offset and
// returns the offset of that operand, to be passed to patchJump once the
// target is known.
func (e *emitter) emitJump(op Op) int {
	e.emitOp(op)
	operandOffset := e.pc()
	e.emitI32(0)
	return operandOffset
}

// patchJump fixes up a previously emitted jump so it lands at the
// emitter's current pc.
func (e *emitter) patchJump(operandOffset int) {
	target := e.pc()
	rel := target - (operandOffset + 4)
	e.patchI32At(operandOffset, rel)
}

func (e *emitter) addConst(v value.Value) int {
	e.unit.Consts = append(e.unit.Consts, v)
	return len(e.unit.Consts) - 1
}

func (e *emitter) addTemplate(t *FnTemplate) int {
	e.unit.FnTemplates = append(e.unit.FnTemplates, t)
	return len(e.unit.FnTemplates) - 1
}

func (e *emitter) addCaseTable(t CaseTable) int {
	e.unit.CaseTables = append(e.unit.CaseTables, t)
	return len(e.unit.CaseTables) - 1
}

func (e *emitter) markPos(pos lumenerr.Position) {
	pc := e.pc()
	if n := len(e.unit.Positions); n > 0 && e.unit.Positions[n-1].PC == pc {
		e.unit.Positions[n-1].Pos = pos
		return
	}
	e.unit.Positions = append(e.unit.Positions, PosEntry{PC: pc, Pos: pos})
}

// track bumps the stack-depth estimate by delta and keeps MaxStack
// current; negative deltas (pops) never drive MaxStack, only pushes do.
func (e *emitter) track(delta int) {
	e.curDepth += delta
	if e.curDepth > e.unit.MaxStack {
		e.unit.MaxStack = e.curDepth
	}
	if e.curDepth < 0 {
		e.curDepth = 0
	}
}

func (e *emitter) finish() *Unit {
	return e.unit
}
