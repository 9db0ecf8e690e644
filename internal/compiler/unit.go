package compiler

import (
	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// PosEntry maps a pc to the source position of the AST node that emitted
// the instruction at that pc (spec §3.4 "source-location metadata indexed
// by pc for error reporting"). Entries are appended in increasing pc
// order; a lookup finds the entry with the greatest PC <= the query pc.
type PosEntry struct {
	PC  int
	Pos lumenerr.Position
}

// Unit is a compiled function body (spec §3.4). Consts holds ordinary
// runtime Values; constant-pool slots that instead hold a compiled
// closure template (addressed by make_fn) are held in FnTemplates — the
// template is machinery the compiler and VM share to build a `fn_val`,
// not itself a first-class Value, so it does not need a value.Tag of its
// own (see DESIGN.md).
type Unit struct {
	Name        string
	Code        []byte
	Consts      []value.Value
	FnTemplates []*FnTemplate
	GlobalRefs  []GlobalRef
	NumLocals   int
	MaxStack    int
	Positions   []PosEntry

	// CaseTables holds the operand tables for case_switch_int/hash
	// instructions, indexed by the table index written as the
	// instruction's last operand (kept out of the byte stream itself
	// since entries vary in width).
	CaseTables []CaseTable
}

// CaseTable is one case* dispatch table: either a dense integer range
// (spec §4.3 "direct integer dispatch... when tests are small integers in
// a dense range") or a hash-keyed table with collision fallthrough.
type CaseTable struct {
	Dense      bool
	Base       int64          // dense: smallest test value: index = key-Base
	DenseJumps []int          // dense: pc for each slot, default if out of range
	HashJumps  map[uint64]int // non-dense: hash(key) -> pc (collisions resolved by re-testing equality at the handler; VM consults HashKeys for the literal to re-compare)
	HashKeys   map[uint64]value.Value
	Default    int
}

// PositionAt returns the source position recorded for pc, or the zero
// Position if none was recorded (matches the analyzer's own convention of
// a zero-value Position standing in for "unknown").
func (u *Unit) PositionAt(pc int) lumenerr.Position {
	var best lumenerr.Position
	for _, e := range u.Positions {
		if e.PC > pc {
			break
		}
		best = e.Pos
	}
	return best
}

// FnTemplate is the compiled, not-yet-closed-over shape of a (possibly
// multi-arity) fn* (spec §3.3: "one fn_val... Multi-arity functions carry
// one body per arity"). make_fn combines a FnTemplate with the upvalue
// values captured from the creating frame to produce a `Fn` Value.
type FnTemplate struct {
	SelfName string
	Arities  []ArityTemplate
	Upvalues []analyzer.UpvalueDescriptor
}

// ArityTemplate is one arity's compiled unit plus its parameter shape.
type ArityTemplate struct {
	ParamSlots int
	Variadic   bool
	Unit       *Unit
}
