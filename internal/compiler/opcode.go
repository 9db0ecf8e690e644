// Package compiler implements spec §4.3: a single-pass lowering from the
// analyzer's typed AST (internal/analyzer) to a bytecode Unit (spec §3.4)
// the VM interprets. Operands are written as little-endian int32s inline
// in the code stream; this is a compact-enough encoding for a
// single-process interpreter without the added complexity of a variable-
// width varint scheme the teacher's own wire formats don't otherwise call
// for here.
package compiler

// Op is one bytecode instruction, matching spec §4.3's opcode table.
type Op byte

const (
	// Stack
	OpConst Op = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpDup

	// Locals
	OpLoadLocal
	OpStoreLocal
	OpLoadUp
	OpStoreUp

	// Globals
	OpLoadVar
	OpSetVar
	// OpPushVarRef pushes the var itself (undereferenced), for `(var x)`
	// and as the result value of `def` — not in spec §4.3's headline
	// table but needed by any `(var sym)`/def-returns-its-var lowering;
	// see DESIGN.md.
	OpPushVarRef

	// Control
	OpJmp
	OpJmpIfFalse
	OpJmpIfTrue
	OpLoopEntry
	OpRecur

	// Call
	OpCall
	OpTailCall
	OpApply

	// Closures
	OpMakeFn
	OpCapture

	// Exceptions
	OpThrow
	OpPushHandler
	OpPopHandler

	// Specialized
	OpProtocolCall
	OpMultifnDispatch
	OpKeywordInvoke
	OpCaseSwitchInt
	OpCaseSwitchHash

	// Return
	OpRet

	// Arithmetic fast paths (spec §4.3's "optional; fall back to builtin_fn")
	OpAddInt
	OpSubInt
	OpMulInt
	OpLtInt
	OpGtInt
	OpEqInt

	// Host interop (spec §4.2 "Interop rewrites" / §5's rewrite table);
	// this runtime has no embedded host VM class registry, so these
	// consult a compiler-owned rewrite table and fall back to a runtime
	// error naming the unresolved (class, member) pair.
	OpHostNew
	OpHostDot
)

var names = [...]string{
	"const", "nil", "true", "false", "pop", "dup",
	"load_local", "store_local", "load_up", "store_up",
	"load_var", "set_var", "push_var_ref",
	"jmp", "jmp_if_false", "jmp_if_true", "loop_entry", "recur",
	"call", "tail_call", "apply",
	"make_fn", "capture",
	"throw", "push_handler", "pop_handler",
	"protocol_call", "multifn_dispatch", "keyword_invoke", "case_switch_int", "case_switch_hash",
	"ret",
	"add_int", "sub_int", "mul_int", "lt_int", "gt_int", "eq_int",
	"host_new", "host_dot",
}

func (op Op) String() string {
	if int(op) < len(names) {
		return names[op]
	}
	return "unknown_op"
}
