// Package analyzer implements spec §4.2: one top-level form in, a typed
// AST out, with `def` updating the target namespace as a side effect.
// Locals resolve to slot indices, upvalues to flattened per-frame
// upvalue-array indices (see UpvalueDescriptor), globals to var_ref
// nodes; every node carries a source position and a tail? flag so the
// compiler can lower `recur` correctly.
package analyzer

import "github.com/lumenlang/lumen/internal/lumenerr"

// Node is satisfied by every AST node. Pos and Tail are common to all of
// them; Tail records whether this node sits in tail position of its
// enclosing fn/loop body (spec §4.2: "AST nodes carry source positions
// and a tail? flag").
type Node interface {
	Position() lumenerr.Position
	IsTail() bool
}

type base struct {
	Pos  lumenerr.Position
	Tail bool
}

func (b base) Position() lumenerr.Position { return b.Pos }
func (b base) IsTail() bool                { return b.Tail }

// LiteralNode wraps a self-evaluating Value (numbers, strings, keywords,
// nil/true/false, and already-built collections from syntax-quote).
type LiteralNode struct {
	base
	Value any // value.Value, held as `any` to avoid an import cycle note in doc
}

// LocalRefNode resolves a symbol bound by an enclosing let*/loop*/fn*
// parameter list in the *current* function (spec §4.2 "locals").
type LocalRefNode struct {
	base
	Name string
	Slot int
}

// UpvalRefNode resolves a symbol bound in an *enclosing* function (spec
// §4.2 "upvalues"). Index is this function's own upvalue-array slot
// (what `load_up D`/`store_up D` addresses); how that slot gets filled
// in at closure-creation time is recorded separately on the FnNode as an
// UpvalueDescriptor.
type UpvalRefNode struct {
	base
	Name  string
	Index int
}

// GlobalRefNode resolves a symbol to a namespace var (spec §4.2
// "globals"). Ns/Name identify the var; the compiler emits `load_var`
// against a constant-pool entry built from these.
type GlobalRefNode struct {
	base
	Ns, Name string
}

// DefNode is `(def name init?)`, interning (and, as a side effect,
// updating) a var in the current namespace.
type DefNode struct {
	base
	Name string
	Init Node // nil if this def has no init form
	Meta any  // value.Value or nil
}

type IfNode struct {
	base
	Test, Then, Else Node
}

type DoNode struct {
	base
	Body []Node
}

// Binding is one `let*`/`loop*` clause: a synthetic local slot bound to
// an init expression.
type Binding struct {
	Name string
	Slot int
	Init Node
}

type LetNode struct {
	base
	Bindings []Binding
	Body     []Node
}

// LoopNode is `loop*`: like LetNode, but establishes a `recur` target at
// its own entry with exactly len(Bindings) slots.
type LoopNode struct {
	base
	Bindings []Binding
	Body     []Node
}

// RecurNode rebinds the current loop/fn parameter slots and jumps to the
// loop entry; valid only in tail position (spec §4.2), checked by the
// analyzer at construction time.
type RecurNode struct {
	base
	Args []Node
}

// FnArity is one arity's parameter list and body for a (possibly
// multi-arity) fn*.
type FnArity struct {
	ParamSlots int // number of declared parameters (the variadic tail counts as one), not counting a reserved self slot
	NumLocals  int // total local slots this arity's frame needs: self slot (if named) + params + every nested let*/loop* temp
	Variadic   bool
	Body       []Node
}

// FnNode is `fn*`, carrying one body per arity (spec §3.3: "Multi-arity
// functions carry one body per arity plus at most one variadic body").
type FnNode struct {
	base
	SelfName string // "" if the fn is anonymous
	Arities  []FnArity
	Upvalues []UpvalueDescriptor
}

// UpvalueDescriptor tells `make_fn`'s `capture` run, for one entry in
// this fn's upvalue array, where to copy it from when the closure is
// created: either the defining frame's own local slot, or the defining
// frame's own upvalue array (propagating a grandparent's local through
// one more level of nesting). This is the flattened capture scheme spec
// §3.4/§4.3 describes: "captures upvalues by copying them from the
// current frame or from the current closure's upvalue array".
type UpvalueDescriptor struct {
	FromParentLocal bool // true: Index is a slot in the parent frame's locals
	Index           int  // slot (if FromParentLocal) or parent's upvalue index
}

type QuoteNode struct {
	base
	Value any // value.Value
}

// VarNode is `(var sym)`, yielding the var_ref itself rather than its
// dereferenced value.
type VarNode struct {
	base
	Ns, Name string
}

type ThrowNode struct {
	base
	Expr Node
}

type CatchClause struct {
	ClassName string
	BindSlot  int
	Body      []Node
}

type TryNode struct {
	base
	Body    []Node
	Catches []CatchClause
	Finally []Node
}

type NewNode struct {
	base
	ClassName string
	Args      []Node
}

// DotNode is host interop `(. target member args…)`, resolved via the
// interop rewrite table at compile time (spec §4.2 "Interop rewrites");
// the analyzer records the raw pieces and lets the compiler consult §5's
// table, keeping analyzer itself free of a hard-coded class list.
type DotNode struct {
	base
	Target     Node
	Member     string
	Args       []Node
	StaticHint string // non-empty if Target was itself a bare symbol naming a class
}

type SetBangNode struct {
	base
	Target Node // a GlobalRefNode, LocalRefNode, or UpvalRefNode
	Value  Node
}

// CaseClause is one `case*` test/body pair; Tests holds every literal
// that selects Body (case allows grouping several tests under one body).
type CaseClause struct {
	Tests []any // []value.Value
	Body  Node
}

type CaseNode struct {
	base
	Expr    Node
	Clauses []CaseClause
	Default Node
}

// MonitorNode is `monitor-enter`/`monitor-exit`, a no-op on this
// single-threaded-per-VM host (spec §4.2).
type MonitorNode struct {
	base
	Enter bool
	Expr  Node
}

// InvokeNode is an ordinary call `(f args…)` once f is known not to be a
// special form or a macro.
type InvokeNode struct {
	base
	Fn   Node
	Args []Node
}
