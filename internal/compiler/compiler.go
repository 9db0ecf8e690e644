package compiler

import (
	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// interopKey is a (class, member) pair consulted by `.`/`new` lowering
// (spec §4.2 "Interop rewrites" / §5's rewrite table).
type interopKey struct{ class, member string }

// Compiler lowers one analyzer.Node into a compiler.Unit (spec §4.3).
// HostInterop holds the rewrite table for static interop call sites;
// unlike the analyzer (which has no host class registry to consult), the
// compiler is the layer the spec names as owning this table. heap mints
// the occasional String constant a lowering needs (e.g. a host_dot
// member name) without needing the VM's environment at compile time.
type Compiler struct {
	HostInterop     map[interopKey]GlobalRef
	HostConstructor map[string]GlobalRef
	heap            *gc.Heap
}

// New returns a Compiler with an empty interop table; internal/vm's
// bootstrap installs entries for whatever host surface this runtime
// actually exposes.
func New(heap *gc.Heap) *Compiler {
	return &Compiler{
		HostInterop:     make(map[interopKey]GlobalRef),
		HostConstructor: make(map[string]GlobalRef),
		heap:            heap,
	}
}

// loopCtx tracks the nearest enclosing loop*/fn-arity recur target: the
// slot window recur rewrites and the pc to jump back to. Compiled
// entirely from static information the analyzer already validated arity
// against, so the compiler never needs a runtime "active loop" register.
type loopCtx struct {
	base        int
	arity       int
	loopEntryPC int
}

type cctx struct {
	e    *emitter
	loop *loopCtx
}

// CompileTopLevel compiles one top-level analyzer.Node (not itself a
// FnNode arity) into its own Unit, as the REPL/file loader does per form.
func (c *Compiler) CompileTopLevel(node analyzer.Node, numLocals int) (*Unit, error) {
	e := newEmitter("toplevel", numLocals)
	if err := c.compileNode(node, cctx{e: e}); err != nil {
		return nil, err
	}
	e.emitOp(OpRet)
	return e.finish(), nil
}

func (c *Compiler) compileNode(node analyzer.Node, cc cctx) error {
	cc.e.markPos(node.Position())
	switch n := node.(type) {
	case analyzer.LiteralNode:
		return c.compileLiteral(n, cc)
	case analyzer.LocalRefNode:
		cc.e.emitOpI32(OpLoadLocal, n.Slot)
		cc.e.track(1)
		return nil
	case analyzer.UpvalRefNode:
		cc.e.emitOpI32(OpLoadUp, n.Index)
		cc.e.track(1)
		return nil
	case analyzer.GlobalRefNode:
		k := cc.e.addGlobalRef(GlobalRef{Ns: n.Ns, Name: n.Name})
		cc.e.emitOpI32(OpLoadVar, k)
		cc.e.track(1)
		return nil
	case analyzer.VarNode:
		k := cc.e.addGlobalRef(GlobalRef{Ns: n.Ns, Name: n.Name})
		cc.e.emitOpI32(OpPushVarRef, k)
		cc.e.track(1)
		return nil
	case analyzer.DefNode:
		return c.compileDef(n, cc)
	case analyzer.IfNode:
		return c.compileIf(n, cc)
	case analyzer.DoNode:
		return c.compileDo(n.Body, cc)
	case analyzer.LetNode:
		return c.compileLet(n, cc)
	case analyzer.LoopNode:
		return c.compileLoop(n, cc)
	case analyzer.RecurNode:
		return c.compileRecur(n, cc)
	case analyzer.FnNode:
		return c.compileFn(n, cc)
	case analyzer.QuoteNode:
		v := n.Value.(value.Value)
		k := cc.e.addConst(v)
		cc.e.emitOpI32(OpConst, k)
		cc.e.track(1)
		return nil
	case analyzer.ThrowNode:
		if err := c.compileNode(n.Expr, cc); err != nil {
			return err
		}
		cc.e.emitOp(OpThrow)
		cc.e.track(-1)
		return nil
	case analyzer.TryNode:
		return c.compileTry(n, cc)
	case analyzer.NewNode:
		return c.compileNew(n, cc)
	case analyzer.DotNode:
		return c.compileDot(n, cc)
	case analyzer.SetBangNode:
		return c.compileSetBang(n, cc)
	case analyzer.CaseNode:
		return c.compileCase(n, cc)
	case analyzer.MonitorNode:
		if err := c.compileNode(n.Expr, cc); err != nil {
			return err
		}
		cc.e.emitOp(OpPop)
		cc.e.track(-1)
		cc.e.emitOp(OpNil)
		cc.e.track(1)
		return nil
	case analyzer.InvokeNode:
		return c.compileInvoke(n, cc)
	default:
		return lumenerr.Analyze(lumenerr.KindCompile, nil, "compiler: unhandled AST node %T", node)
	}
}

func (c *Compiler) compileLiteral(n analyzer.LiteralNode, cc cctx) error {
	v := n.Value.(value.Value)
	switch v.Tag() {
	case value.Nil:
		cc.e.emitOp(OpNil)
	case value.Bool:
		if v.AsBool() {
			cc.e.emitOp(OpTrue)
		} else {
			cc.e.emitOp(OpFalse)
		}
	default:
		k := cc.e.addConst(v)
		cc.e.emitOpI32(OpConst, k)
	}
	cc.e.track(1)
	return nil
}

// compileDef compiles `(def name init?)`: the init expression (or nil),
// a set_var storing it as the var's root binding, then pushes the var
// itself as def's result value (Clojure's def evaluates to its var).
func (c *Compiler) compileDef(n analyzer.DefNode, cc cctx) error {
	if n.Init != nil {
		if err := c.compileNode(n.Init, cc); err != nil {
			return err
		}
	} else {
		cc.e.emitOp(OpNil)
		cc.e.track(1)
	}
	k := cc.e.addGlobalRef(GlobalRef{Ns: "", Name: n.Name})
	cc.e.emitOpI32(OpSetVar, k)
	cc.e.track(-1)
	cc.e.emitOpI32(OpPushVarRef, k)
	cc.e.track(1)
	return nil
}

func (c *Compiler) compileIf(n analyzer.IfNode, cc cctx) error {
	if err := c.compileNode(n.Test, cc); err != nil {
		return err
	}
	elseJump := cc.e.emitJump(OpJmpIfFalse)
	cc.e.track(-1)
	if err := c.compileNode(n.Then, cc); err != nil {
		return err
	}
	endJump := cc.e.emitJump(OpJmp)
	cc.e.patchJump(elseJump)
	if err := c.compileNode(n.Else, cc); err != nil {
		return err
	}
	cc.e.patchJump(endJump)
	return nil
}

func (c *Compiler) compileDo(body []analyzer.Node, cc cctx) error {
	if len(body) == 0 {
		cc.e.emitOp(OpNil)
		cc.e.track(1)
		return nil
	}
	for i, stmt := range body {
		last := i == len(body)-1
		if err := c.compileNode(stmt, cc); err != nil {
			return err
		}
		if !last {
			cc.e.emitOp(OpPop)
			cc.e.track(-1)
		}
	}
	return nil
}

func (c *Compiler) compileLet(n analyzer.LetNode, cc cctx) error {
	for _, b := range n.Bindings {
		if err := c.compileNode(b.Init, cc); err != nil {
			return err
		}
		cc.e.emitOpI32(OpStoreLocal, b.Slot)
		cc.e.track(-1)
	}
	return c.compileDo(n.Body, cc)
}

// compileLoop compiles `loop*`: bindings initialize their slots exactly
// like `let*`, loop_entry marks the recur target, and the body runs with
// that target active.
func (c *Compiler) compileLoop(n analyzer.LoopNode, cc cctx) error {
	for _, b := range n.Bindings {
		if err := c.compileNode(b.Init, cc); err != nil {
			return err
		}
		cc.e.emitOpI32(OpStoreLocal, b.Slot)
		cc.e.track(-1)
	}
	entryPC := cc.e.pc()
	cc.e.emitOp(OpLoopEntry)
	base := 0
	if len(n.Bindings) > 0 {
		base = n.Bindings[0].Slot
	}
	loop := &loopCtx{base: base, arity: len(n.Bindings), loopEntryPC: entryPC}
	return c.compileDo(n.Body, cctx{e: cc.e, loop: loop})
}

// compileRecur pushes its arguments, then stores them into the active
// loop's slot window (highest slot first, matching the stack's LIFO pop
// order) and jumps back to loop_entry. `recur` carries the resolved base
// slot and target pc as extra operands beyond the spec's headline `N`,
// since a stack VM has no other static-free way to know which window and
// label a given recur instruction targets (see DESIGN.md).
func (c *Compiler) compileRecur(n analyzer.RecurNode, cc cctx) error {
	if cc.loop == nil {
		return lumenerr.Analyze(lumenerr.KindCompile, nil, "compiler: recur with no active loop target")
	}
	for _, a := range n.Args {
		if err := c.compileNode(a, cc); err != nil {
			return err
		}
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		cc.e.emitOpI32(OpStoreLocal, cc.loop.base+i)
		cc.e.track(-1)
	}
	cc.e.emitOp(OpRecur)
	cc.e.emitI32(len(n.Args))
	cc.e.emitI32(cc.loop.base)
	rel := cc.loop.loopEntryPC - (cc.e.pc() + 4)
	cc.e.emitI32(rel)
	return nil
}

// compileFn compiles a (possibly multi-arity) FnNode into a FnTemplate
// constant plus make_fn/capture instructions that build the closure from
// the *currently compiling* frame's locals/upvalues.
func (c *Compiler) compileFn(n analyzer.FnNode, cc cctx) error {
	tmpl := &FnTemplate{SelfName: n.SelfName, Upvalues: n.Upvalues}
	// A named fn* reserves local slot 0 for the closure itself (see
	// analyzer's selfSlot), so its declared parameters start at slot 1
	// and the unit needs one more local than ParamSlots accounts for.
	selfOffset := 0
	if n.SelfName != "" {
		selfOffset = 1
	}
	for _, arity := range n.Arities {
		unitName := n.SelfName
		if unitName == "" {
			unitName = "fn"
		}
		ae := newEmitter(unitName, arity.NumLocals)
		loop := &loopCtx{base: selfOffset, arity: arity.ParamSlots, loopEntryPC: ae.pc()}
		ae.emitOp(OpLoopEntry)
		if err := c.compileDo(arity.Body, cctx{e: ae, loop: loop}); err != nil {
			return err
		}
		ae.emitOp(OpRet)
		tmpl.Arities = append(tmpl.Arities, ArityTemplate{
			ParamSlots: arity.ParamSlots,
			Variadic:   arity.Variadic,
			Unit:       ae.finish(),
		})
	}
	k := cc.e.addTemplate(tmpl)
	cc.e.emitOpI32(OpMakeFn, k)
	for _, up := range n.Upvalues {
		cc.e.emitOp(OpCapture)
		flag := 0
		if up.FromParentLocal {
			flag = 1
		}
		cc.e.emitI32(flag)
		cc.e.emitI32(up.Index)
	}
	cc.e.track(1)
	return nil
}

func (c *Compiler) compileInvoke(n analyzer.InvokeNode, cc cctx) error {
	if err := c.compileNode(n.Fn, cc); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := c.compileNode(a, cc); err != nil {
			return err
		}
	}
	if n.IsTail() {
		cc.e.emitOpI32(OpTailCall, len(n.Args))
	} else {
		cc.e.emitOpI32(OpCall, len(n.Args))
	}
	cc.e.track(-len(n.Args))
	return nil
}

func (c *Compiler) compileSetBang(n analyzer.SetBangNode, cc cctx) error {
	if err := c.compileNode(n.Value, cc); err != nil {
		return err
	}
	switch t := n.Target.(type) {
	case analyzer.GlobalRefNode:
		k := cc.e.addGlobalRef(GlobalRef{Ns: t.Ns, Name: t.Name})
		cc.e.emitOp(OpDup)
		cc.e.track(1)
		cc.e.emitOpI32(OpSetVar, k)
		cc.e.track(-1)
	case analyzer.LocalRefNode:
		cc.e.emitOp(OpDup)
		cc.e.track(1)
		cc.e.emitOpI32(OpStoreLocal, t.Slot)
		cc.e.track(-1)
	case analyzer.UpvalRefNode:
		cc.e.emitOp(OpDup)
		cc.e.track(1)
		cc.e.emitOpI32(OpStoreUp, t.Index)
		cc.e.track(-1)
	default:
		return lumenerr.Analyze(lumenerr.KindCompile, nil, "set! target must be a var, local, or upvalue reference")
	}
	return nil
}

func (c *Compiler) compileNew(n analyzer.NewNode, cc cctx) error {
	ref, ok := c.HostConstructor[n.ClassName]
	if !ok {
		return lumenerr.Analyze(lumenerr.KindCompile, nil, "no constructor registered for host class %q", n.ClassName)
	}
	k := cc.e.addGlobalRef(ref)
	cc.e.emitOpI32(OpLoadVar, k)
	cc.e.track(1)
	for _, a := range n.Args {
		if err := c.compileNode(a, cc); err != nil {
			return err
		}
	}
	cc.e.emitOpI32(OpCall, len(n.Args))
	cc.e.track(-len(n.Args))
	return nil
}

// compileDot lowers `.`/interop calls. A statically-hinted target
// (StaticHint non-empty, e.g. `(ClassName/member ...)`) must resolve
// against the compiler's interop table; an instance-style call emits
// host_dot for the VM's dynamic member resolver to handle at runtime,
// since the compiler cannot know the target's runtime type.
func (c *Compiler) compileDot(n analyzer.DotNode, cc cctx) error {
	if n.StaticHint != "" {
		ref, ok := c.HostInterop[interopKey{class: n.StaticHint, member: n.Member}]
		if !ok {
			return lumenerr.Analyze(lumenerr.KindCompile, nil, "unknown interop target %s/%s", n.StaticHint, n.Member)
		}
		k := cc.e.addGlobalRef(ref)
		cc.e.emitOpI32(OpLoadVar, k)
		cc.e.track(1)
		for _, a := range n.Args {
			if err := c.compileNode(a, cc); err != nil {
				return err
			}
		}
		cc.e.emitOpI32(OpCall, len(n.Args))
		cc.e.track(-len(n.Args))
		return nil
	}
	if err := c.compileNode(n.Target, cc); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := c.compileNode(a, cc); err != nil {
			return err
		}
	}
	k := cc.e.addConst(value.NewString(c.heap, n.Member))
	cc.e.emitOpI32(OpHostDot, k)
	cc.e.emitI32(len(n.Args))
	cc.e.track(-len(n.Args))
	return nil
}

