// Package vm implements the bytecode interpreter described in spec §4.4:
// one VM instance per OS thread (spec §4.6), executing the compiler's
// Unit opcode stream against a frame stack, dispatching every callable
// tag's calling convention, and installing the concrete closures that
// back internal/dispatch's central vtable for every lower package that
// cannot import vm directly.
package vm

import (
	"encoding/binary"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/dispatch"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
)

var nextThreadID uint64

// VM is one interpreter instance (spec §4.6: "OS-thread-per-VM-instance
// scheduling"). Each VM owns its own ThreadID, used both for nsenv.Var's
// per-thread binding stack and for this VM's own frame stack, which
// registers itself as a GC root for as long as the VM is alive.
type VM struct {
	env      *nsenv.Environment
	heap     *gc.Heap
	threadID nsenv.ThreadID

	mu     sync.Mutex
	frames []*Frame

	// HostNew/HostDot are the dynamic halves of the host-interop rewrite
	// table (spec §4.2/§5): HostConstructor/HostInterop on the compiler
	// resolve a *statically* named class; these resolve by the runtime
	// type key of the actual receiver, for `new`/`.` call sites the
	// analyzer could not give a static hint (host_new/host_dot).
	HostNew map[string]func(vm *VM, args []value.Value) (value.Value, error)
	HostDot map[string]map[string]func(vm *VM, target value.Value, args []value.Value) (value.Value, error)
}

// New creates a VM bound to env, with its own thread id and an empty
// dynamic host-interop surface. It registers itself as a GC root
// provider for the lifetime of the process; a VM is not expected to be
// discarded mid-session (matches the teacher's one-heap-per-agent
// lifetime convention).
func New(env *nsenv.Environment) *VM {
	vm := &VM{
		env:      env,
		heap:     env.Heap,
		threadID: nsenv.ThreadID(atomic.AddUint64(&nextThreadID, 1)),
		HostNew:  make(map[string]func(*VM, []value.Value) (value.Value, error)),
		HostDot:  make(map[string]map[string]func(*VM, value.Value, []value.Value) (value.Value, error)),
	}
	env.Heap.AddRootProvider(vm)
	return vm
}

func (vm *VM) ThreadID() nsenv.ThreadID { return vm.threadID }

// Env returns the Environment this VM is bound to, for callers (builtin
// implementations, internal/stdlib's registration table) that need its
// dispatch vtable or heap but were only handed the VM.
func (vm *VM) Env() *nsenv.Environment { return vm.env }

// Roots satisfies gc.RootProvider: every active frame's locals, operand
// stack, and executing closure are live roots (spec §4.5).
func (vm *VM) Roots(into []gc.Object) []gc.Object {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, fr := range vm.frames {
		into = append(into, fr)
	}
	return into
}

func (vm *VM) pushFrame(fr *Frame) {
	vm.mu.Lock()
	vm.frames = append(vm.frames, fr)
	vm.mu.Unlock()
}

func (vm *VM) popFrame() {
	vm.mu.Lock()
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.mu.Unlock()
}

func (vm *VM) keyword(s string) value.Value {
	s = strings.TrimPrefix(s, ":")
	ns, name := "", s
	if i := strings.IndexByte(s, '/'); i >= 0 {
		ns, name = s[:i], s[i+1:]
	}
	return vm.env.Keywords.Intern(ns, name)
}

// RunTopLevel executes a freshly compiled top-level Unit (no enclosing
// closure) against namespace ns — the entry point the REPL/file loader
// uses for each form it reads (spec §4.4's outermost "run a compiled
// unit" case, fn_val frames are nested beneath it by ordinary call
// instructions).
func (vm *VM) RunTopLevel(unit *compiler.Unit, ns *nsenv.Namespace) (value.Value, error) {
	fr := newFrame(unit, nil, ns)
	return vm.runFrame(fr)
}

// Call implements dispatch.VTable.Call: the single uniform entry point
// every other package in this module uses to invoke a callable Value
// without needing to know it is specifically talking to a VM.
func (vm *VM) Call(fn value.Value, args []value.Value) (value.Value, error) {
	prev := swapActiveVM(vm)
	defer swapActiveVM(prev)
	return vm.invoke(fn, args)
}

// invoke is the calling convention of spec §4.4 "Dispatch": it switches
// on the callee's tag and follows exactly one of fn_val, builtin_fn,
// multifn_dispatch, protocol-fn, keyword/map/set-as-fn, or var-as-fn.
func (vm *VM) invoke(callee value.Value, args []value.Value) (value.Value, error) {
	switch callee.Tag() {
	case value.Fn:
		fr, err := vm.prepareCallFrame(callee, args)
		if err != nil {
			return value.Nil_(), err
		}
		return vm.runFrame(fr)
	case value.BuiltinFn:
		b := callee.Obj().(*builtinFnObj)
		return b.fn(vm, args)
	case value.MultiFn:
		mf := callee.Obj().(*multiFnObj)
		dv, err := vm.invoke(mf.dispatchFn, args)
		if err != nil {
			return value.Nil_(), err
		}
		fn, ok := mf.findMethod(dispatchKeyString(dv))
		if !ok {
			return value.Nil_(), lumenerr.Runtime(lumenerr.KindValue, nil, "no matching method for multimethod %s on %s", mf.name, dv.String())
		}
		return vm.invoke(fn, args)
	case value.ProtocolFn:
		pf := callee.Obj().(*protocolFnObj)
		if len(args) == 0 {
			return value.Nil_(), lumenerr.Runtime(lumenerr.KindArity, nil, "protocol method %s needs a receiver", pf.methodName)
		}
		fn, ok := pf.protocol.method(vm.typeKey(args[0]), pf.methodName)
		if !ok {
			return value.Nil_(), lumenerr.Runtime(lumenerr.KindValue, nil, "no implementation of %s for %s", pf.methodName, vm.typeKey(args[0]))
		}
		return vm.invoke(fn, args)
	case value.Keyword:
		return invokeKeyword(callee, args)
	case value.ArrayMap, value.HashMap:
		return invokeMap(callee, args)
	case value.Set:
		return invokeSet(callee, args)
	case value.VarRef:
		v := nsenv.AsVar(callee)
		return vm.invoke(v.Deref(vm.threadID), args)
	default:
		return value.Nil_(), lumenerr.Runtime(lumenerr.KindType, nil, "%s is not callable", callee.Tag())
	}
}

func invokeKeyword(kw value.Value, args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Nil_(), lumenerr.Runtime(lumenerr.KindArity, nil, "keyword invoke takes 1 or 2 arguments, got %d", len(args))
	}
	v, ok := collections.Get(args[0], kw)
	if !ok {
		if len(args) == 2 {
			return args[1], nil
		}
		return value.Nil_(), nil
	}
	return v, nil
}

func invokeMap(m value.Value, args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Nil_(), lumenerr.Runtime(lumenerr.KindArity, nil, "map invoke takes 1 or 2 arguments, got %d", len(args))
	}
	v, ok := collections.Get(m, args[0])
	if !ok {
		if len(args) == 2 {
			return args[1], nil
		}
		return value.Nil_(), nil
	}
	return v, nil
}

func invokeSet(s value.Value, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil_(), lumenerr.Runtime(lumenerr.KindArity, nil, "set invoke takes 1 argument, got %d", len(args))
	}
	if collections.SetContains(s, args[0]) {
		return args[0], nil
	}
	return value.Nil_(), nil
}

func dispatchKeyString(v value.Value) string {
	if v.Tag() == value.Keyword {
		ns, name := value.KeywordParts(v)
		if ns == "" {
			return ":" + name
		}
		return ":" + ns + "/" + name
	}
	return v.String()
}

// typeKey implements dispatch.VTable.TypeKey (spec §9 "Tagged
// polymorphism"): ordinarily the tag's own name, except a map carrying a
// `:__reify_type` entry reports that entry's keyword name instead, so
// reify-like constructs dispatch as their declared type.
func (vm *VM) typeKey(v value.Value) string {
	if v.Tag() == value.ArrayMap || v.Tag() == value.HashMap {
		if rt, ok := collections.Get(v, vm.keyword(":__reify_type")); ok && rt.Tag() == value.Keyword {
			_, name := value.KeywordParts(rt)
			return name
		}
	}
	return v.Tag().String()
}

func (vm *VM) getMeta(v value.Value) value.Value {
	switch v.Tag() {
	case value.VarRef:
		return nsenv.AsVar(v).Meta()
	default:
		return value.Nil_()
	}
}

// prepareCallFrame selects the matching arity and binds args into a
// fresh Frame's locals, per spec §3.3's multi-arity/variadic contract.
func (vm *VM) prepareCallFrame(callee value.Value, args []value.Value) (*Frame, error) {
	fo := callee.Obj().(*fnObj)
	arity, ok := fo.selectArity(len(args))
	if !ok {
		return nil, lumenerr.Runtime(lumenerr.KindArity, nil, "wrong number of arguments (%d) passed to %s", len(args), fo.String())
	}
	fr := newFrame(arity.Unit, fo, fo.ns)
	// A named fn* reserves local slot 0 for the closure itself (see
	// compiler's compileFn); declared parameters land one slot higher.
	off := 0
	if fo.template.SelfName != "" {
		fr.locals[0] = callee
		off = 1
	}
	if arity.Variadic {
		fixed := arity.ParamSlots - 1
		copy(fr.locals[off:off+fixed], args[:fixed])
		fr.locals[off+fixed] = collections.NewList(vm.heap, args[fixed:]...)
	} else {
		copy(fr.locals[off:], args)
	}
	return fr, nil
}

// Bootstrap installs this VM's Call/TypeKey/FindBestMultimethod/GetMeta/
// ExceptionMatchesClass implementations into env's central dispatch
// vtable (spec §9's dependency inversion). Called once per Environment,
// by whichever VM first comes up — every later VM sharing the
// Environment reuses the same installed vtable.
func (vm *VM) Bootstrap() {
	vm.env.Dispatch.Install(dispatch.VTable{
		Call:                  vm.Call,
		TypeKey:               vm.typeKey,
		FindBestMultimethod:   findBestMultimethod,
		GetMeta:               vm.getMeta,
		ExceptionMatchesClass: vm.exceptionMatchesClass,
		TraceBytecodeUnit:     traceBytecodeUnitValue,
	})
}

func findBestMultimethod(dispatchVal value.Value, methods map[string]value.Value) (value.Value, bool) {
	key := dispatchKeyString(dispatchVal)
	if fn, ok := methods[key]; ok {
		return fn, true
	}
	fn, ok := methods[":default"]
	return fn, ok
}

// traceBytecodeUnitValue implements dispatch.VTable.TraceBytecodeUnit for
// a Fn value, letting nREPL/gc describe a closure's reachable constants
// without importing internal/compiler.
func traceBytecodeUnitValue(unit value.Value, visit func(value.Value)) {
	fo, ok := unit.Obj().(*fnObj)
	if !ok {
		return
	}
	for _, u := range fo.upvalues {
		visit(u)
	}
	for _, arity := range fo.template.Arities {
		for _, c := range arity.Unit.Consts {
			visit(c)
		}
	}
}

// activeVM is the "active VM's call entry point" bridge named in spec
// §4.4: a native bridge calling back into a bytecode closure while a VM
// is already running reuses that VM instead of spinning up a new
// interpreter. This process models it as a single mutable slot rather
// than a true per-OS-thread table (see DESIGN.md); swapActiveVM is only
// ever called paired with a deferred restore, so nested/concurrent
// Call()s still see the innermost VM for their own duration.
var activeVMMu sync.Mutex
var activeVMSlot *VM

func swapActiveVM(vm *VM) *VM {
	activeVMMu.Lock()
	defer activeVMMu.Unlock()
	prev := activeVMSlot
	activeVMSlot = vm
	return prev
}

// ActiveVM returns the VM bridging the currently running call chain, or
// nil if none is active (no VM is currently executing bytecode).
func ActiveVM() *VM {
	activeVMMu.Lock()
	defer activeVMMu.Unlock()
	return activeVMSlot
}

func readI32(code []byte, at int) int {
	return int(int32(binary.LittleEndian.Uint32(code[at : at+4])))
}
