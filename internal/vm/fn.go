package vm

import (
	"fmt"

	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
)

// fnObj backs the value.Fn tag (spec §3.3): a FnTemplate (shared, shared
// across every closure made from the same fn* literal) plus this
// particular closure's captured upvalues. ns is the namespace the
// defining top-level form ran in, inherited by every frame this closure
// opens so unqualified var references inside its body resolve the way
// they did at compile time.
type fnObj struct {
	template *compiler.FnTemplate
	upvalues []value.Value
	ns       *nsenv.Namespace
}

func (f *fnObj) TraceChildren(visit func(gc.Object)) {
	for _, u := range f.upvalues {
		u.TraceChildren(visit)
	}
	for _, arity := range f.template.Arities {
		traceUnitConsts(arity.Unit, visit)
	}
}

// traceUnitConsts walks a Unit's own constant pool plus every nested
// FnTemplate's units, so a closure keeps alive every literal its body (and
// any fn* nested inside it) might push, for as long as the closure itself
// is reachable. This is the same walk dispatch.VTable.TraceBytecodeUnit
// exposes to packages that cannot import internal/compiler directly.
func traceUnitConsts(u *compiler.Unit, visit func(gc.Object)) {
	for _, c := range u.Consts {
		if c.Obj() != nil {
			visit(c.Obj())
		}
	}
	for _, t := range u.FnTemplates {
		for _, arity := range t.Arities {
			traceUnitConsts(arity.Unit, visit)
		}
	}
}

func (f *fnObj) Equal(o value.Value) bool {
	of, ok := o.Obj().(*fnObj)
	return ok && of == f
}

func (f *fnObj) Hash() uint64 { return uint64(len(f.upvalues)) ^ 0x666e }

func (f *fnObj) String() string {
	name := f.template.SelfName
	if name == "" {
		name = "fn"
	}
	return fmt.Sprintf("#<fn %s>", name)
}

// selectArity picks the arity matching argc, per spec §3.3's "multi-arity
// functions carry one body per arity plus at most one variadic body":
// an exact fixed-arity match wins; otherwise the variadic arity (if any)
// whose fixed prefix argc can satisfy.
func (f *fnObj) selectArity(argc int) (compiler.ArityTemplate, bool) {
	var variadic *compiler.ArityTemplate
	for i := range f.template.Arities {
		a := f.template.Arities[i]
		if a.Variadic {
			if variadic == nil {
				variadic = &f.template.Arities[i]
			}
			continue
		}
		if a.ParamSlots == argc {
			return a, true
		}
	}
	if variadic != nil && argc >= variadic.ParamSlots-1 {
		return *variadic, true
	}
	return compiler.ArityTemplate{}, false
}

// builtinFnObj backs value.BuiltinFn: a native Go function exposed to
// Lisp code, closing over the *VM it was installed against (spec §4.4's
// builtin_fn "runs to completion" path needs no frame of its own).
type builtinFnObj struct {
	name string
	fn   func(vm *VM, args []value.Value) (value.Value, error)
}

func (b *builtinFnObj) TraceChildren(func(gc.Object)) {}
func (b *builtinFnObj) Equal(o value.Value) bool {
	ob, ok := o.Obj().(*builtinFnObj)
	return ok && ob == b
}
func (b *builtinFnObj) Hash() uint64   { return fnv1a(b.name) ^ 0x6275 }
func (b *builtinFnObj) String() string { return fmt.Sprintf("#<builtin-fn %s>", b.name) }

// NewBuiltin wraps a native Go function as a callable value.BuiltinFn.
func NewBuiltin(heap *gc.Heap, name string, fn func(vm *VM, args []value.Value) (value.Value, error)) value.Value {
	return value.WithHeaped(value.BuiltinFn, heap.Alloc(&builtinFnObj{name: name, fn: fn}).(*builtinFnObj))
}

func fnv1a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
