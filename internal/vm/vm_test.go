package vm

import (
	"testing"

	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/reader"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

type harness struct {
	vm  *VM
	env *nsenv.Environment
	ns  *nsenv.Namespace
	c   *compiler.Compiler
	a   *analyzer.Analyzer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	heap := gc.New(1<<20, nil)
	env := nsenv.NewEnvironment(heap, nil)
	ns := env.FindOrCreateNamespace("user")
	v := New(env)
	v.Bootstrap()
	return &harness{
		vm:  v,
		env: env,
		ns:  ns,
		c:   compiler.New(heap),
		a:   analyzer.New(env, ns, v.ThreadID()),
	}
}

// run compiles and executes one top-level form against h's namespace.
// numLocals must match however many local slots the source's own
// let*/loop* bindings allocate, the same hand-counted convention
// internal/compiler's own tests use.
func (h *harness) run(t *testing.T, src string, numLocals int) (value.Value, error) {
	t.Helper()
	r := reader.New(src, "test.lum", h.env.Heap, h.env.Keywords, reader.NewMetaTable(), reader.NewTagTable())
	form, err := r.Read()
	require.NoError(t, err)
	node, err := h.a.Analyze(form)
	if err != nil {
		return value.Nil_(), err
	}
	unit, err := h.c.CompileTopLevel(node, numLocals)
	if err != nil {
		return value.Nil_(), err
	}
	return h.vm.RunTopLevel(unit, h.ns)
}

func (h *harness) defBuiltin(name string, fn func(vm *VM, args []value.Value) (value.Value, error)) {
	h.ns.Intern(name).BindRoot(NewBuiltin(h.env.Heap, name, fn))
}

func TestRunTopLevelLiteral(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "42", 0)
	require.NoError(t, err)
	require.Equal(t, int64(42), v.AsInt())
}

func TestRunIfPicksThenBranch(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(if true 1 2)", 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), v.AsInt())
}

func TestRunIfPicksElseBranch(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(if false 1 2)", 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), v.AsInt())
}

func TestRunLetBindsLocal(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(let* [x 5] x)", 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), v.AsInt())
}

func TestRunDefThenLoadVar(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "(def greeting 10)", 0)
	require.NoError(t, err)
	v, err := h.run(t, "greeting", 0)
	require.NoError(t, err)
	require.Equal(t, int64(10), v.AsInt())
}

func TestRunDefReturnsItsVar(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(def x 1)", 0)
	require.NoError(t, err)
	require.Equal(t, value.VarRef, v.Tag())
	require.Equal(t, "x", nsenv.AsVar(v).Name())
}

func TestRunFnCallIdentity(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "((fn* [x] x) 42)", 0)
	require.NoError(t, err)
	require.Equal(t, int64(42), v.AsInt())
}

func TestRunFnClosesOverLocal(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(let* [x 7] ((fn* [] x)))", 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), v.AsInt())
}

func TestRunFnMultiArityPicksMatch(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "((fn* ([a] a) ([a b] b)) 1 2)", 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), v.AsInt())
}

func TestRunLoopRecurSumsToFive(t *testing.T) {
	h := newHarness(t)
	h.defBuiltin("lt?", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewBool(args[0].AsInt() < args[1].AsInt()), nil
	})
	h.defBuiltin("add", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewInt(args[0].AsInt() + args[1].AsInt()), nil
	})
	v, err := h.run(t, `(loop* [i 0 acc 0]
		(if (lt? i 5)
			(recur (add i 1) (add acc i))
			acc))`, 2)
	require.NoError(t, err)
	require.Equal(t, int64(0+1+2+3+4), v.AsInt())
}

func TestRunTailCallDeepRecursionDoesNotOverflowGoStack(t *testing.T) {
	h := newHarness(t)
	h.defBuiltin("lt?", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewBool(args[0].AsInt() < args[1].AsInt()), nil
	})
	h.defBuiltin("add", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewInt(args[0].AsInt() + args[1].AsInt()), nil
	})
	_, err := h.run(t, "(def count-to (fn* count-to [n limit] (if (lt? n limit) (count-to (add n 1) limit) n)))", 0)
	require.NoError(t, err)
	v, err := h.run(t, "(count-to 0 200000)", 0)
	require.NoError(t, err)
	require.Equal(t, int64(200000), v.AsInt())
}

func TestRunFnSelfNameRecursesByBareReference(t *testing.T) {
	h := newHarness(t)
	h.defBuiltin("lt?", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewBool(args[0].AsInt() < args[1].AsInt()), nil
	})
	h.defBuiltin("add", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewInt(args[0].AsInt() + args[1].AsInt()), nil
	})
	v, err := h.run(t, `((fn* count-down [n]
		(if (lt? n 1)
			n
			(count-down (add n -1))))
		5)`, 0)
	require.NoError(t, err)
	require.Equal(t, int64(0), v.AsInt())
}

func TestRunTryCatchBindsThrownValue(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, `(try
		(throw "boom")
		(catch Exception e e))`, 1)
	require.NoError(t, err)
	require.Equal(t, "boom", value.StringVal(v))
}

func TestRunTryCatchWrongClassPropagates(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, `(try
		(throw "boom")
		(catch NoSuchClass e e))`, 1)
	require.Error(t, err)
}

func TestRunTryFinallyRunsOnNormalPath(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "(def ran false)", 0)
	require.NoError(t, err)
	_, err = h.run(t, `(try
		1
		(finally (def ran true)))`, 0)
	require.NoError(t, err)
	v, err := h.run(t, "ran", 0)
	require.NoError(t, err)
	require.True(t, v.AsBool())
}

func TestRunCaseDenseIntDispatch(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(case* 2 1 :one 2 :two :other)", 0)
	require.NoError(t, err)
	ns, name := value.KeywordParts(v)
	require.Equal(t, "", ns)
	require.Equal(t, "two", name)
}

func TestRunCaseHashDispatchDefault(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(case* :z :a 1 :b 2 3)", 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), v.AsInt())
}

func TestRunRuntimeErrorUnwindsIntoHostErrorMap(t *testing.T) {
	h := newHarness(t)
	h.defBuiltin("boom", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.Nil_(), lumenerr.Runtime(lumenerr.KindArity, nil, "boom needs an argument")
	})
	v, err := h.run(t, "(try (boom) (catch Exception e e))", 1)
	require.NoError(t, err)
	require.True(t, v.Tag() == value.HashMap || v.Tag() == value.ArrayMap)
	kindVal, ok := collections.Get(v, h.env.Keywords.Intern("", "kind"))
	require.True(t, ok)
	_, kindName := value.KeywordParts(kindVal)
	require.Equal(t, "arity_error", kindName)
}

func TestInvokeMultiFnDispatchesOnTypeThenDefault(t *testing.T) {
	h := newHarness(t)
	heap := h.env.Heap

	dispatchFn := NewBuiltin(heap, "type-of", func(vm *VM, args []value.Value) (value.Value, error) {
		return vm.keyword(":" + args[0].Tag().String()), nil
	})
	multi := NewMultiFn(heap, "describe", dispatchFn)
	mf := multi.Obj().(*multiFnObj)
	mf.AddMethod(":integer", NewBuiltin(heap, "describe-int", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewString(heap, "an int"), nil
	}))
	mf.AddMethod(":default", NewBuiltin(heap, "describe-default", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewString(heap, "something else"), nil
	}))

	out, err := h.vm.invoke(multi, []value.Value{value.NewInt(1)})
	require.NoError(t, err)
	require.Equal(t, "an int", value.StringVal(out))

	out, err = h.vm.invoke(multi, []value.Value{value.NewBool(true)})
	require.NoError(t, err)
	require.Equal(t, "something else", value.StringVal(out))
}

func TestInvokeProtocolFnFallsBackToObjectImpl(t *testing.T) {
	h := newHarness(t)
	heap := h.env.Heap

	proto := NewProtocol(heap, "Describable")
	po := proto.Obj().(*protocolObj)
	po.Extend("Object", map[string]value.Value{
		"describe": NewBuiltin(heap, "obj-describe", func(vm *VM, args []value.Value) (value.Value, error) {
			return value.NewString(heap, "generic"), nil
		}),
	})
	describe := NewProtocolFn(heap, proto, "describe")

	out, err := h.vm.invoke(describe, []value.Value{value.NewInt(9)})
	require.NoError(t, err)
	require.Equal(t, "generic", value.StringVal(out))
}

func TestInvokeKeywordAsFnLooksUpMap(t *testing.T) {
	h := newHarness(t)
	heap := h.env.Heap
	m := collections.EmptyHashMap()
	kw := h.env.Keywords.Intern("", "a")
	m = collections.Assoc(heap, m, kw, value.NewInt(1))

	out, err := h.vm.invoke(kw, []value.Value{m})
	require.NoError(t, err)
	require.Equal(t, int64(1), out.AsInt())
}

func TestInvokeKeywordAsFnMissingKeyReturnsDefault(t *testing.T) {
	h := newHarness(t)
	m := collections.EmptyHashMap()
	kw := h.env.Keywords.Intern("", "missing")

	out, err := h.vm.invoke(kw, []value.Value{m, value.NewInt(42)})
	require.NoError(t, err)
	require.Equal(t, int64(42), out.AsInt())
}

func TestVarRefDerefsThenInvokes(t *testing.T) {
	h := newHarness(t)
	heap := h.env.Heap
	vr := h.ns.Intern("adder")
	vr.BindRoot(NewBuiltin(heap, "adder", func(vm *VM, args []value.Value) (value.Value, error) {
		return value.NewInt(args[0].AsInt() + args[1].AsInt()), nil
	}))
	ref := nsenv.NewVarRefValue(heap, vr)

	out, err := h.vm.invoke(ref, []value.Value{value.NewInt(2), value.NewInt(3)})
	require.NoError(t, err)
	require.Equal(t, int64(5), out.AsInt())
}
