package stdlib

import (
	"testing"

	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/reader"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/lumenlang/lumen/internal/vm"
	"github.com/stretchr/testify/require"
)

type harness struct {
	vm  *vm.VM
	env *nsenv.Environment
	ns  *nsenv.Namespace
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	heap := gc.New(1<<20, nil)
	env := nsenv.NewEnvironment(heap, nil)
	ns := env.FindOrCreateNamespace("user")
	v := vm.New(env)
	v.Bootstrap()
	reg := DefaultRegistry()
	require.NoError(t, reg.Bootstrap(env, v))
	return &harness{vm: v, env: env, ns: ns}
}

// run compiles and executes one top-level form against h's user namespace,
// referring lumen.core first so the registered builtins resolve unqualified.
func (h *harness) run(t *testing.T, src string) (value.Value, error) {
	t.Helper()
	coreNS := h.env.FindOrCreateNamespace("lumen.core")
	for _, v := range coreNS.Publics() {
		h.ns.Refer(v.Name(), v)
	}

	r := reader.New(src, "test.lum", h.env.Heap, h.env.Keywords, reader.NewMetaTable(), reader.NewTagTable())
	form, err := r.Read()
	require.NoError(t, err)
	a := analyzer.New(h.env, h.ns, h.vm.ThreadID())
	node, numLocals, err := a.AnalyzeTopLevel(form)
	if err != nil {
		return value.Nil_(), err
	}
	comp := compiler.New(h.env.Heap)
	unit, err := comp.CompileTopLevel(node, numLocals)
	if err != nil {
		return value.Nil_(), err
	}
	return h.vm.RunTopLevel(unit, h.ns)
}

func TestBootstrapRegistersCoreNamespace(t *testing.T) {
	h := newHarness(t)
	ns, ok := h.env.FindNamespace("lumen.core")
	require.True(t, ok)
	require.Equal(t, nsenv.Loaded, ns.Lifecycle())
}

func TestCoreArithmeticBuiltins(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(+ 1 2 3)")
	require.NoError(t, err)
	require.Equal(t, int64(6), v.AsInt())

	v, err = h.run(t, "(- 10 3 2)")
	require.NoError(t, err)
	require.Equal(t, int64(5), v.AsInt())

	v, err = h.run(t, "(+ 1 2.5)")
	require.NoError(t, err)
	require.InDelta(t, 3.5, v.AsFloat(), 0.0001)
}

func TestCoreEquality(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(= 1 1 1)")
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = h.run(t, "(= 1 2)")
	require.NoError(t, err)
	require.False(t, v.Truthy())
}

func TestCoreSeqBuiltins(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(first (cons 1 (cons 2 (cons 3 nil))))")
	require.NoError(t, err)
	require.Equal(t, int64(1), v.AsInt())

	v, err = h.run(t, "(count (cons 1 (cons 2 nil)))")
	require.NoError(t, err)
	require.Equal(t, int64(2), v.AsInt())
}

func TestCoreAssocAndGet(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, `(get (assoc {} :a 1 :b 2) :b)`)
	require.NoError(t, err)
	require.Equal(t, int64(2), v.AsInt())

	v, err = h.run(t, `(get (assoc {} :a 1) :missing -1)`)
	require.NoError(t, err)
	require.Equal(t, int64(-1), v.AsInt())
}

func TestCoreConjOnVector(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(count (conj [1 2] 3 4))")
	require.NoError(t, err)
	require.Equal(t, int64(4), v.AsInt())
}

func TestCoreAtomSwapDeref(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(deref (atom 41))")
	require.NoError(t, err)
	require.Equal(t, int64(41), v.AsInt())
}

func TestCoreReduceOverVector(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(reduce + 0 [1 2 3 4 5])")
	require.NoError(t, err)
	require.Equal(t, int64(15), v.AsInt())

	v, err = h.run(t, "(reduce + (conj (conj (conj [] 1) 2) 3))")
	require.NoError(t, err)
	require.Equal(t, int64(6), v.AsInt())
}

func TestCoreMapAndFilter(t *testing.T) {
	h := newHarness(t)
	v, err := h.run(t, "(count (map first [[1 2] [3 4] [5 6]]))")
	require.NoError(t, err)
	require.Equal(t, int64(3), v.AsInt())

	v, err = h.run(t, "(reduce + 0 (filter (fn [x] (= x 2)) [1 2 3 2 1]))")
	require.NoError(t, err)
	require.Equal(t, int64(4), v.AsInt())
}

func TestRequireIsNoOpForAlreadyLoadedEntry(t *testing.T) {
	h := newHarness(t)
	reg := DefaultRegistry()
	require.NoError(t, reg.Bootstrap(h.env, h.vm))
	require.NoError(t, reg.Require(h.env, h.vm, "lumen.core"))
}
