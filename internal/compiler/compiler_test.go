package compiler

import (
	"testing"

	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/reader"
	"github.com/stretchr/testify/require"
)

func newTestCompiler(t *testing.T) (*Compiler, *analyzer.Analyzer, *nsenv.Environment) {
	t.Helper()
	heap := gc.New(1<<20, nil)
	env := nsenv.NewEnvironment(heap, nil)
	ns := env.FindOrCreateNamespace("user")
	return New(heap), analyzer.New(env, ns, 0), env
}

func analyzeSrc(t *testing.T, a *analyzer.Analyzer, env *nsenv.Environment, src string) analyzer.Node {
	t.Helper()
	r := reader.New(src, "test.lum", env.Heap, env.Keywords, reader.NewMetaTable(), reader.NewTagTable())
	form, err := r.Read()
	require.NoError(t, err)
	n, err := a.Analyze(form)
	require.NoError(t, err)
	return n
}

func TestCompileLiteralConst(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, "42")
	u, err := c.CompileTopLevel(n, 0)
	require.NoError(t, err)
	require.Equal(t, Op(OpConst), Op(u.Code[0]))
	require.Len(t, u.Consts, 1)
	require.Equal(t, int64(42), u.Consts[0].AsInt())
	require.Equal(t, OpRet, Op(u.Code[len(u.Code)-1]))
}

func TestCompileIfBothBranches(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, "(if true 1 2)")
	u, err := c.CompileTopLevel(n, 0)
	require.NoError(t, err)
	require.Equal(t, OpTrue, Op(u.Code[0]))
	require.Equal(t, OpJmpIfFalse, Op(u.Code[1]))
	require.Len(t, u.Consts, 2)
}

func TestCompileFnSharesOneTemplatePerArity(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, "(fn* ([a] a) ([a b] b))")
	u, err := c.CompileTopLevel(n, 0)
	require.NoError(t, err)
	require.Len(t, u.FnTemplates, 1)
	require.Len(t, u.FnTemplates[0].Arities, 2)
	require.Equal(t, 1, u.FnTemplates[0].Arities[0].ParamSlots)
	require.Equal(t, 2, u.FnTemplates[0].Arities[1].ParamSlots)
	require.Equal(t, OpMakeFn, Op(u.Code[0]))
}

func TestCompileLoopRecurEncodesBaseAndOffset(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, "(loop* [x 0] (if x x (recur 1)))")
	_, err := c.CompileTopLevel(n, 1)
	require.NoError(t, err)
}

func TestCompileCaseDenseIntDispatch(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, "(case* 1 1 :one 2 :two :other)")
	u, err := c.CompileTopLevel(n, 0)
	require.NoError(t, err)
	require.Equal(t, OpCaseSwitchInt, Op(u.Code[5])) // after the expr's 5-byte const push
	require.Len(t, u.CaseTables, 1)
	tbl := u.CaseTables[0]
	require.True(t, tbl.Dense)
	require.Equal(t, int64(1), tbl.Base)
	require.Len(t, tbl.DenseJumps, 2)
	require.NotEqual(t, tbl.DenseJumps[0], tbl.Default)
	require.NotEqual(t, tbl.DenseJumps[1], tbl.Default)
}

func TestCompileCaseHashDispatchForKeywords(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, "(case* :a :a 1 :b 2 3)")
	u, err := c.CompileTopLevel(n, 0)
	require.NoError(t, err)
	require.Equal(t, OpCaseSwitchHash, Op(u.Code[5]))
	require.Len(t, u.CaseTables, 1)
	tbl := u.CaseTables[0]
	require.False(t, tbl.Dense)
	require.Len(t, tbl.HashJumps, 2)
}

func TestCompileTryCatchFinallyPushesHandlersInReverseOrder(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, `(try
		1
		(catch Err1 e 2)
		(catch Err2 e 3)
		(finally 4))`)
	u, err := c.CompileTopLevel(n, 1)
	require.NoError(t, err)

	readI32 := func(off int) int32 {
		return int32(u.Code[off]) | int32(u.Code[off+1])<<8 | int32(u.Code[off+2])<<16 | int32(u.Code[off+3])<<24
	}
	var pushed []string
	for pc := 0; pc < len(u.Code); {
		op := Op(u.Code[pc])
		if op == OpPushHandler {
			// layout: [op][4-byte jump target, patched later][4-byte class
			// const index, or -1 for a catch-all].
			k := readI32(pc + 5)
			if k >= 0 {
				pushed = append(pushed, u.Consts[k].Obj().String())
			} else {
				pushed = append(pushed, "<finally-catchall>")
			}
			pc += 9
			continue
		}
		pc++
	}
	// finally's catch-all is pushed first (outermost), then the named
	// catches in reverse declaration order so Err1 ends up nearest the top.
	require.Equal(t, []string{"<finally-catchall>", "Err2", "Err1"}, pushed)
}

func TestCompileNewUsesRegisteredConstructor(t *testing.T) {
	c, a, env := newTestCompiler(t)
	c.HostConstructor["Widget"] = GlobalRef{Ns: "host", Name: "Widget/new"}
	n := analyzeSrc(t, a, env, "(new Widget)")
	u, err := c.CompileTopLevel(n, 0)
	require.NoError(t, err)
	require.Equal(t, OpLoadVar, Op(u.Code[0]))
	require.Equal(t, GlobalRef{Ns: "host", Name: "Widget/new"}, u.GlobalRefs[0])
}

func TestCompileNewUnregisteredConstructorErrors(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, "(new Mystery)")
	_, err := c.CompileTopLevel(n, 0)
	require.Error(t, err)
}

func TestCompileDotStaticHintUsesInteropTable(t *testing.T) {
	c, a, env := newTestCompiler(t)
	// a bare symbol target only needs to resolve so analysis succeeds;
	// compileDot never reads it once StaticHint is set.
	env.FindOrCreateNamespace("user").Intern("Math")
	c.HostInterop[interopKey{class: "Math", member: "sqrt"}] = GlobalRef{Ns: "host", Name: "Math/sqrt"}
	n := analyzeSrc(t, a, env, "(. Math sqrt 4)")
	u, err := c.CompileTopLevel(n, 0)
	require.NoError(t, err)
	require.Equal(t, OpLoadVar, Op(u.Code[0]))
}

func TestCompileDotUnresolvedStaticHintErrors(t *testing.T) {
	c, a, env := newTestCompiler(t)
	env.FindOrCreateNamespace("user").Intern("Math")
	n := analyzeSrc(t, a, env, "(. Math sqrt 4)")
	_, err := c.CompileTopLevel(n, 0)
	require.Error(t, err)
}

func TestCompileDefPushesVarAsResult(t *testing.T) {
	c, a, env := newTestCompiler(t)
	n := analyzeSrc(t, a, env, "(def x 1)")
	u, err := c.CompileTopLevel(n, 0)
	require.NoError(t, err)
	last := u.Code[len(u.Code)-6]
	require.Equal(t, OpPushVarRef, Op(last))
}

func TestUnitPositionAtFallsBackToPriorEntry(t *testing.T) {
	u := &Unit{Positions: []PosEntry{{PC: 0}, {PC: 10}}}
	require.Equal(t, u.Positions[0].Pos, u.PositionAt(4))
	require.Equal(t, u.Positions[1].Pos, u.PositionAt(10))
}
