package analyzer

import (
	"testing"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/reader"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T) (*Analyzer, *nsenv.Environment) {
	t.Helper()
	env := nsenv.NewEnvironment(gc.New(1<<20, nil), nil)
	ns := env.FindOrCreateNamespace("user")
	return New(env, ns, 0), env
}

func readForm(t *testing.T, env *nsenv.Environment, src string) value.Value {
	t.Helper()
	r := reader.New(src, "test.lum", env.Heap, env.Keywords, reader.NewMetaTable(), reader.NewTagTable())
	v, err := r.Read()
	require.NoError(t, err)
	return v
}

func TestAnalyzeIfAndLiterals(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(if true 1 2)"))
	require.NoError(t, err)
	ifNode, ok := n.(IfNode)
	require.True(t, ok)
	require.True(t, ifNode.IsTail())
	_, ok = ifNode.Then.(LiteralNode)
	require.True(t, ok)
}

func TestAnalyzeDefInternsVar(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(def x 42)"))
	require.NoError(t, err)
	def, ok := n.(DefNode)
	require.True(t, ok)
	require.Equal(t, "x", def.Name)
	_, ok = env.FindOrCreateNamespace("user").Lookup("x")
	require.True(t, ok)
}

func TestAnalyzeLetStarResolvesLocal(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(let* [a 1 b 2] (+ a b))"))
	require.NoError(t, err)
	let, ok := n.(LetNode)
	require.True(t, ok)
	require.Len(t, let.Bindings, 2)
	require.Equal(t, 0, let.Bindings[0].Slot)
	require.Equal(t, 1, let.Bindings[1].Slot)
	invoke, ok := let.Body[0].(InvokeNode)
	require.True(t, ok)
	require.Len(t, invoke.Args, 2)
	_, ok = invoke.Args[0].(LocalRefNode)
	require.True(t, ok)
}

func TestAnalyzeUnboundSymbolErrors(t *testing.T) {
	a, env := newAnalyzer(t)
	_, err := a.Analyze(readForm(t, env, "totally-unbound-name"))
	require.Error(t, err)
}

func TestAnalyzeFnStarSingleArity(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(fn* [a b] a)"))
	require.NoError(t, err)
	fn, ok := n.(FnNode)
	require.True(t, ok)
	require.Len(t, fn.Arities, 1)
	require.Equal(t, 2, fn.Arities[0].ParamSlots)
	require.False(t, fn.Arities[0].Variadic)
}

func TestAnalyzeFnStarVariadic(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(fn* [a & rest] rest)"))
	require.NoError(t, err)
	fn := n.(FnNode)
	require.True(t, fn.Arities[0].Variadic)
	require.Equal(t, 2, fn.Arities[0].ParamSlots)
}

func TestAnalyzeFnStarMultiArity(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(fn* ([a] a) ([a b] b))"))
	require.NoError(t, err)
	fn := n.(FnNode)
	require.Len(t, fn.Arities, 2)
	require.Equal(t, 1, fn.Arities[0].ParamSlots)
	require.Equal(t, 2, fn.Arities[1].ParamSlots)
}

func TestAnalyzeRecurValidatesArity(t *testing.T) {
	a, env := newAnalyzer(t)
	_, err := a.Analyze(readForm(t, env, "(loop* [a 0] (recur a a))"))
	require.Error(t, err)

	a2, env2 := newAnalyzer(t)
	n, err := a2.Analyze(readForm(t, env2, "(loop* [a 0] (recur 1))"))
	require.NoError(t, err)
	loop, ok := n.(LoopNode)
	require.True(t, ok)
	_, ok = loop.Body[0].(RecurNode)
	require.True(t, ok)
}

func TestAnalyzeRecurOutsideLoopErrors(t *testing.T) {
	a, env := newAnalyzer(t)
	_, err := a.Analyze(readForm(t, env, "(recur 1)"))
	require.Error(t, err)
}

func TestAnalyzeRecurNotInTailErrors(t *testing.T) {
	a, env := newAnalyzer(t)
	_, err := a.Analyze(readForm(t, env, "(loop* [a 0] (if a (recur a) a) a)"))
	require.Error(t, err)
}

func TestAnalyzeClosureCapturesUpvalue(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(fn* [a] (fn* [b] (fn* [c] a)))"))
	require.NoError(t, err)
	outer := n.(FnNode)
	inner := outer.Arities[0].Body[0].(FnNode)
	// The middle fn* never reads "a" itself but must still flatten it
	// through as one of its own upvalues so the innermost fn* can capture
	// it from the middle closure's upvalue array rather than reaching
	// past it.
	require.Len(t, inner.Upvalues, 1)
	require.True(t, inner.Upvalues[0].FromParentLocal) // captured directly from outer fn*'s local "a"

	innermost := inner.Arities[0].Body[0].(FnNode)
	require.Len(t, innermost.Upvalues, 1)
	require.False(t, innermost.Upvalues[0].FromParentLocal) // relayed through middle's own upvalue array
	require.Equal(t, 0, innermost.Upvalues[0].Index)
}

func TestAnalyzeLetSugarDestructuresVector(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(let [[a b] [1 2]] a)"))
	require.NoError(t, err)
	let, ok := n.(LetNode)
	require.True(t, ok)
	require.Len(t, let.Bindings, 3) // hidden temp + a + b
	require.Equal(t, "a", let.Bindings[1].Name)
	require.Equal(t, "b", let.Bindings[2].Name)
}

func TestAnalyzeLetSugarDestructuresMapKeys(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(let [{:keys [x y] :or {y 2}} {}] x)"))
	require.NoError(t, err)
	let := n.(LetNode)
	var names []string
	for _, b := range let.Bindings {
		names = append(names, b.Name)
	}
	require.Contains(t, names, "x")
	require.Contains(t, names, "y")
}

func TestAnalyzeTryCatchFinally(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(try 1 (catch Exception e e) (finally 2))"))
	require.NoError(t, err)
	try, ok := n.(TryNode)
	require.True(t, ok)
	require.Len(t, try.Catches, 1)
	require.Equal(t, "Exception", try.Catches[0].ClassName)
	require.Len(t, try.Finally, 1)
}

func TestAnalyzeQuoteDoesNotResolveSymbols(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(quote unresolved-anything)"))
	require.NoError(t, err)
	_, ok := n.(QuoteNode)
	require.True(t, ok)
}

func TestAnalyzeDeftypeBuildsConstructor(t *testing.T) {
	a, env := newAnalyzer(t)
	n, err := a.Analyze(readForm(t, env, "(deftype* Point [x y])"))
	require.NoError(t, err)
	def, ok := n.(DefNode)
	require.True(t, ok)
	require.Equal(t, "Point", def.Name)
	fn, ok := def.Init.(FnNode)
	require.True(t, ok)
	require.Equal(t, 2, fn.Arities[0].ParamSlots)
}

func TestAnalyzeShadowingLocalBeatsSpecialForm(t *testing.T) {
	a, env := newAnalyzer(t)
	// `if` bound as a local shadows the special form; the call becomes an
	// ordinary invocation of that local.
	n, err := a.Analyze(readForm(t, env, "(let* [if (fn* [] 1)] (if))"))
	require.NoError(t, err)
	let := n.(LetNode)
	invoke, ok := let.Body[0].(InvokeNode)
	require.True(t, ok)
	_, ok = invoke.Fn.(LocalRefNode)
	require.True(t, ok)
}
