package value

import (
	"testing"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/stretchr/testify/require"
)

func TestNumericContagionEquality(t *testing.T) {
	require.True(t, Equal(NewInt(2), NewFloat(2.0)))
	require.True(t, Equal(NewFloat(2.0), NewInt(2)))
	require.False(t, Equal(NewInt(2), NewFloat(2.5)))
}

func TestEqualImpliesSameHash(t *testing.T) {
	pairs := [][2]Value{
		{NewInt(42), NewFloat(42.0)},
		{NewInt(-7), NewInt(-7)},
		{NewBool(true), NewBool(true)},
		{NewChar('x'), NewChar('x')},
		{Nil_(), Nil_()},
	}
	for _, p := range pairs {
		require.True(t, Equal(p[0], p[1]))
		require.Equal(t, Hash(p[0]), Hash(p[1]))
	}
}

func TestTruthy(t *testing.T) {
	require.False(t, Nil_().Truthy())
	require.False(t, NewBool(false).Truthy())
	require.True(t, NewBool(true).Truthy())
	require.True(t, NewInt(0).Truthy())
	h := gc.New(1<<20, nil)
	require.True(t, NewString(h, "").Truthy())
}

func TestKeywordInterningIsReferenceStable(t *testing.T) {
	h := gc.New(1<<20, nil)
	ki := NewKeywordIntern(h)
	a := ki.Intern("", "foo")
	b := ki.Intern("", "foo")
	require.Same(t, a.Obj(), b.Obj())
	require.True(t, Equal(a, b))
	require.Equal(t, Hash(a), Hash(b))
}

func TestSymbolEqualityByContent(t *testing.T) {
	h := gc.New(1<<20, nil)
	a := NewSymbol(h, "ns", "x")
	b := NewSymbol(h, "ns", "x")
	require.NotSame(t, a.Obj(), b.Obj(), "symbols are not interned, only keywords are")
	require.True(t, Equal(a, b))
}

func TestStringRoundTrip(t *testing.T) {
	h := gc.New(1<<20, nil)
	s := NewString(h, "hello")
	require.Equal(t, "hello", StringVal(s))
	require.Equal(t, "hello", s.String())
}
