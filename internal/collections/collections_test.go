package collections

import (
	"testing"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func newHeap() *gc.Heap { return gc.New(1<<20, nil) }

func TestListConsAndSeq(t *testing.T) {
	h := newHeap()
	l := Cons(h, value.NewInt(1), Cons(h, value.NewInt(2), EmptyList()))
	require.Equal(t, int64(1), First(l).AsInt())
	require.Equal(t, int64(2), First(Rest(l)).AsInt())
	require.True(t, IsEmptySeq(Rest(Rest(l))))
	require.Equal(t, []value.Value{value.NewInt(1), value.NewInt(2)}, ToSlice(l))
}

func TestVectorAssocConjPopLeaveOriginalUnchanged(t *testing.T) {
	h := newHeap()
	v := NewVector(h, value.NewInt(1), value.NewInt(2), value.NewInt(3))

	v2 := Conj(h, v, value.NewInt(4))
	require.Equal(t, 3, v.Obj().(*vectorObj).Count())
	require.Equal(t, 4, v2.Obj().(*vectorObj).Count())

	v3, ok := AssocN(h, v, 0, value.NewInt(99))
	require.True(t, ok)
	first, _ := v.Obj().(*vectorObj).Nth(0)
	require.Equal(t, int64(1), first.AsInt(), "original vector must be unchanged")
	first3, _ := v3.Obj().(*vectorObj).Nth(0)
	require.Equal(t, int64(99), first3.AsInt())

	v4, ok := Pop(h, v)
	require.True(t, ok)
	require.Equal(t, 2, v4.Obj().(*vectorObj).Count())
	require.Equal(t, 3, v.Obj().(*vectorObj).Count(), "pop must not mutate the source vector")
}

func TestVectorGrowsAcrossTrieLevels(t *testing.T) {
	h := newHeap()
	v := EmptyVector()
	const n = 2000
	for i := 0; i < n; i++ {
		v = Conj(h, v, value.NewInt(int64(i)))
	}
	require.Equal(t, n, v.Obj().(*vectorObj).Count())
	for i := 0; i < n; i++ {
		got, ok := v.Obj().(*vectorObj).Nth(i)
		require.True(t, ok)
		require.Equal(t, int64(i), got.AsInt())
	}
}

func TestVectorEqualsSeqOfSameElements(t *testing.T) {
	h := newHeap()
	v := NewVector(h, value.NewInt(1), value.NewInt(2))
	l := Cons(h, value.NewInt(1), Cons(h, value.NewInt(2), EmptyList()))
	require.True(t, value.Equal(v, l))
	require.Equal(t, value.Hash(v), value.Hash(l))
}

func TestArrayMapAssocGetDissocAndPromotion(t *testing.T) {
	h := newHeap()
	m := EmptyArrayMap()
	for i := 0; i < arrayMapMaxEntries; i++ {
		m = Assoc(h, m, value.NewInt(int64(i)), value.NewInt(int64(i*10)))
	}
	require.Equal(t, value.ArrayMap, m.Tag())

	promoted := Assoc(h, m, value.NewInt(arrayMapMaxEntries), value.NewInt(0))
	require.Equal(t, value.HashMap, promoted.Tag(), "array-map promotes past the entry threshold")

	v, ok := Get(promoted, value.NewInt(3))
	require.True(t, ok)
	require.Equal(t, int64(30), v.AsInt())

	without := Dissoc(h, promoted, value.NewInt(3))
	_, ok = Get(without, value.NewInt(3))
	require.False(t, ok)

	_, stillThere := Get(promoted, value.NewInt(3))
	require.True(t, stillThere, "dissoc must not mutate the source map")
}

func TestHashMapAssocDissocAndEquality(t *testing.T) {
	h := newHeap()
	m1 := Assoc(h, EmptyHashMap(), value.NewInt(1), value.NewInt(2))
	m2 := Assoc(h, EmptyHashMap(), value.NewInt(1), value.NewInt(2))
	require.True(t, value.Equal(m1, m2))
	require.Equal(t, value.Hash(m1), value.Hash(m2))

	m3 := Dissoc(h, m1, value.NewInt(1))
	require.False(t, value.Equal(m1, m3))
	_, ok := Get(m1, value.NewInt(1))
	require.True(t, ok, "dissoc on m1's derivative must not remove the entry from m1 itself")
}

func TestArrayMapAndHashMapCrossEqual(t *testing.T) {
	h := newHeap()
	am := NewArrayMap(h, value.NewInt(1), value.NewInt(2))
	hm := Assoc(h, EmptyHashMap(), value.NewInt(1), value.NewInt(2))
	require.True(t, value.Equal(am, hm))
	require.True(t, value.Equal(hm, am))
}

func TestSetConjDisjContainsAndEquality(t *testing.T) {
	h := newHeap()
	s := NewSet(h, value.NewInt(1), value.NewInt(2), value.NewInt(2))
	require.Equal(t, 2, s.Obj().(*setObj).Count(), "duplicate conj must not grow the set")
	require.True(t, SetContains(s, value.NewInt(1)))

	s2 := SetDisj(h, s, value.NewInt(1))
	require.False(t, SetContains(s2, value.NewInt(1)))
	require.True(t, SetContains(s, value.NewInt(1)), "disj must not mutate the source set")

	other := NewSet(h, value.NewInt(2), value.NewInt(1))
	require.True(t, value.Equal(s, other), "set equality is order-independent")
	require.Equal(t, value.Hash(s), value.Hash(other))
}

func TestLazySeqMemoizesThunk(t *testing.T) {
	h := newHeap()
	calls := 0
	l := NewLazySeq(h, func() (bool, value.Value, value.Value) {
		calls++
		return false, value.NewInt(1), EmptyList()
	})
	require.Equal(t, int64(1), First(l).AsInt())
	require.Equal(t, int64(1), First(l).AsInt())
	require.Equal(t, 1, calls, "the thunk must run at most once")
}

func TestTransientVectorRoundTrip(t *testing.T) {
	h := newHeap()
	base := NewVector(h, value.NewInt(1), value.NewInt(2))
	tv := NewTransientVector(base)
	tv = TransientConjBang(tv, value.NewInt(3))
	tv = TransientAssocBangN(tv, 0, value.NewInt(99))
	out := PersistentBangVector(h, tv)

	require.Equal(t, 3, out.Obj().(*vectorObj).Count())
	first, _ := out.Obj().(*vectorObj).Nth(0)
	require.Equal(t, int64(99), first.AsInt())

	baseFirst, _ := base.Obj().(*vectorObj).Nth(0)
	require.Equal(t, int64(1), baseFirst.AsInt(), "mutating the transient must not affect the source persistent vector")
	require.Equal(t, 2, base.Obj().(*vectorObj).Count())
}

func TestTransientVectorPanicsAfterPersistentBang(t *testing.T) {
	h := newHeap()
	tv := NewTransientVector(NewVector(h, value.NewInt(1)))
	PersistentBangVector(h, tv)
	require.Panics(t, func() { TransientConjBang(tv, value.NewInt(2)) })
}

func TestTransientMapRoundTrip(t *testing.T) {
	h := newHeap()
	base := Assoc(h, EmptyHashMap(), value.NewInt(1), value.NewInt(10))
	tm := NewTransientMap(base)
	tm = TransientMapAssocBang(tm, value.NewInt(2), value.NewInt(20))
	out := PersistentBangMap(h, tm)

	v, ok := Get(out, value.NewInt(1))
	require.True(t, ok)
	require.Equal(t, int64(10), v.AsInt())
	v, ok = Get(out, value.NewInt(2))
	require.True(t, ok)
	require.Equal(t, int64(20), v.AsInt())

	_, ok = Get(base, value.NewInt(2))
	require.False(t, ok, "the source map must be unaffected by transient mutation")
}

func TestTransientSetRoundTrip(t *testing.T) {
	h := newHeap()
	base := NewSet(h, value.NewInt(1))
	ts := NewTransientSet(base)
	ts = TransientSetConjBang(ts, value.NewInt(2))
	out := PersistentBangSet(h, ts)

	require.True(t, SetContains(out, value.NewInt(1)))
	require.True(t, SetContains(out, value.NewInt(2)))
	require.False(t, SetContains(base, value.NewInt(2)), "the source set must be unaffected by transient mutation")
}
