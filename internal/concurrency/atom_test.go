package concurrency

import (
	"testing"

	"github.com/lumenlang/lumen/internal/dispatch"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func newHeap() *gc.Heap { return gc.New(1<<20, nil) }

// builtinVT returns a *dispatch.VTable whose Call treats its fn argument
// as a plain Go func(args []value.Value) (value.Value, error), the same
// convention the VM's builtin-fn tag uses, without pulling internal/vm
// into this package's tests.
func builtinVT() (*dispatch.VTable, func(f func([]value.Value) (value.Value, error)) value.Value) {
	vt := dispatch.New()
	vt.Call = func(fn value.Value, args []value.Value) (value.Value, error) {
		b := fn.Obj().(*builtinHolder)
		return b.fn(args)
	}
	wrap := func(f func([]value.Value) (value.Value, error)) value.Value {
		return value.WithHeaped(value.BuiltinFn, &builtinHolder{fn: f})
	}
	return vt, wrap
}

// builtinHolder is a minimal Heaped wrapper around a Go closure, used only
// by this package's tests to exercise vt.Call without depending on
// internal/vm's real fn representation.
type builtinHolder struct {
	fn func([]value.Value) (value.Value, error)
}

func (b *builtinHolder) TraceChildren(func(gc.Object)) {}
func (b *builtinHolder) Equal(o value.Value) bool {
	ob, ok := o.Obj().(*builtinHolder)
	return ok && ob == b
}
func (b *builtinHolder) Hash() uint64   { return 0 }
func (b *builtinHolder) String() string { return "#<test-builtin>" }

func TestAtomDerefReadsInitialValue(t *testing.T) {
	a := NewAtom(newHeap(), value.NewInt(1))
	require.Equal(t, int64(1), AtomDeref(a).AsInt())
}

func TestAtomResetReplacesValueAndFiresWatch(t *testing.T) {
	vt, wrap := builtinVT()
	a := NewAtom(newHeap(), value.NewInt(1))

	var fired []int64
	watchFn := wrap(func(args []value.Value) (value.Value, error) {
		fired = append(fired, args[2].AsInt(), args[3].AsInt())
		return value.Nil_(), nil
	})
	AtomAddWatch(a, value.NewInt(0), watchFn)

	AtomReset(vt, a, value.NewInt(2))
	require.Equal(t, int64(2), AtomDeref(a).AsInt())
	require.Equal(t, []int64{1, 2}, fired)
}

func TestAtomSwapAppliesFn(t *testing.T) {
	vt, wrap := builtinVT()
	a := NewAtom(newHeap(), value.NewInt(10))
	inc := wrap(func(args []value.Value) (value.Value, error) {
		return value.NewInt(args[0].AsInt() + args[1].AsInt()), nil
	})
	nv, err := AtomSwap(vt, a, inc, []value.Value{value.NewInt(5)})
	require.NoError(t, err)
	require.Equal(t, int64(15), nv.AsInt())
	require.Equal(t, int64(15), AtomDeref(a).AsInt())
}

func TestAtomSwapRetriesUnderContention(t *testing.T) {
	vt, wrap := builtinVT()
	a := NewAtom(newHeap(), value.NewInt(0))

	calls := 0
	inc := wrap(func(args []value.Value) (value.Value, error) {
		calls++
		if calls == 1 {
			// Simulate a writer that commits between this read and
			// AtomSwap's own compare-and-set, forcing exactly one retry.
			AtomReset(vt, a, value.NewInt(100))
		}
		return value.NewInt(args[0].AsInt() + 1), nil
	})

	nv, err := AtomSwap(vt, a, inc, nil)
	require.NoError(t, err)
	require.Equal(t, 2, calls, "a stale compare-and-set on the first attempt must force one retry")
	require.Equal(t, int64(101), nv.AsInt())
	require.Equal(t, int64(101), AtomDeref(a).AsInt())
}

func TestAtomCompareAndSetOnlySucceedsOnMatch(t *testing.T) {
	vt, _ := builtinVT()
	a := NewAtom(newHeap(), value.NewInt(1))
	require.False(t, AtomCompareAndSet(vt, a, value.NewInt(99), value.NewInt(2)))
	require.Equal(t, int64(1), AtomDeref(a).AsInt())
	require.True(t, AtomCompareAndSet(vt, a, value.NewInt(1), value.NewInt(2)))
	require.Equal(t, int64(2), AtomDeref(a).AsInt())
}

func TestAtomRemoveWatchStopsFiring(t *testing.T) {
	vt, wrap := builtinVT()
	a := NewAtom(newHeap(), value.NewInt(0))
	fires := 0
	watchFn := wrap(func(args []value.Value) (value.Value, error) {
		fires++
		return value.Nil_(), nil
	})
	key := value.NewInt(7)
	AtomAddWatch(a, key, watchFn)
	AtomReset(vt, a, value.NewInt(1))
	require.Equal(t, 1, fires)

	AtomRemoveWatch(a, key)
	AtomReset(vt, a, value.NewInt(2))
	require.Equal(t, 1, fires, "a removed watch must not fire again")
}
