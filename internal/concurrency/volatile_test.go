package concurrency

import (
	"testing"

	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func TestVolatileDerefReadsInitialValue(t *testing.T) {
	v := NewVolatile(newHeap(), value.NewInt(1))
	require.Equal(t, int64(1), VolatileDeref(v).AsInt())
}

func TestVolatileResetOverwrites(t *testing.T) {
	v := NewVolatile(newHeap(), value.NewInt(1))
	require.Equal(t, int64(2), VolatileReset(v, value.NewInt(2)).AsInt())
	require.Equal(t, int64(2), VolatileDeref(v).AsInt())
}

func TestVolatileSwapAppliesFnWithNoRetry(t *testing.T) {
	vt, wrap := builtinVT()
	v := NewVolatile(newHeap(), value.NewInt(10))
	add := wrap(func(args []value.Value) (value.Value, error) {
		return value.NewInt(args[0].AsInt() + args[1].AsInt()), nil
	})
	nv, err := VolatileSwap(vt, v, add, []value.Value{value.NewInt(5)})
	require.NoError(t, err)
	require.Equal(t, int64(15), nv.AsInt())
	require.Equal(t, int64(15), VolatileDeref(v).AsInt())
}
