package concurrency

import (
	"testing"
	"time"

	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func TestPromiseDeliverThenDeref(t *testing.T) {
	p := NewPromise(newHeap())
	require.False(t, PromiseIsDelivered(p))
	require.True(t, PromiseDeliver(p, value.NewInt(7)))
	require.True(t, PromiseIsDelivered(p))
	require.Equal(t, int64(7), PromiseDeref(p).AsInt())
}

func TestPromiseSecondDeliverIsANoOp(t *testing.T) {
	p := NewPromise(newHeap())
	require.True(t, PromiseDeliver(p, value.NewInt(1)))
	require.False(t, PromiseDeliver(p, value.NewInt(2)))
	require.Equal(t, int64(1), PromiseDeref(p).AsInt())
}

func TestPromiseDerefBlocksUntilDelivered(t *testing.T) {
	p := NewPromise(newHeap())
	done := make(chan int64, 1)
	go func() {
		done <- PromiseDeref(p).AsInt()
	}()

	select {
	case <-done:
		t.Fatal("deref returned before the promise was delivered")
	case <-time.After(20 * time.Millisecond):
	}

	PromiseDeliver(p, value.NewInt(3))
	select {
	case v := <-done:
		require.Equal(t, int64(3), v)
	case <-time.After(time.Second):
		t.Fatal("deref never woke up after deliver")
	}
}

func TestPromiseDerefTimeoutReturnsDefaultWhenUndelivered(t *testing.T) {
	p := NewPromise(newHeap())
	v := PromiseDerefTimeout(p, 10*time.Millisecond, value.NewInt(-1))
	require.Equal(t, int64(-1), v.AsInt())
}

func TestPromiseDerefTimeoutReturnsValueWhenDeliveredInTime(t *testing.T) {
	p := NewPromise(newHeap())
	go func() {
		time.Sleep(5 * time.Millisecond)
		PromiseDeliver(p, value.NewInt(9))
	}()
	v := PromiseDerefTimeout(p, time.Second, value.NewInt(-1))
	require.Equal(t, int64(9), v.AsInt())
}
