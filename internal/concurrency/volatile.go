package concurrency

import (
	"fmt"
	"sync"

	"github.com/lumenlang/lumen/internal/dispatch"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// volatileObj backs value.Volatile: a plain mutable box with none of an
// atom's compare-and-set retry or watch list. It exists for the rare case
// where a caller already holds whatever external synchronization it needs
// and just wants a box to read and overwrite (volatile!/vreset!/vswap! in
// spec vocabulary), cheaper than an atom's CAS loop when contention isn't
// a concern. A mutex still guards the single field so a racing reader
// never observes a torn write, but there is deliberately no retry: the
// last vreset!/vswap! to run wins.
type volatileObj struct {
	mu  sync.Mutex
	val value.Value
	id  uint64
}

// NewVolatile allocates a volatile box holding init.
func NewVolatile(heap *gc.Heap, init value.Value) value.Value {
	obj := heap.Alloc(&volatileObj{val: init, id: nextID()}).(*volatileObj)
	return value.WithHeaped(value.Volatile, obj)
}

func asVolatile(v value.Value) *volatileObj { return v.Obj().(*volatileObj) }

// VolatileDeref reads a volatile's current value.
func VolatileDeref(vv value.Value) value.Value {
	v := asVolatile(vv)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val
}

// VolatileReset unconditionally overwrites a volatile's value and returns it.
func VolatileReset(vv value.Value, nv value.Value) value.Value {
	v := asVolatile(vv)
	v.mu.Lock()
	v.val = nv
	v.mu.Unlock()
	return nv
}

// VolatileSwap applies f to the volatile's current value plus extra and
// stores the result, with no retry: unlike an atom's swap!, a concurrent
// writer can simply clobber this one (vswap! in spec vocabulary).
func VolatileSwap(vt *dispatch.VTable, vv, f value.Value, extra []value.Value) (value.Value, error) {
	v := asVolatile(vv)
	v.mu.Lock()
	defer v.mu.Unlock()
	args := make([]value.Value, 0, len(extra)+1)
	args = append(args, v.val)
	args = append(args, extra...)
	nv, err := vt.Call(f, args)
	if err != nil {
		return value.Nil_(), err
	}
	v.val = nv
	return nv, nil
}

func (v *volatileObj) TraceChildren(visit func(gc.Object)) {
	v.mu.Lock()
	val := v.val
	v.mu.Unlock()
	if val.Obj() != nil {
		visit(val.Obj())
	}
}

func (v *volatileObj) Equal(o value.Value) bool {
	ov, ok := o.Obj().(*volatileObj)
	return ok && ov == v
}

func (v *volatileObj) Hash() uint64 { return v.id*31 ^ 0x766f6c21 }

func (v *volatileObj) String() string { return fmt.Sprintf("#<volatile 0x%x>", v.id) }
