// Package concurrency implements the reference types and transaction
// engine described in spec §4.6: atoms (compare-and-set plus a watch
// list), refs under software transactional memory (MVCC with read-point/
// commit-point, retry, commute, ensure), volatiles, and promises. It sits
// above internal/vm in the dependency order (spec §2), so rather than
// import the VM directly it invokes callable Values (swap! functions,
// validators, watch fns) through the same *dispatch.VTable every other
// layer uses to call back into the VM without a cyclic import.
package concurrency

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lumenlang/lumen/internal/dispatch"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/metrics"
	"github.com/lumenlang/lumen/internal/value"
)

var nextRefID uint64

func nextID() uint64 { return atomic.AddUint64(&nextRefID, 1) }

// atomObj backs value.Atom (spec §4.6 "Atoms"). version is bumped on every
// successful write and lets Swap retry its update function against a
// stale read without the ABA ambiguity a value-equality compare would
// have (two unrelated updates that happen to produce an equal Value must
// still be treated as distinct writes).
type atomObj struct {
	mu      sync.Mutex
	val     value.Value
	version uint64
	watches watchList
	id      uint64
}

// NewAtom allocates an atom holding init.
func NewAtom(heap *gc.Heap, init value.Value) value.Value {
	obj := heap.Alloc(&atomObj{val: init, id: nextID()}).(*atomObj)
	return value.WithHeaped(value.Atom, obj)
}

func asAtom(v value.Value) *atomObj { return v.Obj().(*atomObj) }

func (a *atomObj) snapshot() (value.Value, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.val, a.version
}

func (a *atomObj) casVersion(expect uint64, nv value.Value) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.version != expect {
		return false
	}
	a.val = nv
	a.version++
	return true
}

// AtomDeref reads an atom's current value.
func AtomDeref(av value.Value) value.Value {
	a := asAtom(av)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.val
}

// AtomSwap applies f to the atom's current value plus extra, retrying if
// another writer committed between the read and the write (spec §4.6:
// "swap!(f, args…) retries a compare-and-set until it sticks"). f may run
// more than once under contention; callers must not give it side effects.
func AtomSwap(vt *dispatch.VTable, av, f value.Value, extra []value.Value) (value.Value, error) {
	a := asAtom(av)
	for {
		old, ver := a.snapshot()
		args := make([]value.Value, 0, len(extra)+1)
		args = append(args, old)
		args = append(args, extra...)
		nv, err := vt.Call(f, args)
		if err != nil {
			return value.Nil_(), err
		}
		if a.casVersion(ver, nv) {
			a.watches.fire(vt, av, old, nv)
			return nv, nil
		}
		metrics.IncAtomCASContention()
	}
}

// AtomReset unconditionally replaces an atom's value.
func AtomReset(vt *dispatch.VTable, av, nv value.Value) value.Value {
	a := asAtom(av)
	a.mu.Lock()
	old := a.val
	a.val = nv
	a.version++
	a.mu.Unlock()
	a.watches.fire(vt, av, old, nv)
	return nv
}

// AtomCompareAndSet sets the atom to nv iff its current value equals old,
// reporting whether the set happened (spec §4.6: "compare-and-set!
// returns a boolean"). Unlike Swap this never retries: a failed compare
// is the caller's signal to re-read and decide what to do next.
func AtomCompareAndSet(vt *dispatch.VTable, av, old, nv value.Value) bool {
	a := asAtom(av)
	a.mu.Lock()
	if !value.Equal(a.val, old) {
		a.mu.Unlock()
		return false
	}
	a.val = nv
	a.version++
	a.mu.Unlock()
	a.watches.fire(vt, av, old, nv)
	return true
}

func AtomAddWatch(av value.Value, key, fn value.Value) { asAtom(av).watches.add(key, fn) }
func AtomRemoveWatch(av value.Value, key value.Value)  { asAtom(av).watches.remove(key) }

func (a *atomObj) TraceChildren(visit func(gc.Object)) {
	a.mu.Lock()
	v := a.val
	a.mu.Unlock()
	if v.Obj() != nil {
		visit(v.Obj())
	}
	a.watches.traceChildren(visit)
}

func (a *atomObj) Equal(o value.Value) bool {
	oa, ok := o.Obj().(*atomObj)
	return ok && oa == a
}

func (a *atomObj) Hash() uint64 { return a.id*31 ^ 0x61746f6d }

func (a *atomObj) String() string { return fmt.Sprintf("#<atom 0x%x>", a.id) }
