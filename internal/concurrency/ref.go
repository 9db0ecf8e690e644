package concurrency

import (
	"fmt"
	"sync"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// historyEntry is one committed version of a ref, as described in spec
// §4.6 "a linked history chain of (value, commit_point) entries, newest
// first". Stored as a plain slice rather than a linked list: history
// length is bounded by maxHist and walked front-to-back on every doGet,
// so a slice's locality beats pointer-chasing for the sizes this runtime
// actually carries (defaults are small, see NewRef).
type historyEntry struct {
	val   value.Value
	point uint64
}

// commuteOp is one queued (f, args) pair recorded by doCommute for replay
// against the ref's current committed value at commit time (spec §4.6
// step 1 of the commit algorithm).
type commuteOp struct {
	fn   value.Value
	args []value.Value
}

// refObj backs value.Ref. self holds this ref's own Value handle so a
// completed commit can fire its watch list with the ref itself, without
// every call site that only has a *refObj needing to thread one through.
type refObj struct {
	mu        sync.Mutex
	history   []historyEntry // newest first
	minHist   int
	maxHist   int
	validator value.Value
	watches   watchList
	self      value.Value
	id        uint64
}

const (
	defaultMinHistory = 0
	defaultMaxHistory = 10
)

// NewRef allocates a ref holding init with the default min/max history
// length. Use NewRefWithHistory to override them (ref-set-min-history! /
// ref-set-max-history! in spec terms).
func NewRef(heap *gc.Heap, init value.Value) value.Value {
	return NewRefWithHistory(heap, init, defaultMinHistory, defaultMaxHistory)
}

func NewRefWithHistory(heap *gc.Heap, init value.Value, minHist, maxHist int) value.Value {
	obj := heap.Alloc(&refObj{
		history: []historyEntry{{val: init, point: 0}},
		minHist: minHist,
		maxHist: maxHist,
		id:      nextID(),
	}).(*refObj)
	v := value.WithHeaped(value.Ref, obj)
	obj.self = v
	return v
}

func asRef(v value.Value) *refObj { return v.Obj().(*refObj) }

// RefDeref reads a ref's current committed value outside any transaction
// (spec §4.6 treats a bare deref as reading the newest history entry).
func RefDeref(rv value.Value) value.Value {
	r := asRef(rv)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[0].val
}

// RefSetValidator installs or clears (pass Nil) a ref's validator fn.
func RefSetValidator(rv value.Value, fn value.Value) {
	r := asRef(rv)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validator = fn
}

func RefGetValidator(rv value.Value) value.Value {
	r := asRef(rv)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validator
}

func RefAddWatch(rv value.Value, key, fn value.Value) { asRef(rv).watches.add(key, fn) }
func RefRemoveWatch(rv value.Value, key value.Value)  { asRef(rv).watches.remove(key) }

// RefHistoryCount reports how many versions a ref is currently retaining,
// mostly useful for tests exercising the max-history trim.
func RefHistoryCount(rv value.Value) int {
	r := asRef(rv)
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

func (r *refObj) TraceChildren(visit func(gc.Object)) {
	r.mu.Lock()
	hist := append([]historyEntry(nil), r.history...)
	validator := r.validator
	r.mu.Unlock()
	for _, h := range hist {
		if h.val.Obj() != nil {
			visit(h.val.Obj())
		}
	}
	if validator.Obj() != nil {
		visit(validator.Obj())
	}
	r.watches.traceChildren(visit)
}

func (r *refObj) Equal(o value.Value) bool {
	or, ok := o.Obj().(*refObj)
	return ok && or == r
}

func (r *refObj) Hash() uint64 { return r.id*31 ^ 0x72656621 }

func (r *refObj) String() string { return fmt.Sprintf("#<ref 0x%x>", r.id) }
