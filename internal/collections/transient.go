package collections

import (
	"fmt"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// Transient collections (spec §3.1, §9 "Transients over mutation") are
// mutable shells used during bulk construction, invisible to any holder of
// the original persistent collection, and convertible back via
// `persistent!`. They are deliberately their own Go types (not aliases of
// the persistent ones) so the compiler can never accidentally treat a
// transient call as an ordinary persistent-collection call.

type transientVectorObj struct {
	items   []value.Value
	editing bool
}

func NewTransientVector(v value.Value) value.Value {
	vo := v.Obj().(*vectorObj)
	items := make([]value.Value, vo.count)
	for i := range items {
		items[i], _ = vo.Nth(i)
	}
	return value.WithHeaped(value.TransientVector, &transientVectorObj{items: items, editing: true})
}

func (t *transientVectorObj) TraceChildren(visit func(gc.Object)) {
	for _, v := range t.items {
		v.TraceChildren(visit)
	}
}
func (t *transientVectorObj) Equal(value.Value) bool { return false } // transients are never equal (spec: not first-class values to compare)
func (t *transientVectorObj) Hash() uint64            { return 0 }
func (t *transientVectorObj) String() string          { return fmt.Sprintf("#<transient-vector %d items>", len(t.items)) }

func mustEditing(editing bool) {
	if !editing {
		panic("transient used after persistent!")
	}
}

// TransientConjBang appends in place and returns the same transient value.
func TransientConjBang(t value.Value, v value.Value) value.Value {
	to := t.Obj().(*transientVectorObj)
	mustEditing(to.editing)
	to.items = append(to.items, v)
	return t
}

func TransientAssocBangN(t value.Value, i int, v value.Value) value.Value {
	to := t.Obj().(*transientVectorObj)
	mustEditing(to.editing)
	if i == len(to.items) {
		to.items = append(to.items, v)
	} else {
		to.items[i] = v
	}
	return t
}

// PersistentBangVector converts a transient vector into an ordinary
// persistent vector, closing the transient to further mutation.
func PersistentBangVector(h *gc.Heap, t value.Value) value.Value {
	to := t.Obj().(*transientVectorObj)
	mustEditing(to.editing)
	to.editing = false
	return NewVector(h, to.items...)
}

type transientMapObj struct {
	keys, vals []value.Value
	editing    bool
}

func NewTransientMap(v value.Value) value.Value {
	var keys, vals []value.Value
	// Read directly from the source map's backing storage rather than
	// through the seq adapter, since transients are mutated heavily and
	// should not allocate a fresh [k v] pair vector per entry.
	switch v.Tag() {
	case value.ArrayMap:
		ao := v.Obj().(*arrayMapObj)
		keys = append(keys, ao.keys...)
		vals = append(vals, ao.vals...)
	case value.HashMap:
		it := v.Obj().(*hashMapObj).m.Iterator()
		for !it.Done() {
			k, val := it.Next()
			keys = append(keys, k)
			vals = append(vals, val)
		}
	}
	return value.WithHeaped(value.TransientMap, &transientMapObj{keys: keys, vals: vals, editing: true})
}

func (t *transientMapObj) TraceChildren(visit func(gc.Object)) {
	for i := range t.keys {
		t.keys[i].TraceChildren(visit)
		t.vals[i].TraceChildren(visit)
	}
}
func (t *transientMapObj) Equal(value.Value) bool { return false }
func (t *transientMapObj) Hash() uint64            { return 0 }
func (t *transientMapObj) String() string          { return fmt.Sprintf("#<transient-map %d entries>", len(t.keys)) }

func TransientMapAssocBang(t value.Value, k, v value.Value) value.Value {
	to := t.Obj().(*transientMapObj)
	mustEditing(to.editing)
	for i, ek := range to.keys {
		if value.Equal(ek, k) {
			to.vals[i] = v
			return t
		}
	}
	to.keys = append(to.keys, k)
	to.vals = append(to.vals, v)
	return t
}

func PersistentBangMap(h *gc.Heap, t value.Value) value.Value {
	to := t.Obj().(*transientMapObj)
	mustEditing(to.editing)
	to.editing = false
	m := EmptyHashMap()
	for i := range to.keys {
		m = Assoc(h, m, to.keys[i], to.vals[i])
	}
	return m
}

type transientSetObj struct {
	items   []value.Value
	editing bool
}

func NewTransientSet(v value.Value) value.Value {
	so := v.Obj().(*setObj)
	var items []value.Value
	it := so.m.Iterator()
	for !it.Done() {
		k, _ := it.Next()
		items = append(items, k)
	}
	return value.WithHeaped(value.TransientSet, &transientSetObj{items: items, editing: true})
}

func (t *transientSetObj) TraceChildren(visit func(gc.Object)) {
	for _, it := range t.items {
		it.TraceChildren(visit)
	}
}
func (t *transientSetObj) Equal(value.Value) bool { return false }
func (t *transientSetObj) Hash() uint64            { return 0 }
func (t *transientSetObj) String() string          { return fmt.Sprintf("#<transient-set %d items>", len(t.items)) }

func TransientSetConjBang(t value.Value, x value.Value) value.Value {
	to := t.Obj().(*transientSetObj)
	mustEditing(to.editing)
	for _, it := range to.items {
		if value.Equal(it, x) {
			return t
		}
	}
	to.items = append(to.items, x)
	return t
}

func PersistentBangSet(h *gc.Heap, t value.Value) value.Value {
	to := t.Obj().(*transientSetObj)
	mustEditing(to.editing)
	to.editing = false
	return NewSet(h, to.items...)
}
