package collections

import (
	"strings"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// arrayMapMaxEntries is the promotion threshold named in spec §3.1
// ("array_map — ... flat key/value array (≤ ~8 entries)").
const arrayMapMaxEntries = 8

// arrayMapObj is the ordered associative collection with a flat key/value
// array and linear search, used for small maps (spec §3.1). heap mirrors
// hashMapObj.heap: the heap this instance was allocated on, so a later seq
// view can allocate its pair vectors there instead of a heap-less side
// channel. nil only for the permanent empty singleton.
type arrayMapObj struct {
	keys []value.Value
	vals []value.Value
	heap *gc.Heap
}

var emptyArrayMap = &arrayMapObj{}

func EmptyArrayMap() value.Value { return value.WithHeaped(value.ArrayMap, emptyArrayMap) }

func (m *arrayMapObj) TraceChildren(visit func(gc.Object)) {
	for i := range m.keys {
		m.keys[i].TraceChildren(visit)
		m.vals[i].TraceChildren(visit)
	}
}

func (m *arrayMapObj) Count() int { return len(m.keys) }

func (m *arrayMapObj) indexOf(k value.Value) int {
	for i, existing := range m.keys {
		if value.Equal(existing, k) {
			return i
		}
	}
	return -1
}

func arrayMapGet(h value.Value, k value.Value) (value.Value, bool) {
	m := h.Obj().(*arrayMapObj)
	if i := m.indexOf(k); i >= 0 {
		return m.vals[i], true
	}
	return value.Nil_(), false
}

func arrayMapAssoc(heap *gc.Heap, h value.Value, k, val value.Value) value.Value {
	m := h.Obj().(*arrayMapObj)
	if i := m.indexOf(k); i >= 0 {
		keys := append([]value.Value(nil), m.keys...)
		vals := append([]value.Value(nil), m.vals...)
		vals[i] = val
		obj := heap.Alloc(&arrayMapObj{keys: keys, vals: vals, heap: heap}).(*arrayMapObj)
		return value.WithHeaped(value.ArrayMap, obj)
	}
	if len(m.keys) >= arrayMapMaxEntries {
		promoted := arrayMapAsHashMap(h)
		obj := heap.Alloc(&hashMapObj{m: promoted.m.Set(k, val), heap: heap}).(*hashMapObj)
		return value.WithHeaped(value.HashMap, obj)
	}
	keys := append(append([]value.Value(nil), m.keys...), k)
	vals := append(append([]value.Value(nil), m.vals...), val)
	obj := heap.Alloc(&arrayMapObj{keys: keys, vals: vals, heap: heap}).(*arrayMapObj)
	return value.WithHeaped(value.ArrayMap, obj)
}

func arrayMapDissoc(heap *gc.Heap, h value.Value, k value.Value) value.Value {
	m := h.Obj().(*arrayMapObj)
	i := m.indexOf(k)
	if i < 0 {
		return h
	}
	keys := make([]value.Value, 0, len(m.keys)-1)
	vals := make([]value.Value, 0, len(m.vals)-1)
	for j := range m.keys {
		if j == i {
			continue
		}
		keys = append(keys, m.keys[j])
		vals = append(vals, m.vals[j])
	}
	obj := heap.Alloc(&arrayMapObj{keys: keys, vals: vals, heap: heap}).(*arrayMapObj)
	return value.WithHeaped(value.ArrayMap, obj)
}

func arrayMapAsHashMap(h value.Value) *hashMapObj {
	m := h.Obj().(*arrayMapObj)
	hm := immutableEmptyMap()
	for i := range m.keys {
		hm = hm.Set(m.keys[i], m.vals[i])
	}
	return &hashMapObj{m: hm}
}

func (m *arrayMapObj) Equal(o value.Value) bool {
	switch o.Tag() {
	case value.ArrayMap:
		om := o.Obj().(*arrayMapObj)
		if len(m.keys) != len(om.keys) {
			return false
		}
		for i, k := range m.keys {
			ov, ok := arrayMapGet(o, k)
			if !ok || !value.Equal(m.vals[i], ov) {
				return false
			}
		}
		return true
	case value.HashMap:
		return o.Obj().(*hashMapObj).Equal(value.WithHeaped(value.ArrayMap, m))
	default:
		return false
	}
}

func (m *arrayMapObj) Hash() uint64 {
	var acc uint64
	for i := range m.keys {
		acc ^= value.StructuralHash(value.Hash(m.keys[i]), value.Hash(m.vals[i]))
	}
	return acc ^ 0x5a59 // same salt as hashMapObj: map-shaped equality implies equal hash
}

func (m *arrayMapObj) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i := range m.keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(m.keys[i].String())
		sb.WriteByte(' ')
		sb.WriteString(m.vals[i].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func NewArrayMap(heap *gc.Heap, kvs ...value.Value) value.Value {
	m := EmptyArrayMap()
	for i := 0; i+1 < len(kvs); i += 2 {
		m = Assoc(heap, m, kvs[i], kvs[i+1])
	}
	return m
}
