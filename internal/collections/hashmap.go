package collections

import (
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// valueHasher implements immutable.Hasher for Value keys, delegating to
// this runtime's own structural equality/hash contract (spec §3.1) rather
// than Go's native equality. Grounded on github.com/benbjohnson/immutable,
// which backs the teacher's indirect dependency graph; see DESIGN.md.
type valueHasher struct{}

func (valueHasher) Hash(v value.Value) uint32 {
	h := value.Hash(v)
	return uint32(h ^ (h >> 32))
}

func (valueHasher) Equal(a, b value.Value) bool { return value.Equal(a, b) }

// hashMapObj is the hash array-mapped trie named in spec §3.1, backed by
// *immutable.Map. O(log32 n) lookup/update, as required. heap is the real
// heap this instance was allocated on, carried along so a later seq view
// (mapSeq) can allocate its [k v] pair vectors there too instead of on some
// heap-less side channel; nil only for the permanent empty singleton, which
// never has pairs to allocate.
type hashMapObj struct {
	m    *immutable.Map[value.Value, value.Value]
	heap *gc.Heap
}

func immutableEmptyMap() *immutable.Map[value.Value, value.Value] {
	return immutable.NewMap[value.Value, value.Value](valueHasher{})
}

func emptyHashMap() *hashMapObj {
	return &hashMapObj{m: immutableEmptyMap()}
}

func EmptyHashMap() value.Value { return value.WithHeaped(value.HashMap, emptyHashMap()) }

func (m *hashMapObj) TraceChildren(visit func(gc.Object)) {
	it := m.m.Iterator()
	for !it.Done() {
		k, v := it.Next()
		k.TraceChildren(visit)
		v.TraceChildren(visit)
	}
}

func (m *hashMapObj) Count() int { return m.m.Len() }

func (m *hashMapObj) Get(k value.Value) (value.Value, bool) { return m.m.Get(k) }

// Assoc returns a new associative value with key k bound to val. An
// array-map promotes itself to a hash-map once it grows past
// arrayMapMaxEntries (spec §3.1: "≤ ~8 entries").
func Assoc(heap *gc.Heap, h value.Value, k, val value.Value) value.Value {
	switch h.Tag() {
	case value.ArrayMap:
		return arrayMapAssoc(heap, h, k, val)
	case value.HashMap:
		mo := h.Obj().(*hashMapObj)
		obj := heap.Alloc(&hashMapObj{m: mo.m.Set(k, val), heap: heap}).(*hashMapObj)
		return value.WithHeaped(value.HashMap, obj)
	default:
		return h
	}
}

// Dissoc returns a new associative value with k removed, if present.
func Dissoc(heap *gc.Heap, h value.Value, k value.Value) value.Value {
	switch h.Tag() {
	case value.ArrayMap:
		return arrayMapDissoc(heap, h, k)
	case value.HashMap:
		mo := h.Obj().(*hashMapObj)
		obj := heap.Alloc(&hashMapObj{m: mo.m.Delete(k), heap: heap}).(*hashMapObj)
		return value.WithHeaped(value.HashMap, obj)
	default:
		return h
	}
}

// Get looks up k in any associative value (array-map or hash-map),
// returning (value, true) or (default, false) per spec §4.4's map-as-
// function semantics: `(get m k)`/`(get m k default)`.
func Get(h value.Value, k value.Value) (value.Value, bool) {
	switch h.Tag() {
	case value.ArrayMap:
		return arrayMapGet(h, k)
	case value.HashMap:
		return h.Obj().(*hashMapObj).Get(k)
	default:
		return value.Nil_(), false
	}
}

func (m *hashMapObj) Equal(o value.Value) bool {
	var other *hashMapObj
	switch o.Tag() {
	case value.HashMap:
		other = o.Obj().(*hashMapObj)
	case value.ArrayMap:
		other = arrayMapAsHashMap(o)
	default:
		return false
	}
	if m.m.Len() != other.m.Len() {
		return false
	}
	it := m.m.Iterator()
	for !it.Done() {
		k, v := it.Next()
		ov, ok := other.Get(k)
		if !ok || !value.Equal(v, ov) {
			return false
		}
	}
	return true
}

func (m *hashMapObj) Hash() uint64 {
	// Map hashing must be order-independent: XOR per-entry hashes together.
	var acc uint64
	it := m.m.Iterator()
	for !it.Done() {
		k, v := it.Next()
		acc ^= value.StructuralHash(value.Hash(k), value.Hash(v))
	}
	return acc ^ 0x5a59
}

func (m *hashMapObj) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	it := m.m.Iterator()
	first := true
	for !it.Done() {
		k, v := it.Next()
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(k.String())
		sb.WriteByte(' ')
		sb.WriteString(v.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// mapSeqObj adapts an associative map for sequential traversal: each
// element is a 2-element vector `[k v]` (Clojure's map-as-seq semantics).
type mapSeqObj struct {
	pairs []value.Value
	idx   int
}

// mapSeq builds the [k v] pair vectors on the same heap the map itself was
// allocated on (hashMapObj.heap / arrayMapObj.heap), so the collector's
// root scanning and snapshot capture see them like any other Value instead
// of leaking them off its radar.
func mapSeq(v value.Value) Seq {
	var pairs []value.Value
	switch v.Tag() {
	case value.HashMap:
		mo := v.Obj().(*hashMapObj)
		it := mo.m.Iterator()
		for !it.Done() {
			k, val := it.Next()
			pairs = append(pairs, NewVector(mo.heap, k, val))
		}
	case value.ArrayMap:
		ao := v.Obj().(*arrayMapObj)
		for i := 0; i < len(ao.keys); i++ {
			pairs = append(pairs, NewVector(ao.heap, ao.keys[i], ao.vals[i]))
		}
	}
	if len(pairs) == 0 {
		return emptyList
	}
	return &mapSeqObj{pairs: pairs}
}

func (s *mapSeqObj) TraceChildren(visit func(gc.Object)) {
	for _, p := range s.pairs {
		p.TraceChildren(visit)
	}
}
func (s *mapSeqObj) IsEmpty() bool      { return s.idx >= len(s.pairs) }
func (s *mapSeqObj) First() value.Value { return s.pairs[s.idx] }
func (s *mapSeqObj) Rest() value.Value {
	if s.idx+1 >= len(s.pairs) {
		return EmptyList()
	}
	return value.WithHeaped(value.HashMap, &mapSeqObj{pairs: s.pairs, idx: s.idx + 1})
}
func (s *mapSeqObj) Equal(o value.Value) bool {
	other, ok := asSeq(o)
	return ok && seqsEqual(value.WithHeaped(value.HashMap, s), value.WithHeaped(value.List, other))
}
func (s *mapSeqObj) Hash() uint64   { return hashSeqTail(value.WithHeaped(value.HashMap, s)) }
func (s *mapSeqObj) String() string { return seqToListString(value.WithHeaped(value.HashMap, s)) }
