package collections

import (
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// setObj is the persistent hash set named in spec §3.1 ("same backing as
// hash_map"): a Map from element to itself.
type setObj struct {
	m *immutable.Map[value.Value, value.Value]
}

func emptySet() *setObj { return &setObj{m: immutableEmptyMap()} }

func EmptySet() value.Value { return value.WithHeaped(value.Set, emptySet()) }

func (s *setObj) TraceChildren(visit func(gc.Object)) {
	it := s.m.Iterator()
	for !it.Done() {
		k, _ := it.Next()
		k.TraceChildren(visit)
	}
}

func (s *setObj) Count() int { return s.m.Len() }

// Contains reports whether k is a set member; this is also the semantics
// of invoking a set as a function (spec §4.4: "(s x) returns x if present
// in s, else nil").
func (s *setObj) Contains(k value.Value) bool {
	_, ok := s.m.Get(k)
	return ok
}

// SetConj returns a new set with x added.
func SetConj(heap *gc.Heap, s value.Value, x value.Value) value.Value {
	so := s.Obj().(*setObj)
	obj := heap.Alloc(&setObj{m: so.m.Set(x, x)}).(*setObj)
	return value.WithHeaped(value.Set, obj)
}

// SetDisj returns a new set with x removed, if present.
func SetDisj(heap *gc.Heap, s value.Value, x value.Value) value.Value {
	so := s.Obj().(*setObj)
	obj := heap.Alloc(&setObj{m: so.m.Delete(x)}).(*setObj)
	return value.WithHeaped(value.Set, obj)
}

// SetContains is the exported entry point for the `contains?`/set-as-
// function builtins.
func SetContains(s value.Value, x value.Value) bool { return s.Obj().(*setObj).Contains(x) }

func NewSet(heap *gc.Heap, items ...value.Value) value.Value {
	s := EmptySet()
	for _, it := range items {
		s = SetConj(heap, s, it)
	}
	return s
}

func (s *setObj) Equal(o value.Value) bool {
	os, ok := o.Obj().(*setObj)
	if !ok {
		return false
	}
	if s.m.Len() != os.m.Len() {
		return false
	}
	it := s.m.Iterator()
	for !it.Done() {
		k, _ := it.Next()
		if !os.Contains(k) {
			return false
		}
	}
	return true
}

func (s *setObj) Hash() uint64 {
	var acc uint64
	it := s.m.Iterator()
	for !it.Done() {
		k, _ := it.Next()
		acc ^= value.Hash(k)
	}
	return acc ^ 0x5e7
}

func (s *setObj) String() string {
	var sb strings.Builder
	sb.WriteString("#{")
	it := s.m.Iterator()
	first := true
	for !it.Done() {
		k, _ := it.Next()
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(k.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

type setSeqObj struct {
	items []value.Value
	idx   int
}

func setSeq(v value.Value) Seq {
	so := v.Obj().(*setObj)
	var items []value.Value
	it := so.m.Iterator()
	for !it.Done() {
		k, _ := it.Next()
		items = append(items, k)
	}
	if len(items) == 0 {
		return emptyList
	}
	return &setSeqObj{items: items}
}

func (s *setSeqObj) TraceChildren(visit func(gc.Object)) {
	for _, it := range s.items {
		it.TraceChildren(visit)
	}
}
func (s *setSeqObj) IsEmpty() bool      { return s.idx >= len(s.items) }
func (s *setSeqObj) First() value.Value { return s.items[s.idx] }
func (s *setSeqObj) Rest() value.Value {
	if s.idx+1 >= len(s.items) {
		return EmptyList()
	}
	return value.WithHeaped(value.Set, &setSeqObj{items: s.items, idx: s.idx + 1})
}
func (s *setSeqObj) Equal(o value.Value) bool {
	other, ok := asSeq(o)
	return ok && seqsEqual(value.WithHeaped(value.Set, s), value.WithHeaped(value.List, other))
}
func (s *setSeqObj) Hash() uint64   { return hashSeqTail(value.WithHeaped(value.Set, s)) }
func (s *setSeqObj) String() string { return seqToListString(value.WithHeaped(value.Set, s)) }
