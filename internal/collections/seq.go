package collections

import (
	"strings"

	"github.com/lumenlang/lumen/internal/value"
)

// asSeq views any seqable value (list, cons, lazy-seq, vector, array-map,
// hash-map, set, or nil) as a Seq, lazily adapting vectors/maps/sets so
// traversal is uniform across every collection tag (spec §4.2's
// destructuring lowering relies on exactly this uniformity: nth/first/
// next/get all apply regardless of the concrete collection shape).
func asSeq(v value.Value) (Seq, bool) {
	switch v.Tag() {
	case value.Nil:
		return emptyList, true
	case value.List, value.Cons, value.LazySeq:
		return v.Obj().(Seq), true
	case value.Vector:
		// v.Obj() is either the trie root (*vectorObj, not itself a Seq) or
		// an already-adapted *vecSeqObj (which is a Seq) produced by a
		// previous Rest() call; either way asSeq must return a Seq.
		if s, ok := v.Obj().(Seq); ok {
			return s, true
		}
		return vectorSeq(v), true
	case value.ArrayMap, value.HashMap:
		if s, ok := v.Obj().(Seq); ok {
			return s, true
		}
		return mapSeq(v), true
	case value.Set:
		if s, ok := v.Obj().(Seq); ok {
			return s, true
		}
		return setSeq(v), true
	default:
		return nil, false
	}
}

func isSeqEmpty(v value.Value) bool {
	s, ok := asSeq(v)
	return !ok || s.IsEmpty()
}

func seqFirst(v value.Value) value.Value {
	s, ok := asSeq(v)
	if !ok || s.IsEmpty() {
		return value.Nil_()
	}
	return s.First()
}

func seqRest(v value.Value) value.Value {
	s, ok := asSeq(v)
	if !ok || s.IsEmpty() {
		return EmptyList()
	}
	return s.Rest()
}

func seqsEqual(a, b value.Value) bool {
	for {
		aEmpty, bEmpty := isSeqEmpty(a), isSeqEmpty(b)
		if aEmpty != bEmpty {
			return false
		}
		if aEmpty {
			return true
		}
		if !value.Equal(seqFirst(a), seqFirst(b)) {
			return false
		}
		a, b = seqRest(a), seqRest(b)
	}
}

func hashSeqTail(v value.Value) uint64 {
	var parts []uint64
	for !isSeqEmpty(v) {
		parts = append(parts, value.Hash(seqFirst(v)))
		v = seqRest(v)
	}
	return value.StructuralHash(parts...)
}

func seqToListString(v value.Value) string {
	var sb strings.Builder
	sb.WriteByte('(')
	first := true
	for !isSeqEmpty(v) {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(seqFirst(v).String())
		v = seqRest(v)
	}
	sb.WriteByte(')')
	return sb.String()
}

// First is the exported entry point used by internal/vm for the `first`
// builtin and by the analyzer's destructuring lowering.
func First(v value.Value) value.Value { return seqFirst(v) }

// Next returns the rest of v, or Nil if there is nothing beyond the first
// element (Clojure's `next`, distinct from `rest` which never returns nil).
func Next(v value.Value) value.Value {
	r := seqRest(v)
	if isSeqEmpty(r) {
		return value.Nil_()
	}
	return r
}

// Rest always returns a (possibly empty) seq, never nil (Clojure's `rest`).
func Rest(v value.Value) value.Value { return seqRest(v) }

// IsEmptySeq reports whether v, viewed as a seq, has no elements.
func IsEmptySeq(v value.Value) bool { return isSeqEmpty(v) }

// Count returns the number of items in v (Clojure's `count`): O(1) for a
// collection's own primary representation (list/vector/array-map/
// hash-map/set), O(n) for any other seqable value (cons, lazy-seq, or a
// seq view produced mid-traversal by a prior Rest()).
func Count(v value.Value) int {
	switch v.Tag() {
	case value.Nil:
		return 0
	case value.List:
		if l, ok := v.Obj().(*listObj); ok {
			return l.count
		}
	case value.Vector:
		if vec, ok := v.Obj().(*vectorObj); ok {
			return vec.count
		}
	case value.ArrayMap:
		if m, ok := v.Obj().(*arrayMapObj); ok {
			return m.Count()
		}
	case value.HashMap:
		if m, ok := v.Obj().(*hashMapObj); ok {
			return m.Count()
		}
	case value.Set:
		if s, ok := v.Obj().(*setObj); ok {
			return s.Count()
		}
	}
	return len(ToSlice(v))
}

// ToSlice materializes any seqable value into a Go slice, realizing any
// lazy-seq along the way.
func ToSlice(v value.Value) []value.Value {
	var out []value.Value
	for !isSeqEmpty(v) {
		out = append(out, seqFirst(v))
		v = seqRest(v)
	}
	return out
}
