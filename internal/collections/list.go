// Package collections implements the persistent list/vector/array_map/
// hash_map/set and their transient counterparts named in spec §3.1. Every
// operation returns a new Value and leaves its receiver observationally
// unchanged (spec §8's universal invariant); structure is shared wherever
// possible.
package collections

import (
	"strings"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// Seq is satisfied by every sequence-shaped collection (list, cons,
// lazy-seq) so the analyzer's destructuring lowering and the VM's builtin
// seq functions can walk any of them uniformly (spec §4.2 "Destructuring").
type Seq interface {
	value.Heaped
	First() value.Value
	Rest() value.Value
	IsEmpty() bool
}

// listObj is a persistent singly-linked list: O(1) prepend, O(1)
// first/rest, linear length (spec §3.1).
type listObj struct {
	head  value.Value
	tail  *listObj // nil at the empty list
	count int
}

var emptyList = &listObj{count: 0}

func EmptyList() value.Value { return value.WithHeaped(value.List, emptyList) }

func (l *listObj) TraceChildren(visit func(gc.Object)) {
	if l.tail == nil {
		return
	}
	l.head.TraceChildren(visit)
	visit(l.tail)
}

func (l *listObj) IsEmpty() bool { return l.tail == nil }

func (l *listObj) First() value.Value {
	if l.IsEmpty() {
		return value.Nil_()
	}
	return l.head
}

func (l *listObj) Rest() value.Value {
	if l.IsEmpty() || l.tail.tail == nil {
		return EmptyList()
	}
	return value.WithHeaped(value.List, l.tail)
}

func (l *listObj) Count() int { return l.count }

func (l *listObj) Equal(o value.Value) bool {
	other, ok := asSeq(o)
	if !ok {
		return false
	}
	a, b := value.Value(value.WithHeaped(value.List, l)), other
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

func (l *listObj) Hash() uint64 {
	var parts []uint64
	for cur := l; cur != nil && !cur.IsEmpty(); cur = cur.tail {
		parts = append(parts, value.Hash(cur.head))
	}
	return value.StructuralHash(parts...) ^ 0x11570
}

func (l *listObj) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for cur, i := l, 0; cur != nil && !cur.IsEmpty(); cur, i = cur.tail, i+1 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(cur.head.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Cons prepends x onto a list value in O(1), returning a new list (spec
// §3.1 list semantics).
func Cons(h *gc.Heap, x value.Value, l value.Value) value.Value {
	lo := l.Obj().(*listObj)
	return value.WithHeaped(value.List, h.Alloc(&listObj{head: x, tail: lo, count: lo.count + 1}).(*listObj))
}

func ListCount(l value.Value) int { return l.Obj().(*listObj).count }

// NewList builds a persistent list from a slice, preserving order.
func NewList(h *gc.Heap, items ...value.Value) value.Value {
	l := EmptyList()
	for i := len(items) - 1; i >= 0; i-- {
		l = Cons(h, items[i], l)
	}
	return l
}
