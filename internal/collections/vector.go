package collections

import (
	"strings"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

const (
	vecBits  = 5
	vecWidth = 1 << vecBits // 32-ary, per spec §3.1
	vecMask  = vecWidth - 1
)

// vecNode is one level of the bit-partitioned trie. At shift 0 a node's
// vals hold leaf Values; above that, kids hold child nodes. Nodes are
// plain Go structs copied by value on every update (copy-on-write), which
// is what gives the structure its O(log32 n) persistent update.
type vecNode struct {
	vals [vecWidth]value.Value
	kids [vecWidth]*vecNode
}

func (n *vecNode) traceChildren(shift uint, visit func(gc.Object)) {
	if n == nil {
		return
	}
	if shift == 0 {
		for _, v := range n.vals {
			v.TraceChildren(visit)
		}
		return
	}
	for _, k := range n.kids {
		k.traceChildren(shift-vecBits, visit)
	}
}

// vectorObj is the indexed, 32-ary persistent trie named in spec §3.1.
type vectorObj struct {
	count int
	shift uint
	root  *vecNode
}

var emptyVector = &vectorObj{}

func EmptyVector() value.Value { return value.WithHeaped(value.Vector, emptyVector) }

func (v *vectorObj) TraceChildren(visit func(gc.Object)) { v.root.traceChildren(v.shift, visit) }

func (v *vectorObj) Count() int { return v.count }

func (v *vectorObj) Nth(i int) (value.Value, bool) {
	if i < 0 || i >= v.count {
		return value.Nil_(), false
	}
	node := v.root
	for shift := v.shift; shift > 0; shift -= vecBits {
		node = node.kids[(i>>shift)&vecMask]
	}
	return node.vals[i&vecMask], true
}

// VectorNth returns v's element at index i, or (Nil, false) if i is out
// of range. Exported wrapper around vectorObj.Nth for callers (builtin
// `get`/`nth`) outside this package.
func VectorNth(v value.Value, i int) (value.Value, bool) {
	return v.Obj().(*vectorObj).Nth(i)
}

func doAssoc(shift uint, node *vecNode, i int, val value.Value) *vecNode {
	var next vecNode
	if node != nil {
		next = *node
	}
	if shift == 0 {
		next.vals[i&vecMask] = val
	} else {
		sub := (i >> shift) & vecMask
		next.kids[sub] = doAssoc(shift-vecBits, next.kids[sub], i, val)
	}
	return &next
}

func capacityOf(shift uint) int {
	if shift == 0 {
		return vecWidth
	}
	return vecWidth << shift
}

// AssocN returns a new vector with index i set to val; i == Count() appends.
// Each resulting vectorObj is registered with h so the collector accounts
// for it like any other heap value (spec §4.5's "the collector is the sole
// reclaimer of heap Values").
func AssocN(h *gc.Heap, v value.Value, i int, val value.Value) (value.Value, bool) {
	vo := v.Obj().(*vectorObj)
	if i < 0 || i > vo.count {
		return value.Nil_(), false
	}
	if i == vo.count && vo.count == capacityOf(vo.shift) {
		newShift := vo.shift + vecBits
		var newRoot vecNode
		newRoot.kids[0] = vo.root
		root := doAssoc(newShift, &newRoot, i, val)
		obj := h.Alloc(&vectorObj{count: vo.count + 1, shift: newShift, root: root}).(*vectorObj)
		return value.WithHeaped(value.Vector, obj), true
	}
	count := vo.count
	if i == count {
		count++
	}
	root := doAssoc(vo.shift, vo.root, i, val)
	obj := h.Alloc(&vectorObj{count: count, shift: vo.shift, root: root}).(*vectorObj)
	return value.WithHeaped(value.Vector, obj), true
}

// Conj appends val to the end of the vector (spec: O(log32 n) update).
func Conj(h *gc.Heap, v value.Value, val value.Value) value.Value {
	vo := v.Obj().(*vectorObj)
	r, _ := AssocN(h, v, vo.count, val)
	return r
}

// Pop removes the last element; empty vectors are a no-op (mirrors
// Clojure's error-on-empty-pop semantics being a caller-level concern).
func Pop(h *gc.Heap, v value.Value) (value.Value, bool) {
	vo := v.Obj().(*vectorObj)
	if vo.count == 0 {
		return v, false
	}
	if vo.count == 1 {
		return EmptyVector(), true
	}
	newCount := vo.count - 1
	if vo.shift > 0 && newCount == capacityOf(vo.shift-vecBits) {
		newRoot := vo.root.kids[0]
		obj := h.Alloc(&vectorObj{count: newCount, shift: vo.shift - vecBits, root: newRoot}).(*vectorObj)
		return value.WithHeaped(value.Vector, obj), true
	}
	obj := h.Alloc(&vectorObj{count: newCount, shift: vo.shift, root: vo.root}).(*vectorObj)
	return value.WithHeaped(value.Vector, obj), true
}

func NewVector(h *gc.Heap, items ...value.Value) value.Value {
	v := EmptyVector()
	for _, it := range items {
		v = Conj(h, v, it)
	}
	return v
}

func (v *vectorObj) Equal(o value.Value) bool {
	if ov, ok := o.Obj().(*vectorObj); ok {
		if v.count != ov.count {
			return false
		}
		for i := 0; i < v.count; i++ {
			a, _ := v.Nth(i)
			b, _ := ov.Nth(i)
			if !value.Equal(a, b) {
				return false
			}
		}
		return true
	}
	other, ok := asSeq(o)
	if !ok {
		return false
	}
	return seqsEqual(value.WithHeaped(value.Vector, v), value.WithHeaped(value.List, other))
}

func (v *vectorObj) Hash() uint64 {
	parts := make([]uint64, 0, v.count)
	for i := 0; i < v.count; i++ {
		val, _ := v.Nth(i)
		parts = append(parts, value.Hash(val))
	}
	// Same salt as listObj.Hash: a vector equals a list with the same
	// elements, so the two must hash alike.
	return value.StructuralHash(parts...) ^ 0x11570
}

func (v *vectorObj) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < v.count; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		val, _ := v.Nth(i)
		sb.WriteString(val.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// vecSeqObj adapts a vector for sequential traversal (used by `seq`,
// destructuring, and equality-against-lists). It implements Seq directly,
// so asSeq recognizes it via its Obj().(Seq) check regardless of the tag
// it happens to be wrapped in.
type vecSeqObj struct {
	v   *vectorObj
	idx int
}

func vectorSeq(v value.Value) Seq {
	vo := v.Obj().(*vectorObj)
	if vo.count == 0 {
		return emptyList
	}
	return &vecSeqObj{v: vo, idx: 0}
}

func (s *vecSeqObj) TraceChildren(visit func(gc.Object)) { s.v.TraceChildren(visit) }
func (s *vecSeqObj) IsEmpty() bool                       { return s.idx >= s.v.count }
func (s *vecSeqObj) First() value.Value {
	val, _ := s.v.Nth(s.idx)
	return val
}
func (s *vecSeqObj) Rest() value.Value {
	if s.idx+1 >= s.v.count {
		return EmptyList()
	}
	return value.WithHeaped(value.Vector, &vecSeqObj{v: s.v, idx: s.idx + 1})
}
func (s *vecSeqObj) Equal(o value.Value) bool {
	other, ok := asSeq(o)
	return ok && seqsEqual(value.WithHeaped(value.Vector, s), value.WithHeaped(value.List, other))
}
func (s *vecSeqObj) Hash() uint64   { return hashSeqTail(value.WithHeaped(value.Vector, s)) }
func (s *vecSeqObj) String() string { return seqToListString(value.WithHeaped(value.Vector, s)) }
