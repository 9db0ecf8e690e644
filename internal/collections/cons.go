package collections

import (
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// consObj is `(first, rest)` with rest permitted to be any seqable value
// (spec §3.1): unlike listObj, a Cons's rest need not itself be a Cons/List.
type consObj struct {
	first value.Value
	rest  value.Value
}

func (c *consObj) TraceChildren(visit func(gc.Object)) {
	c.first.TraceChildren(visit)
	c.rest.TraceChildren(visit)
}

func (c *consObj) First() value.Value { return c.first }
func (c *consObj) Rest() value.Value  { return c.rest }
func (c *consObj) IsEmpty() bool      { return false }

func (c *consObj) Equal(o value.Value) bool {
	other, ok := asSeq(o)
	if !ok {
		return false
	}
	return seqsEqual(value.WithHeaped(value.Cons, c), other)
}

func (c *consObj) Hash() uint64 {
	return value.StructuralHash(value.Hash(c.first), hashSeqTail(c.rest)) ^ 0xc045
}

func (c *consObj) String() string { return seqToListString(value.WithHeaped(value.Cons, c)) }

// NewCons allocates a new Cons cell.
func NewCons(h *gc.Heap, first, rest value.Value) value.Value {
	return value.WithHeaped(value.Cons, h.Alloc(&consObj{first: first, rest: rest}).(*consObj))
}
