package collections

import (
	"sync"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// Thunk produces a lazy-seq's realized form on first demand: either a
// (first, rest) pair, or nothing at all (an empty seq). It is supplied by
// the compiler/VM's lowering of `(lazy-seq body)`.
type Thunk func() (empty bool, first value.Value, rest value.Value)

// lazySeqObj is a thunk that memoizes its realization on first traversal
// (spec §3.1 "lazy_seq — thunk ... memoizes").
type lazySeqObj struct {
	mu        sync.Mutex
	thunk     Thunk
	realized  bool
	isEmpty   bool
	first     value.Value
	rest      value.Value
}

func (l *lazySeqObj) realize() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.realized {
		return
	}
	l.isEmpty, l.first, l.rest = l.thunk()
	l.thunk = nil
	l.realized = true
}

func (l *lazySeqObj) TraceChildren(visit func(gc.Object)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.realized {
		return // an un-realized thunk has no traceable children yet
	}
	l.first.TraceChildren(visit)
	l.rest.TraceChildren(visit)
}

func (l *lazySeqObj) IsEmpty() bool {
	l.realize()
	return l.isEmpty
}

func (l *lazySeqObj) First() value.Value {
	l.realize()
	if l.isEmpty {
		return value.Nil_()
	}
	return l.first
}

func (l *lazySeqObj) Rest() value.Value {
	l.realize()
	if l.isEmpty {
		return EmptyList()
	}
	return l.rest
}

func (l *lazySeqObj) Equal(o value.Value) bool {
	other, ok := asSeq(o)
	if !ok {
		return false
	}
	return seqsEqual(value.WithHeaped(value.LazySeq, l), other)
}

func (l *lazySeqObj) Hash() uint64 {
	if l.IsEmpty() {
		return 0x1a2 ^ 0x5e9
	}
	return value.StructuralHash(value.Hash(l.First()), hashSeqTail(l.Rest())) ^ 0x5e9
}

func (l *lazySeqObj) String() string { return seqToListString(value.WithHeaped(value.LazySeq, l)) }

// NewLazySeq allocates a lazy-seq wrapping the supplied thunk.
func NewLazySeq(h *gc.Heap, t Thunk) value.Value {
	return value.WithHeaped(value.LazySeq, h.Alloc(&lazySeqObj{thunk: t}).(*lazySeqObj))
}
