package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// leafObj is a heap object with no children, used to build small graphs by
// hand for collector tests.
type leafObj struct{ name string }

func (l *leafObj) TraceChildren(visit func(Object)) {}

// refObj references a single child, letting tests build a reachable chain.
type refObj struct {
	name  string
	child Object
}

func (r *refObj) TraceChildren(visit func(Object)) {
	if r.child != nil {
		visit(r.child)
	}
}

type staticRoots struct{ objs []Object }

func (s *staticRoots) Roots(into []Object) []Object { return append(into, s.objs...) }

func TestCollectSweepsUnreachable(t *testing.T) {
	h := New(1<<30, nil)
	roots := &staticRoots{}
	h.AddRootProvider(roots)

	kept := h.Alloc(&leafObj{name: "kept"})
	_ = h.Alloc(&leafObj{name: "garbage"})
	roots.objs = []Object{kept}

	require.EqualValues(t, 2, h.LiveCount())
	h.Collect()
	require.EqualValues(t, 1, h.LiveCount())
}

func TestCollectTracesChildren(t *testing.T) {
	h := New(1<<30, nil)
	roots := &staticRoots{}
	h.AddRootProvider(roots)

	child := h.Alloc(&leafObj{name: "child"})
	parent := h.Alloc(&refObj{name: "parent", child: child})
	roots.objs = []Object{parent}

	h.Collect()
	require.EqualValues(t, 2, h.LiveCount(), "child reachable only through parent must survive")
}

func TestCollectHandlesCycles(t *testing.T) {
	h := New(1<<30, nil)
	roots := &staticRoots{}
	h.AddRootProvider(roots)

	a := &refObj{name: "a"}
	b := &refObj{name: "b", child: a}
	a.child = b
	h.Alloc(a)
	h.Alloc(b)
	// Neither a nor b is rooted: both should be collected despite the cycle.

	h.Collect()
	require.EqualValues(t, 0, h.LiveCount())
}

func TestAllocTriggersCollectionAtThreshold(t *testing.T) {
	h := New(2, nil)
	roots := &staticRoots{}
	h.AddRootProvider(roots)

	h.Alloc(&leafObj{name: "one"})
	h.Alloc(&leafObj{name: "two"}) // crosses the threshold: sweeps "one", then registers "two"
	require.EqualValues(t, 1, h.LiveCount(), "the earlier unrooted allocation is swept; the allocation that crossed the threshold is registered after the sweep")
}
