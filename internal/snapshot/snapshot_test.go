package snapshot

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/concurrency"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func newHeap() *gc.Heap { return gc.New(1<<20, nil) }

func TestCaptureThenRestoreReproducesVarsAndValues(t *testing.T) {
	heap := newHeap()
	env := nsenv.NewEnvironment(heap, nil)

	core := env.FindOrCreateNamespace("lumen.core")
	core.SetDoc("core builtins")
	core.AddAlias("str", "lumen.string")

	greeting := value.NewString(heap, "hello")
	pi := core.Intern("pi")
	pi.BindRoot(value.NewFloat(3.5))

	name := core.Intern("name")
	name.BindRoot(greeting)
	name.SetMeta(collections.NewArrayMap(heap,
		env.Keywords.Intern("", "doc"), value.NewString(heap, "the name var"),
	))

	nums := core.Intern("nums")
	nums.BindRoot(collections.NewVector(heap, value.NewInt(1), value.NewInt(2), value.NewInt(3)))

	m := collections.EmptyHashMap()
	kwA := env.Keywords.Intern("", "a")
	m = collections.Assoc(heap, m, kwA, value.NewInt(1))
	cfg := core.Intern("config")
	cfg.BindRoot(m)
	cfg.SetDynamic(true)

	// A var whose root is not part of the portable subset (an atom) must
	// survive Capture as an unbound var rather than failing the whole walk.
	live := core.Intern("live-counter")
	live.BindRoot(concurrency.NewAtom(heap, value.NewInt(0)))

	snap := Capture(env)
	require.Equal(t, FormatVersion, snap.FormatVersion)

	restoredHeap := newHeap()
	restored, err := Restore(restoredHeap, hclog.NewNullLogger(), snap)
	require.NoError(t, err)

	rns, ok := restored.FindNamespace("lumen.core")
	require.True(t, ok)
	require.Equal(t, "core builtins", rns.Doc())
	require.Equal(t, map[string]string{"str": "lumen.string"}, rns.AliasesSnapshot())

	rpi, ok := rns.Lookup("pi")
	require.True(t, ok)
	require.True(t, value.Equal(value.NewFloat(3.5), rpi.Root()))

	rname, ok := rns.Lookup("name")
	require.True(t, ok)
	require.Equal(t, "hello", value.StringVal(rname.Root()))
	rdoc, found := collections.Get(rname.Meta(), restored.Keywords.Intern("", "doc"))
	require.True(t, found)
	require.Equal(t, "the name var", value.StringVal(rdoc))

	rnums, ok := rns.Lookup("nums")
	require.True(t, ok)
	require.True(t, value.Equal(
		collections.NewVector(restoredHeap, value.NewInt(1), value.NewInt(2), value.NewInt(3)),
		rnums.Root(),
	))

	rcfg, ok := rns.Lookup("config")
	require.True(t, ok)
	require.True(t, rcfg.IsDynamic())
	rkwA := restored.Keywords.Intern("", "a")
	v, found := collections.Get(rcfg.Root(), rkwA)
	require.True(t, found)
	require.True(t, value.Equal(value.NewInt(1), v))

	rlive, ok := rns.Lookup("live-counter")
	require.True(t, ok)
	require.False(t, rlive.IsBound(), "an atom root has no portable encoding and must restore unbound")
}

func TestCaptureDeduplicatesSharedValues(t *testing.T) {
	heap := newHeap()
	env := nsenv.NewEnvironment(heap, nil)
	ns := env.FindOrCreateNamespace("user")

	shared := value.NewString(heap, "shared")
	va := ns.Intern("a")
	va.BindRoot(collections.NewVector(heap, shared, shared))

	snap := Capture(env)
	var wv wireValue
	for _, cand := range snap.Values {
		if cand.Kind == wVector {
			wv = cand
		}
	}
	require.Len(t, wv.Children, 2)
	require.Equal(t, wv.Children[0], wv.Children[1], "the same string value must share one table slot")
}

func TestRestoreRejectsFormatMismatch(t *testing.T) {
	snap := &Snapshot{FormatVersion: "999.0.0"}
	_, err := Restore(newHeap(), nil, snap)
	require.ErrorIs(t, err, ErrFormatMismatch)
}

func TestSaveLoadRoundTripsThroughMemStore(t *testing.T) {
	heap := newHeap()
	env := nsenv.NewEnvironment(heap, nil)
	ns := env.FindOrCreateNamespace("user")
	v := ns.Intern("answer")
	v.BindRoot(value.NewInt(42))

	snap := Capture(env)
	store := NewMemStore()
	require.NoError(t, Save(store, snap))

	loaded, ok, err := Load(store)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.FormatVersion, loaded.FormatVersion)

	restored, err := Restore(newHeap(), nil, loaded)
	require.NoError(t, err)
	rns, ok := restored.FindNamespace("user")
	require.True(t, ok)
	rv, ok := rns.Lookup("answer")
	require.True(t, ok)
	require.Equal(t, int64(42), rv.Root().AsInt())
}

func TestLoadReportsAbsentOnEmptyStore(t *testing.T) {
	_, ok, err := Load(NewNoopStore())
	require.NoError(t, err)
	require.False(t, ok)
}
