package nsenv

import (
	"testing"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T) *Environment {
	t.Helper()
	return NewEnvironment(gc.New(1<<20, nil), nil)
}

func TestInternCreatesAndReusesVar(t *testing.T) {
	env := newEnv(t)
	ns := env.FindOrCreateNamespace("user")
	v1 := ns.Intern("x")
	v2 := ns.Intern("x")
	require.Same(t, v1, v2, "interning the same name twice must return the same var")
	require.False(t, v1.IsBound())
}

func TestVarRootAndThreadBinding(t *testing.T) {
	v := NewVar("user", "x")
	v.BindRoot(value.NewInt(1))
	require.True(t, v.IsBound())
	require.Equal(t, int64(1), v.Deref(0).AsInt())

	v.PushBinding(ThreadID(1), value.NewInt(99))
	require.Equal(t, int64(99), v.Deref(ThreadID(1)).AsInt())
	require.Equal(t, int64(1), v.Deref(ThreadID(2)).AsInt(), "bindings are per-thread")
	require.True(t, v.HasThreadBinding(ThreadID(1)))

	v.PopBinding(ThreadID(1))
	require.Equal(t, int64(1), v.Deref(ThreadID(1)).AsInt())
	require.False(t, v.HasThreadBinding(ThreadID(1)))
}

func TestNamespaceResolveFallsBackToReferred(t *testing.T) {
	env := newEnv(t)
	core := env.FindOrCreateNamespace("lumen.core")
	plus := core.Intern("+")
	plus.BindRoot(value.NewInt(42))

	user := env.FindOrCreateNamespace("user")
	_, ok := user.Lookup("+")
	require.False(t, ok)

	user.Refer("+", plus)
	v, ok := user.Resolve("+")
	require.True(t, ok)
	require.Same(t, plus, v)
}

func TestEnvironmentResolveQualifiedAndAliased(t *testing.T) {
	env := newEnv(t)
	core := env.FindOrCreateNamespace("lumen.core")
	v := core.Intern("inc")
	v.BindRoot(value.NewInt(7))

	user := env.FindOrCreateNamespace("user")
	got, ok := env.Resolve(user, "lumen.core", "inc")
	require.True(t, ok)
	require.Same(t, v, got)

	user.AddAlias("core", "lumen.core")
	got2, ok := env.Resolve(user, "core", "inc")
	require.True(t, ok)
	require.Same(t, v, got2)
}

func TestNamespaceLifecycleTracksLoading(t *testing.T) {
	ns := NewNamespace("user")
	require.Equal(t, Unloaded, ns.Lifecycle())
	ns.SetLifecycle(Loading)
	require.Equal(t, "loading", ns.Lifecycle().String())
	ns.SetLifecycle(Loaded)
	require.Equal(t, Loaded, ns.Lifecycle())
}

func TestPublicsListsInternedVars(t *testing.T) {
	ns := NewNamespace("user")
	ns.Intern("a")
	ns.Intern("b")
	require.Len(t, ns.Publics(), 2)
}
