package dispatch

import (
	"testing"

	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func TestUninstalledVTablePanics(t *testing.T) {
	vt := New()
	require.Panics(t, func() { vt.TypeKey(value.Nil_()) })
	require.Panics(t, func() { _, _ = vt.Call(value.Nil_(), nil) })
}

func TestInstallOverwritesOnlyNonNilFields(t *testing.T) {
	vt := New()
	called := false
	vt.Install(VTable{
		TypeKey: func(value.Value) string { called = true; return "integer" },
	})
	require.Equal(t, "integer", vt.TypeKey(value.NewInt(1)))
	require.True(t, called)
	require.Panics(t, func() { _, _ = vt.Call(value.Nil_(), nil) }, "Call was not patched, must stay a stub")
}

func TestFindBestMultimethodDispatch(t *testing.T) {
	vt := New()
	vt.Install(VTable{
		FindBestMultimethod: func(d value.Value, methods map[string]value.Value) (value.Value, bool) {
			fn, ok := methods[d.String()]
			return fn, ok
		},
	})
	methods := map[string]value.Value{"integer": value.NewInt(7)}
	fn, ok := vt.FindBestMultimethod(value.NewInt(0), methods)
	require.True(t, ok)
	require.Equal(t, int64(7), fn.AsInt())
}
