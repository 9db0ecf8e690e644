// Package stdlib implements the standard-library registration table
// mechanism described in spec §6.5: every namespace registers a fixed
// entry shape (builtins, macro builtins, dynamic vars, constant vars, an
// optional embedded source, a loading mode, and a post-register hook),
// and Registry.Bootstrap walks the table at startup. Per SPEC_FULL.md's
// scope note this package implements the mechanism plus a handful of
// illustrative `clojure.core`-style entries sufficient to exercise it
// end-to-end, not a full standard library.
package stdlib

import (
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/lumenlang/lumen/internal/vm"
)

// LoadingMode is one of the three strategies spec §6.5 names for a
// registered namespace.
type LoadingMode int

const (
	// Eager namespaces materialize (builtins bound, vars interned) at
	// Bootstrap time, with no embedded source evaluated.
	Eager LoadingMode = iota
	// EagerEval is Eager plus the embedded source is analyzed, compiled,
	// and run immediately at Bootstrap time.
	EagerEval
	// Lazy namespaces materialize only once Registry.Require names them —
	// the runtime's first-`require` deferral.
	Lazy
)

func (m LoadingMode) String() string {
	switch m {
	case Eager:
		return "eager"
	case EagerEval:
		return "eager_eval"
	case Lazy:
		return "lazy"
	default:
		return "unknown"
	}
}

// BuiltinFn is the native Go function shape every builtin/macro-builtin
// table entry wraps, matching internal/vm.NewBuiltin's signature exactly
// so registration never needs an adapter closure.
type BuiltinFn func(vm *vm.VM, args []value.Value) (value.Value, error)

// BuiltinEntry is one row of a namespace's `builtins` or `macro_builtins`
// list (spec §6.5: "{ name, fn_ptr, doc, arglists, added }").
type BuiltinEntry struct {
	Name     string
	Fn       BuiltinFn
	Doc      string
	Arglists []string
	Added    string // version tag, e.g. "1.0"; informational only
}

// DynamicVarEntry is one row of a namespace's `dynamic_vars` list.
type DynamicVarEntry struct {
	Name    string
	Default value.Value
}

// ConstantVarEntry is one row of a namespace's `constant_vars` list.
type ConstantVarEntry struct {
	Name  string
	Value value.Value
}

// NamespaceEntry is the registration-table row spec §6.5 describes for
// one standard namespace.
type NamespaceEntry struct {
	Name          string
	Builtins      []BuiltinEntry
	MacroBuiltins []BuiltinEntry
	DynamicVars   []DynamicVarEntry
	ConstantVars  []ConstantVarEntry

	// EmbeddedSource is Lisp source text lazily analyzed/compiled: for an
	// Eager namespace it is never touched; for EagerEval it runs at
	// Bootstrap time; for Lazy it runs the first time Require names this
	// namespace.
	EmbeddedSource []byte

	Loading LoadingMode

	// PostRegister runs once, immediately after every builtin/var above
	// has been bound (and EmbeddedSource, if any, has run) — the table's
	// hook for cross-namespace wiring that must see a fully-bound
	// namespace rather than a partially-built one.
	PostRegister func(env *nsenv.Environment) error
}
