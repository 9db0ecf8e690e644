// Package dispatch implements the central vtable named in spec §5 and
// §9's "Cyclic module dependencies" note: a small record of function
// pointers that inverts the dependency direction between low-level
// packages (value, collections, nsenv) and the higher layers that would
// otherwise need to import them (compiler, VM, concurrency). Low-level
// code calls through a *VTable it is handed at construction; internal/vm
// installs the concrete implementations once, at environment bootstrap.
package dispatch

import "github.com/lumenlang/lumen/internal/value"

// VTable is the record of function pointers described in spec §9: "call,
// type_key, trace_bytecode_unit, find_best_multimethod, get_meta,
// exception_matches_class". Every field is nil until internal/vm's
// bootstrap calls Install; calling through an uninstalled field is a
// programming error and panics with a clear message rather than a nil
// pointer dereference stack trace.
type VTable struct {
	// Call invokes any callable Value (fn, builtin-fn, multi-fn,
	// protocol-fn, keyword, map, set, var) with the given arguments,
	// following the calling convention in spec §4.3 "Dispatch".
	Call func(fn value.Value, args []value.Value) (value.Value, error)

	// TypeKey derives the runtime "type key" string used to key protocol
	// and multimethod method tables (spec §9 "Tagged polymorphism"):
	// ordinarily the Value's tag name, but a map value.Value carrying a
	// `:__reify_type` entry reports that entry's keyword name instead, so
	// reify-like constructs dispatch as their declared type.
	TypeKey func(v value.Value) string

	// FindBestMultimethod resolves a multimethod dispatch value against a
	// method table, walking the optional hierarchy relation for the
	// closest ancestor match and falling back to :default (spec §4.3
	// "Multimethods").
	FindBestMultimethod func(dispatchVal value.Value, methods map[string]value.Value) (value.Value, bool)

	// GetMeta returns a Value's attached metadata map, or Nil if it has
	// none (symbols, vars, and collections all carry optional metadata).
	GetMeta func(v value.Value) value.Value

	// ExceptionMatchesClass reports whether a thrown value (either an
	// ex-info map or a host-level throw payload) matches a catch clause's
	// class name (spec §9 "Exceptions as values vs host throws").
	ExceptionMatchesClass func(thrown value.Value, className string) bool

	// TraceBytecodeUnit lets the GC and nREPL describe a compiled
	// bytecode unit (constants, closed-over upvalues) without the gc or
	// nsenv packages importing internal/compiler directly.
	TraceBytecodeUnit func(unit value.Value, visit func(value.Value))
}

func uninstalled(name string) string {
	return "dispatch: VTable." + name + " called before Install"
}

// New returns a VTable with every field defaulting to a panicking stub, so
// a missing Install shows up immediately at the call site responsible
// instead of as a nil-function-value panic somewhere unrelated.
func New() *VTable {
	vt := &VTable{}
	vt.Call = func(value.Value, []value.Value) (value.Value, error) {
		panic(uninstalled("Call"))
	}
	vt.TypeKey = func(value.Value) string { panic(uninstalled("TypeKey")) }
	vt.FindBestMultimethod = func(value.Value, map[string]value.Value) (value.Value, bool) {
		panic(uninstalled("FindBestMultimethod"))
	}
	vt.GetMeta = func(value.Value) value.Value { panic(uninstalled("GetMeta")) }
	vt.ExceptionMatchesClass = func(value.Value, string) bool {
		panic(uninstalled("ExceptionMatchesClass"))
	}
	vt.TraceBytecodeUnit = func(value.Value, func(value.Value)) {
		panic(uninstalled("TraceBytecodeUnit"))
	}
	return vt
}

// Install overwrites every non-nil field of patch into vt. Called once by
// internal/vm's bootstrap after the compiler and VM are constructed; any
// field left nil in patch keeps its previous (stub or prior) value.
func (vt *VTable) Install(patch VTable) {
	if patch.Call != nil {
		vt.Call = patch.Call
	}
	if patch.TypeKey != nil {
		vt.TypeKey = patch.TypeKey
	}
	if patch.FindBestMultimethod != nil {
		vt.FindBestMultimethod = patch.FindBestMultimethod
	}
	if patch.GetMeta != nil {
		vt.GetMeta = patch.GetMeta
	}
	if patch.ExceptionMatchesClass != nil {
		vt.ExceptionMatchesClass = patch.ExceptionMatchesClass
	}
	if patch.TraceBytecodeUnit != nil {
		vt.TraceBytecodeUnit = patch.TraceBytecodeUnit
	}
}
