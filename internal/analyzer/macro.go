package analyzer

import (
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/value"
)

// macroVarFor returns the macro function bound to the var `sym` resolves
// to in a, and reports whether that var is bound and marked as a macro
// (spec §4.2:
// "A call (f args…) where f resolves to a var whose value is marked as a
// macro").
func (a *Analyzer) macroVarFor(sym value.Value) (value.Value, bool) {
	ns, name := value.SymbolParts(sym)
	v, ok := a.env.Resolve(a.ns, ns, name)
	if !ok || !v.IsBound() || !v.IsMacro() {
		return value.Value{}, false
	}
	return v.Deref(a.threadID), true
}

// macroexpand1 invokes the macro bound to the call's head symbol with the
// unevaluated argument forms and returns the expansion. Expansion is
// fully eager; the caller re-analyzes the result (spec §4.2: "splicing
// the result back for re-analysis").
func (a *Analyzer) macroexpand1(form value.Value) (value.Value, bool, error) {
	items := collections.ToSlice(form)
	if len(items) == 0 || items[0].Tag() != value.Symbol {
		return value.Value{}, false, nil
	}
	macroFn, ok := a.macroVarFor(items[0])
	if !ok {
		return value.Value{}, false, nil
	}
	expanded, err := a.env.Dispatch.Call(macroFn, items[1:])
	if err != nil {
		return value.Value{}, false, err
	}
	return expanded, true, nil
}
