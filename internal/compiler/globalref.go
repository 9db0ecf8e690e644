package compiler

// GlobalRef names a namespace var addressed by load_var/set_var/
// push_var_ref. It is kept out of Unit.Consts (rather than wrapped as a
// value.Value) to avoid internal/compiler depending on internal/nsenv:
// the VM resolves (Ns, Name) against its own *nsenv.Environment at
// execution time, the same dependency-inversion the central dispatch
// vtable (internal/dispatch) uses elsewhere in this module.
type GlobalRef struct {
	Ns, Name string
}

func (e *emitter) addGlobalRef(ref GlobalRef) int {
	e.unit.GlobalRefs = append(e.unit.GlobalRefs, ref)
	return len(e.unit.GlobalRefs) - 1
}
