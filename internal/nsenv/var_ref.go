package nsenv

import (
	"unsafe"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// varRefObj backs the value.VarRef tag: `(var sym)` and def's result value
// both need the var itself, undereferenced, as an ordinary first-class
// Value. Var lives in this package (it already owns the namespace/var
// graph) rather than in internal/value, which must stay a leaf package.
type varRefObj struct {
	v *Var
}

func (r *varRefObj) TraceChildren(visit func(gc.Object)) { r.v.TraceChildren(visit) }

// Equal is reference identity: two var_refs are equal exactly when they
// name the same Var, mirroring the interned-keyword identity shortcut.
func (r *varRefObj) Equal(o value.Value) bool {
	ro, ok := o.Obj().(*varRefObj)
	return ok && ro.v == r.v
}

// Hash need only be stable for the process lifetime, not structural: two
// var_refs that Equal must hash equal, and they Equal only by identity.
func (r *varRefObj) Hash() uint64 {
	return uint64(uintptr(unsafe.Pointer(r.v)))
}

func (r *varRefObj) String() string {
	if r.v.Namespace() == "" {
		return "#'" + r.v.Name()
	}
	return "#'" + r.v.Namespace() + "/" + r.v.Name()
}

// NewVarRefValue wraps v as a value.VarRef Value.
func NewVarRefValue(heap *gc.Heap, v *Var) value.Value {
	return value.WithHeaped(value.VarRef, heap.Alloc(&varRefObj{v: v}).(*varRefObj))
}

// AsVar unwraps a value.VarRef Value back to its *Var, panicking if val is
// not actually a var_ref (a compiler/VM invariant violation, not a
// user-facing error).
func AsVar(val value.Value) *Var {
	return val.Obj().(*varRefObj).v
}
