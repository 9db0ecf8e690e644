// Package nsenv implements the namespace/var/environment layer named in
// spec §3.2: namespaces own a symbol-to-var mapping, aliases, and referred
// vars; vars hold a root binding plus a per-thread binding stack; the
// Environment owns the set of namespaces, the symbol/keyword intern
// tables, the load-path, and the GC root. Symbol-keyed lookups are backed
// by github.com/hashicorp/go-immutable-radix, the same persistent-trie
// idiom internal/collections uses for hash_map/set, so namespace snapshots
// (e.g. for `ns-publics`) share structure instead of copying a Go map.
package nsenv

import (
	"sync"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// Var is the named cell described in spec §3.2: a root binding plus a
// per-thread binding stack, topmost value wins.
type Var struct {
	mu       sync.RWMutex
	ns, name string
	root     value.Value
	hasRoot  bool
	dynamic  bool
	macro    bool
	meta     value.Value // an array-map/hash-map of metadata, or Nil

	bindings sync.Map // goroutine-local key (threadKey) -> *bindingStack
}

// threadKey identifies the calling goroutine for binding-stack lookups.
// Go has no first-class goroutine-local storage; the VM's per-thread
// interpreter loop owns a *ThreadID value threaded through every call and
// passes it here, the same way nomad threads a context.Context through
// its RPC handlers rather than reaching for a global.
type ThreadID uint64

type bindingStack struct {
	mu    sync.Mutex
	stack []value.Value
}

// NewVar creates an unbound var with a root of Nil.
func NewVar(ns, name string) *Var {
	return &Var{ns: ns, name: name, root: value.Nil_(), meta: value.Nil_()}
}

func (v *Var) Namespace() string { return v.ns }
func (v *Var) Name() string      { return v.name }

// BindRoot sets the var's root binding (`def`/`alter-var-root`).
func (v *Var) BindRoot(val value.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.root = val
	v.hasRoot = true
}

func (v *Var) IsBound() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.hasRoot
}

// Root returns the var's root binding directly, bypassing any thread-local
// binding (unlike Deref). Used by internal/snapshot, which captures
// process-wide state rather than one thread's dynamic view of it.
func (v *Var) Root() value.Value {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root
}

func (v *Var) SetDynamic(d bool) { v.mu.Lock(); v.dynamic = d; v.mu.Unlock() }
func (v *Var) IsDynamic() bool   { v.mu.RLock(); defer v.mu.RUnlock(); return v.dynamic }

// SetMacro marks this var's root binding as a macro function, consulted
// by the analyzer's call-site macro expansion (spec §4.2).
func (v *Var) SetMacro(m bool) { v.mu.Lock(); v.macro = m; v.mu.Unlock() }
func (v *Var) IsMacro() bool   { v.mu.RLock(); defer v.mu.RUnlock(); return v.macro }

func (v *Var) SetMeta(m value.Value) { v.mu.Lock(); v.meta = m; v.mu.Unlock() }
func (v *Var) Meta() value.Value     { v.mu.RLock(); defer v.mu.RUnlock(); return v.meta }

// Deref yields the topmost thread-local binding for tid if present,
// otherwise the root (spec §3.2: "deref(var) yields the topmost
// thread-local binding if present, else the root").
func (v *Var) Deref(tid ThreadID) value.Value {
	if bs, ok := v.bindings.Load(tid); ok {
		b := bs.(*bindingStack)
		b.mu.Lock()
		defer b.mu.Unlock()
		if n := len(b.stack); n > 0 {
			return b.stack[n-1]
		}
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root
}

// PushBinding installs a new thread-local binding (`binding` form entry).
func (v *Var) PushBinding(tid ThreadID, val value.Value) {
	actual, _ := v.bindings.LoadOrStore(tid, &bindingStack{})
	b := actual.(*bindingStack)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stack = append(b.stack, val)
}

// PopBinding removes the most recent thread-local binding (`binding` form
// exit). It is a no-op if the thread has no bindings, which should not
// happen for a well-formed `binding` lowering but is tolerated defensively
// since it runs during unwind.
func (v *Var) PopBinding(tid ThreadID) {
	actual, ok := v.bindings.Load(tid)
	if !ok {
		return
	}
	b := actual.(*bindingStack)
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.stack); n > 0 {
		b.stack = b.stack[:n-1]
	}
}

// HasThreadBinding reports whether tid currently has any thread-local
// binding for this var (used by `thread-bound?`).
func (v *Var) HasThreadBinding(tid ThreadID) bool {
	actual, ok := v.bindings.Load(tid)
	if !ok {
		return false
	}
	b := actual.(*bindingStack)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stack) > 0
}

// TraceChildren lets a Var participate as a GC root: its root binding and
// every live thread-local binding must stay reachable (spec §4.5 "each
// namespace's var table (root bindings)").
func (v *Var) TraceChildren(visit func(gc.Object)) {
	v.mu.RLock()
	root := v.root
	v.mu.RUnlock()
	root.TraceChildren(visit)
	v.bindings.Range(func(_, val interface{}) bool {
		b := val.(*bindingStack)
		b.mu.Lock()
		for _, bv := range b.stack {
			bv.TraceChildren(visit)
		}
		b.mu.Unlock()
		return true
	})
}
