package nsenv

import (
	"fmt"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// LifecycleState tracks require-cycle detection (spec §3.2: "lifecycle
// state (unloaded / loading / loaded) to detect circular requires").
type LifecycleState int

const (
	Unloaded LifecycleState = iota
	Loading
	Loaded
)

func (s LifecycleState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Namespace is the named mapping from symbols to vars described in spec
// §3.2, plus an alias table and a set of referred vars. The vars map is a
// persistent radix tree: snapshotting a namespace (e.g. to answer
// `ns-publics` without holding a lock across the caller's iteration) is an
// O(1) pointer copy of the current root, exactly the way the teacher's
// nomad state store hands out immutable snapshots of its tables.
type Namespace struct {
	mu        sync.RWMutex
	name      string
	vars      *iradix.Tree // string name -> *Var
	aliases   map[string]string
	refers    map[string]*Var
	doc       string
	lifecycle LifecycleState
}

func NewNamespace(name string) *Namespace {
	return &Namespace{
		name:    name,
		vars:    iradix.New(),
		aliases: make(map[string]string),
		refers:  make(map[string]*Var),
	}
}

func (n *Namespace) Name() string { return n.name }

func (n *Namespace) SetDoc(doc string) { n.mu.Lock(); n.doc = doc; n.mu.Unlock() }
func (n *Namespace) Doc() string       { n.mu.RLock(); defer n.mu.RUnlock(); return n.doc }

func (n *Namespace) Lifecycle() LifecycleState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lifecycle
}

func (n *Namespace) SetLifecycle(s LifecycleState) {
	n.mu.Lock()
	n.lifecycle = s
	n.mu.Unlock()
}

// Intern returns the var bound to name in this namespace, creating an
// unbound one if absent (the `def` lowering's entry point).
func (n *Namespace) Intern(name string) *Var {
	n.mu.Lock()
	defer n.mu.Unlock()
	if raw, ok := n.vars.Get([]byte(name)); ok {
		return raw.(*Var)
	}
	v := NewVar(n.name, name)
	tree, _, _ := n.vars.Insert([]byte(name), v)
	n.vars = tree
	return v
}

// Lookup resolves name to a var owned directly by this namespace, without
// consulting referred vars or aliases.
func (n *Namespace) Lookup(name string) (*Var, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	raw, ok := n.vars.Get([]byte(name))
	if !ok {
		return nil, false
	}
	return raw.(*Var), true
}

// Refer makes v (owned by another namespace) resolvable by name in this
// namespace without interning a local var (`refer`/`:refer` in `ns`).
func (n *Namespace) Refer(name string, v *Var) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refers[name] = v
}

// AddAlias maps a short namespace name to its full name (`:as` in
// `require`), resolving `alias/sym` and `::alias/k` forms.
func (n *Namespace) AddAlias(short, full string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aliases[short] = full
}

func (n *Namespace) ResolveAlias(short string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	full, ok := n.aliases[short]
	return full, ok
}

// Resolve looks up name first among this namespace's own vars, then among
// its referred vars (the order the reader/analyzer's symbol resolution
// uses: spec §3.2/§4.2).
func (n *Namespace) Resolve(name string) (*Var, bool) {
	if v, ok := n.Lookup(name); ok {
		return v, true
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.refers[name]
	return v, ok
}

// Publics returns every var directly interned in this namespace, sorted
// by name (the radix tree's natural iteration order), for `ns-publics`.
func (n *Namespace) Publics() []*Var {
	n.mu.RLock()
	tree := n.vars
	n.mu.RUnlock()
	var out []*Var
	it := tree.Root().Iterator()
	for {
		_, raw, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, raw.(*Var))
	}
	return out
}

// AliasesSnapshot returns a copy of this namespace's short-name->full-name
// alias table (`:as` in `require`), for callers (internal/snapshot) that
// need a point-in-time view without holding the namespace lock.
func (n *Namespace) AliasesSnapshot() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]string, len(n.aliases))
	for k, v := range n.aliases {
		out[k] = v
	}
	return out
}

func (n *Namespace) TraceChildren(visit func(gc.Object)) {
	for _, v := range n.Publics() {
		visit(v)
	}
	n.mu.RLock()
	refers := make([]*Var, 0, len(n.refers))
	for _, v := range n.refers {
		refers = append(refers, v)
	}
	n.mu.RUnlock()
	for _, v := range refers {
		visit(v)
	}
}

func (n *Namespace) String() string { return fmt.Sprintf("#<namespace %s>", n.name) }
