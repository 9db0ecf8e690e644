package nsenv

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/lumenlang/lumen/internal/dispatch"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// Environment is the Environment described in spec §3.2: it owns the set
// of namespaces, the intern tables, the load-path, the dispatch vtable,
// and the root of the GC.
type Environment struct {
	mu         sync.RWMutex
	namespaces *iradix.Tree // string name -> *Namespace

	Keywords *value.KeywordIntern
	Heap     *gc.Heap
	Dispatch *dispatch.VTable

	loadPath []string
	log      hclog.Logger
}

func NewEnvironment(heap *gc.Heap, log hclog.Logger) *Environment {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	env := &Environment{
		namespaces: iradix.New(),
		Keywords:   value.NewKeywordIntern(heap),
		Heap:       heap,
		Dispatch:   dispatch.New(),
		log:        log.Named("nsenv"),
	}
	heap.AddRootProvider(env)
	return env
}

// FindOrCreateNamespace returns the namespace named name, creating it
// (Unloaded) if it does not yet exist.
func (e *Environment) FindOrCreateNamespace(name string) *Namespace {
	e.mu.Lock()
	defer e.mu.Unlock()
	if raw, ok := e.namespaces.Get([]byte(name)); ok {
		return raw.(*Namespace)
	}
	ns := NewNamespace(name)
	tree, _, _ := e.namespaces.Insert([]byte(name), ns)
	e.namespaces = tree
	e.log.Debug("namespace created", "ns", name)
	return ns
}

func (e *Environment) FindNamespace(name string) (*Namespace, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	raw, ok := e.namespaces.Get([]byte(name))
	if !ok {
		return nil, false
	}
	return raw.(*Namespace), true
}

// AllNamespaces returns every registered namespace, for `all-ns`.
func (e *Environment) AllNamespaces() []*Namespace {
	e.mu.RLock()
	tree := e.namespaces
	e.mu.RUnlock()
	var out []*Namespace
	it := tree.Root().Iterator()
	for {
		_, raw, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, raw.(*Namespace))
	}
	return out
}

func (e *Environment) SetLoadPath(paths []string) { e.mu.Lock(); e.loadPath = paths; e.mu.Unlock() }
func (e *Environment) LoadPath() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.loadPath...)
}

// Resolve implements the reader/analyzer's fully-qualified symbol
// resolution (spec §3.2/§4.2): `ns/sym` resolves directly against ns
// (following an alias if `ns` is a short alias registered in `in`);
// unqualified `sym` resolves against `in`'s own vars, then its referred
// vars.
func (e *Environment) Resolve(in *Namespace, ns, name string) (*Var, bool) {
	if ns == "" {
		return in.Resolve(name)
	}
	full := ns
	if aliased, ok := in.ResolveAlias(ns); ok {
		full = aliased
	}
	target, ok := e.FindNamespace(full)
	if !ok {
		return nil, false
	}
	return target.Lookup(name)
}

// Roots satisfies gc.RootProvider: every namespace's var table is a root
// (spec §4.5), traced transitively via Namespace.TraceChildren.
func (e *Environment) Roots(into []gc.Object) []gc.Object {
	for _, ns := range e.AllNamespaces() {
		into = append(into, ns)
	}
	return into
}

func (e *Environment) String() string { return fmt.Sprintf("#<environment %d namespaces>", len(e.AllNamespaces())) }
