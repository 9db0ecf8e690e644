package stdlib

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/reader"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/lumenlang/lumen/internal/vm"
)

// Registry holds every registered NamespaceEntry and tracks which have
// materialized, implementing spec §6.5's "walks this table at startup,
// eagerly materializing eager entries, deferring lazy entries until
// first require".
type Registry struct {
	mu      sync.Mutex
	entries map[string]NamespaceEntry
	order   []string
	loaded  map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]NamespaceEntry), loaded: make(map[string]bool)}
}

// Register adds entry to the table. Registering a name a second time
// replaces the earlier entry — used by tests that build a Registry
// incrementally.
func (r *Registry) Register(entry NamespaceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[entry.Name]; !exists {
		r.order = append(r.order, entry.Name)
	}
	r.entries[entry.Name] = entry
}

// Bootstrap walks every registered entry in registration order,
// materializing every Eager and EagerEval entry. Lazy entries are left
// untouched until a later Require.
func (r *Registry) Bootstrap(env *nsenv.Environment, vmInstance *vm.VM) error {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, name := range order {
		r.mu.Lock()
		entry := r.entries[name]
		r.mu.Unlock()
		if entry.Loading == Lazy {
			continue
		}
		if err := r.materialize(env, vmInstance, entry); err != nil {
			return fmt.Errorf("stdlib: bootstrapping %s: %w", entry.Name, err)
		}
	}
	return nil
}

// Require forces the namespace named name to materialize if it was
// registered Lazy and has not loaded yet. A name this registry never saw
// is not an error here: the caller's ordinary `require` path handles
// user namespaces the same way regardless of whether a stdlib entry
// exists for that name.
func (r *Registry) Require(env *nsenv.Environment, vmInstance *vm.VM, name string) error {
	r.mu.Lock()
	entry, ok := r.entries[name]
	alreadyLoaded := r.loaded[name]
	r.mu.Unlock()
	if !ok || alreadyLoaded {
		return nil
	}
	if err := r.materialize(env, vmInstance, entry); err != nil {
		return fmt.Errorf("stdlib: requiring %s: %w", name, err)
	}
	return nil
}

// IsRegistered reports whether name has a stdlib table entry at all,
// loaded or not.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok
}

func (r *Registry) materialize(env *nsenv.Environment, vmInstance *vm.VM, entry NamespaceEntry) error {
	r.mu.Lock()
	if r.loaded[entry.Name] {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	ns := env.FindOrCreateNamespace(entry.Name)
	ns.SetLifecycle(nsenv.Loading)

	for _, b := range sortedBuiltins(entry.Builtins) {
		v := ns.Intern(b.Name)
		v.BindRoot(vm.NewBuiltin(env.Heap, entry.Name+"/"+b.Name, b.Fn))
		v.SetMeta(builtinMeta(env, b))
	}
	for _, m := range sortedBuiltins(entry.MacroBuiltins) {
		v := ns.Intern(m.Name)
		v.BindRoot(vm.NewBuiltin(env.Heap, entry.Name+"/"+m.Name, m.Fn))
		v.SetMacro(true)
		v.SetMeta(builtinMeta(env, m))
	}
	for _, d := range entry.DynamicVars {
		v := ns.Intern(d.Name)
		v.BindRoot(d.Default)
		v.SetDynamic(true)
	}
	for _, c := range entry.ConstantVars {
		v := ns.Intern(c.Name)
		v.BindRoot(c.Value)
	}

	if len(entry.EmbeddedSource) > 0 && entry.Loading != Eager {
		if err := evalSource(env, vmInstance, ns, string(entry.EmbeddedSource)); err != nil {
			return err
		}
	}

	if entry.PostRegister != nil {
		if err := entry.PostRegister(env); err != nil {
			return err
		}
	}

	ns.SetLifecycle(nsenv.Loaded)
	r.mu.Lock()
	r.loaded[entry.Name] = true
	r.mu.Unlock()
	return nil
}

// builtinMeta builds the `{:doc ... :arglists [...] :added ...}` map spec
// §6.5's per-builtin fields describe, skipping any field left blank.
func builtinMeta(env *nsenv.Environment, b BuiltinEntry) value.Value {
	var kvs []value.Value
	if b.Doc != "" {
		kvs = append(kvs, env.Keywords.Intern("", "doc"), value.NewString(env.Heap, b.Doc))
	}
	if len(b.Arglists) > 0 {
		items := make([]value.Value, len(b.Arglists))
		for i, a := range b.Arglists {
			items[i] = value.NewString(env.Heap, a)
		}
		kvs = append(kvs, env.Keywords.Intern("", "arglists"), collections.NewVector(env.Heap, items...))
	}
	if b.Added != "" {
		kvs = append(kvs, env.Keywords.Intern("", "added"), value.NewString(env.Heap, b.Added))
	}
	if len(kvs) == 0 {
		return value.Nil_()
	}
	return collections.NewArrayMap(env.Heap, kvs...)
}

// evalSource reads every top-level form out of src, analyzes, compiles,
// and runs each in turn against ns — the "lazily analyzed/compiled"
// embedded_source path spec §6.5 names.
func evalSource(env *nsenv.Environment, vmInstance *vm.VM, ns *nsenv.Namespace, src string) error {
	r := reader.New(src, ns.Name()+".lum", env.Heap, env.Keywords, reader.NewMetaTable(), reader.NewTagTable())
	forms, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("reading embedded source for %s: %w", ns.Name(), err)
	}
	comp := compiler.New(env.Heap)
	for _, form := range forms {
		an := analyzer.New(env, ns, vmInstance.ThreadID())
		node, numLocals, err := an.AnalyzeTopLevel(form)
		if err != nil {
			return fmt.Errorf("analyzing embedded source for %s: %w", ns.Name(), err)
		}
		unit, err := comp.CompileTopLevel(node, numLocals)
		if err != nil {
			return fmt.Errorf("compiling embedded source for %s: %w", ns.Name(), err)
		}
		if _, err := vmInstance.RunTopLevel(unit, ns); err != nil {
			return fmt.Errorf("running embedded source for %s: %w", ns.Name(), err)
		}
	}
	return nil
}

func sortedBuiltins(entries []BuiltinEntry) []BuiltinEntry {
	out := append([]BuiltinEntry(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
