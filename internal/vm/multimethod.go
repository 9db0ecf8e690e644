package vm

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// bestMatchCacheSize bounds the best-match cache every multimethod and
// protocol carries (spec's root-scanning list names "protocol/multimethod
// caches" as a GC root class): large enough that a dispatch value's
// hierarchy walk is amortized across a hot call site, small enough that a
// multimethod dispatching on a huge open set of keys doesn't pin an
// unbounded table of resolved methods.
const bestMatchCacheSize = 256

func newBestMatchCache() *lru.Cache[string, value.Value] {
	c, err := lru.New[string, value.Value](bestMatchCacheSize)
	if err != nil {
		panic("vm: constructing best-match cache: " + err.Error())
	}
	return c
}

// multiFnObj backs value.MultiFn (spec §4.3 "Multimethods"): dispatchFn
// computes a dispatch value from the call's arguments; methods maps a
// dispatch value's printed/keyed form to the method implementing it;
// hierarchy optionally relates dispatch values to a parent (defmulti's
// `derive`/`isa?` relation) so a method registered for a parent value is
// found when no exact match exists; defaultKey names the fallback method
// (":default" unless overridden); cache memoizes a resolved dispatch key's
// hierarchy walk so a hot call site doesn't re-walk it every invocation,
// purged whenever AddMethod/Derive change what a key resolves to.
type multiFnObj struct {
	mu         sync.RWMutex
	name       string
	dispatchFn value.Value
	methods    map[string]value.Value
	hierarchy  map[string]string // child key -> parent key
	defaultKey string
	cache      *lru.Cache[string, value.Value]
}

// NewMultiFn creates an empty multimethod dispatching on dispatchFn.
func NewMultiFn(heap *gc.Heap, name string, dispatchFn value.Value) value.Value {
	m := &multiFnObj{
		name:       name,
		dispatchFn: dispatchFn,
		methods:    make(map[string]value.Value),
		hierarchy:  make(map[string]string),
		defaultKey: ":default",
		cache:      newBestMatchCache(),
	}
	return value.WithHeaped(value.MultiFn, heap.Alloc(m).(*multiFnObj))
}

// AddMethod registers fn as the implementation for dispatchKey
// (`defmethod`). Purges the best-match cache: any dispatch key whose
// resolution used to fall through to a different method (or the default)
// may now resolve to fn instead.
func (m *multiFnObj) AddMethod(dispatchKey string, fn value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[dispatchKey] = fn
	m.cache.Purge()
}

// Derive records that child is-a parent for this multimethod's hierarchy
// walk (`derive`). Purges the best-match cache since a hierarchy edge can
// change what an already-cached key resolves to.
func (m *multiFnObj) Derive(child, parent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hierarchy[child] = parent
	m.cache.Purge()
}

// findMethod walks dispatchKey, then its ancestors via hierarchy, then
// defaultKey, returning the first registered method found. The walk's
// result is memoized in m.cache so repeated dispatch on the same key
// (the common case in a hot loop) skips straight to the resolved method.
func (m *multiFnObj) findMethod(dispatchKey string) (value.Value, bool) {
	if fn, ok := m.cache.Get(dispatchKey); ok {
		return fn, true
	}
	m.mu.RLock()
	key := dispatchKey
	var fn value.Value
	found := false
	for i := 0; i < len(m.methods)+len(m.hierarchy)+1; i++ {
		if f, ok := m.methods[key]; ok {
			fn, found = f, true
			break
		}
		parent, ok := m.hierarchy[key]
		if !ok {
			break
		}
		key = parent
	}
	if !found {
		fn, found = m.methods[m.defaultKey]
	}
	m.mu.RUnlock()
	if found {
		m.cache.Add(dispatchKey, fn)
	}
	return fn, found
}

func (m *multiFnObj) methodsSnapshot() map[string]value.Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]value.Value, len(m.methods))
	for k, v := range m.methods {
		out[k] = v
	}
	return out
}

func (m *multiFnObj) TraceChildren(visit func(gc.Object)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dispatchFn.Obj() != nil {
		visit(m.dispatchFn.Obj())
	}
	for _, fn := range m.methods {
		if fn.Obj() != nil {
			visit(fn.Obj())
		}
	}
	// The best-match cache's entries are already reachable through
	// m.methods above (it only ever memoizes values copied from that
	// map), but it is traced explicitly here too since the collector's
	// root-scanning contract names the multimethod/protocol caches
	// themselves as a root class, not just their backing tables.
	for _, key := range m.cache.Keys() {
		if fn, ok := m.cache.Peek(key); ok && fn.Obj() != nil {
			visit(fn.Obj())
		}
	}
}

func (m *multiFnObj) Equal(o value.Value) bool {
	om, ok := o.Obj().(*multiFnObj)
	return ok && om == m
}

func (m *multiFnObj) Hash() uint64   { return fnv1a(m.name) ^ 0x6d66 }
func (m *multiFnObj) String() string { return fmt.Sprintf("#<multi-fn %s>", m.name) }

// protocolObj backs value.Protocol (spec §4.4 "protocol_call"): impls maps
// a type key (see dispatch.VTable.TypeKey) to that type's method table,
// keyed by method name; a type with no registered impl falls back to the
// "Object" entry if one exists. cache memoizes a resolved (typeKey,
// methodName) pair's lookup, purged whenever Extend changes impls.
type protocolObj struct {
	mu    sync.RWMutex
	name  string
	impls map[string]map[string]value.Value
	cache *lru.Cache[string, value.Value]
}

// NewProtocol creates an empty protocol (`defprotocol`).
func NewProtocol(heap *gc.Heap, name string) value.Value {
	p := &protocolObj{
		name:  name,
		impls: make(map[string]map[string]value.Value),
		cache: newBestMatchCache(),
	}
	return value.WithHeaped(value.Protocol, heap.Alloc(p).(*protocolObj))
}

// Extend registers methods as typeKey's implementation of this protocol
// (`extend-type`/`extend-protocol`). Purges the method-resolution cache:
// a type that previously fell through to "Object" may now resolve to its
// own impl instead.
func (p *protocolObj) Extend(typeKey string, methods map[string]value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.impls[typeKey] = methods
	p.cache.Purge()
}

func protocolCacheKey(typeKey, methodName string) string {
	return typeKey + "/" + methodName
}

func (p *protocolObj) method(typeKey, methodName string) (value.Value, bool) {
	cacheKey := protocolCacheKey(typeKey, methodName)
	if fn, ok := p.cache.Get(cacheKey); ok {
		return fn, true
	}
	p.mu.RLock()
	fn, found := value.Value{}, false
	if tbl, ok := p.impls[typeKey]; ok {
		fn, found = tbl[methodName]
	}
	if !found {
		if tbl, ok := p.impls["Object"]; ok {
			fn, found = tbl[methodName]
		}
	}
	p.mu.RUnlock()
	if found {
		p.cache.Add(cacheKey, fn)
	}
	return fn, found
}

func (p *protocolObj) TraceChildren(visit func(gc.Object)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, tbl := range p.impls {
		for _, fn := range tbl {
			if fn.Obj() != nil {
				visit(fn.Obj())
			}
		}
	}
	for _, key := range p.cache.Keys() {
		if fn, ok := p.cache.Peek(key); ok && fn.Obj() != nil {
			visit(fn.Obj())
		}
	}
}

func (p *protocolObj) Equal(o value.Value) bool {
	op, ok := o.Obj().(*protocolObj)
	return ok && op == p
}

func (p *protocolObj) Hash() uint64   { return fnv1a(p.name) ^ 0x70726f }
func (p *protocolObj) String() string { return fmt.Sprintf("#<protocol %s>", p.name) }

// protocolFnObj backs value.ProtocolFn: one callable method slot of a
// protocol (`(proto-method x ...)`), resolved against the first
// argument's type key at call time.
type protocolFnObj struct {
	protocol   *protocolObj
	methodName string
}

// NewProtocolFn wraps one named method of protocol as a callable Value.
func NewProtocolFn(heap *gc.Heap, protocolVal value.Value, methodName string) value.Value {
	p := protocolVal.Obj().(*protocolObj)
	pf := &protocolFnObj{protocol: p, methodName: methodName}
	return value.WithHeaped(value.ProtocolFn, heap.Alloc(pf).(*protocolFnObj))
}

func (f *protocolFnObj) TraceChildren(visit func(gc.Object)) { visit(f.protocol) }
func (f *protocolFnObj) Equal(o value.Value) bool {
	of, ok := o.Obj().(*protocolFnObj)
	return ok && of == f
}
func (f *protocolFnObj) Hash() uint64 { return fnv1a(f.methodName) ^ 0x7066 }
func (f *protocolFnObj) String() string {
	return fmt.Sprintf("#<protocol-fn %s/%s>", f.protocol.name, f.methodName)
}
