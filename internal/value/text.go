package value

import (
	"sync"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/mitchellh/hashstructure/v2"
)

// strObj backs the String tag: an immutable UTF-8 byte sequence.
type strObj struct{ s string }

func (s *strObj) TraceChildren(func(gc.Object)) {}
func (s *strObj) Equal(o Value) bool             { so, ok := o.obj.(*strObj); return ok && so.s == s.s }
func (s *strObj) Hash() uint64                   { return fnv1a(s.s) ^ 0x5 }
func (s *strObj) String() string                 { return s.s }

// NewString allocates a new String value on the given heap.
func NewString(h *gc.Heap, s string) Value {
	return WithHeaped(String, h.Alloc(&strObj{s: s}).(*strObj))
}

// StringVal returns the raw Go string backing a String value.
func StringVal(v Value) string { return v.obj.(*strObj).s }

// symObj backs Symbol: an (ns?, name) pair of interned byte sequences.
type symObj struct{ ns, name string }

func (s *symObj) TraceChildren(func(gc.Object)) {}
func (s *symObj) Equal(o Value) bool {
	so, ok := o.obj.(*symObj)
	return ok && so.ns == s.ns && so.name == s.name
}
func (s *symObj) Hash() uint64 { return fnv1a(s.ns) ^ fnv1a(s.name)*31 }
func (s *symObj) String() string {
	if s.ns == "" {
		return s.name
	}
	return s.ns + "/" + s.name
}

// NewSymbol allocates a new Symbol value. ns may be empty.
func NewSymbol(h *gc.Heap, ns, name string) Value {
	return WithHeaped(Symbol, h.Alloc(&symObj{ns: ns, name: name}).(*symObj))
}

func SymbolParts(v Value) (ns, name string) {
	s := v.obj.(*symObj)
	return s.ns, s.name
}

// keywordObj backs Keyword. Keywords are additionally interned process-wide
// (spec §3.1) so that equal keywords are reference-identical, letting
// equality short-circuit to a pointer compare.
type keywordObj struct{ ns, name string }

func (k *keywordObj) TraceChildren(func(gc.Object)) {}
func (k *keywordObj) Equal(o Value) bool {
	ko, ok := o.obj.(*keywordObj)
	if !ok {
		return false
	}
	if ko == k {
		return true // intern table guarantees identity for equal keywords
	}
	return ko.ns == k.ns && ko.name == k.name
}
func (k *keywordObj) Hash() uint64 { return fnv1a(k.ns) ^ fnv1a(k.name)*31 ^ 0x4b }
func (k *keywordObj) String() string {
	if k.ns == "" {
		return ":" + k.name
	}
	return ":" + k.ns + "/" + k.name
}

// KeywordIntern is the process-wide intern table described in spec §3.1:
// "additionally interned into a process-wide set so equality can
// short-circuit to identity; intern table's keys are reference-stable."
// It also implements gc.RootProvider, since live keywords must survive
// collection even if nothing else currently references them lexically.
type KeywordIntern struct {
	mu    sync.Mutex
	heap  *gc.Heap
	table map[[2]string]*keywordObj
}

func NewKeywordIntern(h *gc.Heap) *KeywordIntern {
	ki := &KeywordIntern{heap: h, table: make(map[[2]string]*keywordObj)}
	h.AddRootProvider(ki)
	return ki
}

func (ki *KeywordIntern) Intern(ns, name string) Value {
	key := [2]string{ns, name}
	ki.mu.Lock()
	defer ki.mu.Unlock()
	if k, ok := ki.table[key]; ok {
		return WithHeaped(Keyword, k)
	}
	k := ki.heap.Alloc(&keywordObj{ns: ns, name: name}).(*keywordObj)
	ki.table[key] = k
	return WithHeaped(Keyword, k)
}

// KeywordParts returns the (ns, name) pair backing a Keyword value,
// mirroring SymbolParts.
func KeywordParts(v Value) (ns, name string) {
	k := v.obj.(*keywordObj)
	return k.ns, k.name
}

func (ki *KeywordIntern) Roots(into []gc.Object) []gc.Object {
	ki.mu.Lock()
	defer ki.mu.Unlock()
	for _, k := range ki.table {
		into = append(into, k)
	}
	return into
}

// StructuralHash is used by collections for aggregate values (maps,
// vectors, sets) whose hash must combine arbitrarily many child hashes;
// grounded on mitchellh/hashstructure, per DESIGN.md.
func StructuralHash(parts ...uint64) uint64 {
	h, err := hashstructure.Hash(parts, hashstructure.FormatV2, nil)
	if err != nil {
		// hashstructure over a []uint64 cannot fail; fall back defensively.
		var acc uint64 = 14695981039346656037
		for _, p := range parts {
			acc = (acc ^ p) * 1099511628211
		}
		return acc
	}
	return h
}

func fnv1a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
