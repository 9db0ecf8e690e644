// Package value implements the uniform tagged Value described in spec §3.1:
// a closed sum type over 32 variants, small enough to copy, with structural
// equality and a stable hash. Scalar tags (nil, bool, int, float, char) are
// stored inline; every other tag carries a gc.Object payload and the heap
// owns its lifetime (spec §3.1 "Ownership").
package value

import (
	"fmt"
	"math"

	"github.com/lumenlang/lumen/internal/gc"
)

// Tag is the closed, final set of Value variants named in spec §3.1.
type Tag uint8

const (
	Nil Tag = iota
	Bool
	Int
	Float
	Char
	String
	Symbol
	Keyword
	List
	Vector
	ArrayMap
	HashMap
	Set
	Atom
	Ref
	Volatile
	Promise
	LazySeq
	Cons
	TransientVector
	TransientMap
	TransientSet
	Fn
	BuiltinFn
	MultiFn
	Protocol
	ProtocolFn
	VarRef
	Regex
	Reduced
	WasmModule
	WasmFn
)

func (t Tag) String() string {
	names := [...]string{
		"nil", "boolean", "integer", "float", "char", "string", "symbol",
		"keyword", "list", "vector", "array-map", "hash-map", "set", "atom",
		"ref", "volatile", "promise", "lazy-seq", "cons", "transient-vector",
		"transient-map", "transient-set", "fn", "builtin-fn", "multi-fn",
		"protocol", "protocol-fn", "var", "regex", "reduced", "wasm-module",
		"wasm-fn",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// Heaped is implemented by every heap-backed payload: it must participate
// in GC tracing and support the structural equality/hash contract spec
// §3.1 requires of every Value.
type Heaped interface {
	gc.Object
	Equal(other Value) bool
	Hash() uint64
	String() string
}

// Value is the uniform tagged variant. Scalar tags encode their payload in
// bits; every other tag stores its payload in obj, which implements Heaped.
type Value struct {
	tag Tag
	bits uint64
	obj  Heaped
}

func (v Value) Tag() Tag { return v.tag }

// Obj returns the heap payload for heap-backed tags, or nil for scalars.
func (v Value) Obj() Heaped { return v.obj }

var nilValue = Value{tag: Nil}

func Nil_() Value { return nilValue }

func NewBool(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return Value{tag: Bool, bits: bits}
}

func NewInt(i int64) Value { return Value{tag: Int, bits: uint64(i)} }

func NewFloat(f float64) Value { return Value{tag: Float, bits: math.Float64bits(f)} }

func NewChar(r rune) Value { return Value{tag: Char, bits: uint64(r)} }

// AsBool reports the raw boolean payload; callers should normally use
// Truthy instead (spec §3.1's boolean-coercion contract).
func (v Value) AsBool() bool { return v.bits != 0 }

func (v Value) AsInt() int64 { return int64(v.bits) }

func (v Value) AsFloat() float64 { return math.Float64frombits(v.bits) }

func (v Value) AsChar() rune { return rune(v.bits) }

// Truthy implements spec §3.1: nil and false are falsy, everything else is
// truthy.
func (v Value) Truthy() bool {
	switch v.tag {
	case Nil:
		return false
	case Bool:
		return v.AsBool()
	default:
		return true
	}
}

// WithHeaped constructs a Value of the given tag wrapping a heap payload.
// Used by internal/collections, internal/vm and internal/concurrency to
// mint Values for their own heap types without value needing to import
// them (avoids the cycle the dispatch vtable otherwise exists to break).
func WithHeaped(tag Tag, obj Heaped) Value {
	return Value{tag: tag, obj: obj}
}

// Equal implements spec §3.1 structural equality, including numeric
// contagion (an Int and a Float compare equal iff numerically equal).
func Equal(a, b Value) bool {
	switch {
	case a.tag == Int && b.tag == Float:
		return float64(a.AsInt()) == b.AsFloat()
	case a.tag == Float && b.tag == Int:
		return a.AsFloat() == float64(b.AsInt())
	case a.tag != b.tag:
		return false
	}
	switch a.tag {
	case Nil:
		return true
	case Bool, Int, Char:
		return a.bits == b.bits
	case Float:
		return a.AsFloat() == b.AsFloat()
	default:
		if a.obj == nil || b.obj == nil {
			return a.obj == b.obj
		}
		return a.obj.Equal(b)
	}
}

// Hash implements spec §3.1's stable-hash contract: a = b => hash(a) = hash(b).
// Integers and the floats they're numerically equal to share a hash so the
// numeric-contagion equality above stays consistent with hashing.
func Hash(v Value) uint64 {
	const prime = 1099511628211
	switch v.tag {
	case Nil:
		return 0
	case Bool:
		if v.AsBool() {
			return 1
		}
		return 2
	case Int:
		return hashInt64(v.AsInt())
	case Float:
		f := v.AsFloat()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return hashInt64(int64(f))
		}
		return math.Float64bits(f) * prime
	case Char:
		return uint64(v.AsChar())*prime + 7
	default:
		if v.obj == nil {
			return 0
		}
		return v.obj.Hash()
	}
}

func hashInt64(i int64) uint64 {
	u := uint64(i)
	u ^= u >> 33
	u *= 0xff51afd7ed558ccd
	u ^= u >> 33
	u *= 0xc4ceb9fe1a85ec53
	u ^= u >> 33
	return u
}

// String renders a Value the way pr-str would (readable representation for
// scalars; heap tags delegate to their own String()).
func (v Value) String() string {
	switch v.tag {
	case Nil:
		return "nil"
	case Bool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case Int:
		return fmt.Sprintf("%d", v.AsInt())
	case Float:
		return fmt.Sprintf("%g", v.AsFloat())
	case Char:
		return fmt.Sprintf("\\%c", v.AsChar())
	default:
		if v.obj == nil {
			return "#<" + v.tag.String() + ":nil>"
		}
		return v.obj.String()
	}
}

// TraceChildren lets a Value itself satisfy gc.Object when it is stored
// directly as a GC root slot (e.g. a VM operand-stack slot); it simply
// forwards to the heap payload, if any.
func (v Value) TraceChildren(visit func(gc.Object)) {
	if v.obj != nil {
		visit(v.obj)
	}
}
