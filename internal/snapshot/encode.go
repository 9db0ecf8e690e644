package snapshot

import (
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
)

// encoder builds a Snapshot's value table, deduplicating identical Values
// into a single table slot: scalar Values compare equal by field value
// already (value.Value's bits/tag), and heap-backed Values compare equal by
// their obj pointer, so a Go map keyed on value.Value gives exactly the
// by-reference sharing the wire format wants without a separate identity
// pass. Persistent collections can't be cyclic, so building children before
// their parent (rather than reserving the parent's slot up front) is safe.
type encoder struct {
	table []wireValue
	index map[value.Value]int
}

func newEncoder() *encoder {
	return &encoder{index: make(map[value.Value]int)}
}

// encodeValue returns v's index in the table, reusing an existing slot when
// v was already encoded. ok is false for a tag this format cannot represent
// (a closure, atom, ref, or anything else backed by live runtime machinery
// rather than plain data); Capture skips the owning var's root entirely
// rather than guessing at a representation spec §6.3 never describes.
func (e *encoder) encodeValue(v value.Value) (int, bool) {
	if idx, ok := e.index[v]; ok {
		return idx, true
	}
	switch v.Tag() {
	case value.Nil:
		return e.put(v, wireValue{Kind: wNil}), true
	case value.Bool:
		return e.put(v, wireValue{Kind: wBool, Bool: v.AsBool()}), true
	case value.Int:
		return e.put(v, wireValue{Kind: wInt, Int: v.AsInt()}), true
	case value.Float:
		return e.put(v, wireValue{Kind: wFloat, Float: v.AsFloat()}), true
	case value.Char:
		return e.put(v, wireValue{Kind: wChar, Char: int32(v.AsChar())}), true
	case value.String:
		return e.put(v, wireValue{Kind: wString, Str: value.StringVal(v)}), true
	case value.Symbol:
		ns, name := value.SymbolParts(v)
		return e.put(v, wireValue{Kind: wSymbol, NS: ns, Name: name}), true
	case value.Keyword:
		ns, name := value.KeywordParts(v)
		return e.put(v, wireValue{Kind: wKeyword, NS: ns, Name: name}), true
	case value.List, value.Vector, value.Set:
		return e.encodeSeqLike(v)
	case value.ArrayMap, value.HashMap:
		return e.encodeMap(v)
	default:
		return 0, false
	}
}

func (e *encoder) encodeSeqLike(v value.Value) (int, bool) {
	items := collections.ToSlice(v)
	children := make([]int, len(items))
	for i, it := range items {
		idx, ok := e.encodeValue(it)
		if !ok {
			return 0, false
		}
		children[i] = idx
	}
	var kind wireTag
	switch v.Tag() {
	case value.List:
		kind = wList
	case value.Vector:
		kind = wVector
	default:
		kind = wSet
	}
	return e.put(v, wireValue{Kind: kind, Children: children}), true
}

// encodeMap relies on collections.ToSlice's documented map-as-seq contract:
// each element is a 2-element vector `[k v]`.
func (e *encoder) encodeMap(v value.Value) (int, bool) {
	pairs := collections.ToSlice(v)
	out := make([]int, 0, len(pairs)*2)
	for _, p := range pairs {
		kv := collections.ToSlice(p)
		ki, ok := e.encodeValue(kv[0])
		if !ok {
			return 0, false
		}
		vi, ok := e.encodeValue(kv[1])
		if !ok {
			return 0, false
		}
		out = append(out, ki, vi)
	}
	kind := wHashMap
	if v.Tag() == value.ArrayMap {
		kind = wArrayMap
	}
	return e.put(v, wireValue{Kind: kind, Pairs: out}), true
}

func (e *encoder) put(v value.Value, wv wireValue) int {
	idx := len(e.table)
	e.table = append(e.table, wv)
	e.index[v] = idx
	return idx
}

// Capture walks env's namespaces and vars into a Snapshot (spec §6.3). A
// var whose root binding or metadata falls outside the portable value
// subset is recorded with no value/meta index rather than failing the
// whole capture — restoring such a var still requires re-running bootstrap
// compilation to repopulate it, which is why a restored environment is a
// starting point, not a substitute for keeping bootstrap sources around.
func Capture(env *nsenv.Environment) *Snapshot {
	enc := newEncoder()
	snap := &Snapshot{FormatVersion: FormatVersion}

	for _, ns := range env.AllNamespaces() {
		snap.Namespaces = append(snap.Namespaces, wireNamespace{
			Name:      ns.Name(),
			Doc:       ns.Doc(),
			Lifecycle: int(ns.Lifecycle()),
			Aliases:   ns.AliasesSnapshot(),
		})

		for _, v := range ns.Publics() {
			wv := wireVar{NS: v.Namespace(), Name: v.Name(), Value: -1, Meta: -1}
			wv.Dynamic = v.IsDynamic()
			wv.Macro = v.IsMacro()
			if v.IsBound() {
				if idx, ok := enc.encodeValue(v.Root()); ok {
					wv.Value = idx
				}
			}
			if meta := v.Meta(); meta.Tag() != value.Nil {
				if idx, ok := enc.encodeValue(meta); ok {
					wv.Meta = idx
				}
			}
			snap.Vars = append(snap.Vars, wv)
		}
	}

	snap.Values = enc.table
	return snap
}
