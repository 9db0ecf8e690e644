package analyzer

import (
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// lowerBindingPattern flattens one let/fn-style binding pattern — a
// plain symbol, a sequential `[a b & rest :as whole]` vector, or an
// associative `{:keys [...] :strs [...] :syms [...] :or {...} :as ...}`
// map — into a run of plain-symbol Bindings sharing fr, the way
// Clojure's own destructure expands into nested nth/next/get calls
// (spec §4.2's destructuring lowering).
func (a *Analyzer) lowerBindingPattern(sc *scope, fr *frame, pattern value.Value, init Node) (*scope, []Binding, error) {
	switch pattern.Tag() {
	case value.Symbol:
		name, err := requireSymbol(pattern, "binding")
		if err != nil {
			return nil, nil, err
		}
		sc, slot := pushLocal(sc, fr, name)
		return sc, []Binding{{Name: name, Slot: slot, Init: init}}, nil
	case value.Vector:
		return a.lowerSequentialPattern(sc, fr, pattern, init)
	case value.ArrayMap, value.HashMap:
		return a.lowerAssociativePattern(sc, fr, pattern, init)
	default:
		return nil, nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "invalid binding pattern: %s", pattern.Tag())
	}
}

func coreCall(name string, args ...Node) Node {
	return InvokeNode{
		base: base{noPos, false},
		Fn:   GlobalRefNode{base: base{noPos, false}, Ns: "lumen.core", Name: name},
		Args: args,
	}
}

func litInt(i int) Node   { return LiteralNode{base: base{noPos, false}, Value: value.NewInt(int64(i))} }
func litNil() Node        { return LiteralNode{base: base{noPos, false}, Value: value.Nil_()} }
func litValue(v value.Value) Node { return LiteralNode{base: base{noPos, false}, Value: v} }

func localRef(sc *scope, fr *frame, name string) Node {
	isLocal, idx, _ := resolveLocalOrUpvalue(sc, fr, name)
	if isLocal {
		return LocalRefNode{base: base{noPos, false}, Name: name, Slot: idx}
	}
	return UpvalRefNode{base: base{noPos, false}, Name: name, Index: idx}
}

func (a *Analyzer) lowerSequentialPattern(sc *scope, fr *frame, pattern value.Value, init Node) (*scope, []Binding, error) {
	tempName := a.nextGensym("vec")
	sc, tempSlot := pushLocal(sc, fr, tempName)
	bindings := []Binding{{Name: tempName, Slot: tempSlot, Init: init}}
	tempRef := func() Node { return localRef(sc, fr, tempName) }

	elems := collections.ToSlice(pattern)
	idx := 0
	for i := 0; i < len(elems); i++ {
		el := elems[i]
		if el.Tag() == value.Symbol {
			if ns, name := value.SymbolParts(el); ns == "" && name == "&" {
				if i+1 >= len(elems) {
					return nil, nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "& in destructuring pattern must be followed by a binding")
				}
				restInit := coreCall("nthrest", tempRef(), litInt(idx))
				var sub []Binding
				var err error
				sc, sub, err = a.lowerBindingPattern(sc, fr, elems[i+1], restInit)
				if err != nil {
					return nil, nil, err
				}
				bindings = append(bindings, sub...)
				i++
				continue
			}
		}
		if el.Tag() == value.Keyword {
			if ns, name := value.KeywordParts(el); ns == "" && name == "as" {
				if i+1 >= len(elems) {
					return nil, nil, lumenerr.Analyze(lumenerr.KindCompile, nil, ":as in destructuring pattern must be followed by a binding symbol")
				}
				aliasName, err := requireSymbol(elems[i+1], ":as binding")
				if err != nil {
					return nil, nil, err
				}
				var slot int
				sc, slot = pushLocal(sc, fr, aliasName)
				bindings = append(bindings, Binding{Name: aliasName, Slot: slot, Init: tempRef()})
				i++
				continue
			}
		}
		elemInit := coreCall("nth", tempRef(), litInt(idx), litNil())
		var sub []Binding
		var err error
		sc, sub, err = a.lowerBindingPattern(sc, fr, el, elemInit)
		if err != nil {
			return nil, nil, err
		}
		bindings = append(bindings, sub...)
		idx++
	}
	return sc, bindings, nil
}

func (a *Analyzer) lowerAssociativePattern(sc *scope, fr *frame, pattern value.Value, init Node) (*scope, []Binding, error) {
	tempName := a.nextGensym("map")
	sc, tempSlot := pushLocal(sc, fr, tempName)
	bindings := []Binding{{Name: tempName, Slot: tempSlot, Init: init}}
	tempRef := func() Node { return localRef(sc, fr, tempName) }

	pairs := collections.ToSlice(pattern)
	defaults := make(map[string]value.Value)
	var asName string
	var keysList, strsList, symsList []value.Value
	var plain []struct{ keySym, keyForm value.Value }

	for _, pair := range pairs {
		kv := collections.ToSlice(pair)
		k, v := kv[0], kv[1]
		if k.Tag() == value.Keyword {
			if ns, name := value.KeywordParts(k); ns == "" {
				switch name {
				case "or":
					for _, dp := range collections.ToSlice(v) {
						dkv := collections.ToSlice(dp)
						dname, err := requireSymbol(dkv[0], ":or binding")
						if err != nil {
							return nil, nil, err
						}
						defaults[dname] = dkv[1]
					}
					continue
				case "as":
					name, err := requireSymbol(v, ":as binding")
					if err != nil {
						return nil, nil, err
					}
					asName = name
					continue
				case "keys":
					keysList = append(keysList, collections.ToSlice(v)...)
					continue
				case "strs":
					strsList = append(strsList, collections.ToSlice(v)...)
					continue
				case "syms":
					symsList = append(symsList, collections.ToSlice(v)...)
					continue
				}
			}
		}
		if k.Tag() == value.Symbol {
			plain = append(plain, struct{ keySym, keyForm value.Value }{k, v})
		}
	}

	bindKV := func(name string, keyNode Node) error {
		var def Node = litNil()
		if dv, ok := defaults[name]; ok {
			n, err := a.analyze(dv, ctx{sc: sc, fr: fr, tail: false})
			if err != nil {
				return err
			}
			def = n
		}
		getCall := coreCall("get", tempRef(), keyNode, def)
		var slot int
		sc, slot = pushLocal(sc, fr, name)
		bindings = append(bindings, Binding{Name: name, Slot: slot, Init: getCall})
		return nil
	}

	for _, sym := range keysList {
		name, err := requireSymbol(sym, ":keys entry")
		if err != nil {
			return nil, nil, err
		}
		if err := bindKV(name, litValue(a.env.Keywords.Intern("", name))); err != nil {
			return nil, nil, err
		}
	}
	for _, sym := range strsList {
		name, err := requireSymbol(sym, ":strs entry")
		if err != nil {
			return nil, nil, err
		}
		if err := bindKV(name, litValue(value.NewString(a.env.Heap, name))); err != nil {
			return nil, nil, err
		}
	}
	for _, sym := range symsList {
		name, err := requireSymbol(sym, ":syms entry")
		if err != nil {
			return nil, nil, err
		}
		if err := bindKV(name, litValue(sym)); err != nil {
			return nil, nil, err
		}
	}
	for _, p := range plain {
		name, err := requireSymbol(p.keySym, "map destructuring entry")
		if err != nil {
			return nil, nil, err
		}
		keyNode, err := a.analyze(p.keyForm, ctx{sc: sc, fr: fr, tail: false})
		if err != nil {
			return nil, nil, err
		}
		if err := bindKV(name, keyNode); err != nil {
			return nil, nil, err
		}
	}
	if asName != "" {
		var slot int
		sc, slot = pushLocal(sc, fr, asName)
		bindings = append(bindings, Binding{Name: asName, Slot: slot, Init: tempRef()})
	}
	return sc, bindings, nil
}
