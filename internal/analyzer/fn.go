package analyzer

import (
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// selfSlot is the reserved frame slot 0 a named fn* (or fn) pre-binds to
// the closure itself in every arity, letting a recursive call resolve as
// an ordinary LocalRefNode instead of needing a forward var reference.
// The VM's call prologue is responsible for writing the closure pointer
// into this slot before copying in the declared parameters.
const selfSlot = 0

// analyzeFnStar analyzes `(fn* name? ([params] body...)+)`, accepting
// both the single-arity shorthand `(fn* name? [params] body...)` and the
// explicit multi-arity list form. Parameters must be plain symbols (an
// optional `&` marks the variadic tail) — destructuring is `fn`'s job.
func analyzeFnStar(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	rest := items[1:]
	selfName := ""
	if len(rest) > 0 && rest[0].Tag() == value.Symbol {
		selfName, _ = value.SymbolParts(rest[0])
		rest = rest[1:]
	}
	arityForms, err := splitArities(rest)
	if err != nil {
		return nil, err
	}
	// One shared frame backs every arity of this fn*: a multi-arity
	// closure is a single fn_val with a single upvalue array (spec §3.3),
	// even though each arity gets its own independently-numbered local
	// slots.
	fr := newFrame(c.fr)
	arities := make([]FnArity, 0, len(arityForms))
	for _, af := range arityForms {
		arity, err := a.analyzeArity(fr, af.params, af.body, selfName, c)
		if err != nil {
			return nil, err
		}
		arities = append(arities, arity)
	}
	return FnNode{base: base{noPos, c.tail}, SelfName: selfName, Arities: arities, Upvalues: fr.upvalues}, nil
}

type arityForm struct {
	params value.Value
	body   []value.Value
}

func splitArities(rest []value.Value) ([]arityForm, error) {
	if len(rest) == 0 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "fn* requires at least one parameter list")
	}
	if rest[0].Tag() == value.Vector {
		return []arityForm{{params: rest[0], body: rest[1:]}}, nil
	}
	var out []arityForm
	for _, form := range rest {
		if form.Tag() != value.List {
			return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "fn* multi-arity clauses must be lists")
		}
		parts := collections.ToSlice(form)
		if len(parts) == 0 || parts[0].Tag() != value.Vector {
			return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "fn* arity clause must start with a parameter vector")
		}
		out = append(out, arityForm{params: parts[0], body: parts[1:]})
	}
	return out, nil
}

func (a *Analyzer) analyzeArity(fr *frame, paramsForm value.Value, body []value.Value, selfName string, c ctx) (FnArity, error) {
	sc := c.sc
	if selfName != "" {
		fr.resetLocals(1) // reserve slot 0
		sc = &scope{parent: sc, frame: fr, name: selfName, slot: selfSlot}
	} else {
		fr.resetLocals(0)
	}
	params := collections.ToSlice(paramsForm)
	variadic := false
	paramCount := 0
	for i := 0; i < len(params); i++ {
		p := params[i]
		if p.Tag() == value.Symbol {
			if ns, name := value.SymbolParts(p); ns == "" && name == "&" {
				variadic = true
				if i+1 >= len(params) {
					return FnArity{}, lumenerr.Analyze(lumenerr.KindCompile, nil, "& in parameter list must be followed by a binding")
				}
				restName, err := requireSymbol(params[i+1], "variadic parameter")
				if err != nil {
					return FnArity{}, err
				}
				sc, _ = pushLocal(sc, fr, restName)
				paramCount++
				break
			}
		}
		name, err := requireSymbol(p, "fn* parameter")
		if err != nil {
			return FnArity{}, err
		}
		sc, _ = pushLocal(sc, fr, name)
		paramCount++
	}
	bodyNodes, err := a.analyzeBody(body, ctx{sc: sc, fr: fr, tail: true, loop: &recurTarget{arity: paramCount, fr: fr}})
	if err != nil {
		return FnArity{}, err
	}
	return FnArity{ParamSlots: paramCount, NumLocals: fr.nextSlot, Variadic: variadic, Body: bodyNodes}, nil
}

// analyzeFnSugar is `fn`, supporting per-parameter destructuring patterns
// by lowering each pattern into a synthetic fn*-level symbol plus a
// prologue of ordinary let*-style bindings sharing the arity's frame.
func analyzeFnSugar(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	rest := items[1:]
	selfName := ""
	if len(rest) > 0 && rest[0].Tag() == value.Symbol {
		selfName, _ = value.SymbolParts(rest[0])
		rest = rest[1:]
	}
	arityForms, err := splitArities(rest)
	if err != nil {
		return nil, err
	}
	fr := newFrame(c.fr)
	arities := make([]FnArity, 0, len(arityForms))
	for _, af := range arityForms {
		arity, err := a.analyzeDestructuredArity(fr, af.params, af.body, selfName, c)
		if err != nil {
			return nil, err
		}
		arities = append(arities, arity)
	}
	return FnNode{base: base{noPos, c.tail}, SelfName: selfName, Arities: arities, Upvalues: fr.upvalues}, nil
}

func (a *Analyzer) analyzeDestructuredArity(fr *frame, paramsForm value.Value, body []value.Value, selfName string, c ctx) (FnArity, error) {
	sc := c.sc
	if selfName != "" {
		fr.resetLocals(1)
		sc = &scope{parent: sc, frame: fr, name: selfName, slot: selfSlot}
	} else {
		fr.resetLocals(0)
	}
	params := collections.ToSlice(paramsForm)
	var prologue []Node
	paramCount := 0
	variadic := false
	for i := 0; i < len(params); i++ {
		p := params[i]
		if p.Tag() == value.Symbol {
			if ns, name := value.SymbolParts(p); ns == "" && name == "&" {
				variadic = true
				if i+1 >= len(params) {
					return FnArity{}, lumenerr.Analyze(lumenerr.KindCompile, nil, "& in parameter list must be followed by a binding")
				}
				var err error
				sc, prologue, err = a.bindParamPattern(sc, fr, params[i+1], prologue)
				if err != nil {
					return FnArity{}, err
				}
				paramCount++
				break
			}
		}
		var err error
		sc, prologue, err = a.bindParamPattern(sc, fr, p, prologue)
		if err != nil {
			return FnArity{}, err
		}
		paramCount++
	}
	bodyNodes, err := a.analyzeBody(body, ctx{sc: sc, fr: fr, tail: true, loop: &recurTarget{arity: paramCount, fr: fr}})
	if err != nil {
		return FnArity{}, err
	}
	full := append(prologue, bodyNodes...)
	return FnArity{ParamSlots: paramCount, NumLocals: fr.nextSlot, Variadic: variadic, Body: full}, nil
}

// bindParamPattern binds one fn parameter position. A plain symbol
// allocates its own slot directly (no prologue needed); a destructuring
// pattern allocates a hidden slot for the actual argument and appends
// LetNode-equivalent bindings (as a single LetNode) to the prologue.
func (a *Analyzer) bindParamPattern(sc *scope, fr *frame, pattern value.Value, prologue []Node) (*scope, []Node, error) {
	if pattern.Tag() == value.Symbol {
		name, err := requireSymbol(pattern, "fn parameter")
		if err != nil {
			return nil, nil, err
		}
		sc, _ = pushLocal(sc, fr, name)
		return sc, prologue, nil
	}
	argName := a.nextGensym("p")
	sc, slot := pushLocal(sc, fr, argName)
	argRef := LocalRefNode{base: base{noPos, false}, Name: argName, Slot: slot}
	newSc, bindings, err := a.lowerBindingPattern(sc, fr, pattern, argRef)
	if err != nil {
		return nil, nil, err
	}
	if len(bindings) > 0 {
		prologue = append(prologue, LetNode{base: base{noPos, false}, Bindings: bindings, Body: nil})
	}
	return newSc, prologue, nil
}

// analyzeDefn is `(defn name [params] body...)` / `(defn name ([p] b)...)`,
// desugared directly to `(def name (fn name [params] body...))`.
func analyzeDefn(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 3 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "defn requires a name and at least one parameter list")
	}
	name, err := requireSymbol(items[1], "defn's name")
	if err != nil {
		return nil, err
	}
	fnNode, err := analyzeFnSugar(a, items, c.withTail(false))
	if err != nil {
		return nil, err
	}
	a.ns.Intern(name)
	return DefNode{base: base{noPos, c.tail}, Name: name, Init: fnNode}, nil
}
