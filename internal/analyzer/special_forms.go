package analyzer

import (
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// specialFormHandler analyzes the argument forms of a special-form call
// (items[0] is the form's own head symbol, included for error messages).
type specialFormHandler func(a *Analyzer, items []value.Value, c ctx) (Node, error)

// specialForms is consulted by analyzeList before macro expansion, per
// spec §4.2's distinction between special forms and ordinary/macro
// calls. The `*`-suffixed members (let*, loop*, fn*, case*, deftype*,
// reify*) are the low-level forms the compiler actually lowers;
// `let`/`loop`/`fn`/`defn` are destructuring sugar analyzed directly here
// rather than bootstrapped as stdlib macros (see DESIGN.md).
var specialForms = map[string]specialFormHandler{
	"def":           analyzeDef,
	"if":            analyzeIf,
	"do":            analyzeDo,
	"let*":          analyzeLetStar,
	"let":           analyzeLetSugar,
	"loop*":         analyzeLoopStar,
	"loop":          analyzeLoopSugar,
	"recur":         analyzeRecur,
	"fn*":           analyzeFnStar,
	"fn":            analyzeFnSugar,
	"defn":          analyzeDefn,
	"quote":         analyzeQuote,
	"var":           analyzeVar,
	"throw":         analyzeThrow,
	"try":           analyzeTry,
	"new":           analyzeNew,
	".":             analyzeDot,
	"set!":          analyzeSetBang,
	"case*":         analyzeCase,
	"deftype*":      analyzeDeftype,
	"reify*":        analyzeReify,
	"monitor-enter": analyzeMonitorEnter,
	"monitor-exit":  analyzeMonitorExit,
}

func analyzeDef(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 2 || len(items) > 3 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "def requires a symbol and an optional init form")
	}
	name, err := requireSymbol(items[1], "def's first argument")
	if err != nil {
		return nil, err
	}
	var init Node
	if len(items) == 3 {
		init, err = a.analyze(items[2], c.withTail(false))
		if err != nil {
			return nil, err
		}
	}
	a.ns.Intern(name)
	return DefNode{base: base{noPos, c.tail}, Name: name, Init: init}, nil
}

func analyzeIf(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 3 || len(items) > 4 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "if requires a test, a then branch, and an optional else branch")
	}
	test, err := a.analyze(items[1], c.withTail(false))
	if err != nil {
		return nil, err
	}
	then, err := a.analyze(items[2], c)
	if err != nil {
		return nil, err
	}
	var els Node
	if len(items) == 4 {
		els, err = a.analyze(items[3], c)
		if err != nil {
			return nil, err
		}
	} else {
		els = LiteralNode{base: base{noPos, c.tail}, Value: value.Nil_()}
	}
	return IfNode{base: base{noPos, c.tail}, Test: test, Then: then, Else: els}, nil
}

func analyzeDo(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	body, err := a.analyzeBody(items[1:], c)
	if err != nil {
		return nil, err
	}
	return DoNode{base: base{noPos, c.tail}, Body: body}, nil
}

// analyzeLetStar analyzes `(let* [sym init sym init ...] body...)`: every
// binding name must be a plain symbol (spec §4.2's low-level form).
func analyzeLetStar(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "let* requires a binding vector")
	}
	pairs := collections.ToSlice(items[1])
	if len(pairs)%2 != 0 {
		return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "let* binding vector must have an even number of forms")
	}
	var bindings []Binding
	sc := c.sc
	for i := 0; i < len(pairs); i += 2 {
		name, err := requireSymbol(pairs[i], "let* binding")
		if err != nil {
			return nil, err
		}
		init, err := a.analyze(pairs[i+1], ctx{sc: sc, fr: c.fr, tail: false})
		if err != nil {
			return nil, err
		}
		var slot int
		sc, slot = pushLocal(sc, c.fr, name)
		bindings = append(bindings, Binding{Name: name, Slot: slot, Init: init})
	}
	body, err := a.analyzeBody(items[2:], ctx{sc: sc, fr: c.fr, tail: c.tail, loop: c.loop})
	if err != nil {
		return nil, err
	}
	return LetNode{base: base{noPos, c.tail}, Bindings: bindings, Body: body}, nil
}

// analyzeLetSugar is `let`, supporting destructuring binding patterns;
// it lowers to the same LetNode shape as let* by flattening each pattern
// into one or more plain-symbol bindings (see destructure.go).
func analyzeLetSugar(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "let requires a binding vector")
	}
	pairs := collections.ToSlice(items[1])
	if len(pairs)%2 != 0 {
		return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "let binding vector must have an even number of forms")
	}
	var bindings []Binding
	sc := c.sc
	for i := 0; i < len(pairs); i += 2 {
		pattern, initForm := pairs[i], pairs[i+1]
		init, err := a.analyze(initForm, ctx{sc: sc, fr: c.fr, tail: false})
		if err != nil {
			return nil, err
		}
		var lowered []Binding
		sc, lowered, err = a.lowerBindingPattern(sc, c.fr, pattern, init)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, lowered...)
	}
	body, err := a.analyzeBody(items[2:], ctx{sc: sc, fr: c.fr, tail: c.tail, loop: c.loop})
	if err != nil {
		return nil, err
	}
	return LetNode{base: base{noPos, c.tail}, Bindings: bindings, Body: body}, nil
}

func analyzeLoopStar(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "loop* requires a binding vector")
	}
	pairs := collections.ToSlice(items[1])
	if len(pairs)%2 != 0 {
		return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "loop* binding vector must have an even number of forms")
	}
	var bindings []Binding
	sc := c.sc
	for i := 0; i < len(pairs); i += 2 {
		name, err := requireSymbol(pairs[i], "loop* binding")
		if err != nil {
			return nil, err
		}
		init, err := a.analyze(pairs[i+1], ctx{sc: sc, fr: c.fr, tail: false})
		if err != nil {
			return nil, err
		}
		var slot int
		sc, slot = pushLocal(sc, c.fr, name)
		bindings = append(bindings, Binding{Name: name, Slot: slot, Init: init})
	}
	loop := &recurTarget{arity: len(bindings), fr: c.fr}
	body, err := a.analyzeBody(items[2:], ctx{sc: sc, fr: c.fr, tail: true, loop: loop})
	if err != nil {
		return nil, err
	}
	return LoopNode{base: base{noPos, c.tail}, Bindings: bindings, Body: body}, nil
}

func analyzeLoopSugar(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "loop requires a binding vector")
	}
	pairs := collections.ToSlice(items[1])
	if len(pairs)%2 != 0 {
		return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "loop binding vector must have an even number of forms")
	}
	var bindings []Binding
	sc := c.sc
	for i := 0; i < len(pairs); i += 2 {
		pattern, initForm := pairs[i], pairs[i+1]
		init, err := a.analyze(initForm, ctx{sc: sc, fr: c.fr, tail: false})
		if err != nil {
			return nil, err
		}
		var lowered []Binding
		sc, lowered, err = a.lowerBindingPattern(sc, c.fr, pattern, init)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, lowered...)
	}
	loop := &recurTarget{arity: len(bindings), fr: c.fr}
	body, err := a.analyzeBody(items[2:], ctx{sc: sc, fr: c.fr, tail: true, loop: loop})
	if err != nil {
		return nil, err
	}
	return LoopNode{base: base{noPos, c.tail}, Bindings: bindings, Body: body}, nil
}

// analyzeRecur validates tail position and arity against the active
// recur target, then analyzes its argument expressions in the *outer*
// frame (recur's arguments are ordinary expressions, not new bindings).
func analyzeRecur(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if !c.tail {
		return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "recur must be in tail position")
	}
	if c.loop == nil {
		return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, "recur used outside a loop* or fn*")
	}
	args := items[1:]
	if len(args) != c.loop.arity {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "recur expects %d argument(s), got %d", c.loop.arity, len(args))
	}
	nodes, err := a.analyzeBody(args, c.withTail(false))
	if err != nil {
		return nil, err
	}
	return RecurNode{base: base{noPos, c.tail}, Args: nodes}, nil
}

func analyzeQuote(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) != 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "quote requires exactly one form")
	}
	return QuoteNode{base: base{noPos, c.tail}, Value: items[1]}, nil
}

func analyzeVar(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) != 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "var requires exactly one symbol")
	}
	ns, name := value.SymbolParts(items[1])
	v, ok := a.env.Resolve(a.ns, ns, name)
	if !ok {
		return nil, lumenerr.Analyze(lumenerr.KindUnboundVar, nil, "unable to resolve var: %s", items[1].String())
	}
	return VarNode{base: base{noPos, c.tail}, Ns: v.Namespace(), Name: v.Name()}, nil
}

func analyzeThrow(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) != 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "throw requires exactly one form")
	}
	expr, err := a.analyze(items[1], c.withTail(false))
	if err != nil {
		return nil, err
	}
	return ThrowNode{base: base{noPos, c.tail}, Expr: expr}, nil
}

// analyzeTry analyzes `(try body... (catch ClassName sym body...)* (finally body...)?)`.
func analyzeTry(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	var bodyForms []value.Value
	var catches []CatchClause
	var finallyForms []value.Value
	i := 1
	for ; i < len(items); i++ {
		if isClauseHeaded(items[i], "catch") || isClauseHeaded(items[i], "finally") {
			break
		}
		bodyForms = append(bodyForms, items[i])
	}
	for ; i < len(items); i++ {
		clause := collections.ToSlice(items[i])
		head, _ := value.SymbolParts(clause[0])
		if head == "catch" {
			if len(clause) < 3 {
				return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "catch requires a class symbol, a binding symbol, and a body")
			}
			className, err := requireSymbol(clause[1], "catch's class")
			if err != nil {
				return nil, err
			}
			bindName, err := requireSymbol(clause[2], "catch's binding")
			if err != nil {
				return nil, err
			}
			sc, slot := pushLocal(c.sc, c.fr, bindName)
			body, err := a.analyzeBody(clause[3:], ctx{sc: sc, fr: c.fr, tail: c.tail, loop: c.loop})
			if err != nil {
				return nil, err
			}
			catches = append(catches, CatchClause{ClassName: className, BindSlot: slot, Body: body})
			continue
		}
		finallyForms = clause[1:]
	}
	body, err := a.analyzeBody(bodyForms, c.withTail(false))
	if err != nil {
		return nil, err
	}
	finally, err := a.analyzeBody(finallyForms, c.withTail(false))
	if err != nil {
		return nil, err
	}
	return TryNode{base: base{noPos, c.tail}, Body: body, Catches: catches, Finally: finally}, nil
}

func isClauseHeaded(form value.Value, head string) bool {
	if form.Tag() != value.List || collections.IsEmptySeq(form) {
		return false
	}
	first := collections.First(form)
	if first.Tag() != value.Symbol {
		return false
	}
	_, name := value.SymbolParts(first)
	return name == head
}

func analyzeNew(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "new requires a class symbol")
	}
	className, err := requireSymbol(items[1], "new's class")
	if err != nil {
		return nil, err
	}
	args, err := a.analyzeBody(items[2:], c.withTail(false))
	if err != nil {
		return nil, err
	}
	return NewNode{base: base{noPos, c.tail}, ClassName: className, Args: args}, nil
}

// analyzeDot handles `(. target member args...)` and the shorthand
// `(.member target args...)` produced by the reader's symbol splitting
// (spec §5's interop surface; the actual rewrite-table lookup happens in
// the compiler, which alone knows the host class registry).
func analyzeDot(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 3 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, ". requires a target and a member")
	}
	target, err := a.analyze(items[1], c.withTail(false))
	if err != nil {
		return nil, err
	}
	memberForm := items[2]
	var member string
	var extraArgs []value.Value
	switch memberForm.Tag() {
	case value.Symbol:
		_, member = value.SymbolParts(memberForm)
		extraArgs = items[3:]
	case value.List:
		parts := collections.ToSlice(memberForm)
		if len(parts) == 0 || parts[0].Tag() != value.Symbol {
			return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, ". member form must start with a symbol")
		}
		_, member = value.SymbolParts(parts[0])
		extraArgs = parts[1:]
	default:
		return nil, lumenerr.Analyze(lumenerr.KindCompile, nil, ". requires a symbol or call-shaped member")
	}
	args, err := a.analyzeBody(extraArgs, c.withTail(false))
	if err != nil {
		return nil, err
	}
	hint := ""
	if items[1].Tag() == value.Symbol {
		_, hint = value.SymbolParts(items[1])
	}
	return DotNode{base: base{noPos, c.tail}, Target: target, Member: member, Args: args, StaticHint: hint}, nil
}

func analyzeSetBang(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) != 3 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "set! requires a target and a value")
	}
	target, err := a.analyze(items[1], c.withTail(false))
	if err != nil {
		return nil, err
	}
	val, err := a.analyze(items[2], c.withTail(false))
	if err != nil {
		return nil, err
	}
	return SetBangNode{base: base{noPos, c.tail}, Target: target, Value: val}, nil
}

// analyzeCase analyzes `(case* expr (test-or-[tests] body)* default)`.
func analyzeCase(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 3 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "case* requires an expression, at least one clause, and a default")
	}
	expr, err := a.analyze(items[1], c.withTail(false))
	if err != nil {
		return nil, err
	}
	rest := items[2:]
	defaultForm := rest[len(rest)-1]
	clauseForms := rest[:len(rest)-1]
	var clauses []CaseClause
	for i := 0; i+1 < len(clauseForms); i += 2 {
		var tests []any
		if clauseForms[i].Tag() == value.Vector {
			for _, t := range collections.ToSlice(clauseForms[i]) {
				tests = append(tests, t)
			}
		} else {
			tests = append(tests, clauseForms[i])
		}
		body, err := a.analyze(clauseForms[i+1], c)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, CaseClause{Tests: tests, Body: body})
	}
	def, err := a.analyze(defaultForm, c)
	if err != nil {
		return nil, err
	}
	return CaseNode{base: base{noPos, c.tail}, Expr: expr, Clauses: clauses, Default: def}, nil
}

// analyzeDeftype handles `(deftype* Name [field...])`, lowered to the
// spec's "record type as a map-construction with a type key" design
// (spec §4.2): the result is a def of a constructor function that builds
// an array-map tagged with a `:__reify_type` key.
func analyzeDeftype(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 3 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "deftype* requires a name and a field vector")
	}
	name, err := requireSymbol(items[1], "deftype*'s name")
	if err != nil {
		return nil, err
	}
	fields := collections.ToSlice(items[2])
	sc := c.sc
	fr := newFrame(c.fr)
	var paramNames []string
	for _, f := range fields {
		fname, err := requireSymbol(f, "deftype* field")
		if err != nil {
			return nil, err
		}
		paramNames = append(paramNames, fname)
		sc, _ = pushLocal(sc, fr, fname)
	}
	ctorBody, err := a.buildRecordConstructorBody(name, paramNames, ctx{sc: sc, fr: fr, tail: true})
	if err != nil {
		return nil, err
	}
	fnNode := FnNode{
		base:     base{noPos, false},
		SelfName: "",
		Arities:  []FnArity{{ParamSlots: len(paramNames), NumLocals: fr.nextSlot, Variadic: false, Body: []Node{ctorBody}}},
		Upvalues: fr.upvalues,
	}
	a.ns.Intern(name)
	return DefNode{base: base{noPos, c.tail}, Name: name, Init: fnNode}, nil
}

// analyzeReify handles `(reify* [field...] Protocol (method [params] body)...)`:
// each method clause becomes a closure that closes over the field locals,
// and the result is a DoNode of those closures (not a def). No tagged map
// is built and no protocol is extended here.
func analyzeReify(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	if len(items) < 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "reify* requires a field vector")
	}
	fields := collections.ToSlice(items[1])
	sc := c.sc
	for _, f := range fields {
		fname, err := requireSymbol(f, "reify* field")
		if err != nil {
			return nil, err
		}
		sc, _ = pushLocal(sc, c.fr, fname)
	}
	// Remaining forms are protocol/interface name markers and method
	// bodies. Each method body is analyzed in a frame nested under the
	// field scope so it closes over the fields as upvalues; building the
	// resulting methods into a protocol-fn-dispatchable map is the VM
	// bootstrap's job (it alone owns the protocol registry reached through
	// the dispatch vtable), so here we only produce the closures.
	var methods []Node
	for _, form := range items[2:] {
		if form.Tag() == value.Symbol {
			continue
		}
		clause := collections.ToSlice(form)
		if len(clause) < 2 {
			continue
		}
		methodFr := newFrame(c.fr)
		methodSc := sc
		params := collections.ToSlice(clause[1])
		for _, p := range params {
			pname, err := requireSymbol(p, "reify* method parameter")
			if err != nil {
				return nil, err
			}
			methodSc, _ = pushLocal(methodSc, methodFr, pname)
		}
		body, err := a.analyzeBody(clause[2:], ctx{sc: methodSc, fr: methodFr, tail: true})
		if err != nil {
			return nil, err
		}
		methods = append(methods, FnNode{
			base:     base{noPos, false},
			Arities:  []FnArity{{ParamSlots: len(params), NumLocals: methodFr.nextSlot, Body: body}},
			Upvalues: methodFr.upvalues,
		})
	}
	return DoNode{base: base{noPos, c.tail}, Body: methods}, nil
}

func analyzeMonitorEnter(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	return monitorNode(a, items, c, true)
}

func analyzeMonitorExit(a *Analyzer, items []value.Value, c ctx) (Node, error) {
	return monitorNode(a, items, c, false)
}

func monitorNode(a *Analyzer, items []value.Value, c ctx, enter bool) (Node, error) {
	if len(items) != 2 {
		return nil, lumenerr.Analyze(lumenerr.KindArity, nil, "monitor-enter/monitor-exit requires exactly one expression")
	}
	expr, err := a.analyze(items[1], c.withTail(false))
	if err != nil {
		return nil, err
	}
	return MonitorNode{base: base{noPos, c.tail}, Enter: enter, Expr: expr}, nil
}
