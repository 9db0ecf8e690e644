package analyzer

import (
	"fmt"

	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
)

// Analyzer lowers one top-level read form into a typed AST node (spec
// §4.2), resolving symbols against a namespace/environment and expanding
// macros via the environment's dispatch vtable.
type Analyzer struct {
	env      *nsenv.Environment
	ns       *nsenv.Namespace
	threadID nsenv.ThreadID

	gensymSeq uint64
}

// New creates an Analyzer that resolves unqualified symbols against ns.
// threadID identifies the calling thread for macro/var dereference
// (spec §3.2's per-thread binding stacks apply even during analysis,
// since a macro is an ordinary function invoked through the dispatch
// vtable).
func New(env *nsenv.Environment, ns *nsenv.Namespace, threadID nsenv.ThreadID) *Analyzer {
	return &Analyzer{env: env, ns: ns, threadID: threadID}
}

func (a *Analyzer) SetNamespace(ns *nsenv.Namespace) { a.ns = ns }
func (a *Analyzer) Namespace() *nsenv.Namespace      { return a.ns }

// recurTarget records the arity a `recur` at this loop/fn nesting level
// must match, and the frame it rebinds into (spec §4.2: "recur is valid
// only in tail position").
type recurTarget struct {
	arity int
	fr    *frame
}

// ctx threads the lexical scope chain, the current function frame, the
// active recur target, and whether the node being analyzed sits in tail
// position.
type ctx struct {
	sc   *scope
	fr   *frame
	tail bool
	loop *recurTarget
}

func (c ctx) withTail(tail bool) ctx {
	c.tail = tail
	return c
}

func (c ctx) withBinding(sc *scope) ctx {
	c.sc = sc
	return c
}

var noPos = lumenerr.Position{}

// Analyze lowers one top-level form, read from a fresh top-level frame
// (no enclosing locals) in tail position.
func (a *Analyzer) Analyze(form value.Value) (Node, error) {
	node, _, err := a.AnalyzeTopLevel(form)
	return node, err
}

// AnalyzeTopLevel is Analyze plus the top-level frame's final local-slot
// count — the numLocals compiler.CompileTopLevel needs. Callers that
// hand-write source (this package's own tests, internal/compiler's tests)
// hand-count that instead; driving code that analyzes arbitrary forms at
// runtime (internal/stdlib's embedded-source loader, a REPL) cannot, so it
// needs the count handed back rather than guessed.
func (a *Analyzer) AnalyzeTopLevel(form value.Value) (Node, int, error) {
	fr := newFrame(nil)
	node, err := a.analyze(form, ctx{fr: fr, tail: true})
	if err != nil {
		return nil, 0, err
	}
	return node, fr.nextSlot, nil
}

func (a *Analyzer) analyze(form value.Value, c ctx) (Node, error) {
	switch form.Tag() {
	case value.Symbol:
		return a.analyzeSymbol(form, c)
	case value.List:
		if collections.IsEmptySeq(form) {
			return LiteralNode{base: base{noPos, c.tail}, Value: form}, nil
		}
		return a.analyzeList(form, c)
	default:
		return LiteralNode{base: base{noPos, c.tail}, Value: form}, nil
	}
}

func (a *Analyzer) analyzeSymbol(form value.Value, c ctx) (Node, error) {
	ns, name := value.SymbolParts(form)
	if ns == "" {
		if isLocal, idx, ok := resolveLocalOrUpvalue(c.sc, c.fr, name); ok {
			if isLocal {
				return LocalRefNode{base: base{noPos, c.tail}, Name: name, Slot: idx}, nil
			}
			return UpvalRefNode{base: base{noPos, c.tail}, Name: name, Index: idx}, nil
		}
	}
	v, ok := a.env.Resolve(a.ns, ns, name)
	if !ok {
		return nil, lumenerr.Analyze(lumenerr.KindUnboundVar, nil, "unable to resolve symbol: %s", form.String())
	}
	return GlobalRefNode{base: base{noPos, c.tail}, Ns: v.Namespace(), Name: v.Name()}, nil
}

func (a *Analyzer) analyzeList(form value.Value, c ctx) (Node, error) {
	items := collections.ToSlice(form)
	head := items[0]
	if head.Tag() == value.Symbol {
		ns, name := value.SymbolParts(head)
		if ns == "" && !a.isShadowed(name, c) {
			if handler, ok := specialForms[name]; ok {
				return handler(a, items, c)
			}
			if expanded, did, err := a.macroexpand1(form); err != nil {
				return nil, err
			} else if did {
				return a.analyze(expanded, c)
			}
		}
	}
	return a.analyzeInvoke(items, c)
}

// isShadowed reports whether name is bound as a local/upvalue, which
// takes priority over a special-form or macro reading of the same name
// (spec §4.2's ordinary lexical shadowing rule).
func (a *Analyzer) isShadowed(name string, c ctx) bool {
	for s := c.sc; s != nil; s = s.parent {
		if s.name == name {
			return true
		}
	}
	return false
}

func (a *Analyzer) analyzeInvoke(items []value.Value, c ctx) (Node, error) {
	fnNode, err := a.analyze(items[0], c.withTail(false))
	if err != nil {
		return nil, err
	}
	args := make([]Node, 0, len(items)-1)
	for _, it := range items[1:] {
		n, err := a.analyze(it, c.withTail(false))
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	return InvokeNode{base: base{noPos, c.tail}, Fn: fnNode, Args: args}, nil
}

func (a *Analyzer) analyzeBody(forms []value.Value, c ctx) ([]Node, error) {
	out := make([]Node, len(forms))
	for i, f := range forms {
		tail := c.tail && i == len(forms)-1
		n, err := a.analyze(f, c.withTail(tail))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (a *Analyzer) nextGensym(base string) string {
	a.gensymSeq++
	return fmt.Sprintf("%s__%d__auto__", base, a.gensymSeq)
}

func requireSymbol(v value.Value, what string) (string, error) {
	if v.Tag() != value.Symbol {
		return "", lumenerr.Analyze(lumenerr.KindCompile, nil, "%s must be a symbol, got %s", what, v.Tag())
	}
	_, name := value.SymbolParts(v)
	return name, nil
}
