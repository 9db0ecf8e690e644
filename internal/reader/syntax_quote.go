package reader

import (
	"strings"

	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// specialForms lists the symbols syntax-quote leaves namespace-unqualified
// (spec §4.1's gensym/qualification rules apply to ordinary symbols, not
// the special forms the analyzer recognizes by bare name — §4.2 names the
// same set). Kept as a static list here, ahead of internal/analyzer in the
// dependency order (spec §2), rather than importing the analyzer.
var specialForms = map[string]bool{
	"def": true, "fn": true, "fn*": true, "if": true, "let": true, "let*": true,
	"do": true, "loop": true, "loop*": true, "recur": true, "throw": true,
	"try": true, "catch": true, "finally": true, "var": true, "new": true,
	"set!": true, "quote": true, "and": true, "or": true, "ns": true,
	"monitor-enter": true, "monitor-exit": true,
}

// readSyntaxQuote reads the form following a backtick and expands it per
// spec §4.1: "syntax-quote with gensym rules ... unquote ~x splices a
// value; unquote-splicing ~@x splices a seq." The classic algorithm is
// used — emit code (calls to quote/list/concat/vec/set/apply) that, once
// evaluated, reconstructs the template with unquoted pieces substituted —
// rather than eagerly evaluating anything here, since the reader never
// runs the VM (spec §2's dependency order keeps reader below compiler/VM).
func (r *Reader) readSyntaxQuote(pos lumenerr.Position) (value.Value, bool, error) {
	prevEnv := r.gensymEnv
	r.gensymEnv = make(map[string]string)
	defer func() { r.gensymEnv = prevEnv }()

	form, ok, err := r.readForm()
	if err != nil {
		return value.Value{}, false, err
	}
	if !ok {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, pos, "` with no following form")
	}
	expanded, err := r.syntaxQuote(form)
	if err != nil {
		return value.Value{}, false, err
	}
	return expanded, true, nil
}

func (r *Reader) sym(name string) value.Value { return value.NewSymbol(r.heap, "", name) }

func (r *Reader) callForm(head string, args ...value.Value) value.Value {
	items := append([]value.Value{r.sym(head)}, args...)
	return collections.NewList(r.heap, items...)
}

func isUnquote(v value.Value) bool    { return isCallTo(v, "unquote") }
func isUnquoteSplice(v value.Value) bool { return isCallTo(v, "unquote-splicing") }

func isCallTo(v value.Value, head string) bool {
	if v.Tag() != value.List {
		return false
	}
	items := collections.ToSlice(v)
	if len(items) == 0 || items[0].Tag() != value.Symbol {
		return false
	}
	_, name := value.SymbolParts(items[0])
	return name == head
}

// syntaxQuote expands one form at any nesting depth.
func (r *Reader) syntaxQuote(form value.Value) (value.Value, error) {
	switch form.Tag() {
	case value.Symbol:
		ns, name := value.SymbolParts(form)
		if ns == "" && strings.HasSuffix(name, "#") {
			fresh := r.nextGensym(name)
			return r.callForm("quote", r.sym(fresh)), nil
		}
		if ns == "" && !specialForms[name] && r.currentNS() != "" {
			form = value.NewSymbol(r.heap, r.currentNS(), name)
		}
		return r.callForm("quote", form), nil
	case value.List:
		if isUnquote(form) {
			items := collections.ToSlice(form)
			return items[1], nil
		}
		return r.syntaxQuoteSeq(collections.ToSlice(form), "seq")
	case value.Vector:
		return r.syntaxQuoteSeq(collections.ToSlice(form), "vec")
	case value.Set:
		return r.syntaxQuoteSeq(collections.ToSlice(form), "set")
	case value.ArrayMap, value.HashMap:
		var flat []value.Value
		for _, pair := range collections.ToSlice(form) {
			flat = append(flat, collections.First(pair), collections.First(collections.Rest(pair)))
		}
		parts, err := r.syntaxQuoteParts(flat)
		if err != nil {
			return value.Value{}, err
		}
		return r.callForm("apply", r.sym("hash-map"), r.callForm("concat", parts...)), nil
	default:
		// Scalars (nil, bool, int, float, char, string, keyword, regex)
		// are self-evaluating; no quoting needed.
		return form, nil
	}
}

func (r *Reader) syntaxQuoteSeq(items []value.Value, wrapper string) (value.Value, error) {
	parts, err := r.syntaxQuoteParts(items)
	if err != nil {
		return value.Value{}, err
	}
	return r.callForm(wrapper, r.callForm("concat", parts...)), nil
}

// syntaxQuoteParts builds the `concat` operand list: each ordinary
// element becomes `(list expanded)`, each `~@x` becomes `x` directly.
func (r *Reader) syntaxQuoteParts(items []value.Value) ([]value.Value, error) {
	var parts []value.Value
	for _, item := range items {
		if isUnquoteSplice(item) {
			sub := collections.ToSlice(item)
			parts = append(parts, sub[1])
			continue
		}
		expanded, err := r.syntaxQuote(item)
		if err != nil {
			return nil, err
		}
		parts = append(parts, r.callForm("list", expanded))
	}
	return parts, nil
}
