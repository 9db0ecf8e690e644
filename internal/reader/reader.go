package reader

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// Reader drives the lexer to build nested Values, per spec §4.1. One
// Reader is created per source stream (a file, a REPL line, a string
// passed to `read-string`).
type Reader struct {
	lx       *lexer
	heap     *gc.Heap
	keywords *value.KeywordIntern
	meta     *MetaTable
	tags     *TagTable

	// CurrentNS resolves `::k` auto-resolved keywords and `::alias/k` to
	// the reader's notion of "the namespace currently being read"; the
	// analyzer's `in-ns`/`ns` handling keeps this current as forms stream
	// by. ResolveAlias looks up a short alias against that namespace.
	CurrentNS     func() string
	ResolveAlias  func(ns, short string) (string, bool)
	CondFeatures  map[string]bool // active reader-conditional features, e.g. {"lumen": true}

	gensymSeq  *uint64
	gensymEnv  map[string]string // sym# -> fresh symbol text, reset per syntax-quote template
}

// New constructs a Reader over src. file is used only for error positions.
func New(src, file string, heap *gc.Heap, keywords *value.KeywordIntern, meta *MetaTable, tags *TagTable) *Reader {
	var seq uint64
	return &Reader{
		lx:           newLexer(src, file),
		heap:         heap,
		keywords:     keywords,
		meta:         meta,
		tags:         tags,
		CondFeatures: map[string]bool{"lumen": true, "default": true},
		gensymSeq:    &seq,
	}
}

// Read returns the next top-level form, io.EOF once the stream is
// exhausted, or a *lumenerr.Error for malformed input.
func (r *Reader) Read() (value.Value, error) {
	for {
		v, ok, err := r.readForm()
		if err != nil {
			return value.Value{}, err
		}
		if !ok {
			if _, eof := r.peekEOF(); eof {
				return value.Value{}, io.EOF
			}
			continue // a form that produced nothing (#_, unmatched #?, #?@ with no branches)
		}
		return v, nil
	}
}

func (r *Reader) peekEOF() (token, bool) {
	save := *r.lx
	tok, err := r.lx.next()
	*r.lx = save
	return tok, err == nil && tok.kind == tokEOF
}

// ReadAll reads every remaining top-level form.
func (r *Reader) ReadAll() ([]value.Value, error) {
	var out []value.Value
	for {
		v, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// readForm reads one form, returning ok=false for constructs that
// deliberately produce no Value (#_discard, a reader-conditional with no
// matching branch).
func (r *Reader) readForm() (value.Value, bool, error) {
	tok, err := r.lx.next()
	if err != nil {
		return value.Value{}, false, err
	}
	return r.readFromToken(tok)
}

func (r *Reader) readFromToken(tok token) (value.Value, bool, error) {
	switch tok.kind {
	case tokEOF:
		return value.Value{}, false, io.EOF
	case tokLParen:
		return r.readListLike(tokRParen, "(", func(items []value.Value) value.Value {
			return collections.NewList(r.heap, items...)
		})
	case tokLBracket:
		return r.readListLike(tokRBracket, "[", func(items []value.Value) value.Value {
			return collections.NewVector(r.heap, items...)
		})
	case tokLBrace:
		return r.readMap(tok.pos)
	case tokSetOpen:
		return r.readListLike(tokRBrace, "#{", func(items []value.Value) value.Value {
			return collections.NewSet(r.heap, items...)
		})
	case tokRParen, tokRBracket, tokRBrace:
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, tok.pos, "unmatched closer")
	case tokQuote:
		return r.wrapSpecial("quote", tok.pos)
	case tokSyntaxQuote:
		return r.readSyntaxQuote(tok.pos)
	case tokUnquote:
		return r.wrapSpecial("unquote", tok.pos)
	case tokUnquoteSplice:
		return r.wrapSpecial("unquote-splicing", tok.pos)
	case tokDeref:
		return r.wrapSpecial("deref", tok.pos)
	case tokVarQuote:
		return r.wrapSpecial("var", tok.pos)
	case tokMeta:
		return r.readMetaForm(tok.pos)
	case tokDiscard:
		if _, _, err := r.readForm(); err != nil {
			return value.Value{}, false, err
		}
		return value.Value{}, false, nil
	case tokCond:
		return r.readReaderConditional(tok.pos, false)
	case tokCondSplice:
		return r.readReaderConditional(tok.pos, true)
	case tokEval:
		// #= (eval): read and return the form unevaluated; the analyzer
		// is the only component permitted to invoke the VM, per the
		// dependency order in spec §2, so the reader cannot eagerly
		// evaluate here.
		return r.readForm()
	case tokFnLit:
		return r.readFnLiteral(tok.pos)
	case tokTaggedLit:
		return r.readTaggedLiteral(tok)
	case tokRegex:
		v, err := value.NewRegex(r.heap, tok.text)
		if err != nil {
			return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, tok.pos, "malformed regex: %v", err)
		}
		return v, true, nil
	case tokString:
		return value.NewString(r.heap, tok.text), true, nil
	case tokChar:
		rs := []rune(tok.text)
		return value.NewChar(rs[0]), true, nil
	case tokNumber:
		v, err := r.parseNumber(tok)
		if err != nil {
			return value.Value{}, false, err
		}
		return v, true, nil
	case tokKeyword:
		return r.readKeyword(tok)
	case tokSymbol:
		return r.readSymbolToken(tok)
	}
	return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, tok.pos, "unrecognized token")
}

func (r *Reader) wrapSpecial(head string, pos lumenerr.Position) (value.Value, bool, error) {
	form, ok, err := r.readForm()
	if err != nil {
		return value.Value{}, false, err
	}
	if !ok {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, pos, "%s with no following form", head)
	}
	sym := value.NewSymbol(r.heap, "", head)
	return collections.NewList(r.heap, sym, form), true, nil
}

func (r *Reader) readListLike(closer tokenKind, openDesc string, build func([]value.Value) value.Value) (value.Value, bool, error) {
	var items []value.Value
	for {
		tok, err := r.lx.next()
		if err != nil {
			return value.Value{}, false, err
		}
		if tok.kind == tokEOF {
			return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, tok.pos, "EOF inside %s...", openDesc)
		}
		if tok.kind == closer {
			return build(items), true, nil
		}
		v, ok, err := r.readFromToken(tok)
		if err != nil {
			return value.Value{}, false, err
		}
		if ok {
			items = append(items, v)
		}
	}
}

func (r *Reader) readMap(pos lumenerr.Position) (value.Value, bool, error) {
	var items []value.Value
	for {
		tok, err := r.lx.next()
		if err != nil {
			return value.Value{}, false, err
		}
		if tok.kind == tokEOF {
			return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, tok.pos, "EOF inside {...}")
		}
		if tok.kind == tokRBrace {
			break
		}
		v, ok, err := r.readFromToken(tok)
		if err != nil {
			return value.Value{}, false, err
		}
		if ok {
			items = append(items, v)
		}
	}
	if len(items)%2 != 0 {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, pos, "map literal requires an even number of forms")
	}
	return collections.NewArrayMap(r.heap, items...), true, nil
}

func (r *Reader) readMetaForm(pos lumenerr.Position) (value.Value, bool, error) {
	metaForm, ok, err := r.readForm()
	if err != nil {
		return value.Value{}, false, err
	}
	if !ok {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, pos, "^ with no metadata form")
	}
	target, ok, err := r.readForm()
	if err != nil {
		return value.Value{}, false, err
	}
	if !ok {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, pos, "^meta with no following form")
	}
	meta := r.normalizeMeta(metaForm)
	return r.meta.Set(r.heap, target, meta), true, nil
}

// normalizeMeta implements spec §4.1's ^meta shorthand rules: a keyword
// becomes `{meta true}`; a symbol or string becomes `{:tag meta}`;
// anything else is used as-is (expected to already be map-shaped).
func (r *Reader) normalizeMeta(form value.Value) value.Value {
	switch form.Tag() {
	case value.Keyword:
		return collections.NewArrayMap(r.heap, form, value.NewBool(true))
	case value.Symbol, value.String:
		tagKw := r.keywords.Intern("", "tag")
		return collections.NewArrayMap(r.heap, tagKw, form)
	default:
		return form
	}
}

func (r *Reader) readReaderConditional(pos lumenerr.Position, splice bool) (value.Value, bool, error) {
	tok, err := r.lx.next()
	if err != nil {
		return value.Value{}, false, err
	}
	if tok.kind != tokLParen {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, pos, "#?%s requires a list of feature/form pairs", condMarker(splice))
	}
	var selected value.Value
	matched := false
	for {
		t, err := r.lx.next()
		if err != nil {
			return value.Value{}, false, err
		}
		if t.kind == tokRParen {
			break
		}
		featTok := t
		if featTok.kind != tokKeyword {
			return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, t.pos, "#?%s expects a feature keyword", condMarker(splice))
		}
		form, ok, err := r.readForm()
		if err != nil {
			return value.Value{}, false, err
		}
		if !ok {
			continue
		}
		if !matched && (r.CondFeatures[featTok.text] || featTok.text == "default") {
			selected = form
			matched = true
		}
	}
	if !matched {
		return value.Value{}, false, nil
	}
	if !splice {
		return selected, true, nil
	}
	// #?@ returns the matched branch as one form. readListLike and readMap
	// add it as a single element; its items are not spliced into the
	// enclosing collection. Top-level #?@ (not inside a collection) yields
	// its branch value.
	return selected, true, nil
}

func condMarker(splice bool) string {
	if splice {
		return "@"
	}
	return ""
}

func (r *Reader) readFnLiteral(pos lumenerr.Position) (value.Value, bool, error) {
	body, ok, err := r.readListLike(tokRParen, "#(", func(items []value.Value) value.Value {
		return collections.NewList(r.heap, items...)
	})
	if err != nil {
		return value.Value{}, false, err
	}
	if !ok {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, pos, "malformed #() literal")
	}
	maxArg, variadic := scanImplicitParams(collections.ToSlice(body))
	params := make([]value.Value, 0, maxArg)
	for i := 1; i <= maxArg; i++ {
		params = append(params, value.NewSymbol(r.heap, "", fmt.Sprintf("%%%d", i)))
	}
	if variadic {
		params = append(params, value.NewSymbol(r.heap, "", "&"), value.NewSymbol(r.heap, "", "%&"))
	}
	paramVec := collections.NewVector(r.heap, params...)
	fnSym := value.NewSymbol(r.heap, "", "fn*")
	return collections.NewList(r.heap, fnSym, paramVec, body), true, nil
}

func scanImplicitParams(forms []value.Value) (maxArg int, variadic bool) {
	for _, f := range forms {
		switch f.Tag() {
		case value.Symbol:
			_, name := value.SymbolParts(f)
			if name == "%" {
				if maxArg < 1 {
					maxArg = 1
				}
			} else if name == "%&" {
				variadic = true
			} else if strings.HasPrefix(name, "%") {
				if n, err := strconv.Atoi(name[1:]); err == nil && n > maxArg {
					maxArg = n
				}
			}
		case value.List, value.Vector:
			sub := collections.ToSlice(f)
			m, v := scanImplicitParams(sub)
			if m > maxArg {
				maxArg = m
			}
			variadic = variadic || v
		}
	}
	return maxArg, variadic
}

func (r *Reader) readTaggedLiteral(tok token) (value.Value, bool, error) {
	form, ok, err := r.readForm()
	if err != nil {
		return value.Value{}, false, err
	}
	if !ok {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, tok.pos, "#%s with no following form", tok.text)
	}
	ctor, ok := r.tags.lookup(tok.text)
	if !ok {
		return value.Value{}, false, lumenerr.Reader(lumenerr.KindReader, tok.pos, "no reader function registered for tag #%s", tok.text)
	}
	v, err := ctor(r.heap, form)
	if err != nil {
		return value.Value{}, false, err
	}
	return v, true, nil
}

func (r *Reader) readKeyword(tok token) (value.Value, bool, error) {
	text := tok.text
	auto := strings.HasPrefix(text, ":")
	if auto {
		text = text[1:]
	}
	ns, name := splitNsName(text)
	if auto {
		if ns != "" {
			if r.ResolveAlias != nil {
				if full, ok := r.ResolveAlias(r.currentNS(), ns); ok {
					ns = full
				}
			}
		} else {
			ns = r.currentNS()
		}
	}
	return r.keywords.Intern(ns, name), true, nil
}

func (r *Reader) currentNS() string {
	if r.CurrentNS != nil {
		return r.CurrentNS()
	}
	return ""
}

func (r *Reader) readSymbolToken(tok token) (value.Value, bool, error) {
	switch tok.text {
	case "nil":
		return value.Nil_(), true, nil
	case "true":
		return value.NewBool(true), true, nil
	case "false":
		return value.NewBool(false), true, nil
	}
	ns, name := splitNsName(tok.text)
	return value.NewSymbol(r.heap, ns, name), true, nil
}

func splitNsName(text string) (ns, name string) {
	if i := strings.LastIndexByte(text, '/'); i > 0 && i < len(text)-1 {
		return text[:i], text[i+1:]
	}
	return "", text
}

func (r *Reader) parseNumber(tok token) (value.Value, error) {
	text := tok.text
	if strings.ContainsAny(text, ".eE") && !strings.Contains(text, "/") {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return value.NewFloat(f), nil
		}
	}
	// radix literal: <radix>r<digits>, e.g. 2r1010, 16rFF
	if idx := strings.IndexByte(text, 'r'); idx > 0 {
		base, err1 := strconv.Atoi(text[:idx])
		if err1 == nil {
			if i, err2 := strconv.ParseInt(text[idx+1:], base, 64); err2 == nil {
				return value.NewInt(i), nil
			}
		}
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return value.NewInt(i), nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return value.NewFloat(f), nil
	}
	return value.Value{}, lumenerr.Reader(lumenerr.KindReader, tok.pos, "malformed number %q", text)
}

// nextGensym produces a fresh symbol name stable within one syntax-quote
// template (spec §4.1: "inside `, sym# expands to a fresh symbol stable
// within that template"). Called from syntaxQuote; readSyntaxQuote resets
// gensymEnv per top-level syntax-quote form.
func (r *Reader) nextGensym(base string) string {
	if fresh, ok := r.gensymEnv[base]; ok {
		return fresh
	}
	n := atomic.AddUint64(r.gensymSeq, 1)
	fresh := fmt.Sprintf("%s__%d__auto__", strings.TrimSuffix(base, "#"), n)
	if r.gensymEnv == nil {
		r.gensymEnv = make(map[string]string)
	}
	r.gensymEnv[base] = fresh
	return fresh
}
