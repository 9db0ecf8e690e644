package reader

import (
	"io"
	"testing"

	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/stretchr/testify/require"
)

func newReader(t *testing.T, src string) *Reader {
	t.Helper()
	h := gc.New(1<<20, nil)
	kw := value.NewKeywordIntern(h)
	return New(src, "test.lum", h, kw, NewMetaTable(), NewTagTable())
}

func readOne(t *testing.T, src string) value.Value {
	t.Helper()
	r := newReader(t, src)
	v, err := r.Read()
	require.NoError(t, err)
	return v
}

func TestReadScalars(t *testing.T) {
	require.Equal(t, int64(42), readOne(t, "42").AsInt())
	require.Equal(t, int64(-7), readOne(t, "-7").AsInt())
	require.InDelta(t, 3.5, readOne(t, "3.5").AsFloat(), 0.0001)
	require.True(t, readOne(t, "true").Truthy())
	require.False(t, readOne(t, "false").Truthy())
	require.Equal(t, value.Nil, readOne(t, "nil").Tag())
	require.Equal(t, "hello\n", value.StringVal(readOne(t, `"hello\n"`)))
}

func TestReadSymbolAndKeyword(t *testing.T) {
	sym := readOne(t, "foo/bar")
	ns, name := value.SymbolParts(sym)
	require.Equal(t, "foo", ns)
	require.Equal(t, "bar", name)

	kw := readOne(t, ":kw")
	require.Equal(t, value.Keyword, kw.Tag())
}

func TestReadListVectorMapSet(t *testing.T) {
	l := readOne(t, "(1 2 3)")
	require.Equal(t, value.List, l.Tag())
	require.Equal(t, []int64{1, 2, 3}, intsOf(t, l))

	v := readOne(t, "[1 2 3]")
	require.Equal(t, value.Vector, v.Tag())

	m := readOne(t, "{:a 1 :b 2}")
	require.Equal(t, value.ArrayMap, m.Tag())
	require.Len(t, collections.ToSlice(m), 2)

	s := readOne(t, "#{1 2 3}")
	require.Equal(t, value.Set, s.Tag())
	require.True(t, collections.SetContains(s, value.NewInt(2)))
}

func intsOf(t *testing.T, v value.Value) []int64 {
	t.Helper()
	var out []int64
	for _, it := range collections.ToSlice(v) {
		out = append(out, it.AsInt())
	}
	return out
}

func TestReadQuoteExpandsToQuoteForm(t *testing.T) {
	v := readOne(t, "'x")
	items := collections.ToSlice(v)
	require.Len(t, items, 2)
	_, name := value.SymbolParts(items[0])
	require.Equal(t, "quote", name)
}

func TestReadDiscardSkipsForm(t *testing.T) {
	r := newReader(t, "#_1 2")
	v, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, int64(2), v.AsInt())
}

func TestReadMultipleForms(t *testing.T) {
	r := newReader(t, "1 2 3")
	forms, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, forms, 3)
}

func TestReadEOF(t *testing.T) {
	r := newReader(t, "   ")
	_, err := r.Read()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadAnonymousFnLiteral(t *testing.T) {
	v := readOne(t, "#(+ % %2)")
	items := collections.ToSlice(v)
	require.Len(t, items, 3)
	_, name := value.SymbolParts(items[0])
	require.Equal(t, "fn*", name)
	params := collections.ToSlice(items[1])
	require.Len(t, params, 2)
}

func TestReadMetadataShorthand(t *testing.T) {
	r := newReader(t, "^:dynamic x")
	v, err := r.Read()
	require.NoError(t, err)
	meta := r.meta.Get(v)
	dynKw := r.keywords.Intern("", "dynamic")
	got, ok := collections.Get(meta, dynKw)
	require.True(t, ok)
	require.True(t, got.Truthy())
}

func TestSyntaxQuoteGensymStableWithinTemplate(t *testing.T) {
	v := readOne(t, "`(x# x#)")
	items := collections.ToSlice(v)
	// (seq (concat (list (quote sym)) (list (quote sym))))
	require.Equal(t, "seq", symName(v))
	concatForm := items[1]
	parts := collections.ToSlice(concatForm)
	require.Equal(t, "concat", symName(concatForm))
	first := extractQuotedSymName(t, parts[1])
	second := extractQuotedSymName(t, parts[2])
	require.Equal(t, first, second, "x# must expand to the same gensym within one template")
}

func symName(v value.Value) string {
	items := collections.ToSlice(v)
	if len(items) == 0 {
		return ""
	}
	_, name := value.SymbolParts(items[0])
	return name
}

func extractQuotedSymName(t *testing.T, listForm value.Value) string {
	t.Helper()
	// listForm == (list (quote sym))
	items := collections.ToSlice(listForm)
	require.Equal(t, "list", symName(listForm))
	quoteForm := items[1]
	qitems := collections.ToSlice(quoteForm)
	_, name := value.SymbolParts(qitems[1])
	return name
}

func TestTaggedLiteralUUIDRoundTrips(t *testing.T) {
	v := readOne(t, `#uuid "6ba7b810-9dad-11d1-80b4-00c04fd430c8"`)
	require.Equal(t, value.String, v.Tag())
}

func TestTaggedLiteralUnknownTagErrors(t *testing.T) {
	r := newReader(t, "#unknown-tag 1")
	_, err := r.Read()
	require.Error(t, err)
}
