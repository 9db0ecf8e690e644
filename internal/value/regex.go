package value

import (
	"regexp"

	"github.com/lumenlang/lumen/internal/gc"
)

// regexObj backs the Regex tag: a compiled pattern, read from `#"..."`
// literals (spec §4.1). Patterns are Go-native regexp syntax; the spec
// leaves pattern-dialect details unspecified, and Go's own regexp engine
// is the only sensible backend for a Go host.
type regexObj struct {
	source string
	re     *regexp.Regexp
}

func (r *regexObj) TraceChildren(func(gc.Object)) {}
func (r *regexObj) Equal(o Value) bool {
	ro, ok := o.obj.(*regexObj)
	return ok && ro.source == r.source
}
func (r *regexObj) Hash() uint64   { return fnv1a(r.source) ^ 0x7e6e5 }
func (r *regexObj) String() string { return "#\"" + r.source + "\"" }

// NewRegex compiles pattern and allocates a Regex value.
func NewRegex(h *gc.Heap, pattern string) (Value, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Value{}, err
	}
	return WithHeaped(Regex, h.Alloc(&regexObj{source: pattern, re: re}).(*regexObj)), nil
}

// RegexPattern returns a Regex value's original source pattern.
func RegexPattern(v Value) string { return v.obj.(*regexObj).source }

// RegexCompiled returns the compiled *regexp.Regexp backing v, for the
// stdlib regex builtins (`re-find`, `re-matches`, `re-seq`).
func RegexCompiled(v Value) *regexp.Regexp { return v.obj.(*regexObj).re }
