package vm

import (
	"errors"
	"strings"

	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
)

// thrownSignal carries a Lisp value up the Go call stack while an
// exception is in flight (spec §9 "Exceptions as values vs host
// throws"): every frame boundary gets one chance to catch it via its own
// push_handler table before it becomes an ordinary Go error surfaced to
// whatever called into the VM.
type thrownSignal struct{ val value.Value }

func (t *thrownSignal) Error() string { return "uncaught exception: " + t.val.String() }

var kwMessage, kwKind = ":message", ":kind"

// errorToValue turns a Go error into the ex-info-shaped exception map
// described in spec §6.6: {:message ... :kind ...}. A *lumenerr.Error's
// Kind becomes the :kind keyword verbatim; any other error kind's
// :kind is :error.
func (vm *VM) errorToValue(err error) value.Value {
	var le *lumenerr.Error
	msg := err.Error()
	kind := "error"
	if errors.As(err, &le) {
		msg = le.Message
		kind = string(le.Kind)
	}
	m := collections.EmptyHashMap()
	m = collections.Assoc(vm.heap, m, vm.keyword(kwMessage), value.NewString(vm.heap, msg))
	m = collections.Assoc(vm.heap, m, vm.keyword(kwKind), vm.keyword(":"+kind))
	return m
}

// toThrown normalizes any error raised while running bytecode into a
// thrownSignal; errors already in flight (propagating out of a nested
// call) pass through unchanged so the exception value itself, not a
// re-wrapped description of it, is what a catch clause sees.
func (vm *VM) toThrown(err error) *thrownSignal {
	var t *thrownSignal
	if errors.As(err, &t) {
		return t
	}
	return &thrownSignal{val: vm.errorToValue(err)}
}

// exceptionMatchesClass implements dispatch.VTable.ExceptionMatchesClass
// (spec §9): "Throwable"/"Exception" are universal catch-all class
// names; otherwise an exception map's :kind keyword is compared against
// className, both directly and camel-cased (type_error -> TypeError),
// since user code names classes the Java/Clojure way while lumenerr
// kinds are written as the reader's own snake_case tokens.
func (vm *VM) exceptionMatchesClass(thrown value.Value, className string) bool {
	if className == "" || className == "Throwable" || className == "Exception" {
		return true
	}
	if thrown.Tag() != value.HashMap && thrown.Tag() != value.ArrayMap {
		return false
	}
	kv, ok := collections.Get(thrown, vm.keyword(kwKind))
	if !ok || kv.Tag() != value.Keyword {
		return false
	}
	_, name := value.KeywordParts(kv)
	if strings.EqualFold(name, className) {
		return true
	}
	return strings.EqualFold(camelCase(name), className)
}

// tryHandle searches fr's handler stack from innermost (top) to outermost
// for one matching thrown, per spec §4.3 "exception frames": a catch-all
// (classConst < 0, from a finally's own protecting handler) always
// matches; a named catch matches via exceptionMatchesClass.
func (vm *VM) tryHandle(fr *Frame, thrown value.Value) (int, bool) {
	for i := len(fr.handlers) - 1; i >= 0; i-- {
		h := fr.handlers[i]
		if h.classConst < 0 {
			return i, true
		}
		className := value.StringVal(fr.unit.Consts[h.classConst])
		if vm.exceptionMatchesClass(thrown, className) {
			return i, true
		}
	}
	return -1, false
}

// unwind is the single call used at every exception-raising site inside
// runFrame: err is normalized to a thrownSignal, then matched against fr's
// own handler stack. A match truncates the operand stack back to the
// handler's registration depth, pushes the thrown value (the catch body's
// bound local is stored off it by the very next store_local), repositions
// pc at the catch/finally entry, and reports handled=true so the caller
// resumes its dispatch loop instead of returning. No match propagates werr
// (still carrying the original thrownSignal) to whatever call site is
// waiting on this frame.
//
// A successful match truncates fr.handlers down to (and including
// removing) the matched entry, which also drops any sibling catch/finally
// handlers of the same try registered below it in the stack — so a catch
// body that itself throws a value matching one of its own try's sibling
// catches is erroneously re-caught by that sibling rather than propagating
// past the whole try, a known simplification (see DESIGN.md).
func (vm *VM) unwind(fr *Frame, err error) (handled bool, werr error) {
	t := vm.toThrown(err)
	idx, ok := vm.tryHandle(fr, t.val)
	if !ok {
		return false, t
	}
	h := fr.handlers[idx]
	fr.handlers = fr.handlers[:idx]
	if h.sp > len(fr.stack) {
		h.sp = len(fr.stack)
	}
	fr.stack = fr.stack[:h.sp]
	fr.push(t.val)
	fr.pc = h.targetPC
	return true, nil
}

func camelCase(snake string) string {
	parts := strings.Split(snake, "_")
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}
