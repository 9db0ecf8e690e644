// Package lumenerr defines the single error shape that crosses every phase
// boundary of the runtime: read, analyze, eval. See spec §6.6 and §7.
package lumenerr

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Phase identifies which stage of the pipeline raised an error.
type Phase string

const (
	PhaseRead    Phase = "read"
	PhaseAnalyze Phase = "analyze"
	PhaseEval    Phase = "eval"
)

// Kind enumerates the error kinds named in spec §6.6.
type Kind string

const (
	KindArity           Kind = "arity_error"
	KindType            Kind = "type_error"
	KindValue           Kind = "value_error"
	KindIndex           Kind = "index_error"
	KindCompile         Kind = "compile_error"
	KindReader          Kind = "reader_error"
	KindSTMRetry        Kind = "stm_retry_exhausted"
	KindInterrupted     Kind = "interrupted"
	KindUnboundVar      Kind = "unbound_var"
	KindValidationError Kind = "validation_error"
)

// Position is a source location, as produced by the reader and carried
// through the analyzer onto every AST node.
type Position struct {
	Line, Col int
	File      string
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Error is the sole error type surfaced across phase boundaries. Its Data
// field is the ex-data map of an ex-info value when one triggered it.
type Error struct {
	Phase    Phase
	Kind     Kind
	Message  string
	Position *Position
	Data     map[string]any
	cause    error
}

func (e *Error) Error() string {
	if e.Position != nil {
		return fmt.Sprintf("%s error at %s: %s", e.Phase, e.Position, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Phase, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error for errors.Is/As chaining.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithData attaches an ex-data map.
func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

func newErr(phase Phase, kind Kind, pos *Position, format string, args ...any) *Error {
	return &Error{Phase: phase, Kind: kind, Message: fmt.Sprintf(format, args...), Position: pos}
}

// Reader constructs a read-phase error bound to a source position.
func Reader(kind Kind, pos Position, format string, args ...any) *Error {
	return newErr(PhaseRead, kind, &pos, format, args...)
}

// Analyze constructs an analyze-phase error, optionally bound to a form's position.
func Analyze(kind Kind, pos *Position, format string, args ...any) *Error {
	return newErr(PhaseAnalyze, kind, pos, format, args...)
}

// Runtime constructs an eval-phase error, optionally bound to a pc's position.
func Runtime(kind Kind, pos *Position, format string, args ...any) *Error {
	return newErr(PhaseEval, kind, pos, format, args...)
}

// Aggregate collects multiple independent failures (e.g. several failed STM
// validators, or every unmatched branch of a reader conditional) into one
// *multierror.Error, preserving each *Error's own Kind/Phase/Position.
func Aggregate(errs ...error) error {
	var merr *multierror.Error
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	return merr.ErrorOrNil()
}
