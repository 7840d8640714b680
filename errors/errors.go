package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInit        Phase = "init"        // process-wide engine setup
	PhaseContext     Phase = "context"     // context creation/destruction
	PhaseRoot        Phase = "root"        // root-list registration
	PhaseCompartment Phase = "compartment" // compartment entry/exit
	PhaseConvert     Phase = "convert"     // value coercion
	PhaseCompile     Phase = "compile"     // script compilation options
	PhaseEval        Phase = "eval"        // script evaluation
	PhaseAlloc       Phase = "alloc"       // guest memory allocation
	PhaseHost        Phase = "host"        // host callback registration
	PhaseLoad        Phase = "load"        // engine module loading
)

// Kind categorizes the error
type Kind string

const (
	KindCoercion         Kind = "coercion_failed"
	KindPendingException Kind = "pending_exception"
	KindAllocation       Kind = "allocation"
	KindNotInitialized   Kind = "not_initialized"
	KindInvalidInput     Kind = "invalid_input"
	KindEngineTrap       Kind = "engine_trap"
	KindNotFound         Kind = "not_found"
	KindDestroyed        Kind = "destroyed"
	KindEvalFailed       Kind = "eval_failed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Value != nil {
		fmt.Fprintf(&b, " (value: %v)", e.Value)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Coercion creates a conversion failure error for the named target type.
func Coercion(target string, v any) *Error {
	return &Error{
		Phase:  PhaseConvert,
		Kind:   KindCoercion,
		Value:  v,
		Detail: fmt.Sprintf("cannot coerce to %s", target),
	}
}

// PendingException signals that user script raised during a coercion.
func PendingException(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPendingException,
		Detail: detail,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: what + " not initialized",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: what + " not found",
	}
}

// Destroyed creates a use-after-destroy error
func Destroyed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDestroyed,
		Detail: what + " already destroyed",
	}
}

// Eval creates an evaluation failure. The contract deliberately carries no
// error payload; pending-exception inspection is a separate concern.
func Eval(filename string, line uint32) *Error {
	return &Error{
		Phase:  PhaseEval,
		Kind:   KindEvalFailed,
		Detail: fmt.Sprintf("evaluation failed at %s:%d", filename, line),
	}
}

// Wrap wraps an underlying error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Cause:  cause,
		Detail: detail,
	}
}
