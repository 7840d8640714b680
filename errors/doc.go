// Package errors provides structured error types for the js-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Recoverable conditions (coercion failures, allocation failures,
// evaluation failures) are expressed as *Error values; invariant violations
// in the embedding (root-stack corruption, malformed spec tables, nil
// contexts on asserted paths) are not errors and abort instead.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindCoercion).
//		Value(v).
//		Detail("cannot coerce to int32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Coercion("int32", v)
//	err := errors.AllocationFailed(errors.PhaseRoot, 16, 8)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
