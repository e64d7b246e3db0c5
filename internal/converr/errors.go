// Package converr defines the error taxonomy shared by the plan converters
// and the function resolvers.
//
// Every conversion failure is fatal to the enclosing Convert call. Callers
// distinguish failure kinds with the Is* helpers, which see through wrapping.
package converr

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes a conversion error.
type Code string

const (
	// CodeUnresolvedFunction indicates no declaration (or no operator mapping)
	// exists for a function reference.
	CodeUnresolvedFunction Code = "UNRESOLVED_FUNCTION"

	// CodeAmbiguousFunction indicates more than one candidate matched with
	// nothing to decide between them, or a mapping was declared on both
	// lookup tables.
	CodeAmbiguousFunction Code = "AMBIGUOUS_FUNCTION"

	// CodeUnmappedSymbol indicates an operator in an expression tree has no
	// mapping back to a catalog function.
	CodeUnmappedSymbol Code = "UNMAPPED_SYMBOL"

	// CodeTypeMismatch indicates a type cannot be represented on the other
	// side, or an expression does not fit its input.
	CodeTypeMismatch Code = "TYPE_MISMATCH"
)

// Error is a structured conversion error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Key is the compound function key involved, if any ("ns#name:sig").
	Key string

	// Symbol is the operator name involved, if any.
	Symbol string

	// ArgTypes are the rendered argument types of the failing call.
	ArgTypes []string

	// Candidates lists the competing candidates for ambiguity errors.
	Candidates []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ctx []string
	if e.Key != "" {
		ctx = append(ctx, "function="+e.Key)
	}
	if e.Symbol != "" {
		ctx = append(ctx, "symbol="+e.Symbol)
	}
	if e.ArgTypes != nil {
		ctx = append(ctx, "args=("+strings.Join(e.ArgTypes, ", ")+")")
	}
	if len(e.Candidates) > 0 {
		ctx = append(ctx, "candidates=["+strings.Join(e.Candidates, ", ")+"]")
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Unresolved creates an error for a function key with no usable declaration.
func Unresolved(key string, argTypes []string, format string, args ...any) *Error {
	return &Error{
		Code:     CodeUnresolvedFunction,
		Message:  fmt.Sprintf(format, args...),
		Key:      key,
		ArgTypes: argTypes,
	}
}

// Ambiguous creates an error for a call matched by several equally ranked
// candidates.
func Ambiguous(key, symbol string, argTypes, candidates []string) *Error {
	return &Error{
		Code:       CodeAmbiguousFunction,
		Message:    fmt.Sprintf("%d candidates match equally", len(candidates)),
		Key:        key,
		Symbol:     symbol,
		ArgTypes:   argTypes,
		Candidates: candidates,
	}
}

// Unmapped creates an error for an operator with no reverse mapping.
func Unmapped(symbol string, argTypes []string) *Error {
	return &Error{
		Code:     CodeUnmappedSymbol,
		Message:  "operator has no function mapping",
		Symbol:   symbol,
		ArgTypes: argTypes,
	}
}

// TypeMismatch creates an error for an unrepresentable type or a malformed
// expression.
func TypeMismatch(format string, args ...any) *Error {
	return &Error{
		Code:    CodeTypeMismatch,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsUnresolved returns true if err is an UnresolvedFunction error.
func IsUnresolved(err error) bool {
	return CodeOf(err) == CodeUnresolvedFunction
}

// IsAmbiguous returns true if err is an AmbiguousFunction error.
func IsAmbiguous(err error) bool {
	return CodeOf(err) == CodeAmbiguousFunction
}

// IsUnmapped returns true if err is an UnmappedSymbol error.
func IsUnmapped(err error) bool {
	return CodeOf(err) == CodeUnmappedSymbol
}

// IsTypeMismatch returns true if err is a TypeMismatch error.
func IsTypeMismatch(err error) bool {
	return CodeOf(err) == CodeTypeMismatch
}
