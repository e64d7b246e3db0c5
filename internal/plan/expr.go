package plan

import (
	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/types"
)

// Expression is a scalar expression evaluated per row.
//
// This is a sealed interface; only types in this package implement it.
type Expression interface {
	expression()

	// ResultType returns the type the expression evaluates to.
	ResultType() types.Type
}

// FieldRef references field Index of the input record.
type FieldRef struct {
	Index int
	Type  types.Type
}

// Literal is a constant. A nil Value is a typed null.
//
// Values use the Go type of their kind: bool, int8, int16, int32, int64,
// float32, float64, string for character kinds, []byte for binary kinds,
// int32 days for date and int64 microseconds for time and timestamps.
type Literal struct {
	Value any
	Type  types.Type
}

// ScalarCall invokes a scalar catalog function.
type ScalarCall struct {
	Key        extension.Key
	Args       []Expression
	OutputType types.Type
}

// BoundKind is the kind of a window frame bound.
type BoundKind int

const (
	BoundUnspecified BoundKind = iota
	BoundPreceding
	BoundFollowing
	BoundCurrentRow
	BoundUnbounded
)

// Bound is one end of a window frame.
type Bound struct {
	Kind   BoundKind
	Offset int64
}

// WindowCall invokes a window (or aggregate) catalog function over a
// window of rows.
type WindowCall struct {
	Key        extension.Key
	Args       []Expression
	OutputType types.Type
	Partitions []Expression
	Sorts      []SortField
	LowerBound Bound
	UpperBound Bound
	Rows       bool // ROWS framing; RANGE otherwise
	Distinct   bool
}

// FailureBehavior is what a cast does with an unconvertible value.
type FailureBehavior int

const (
	FailureUnspecified FailureBehavior = iota
	FailureReturnNull
	FailureThrow
)

// Cast converts Input to Type.
type Cast struct {
	Input           Expression
	Type            types.Type
	FailureBehavior FailureBehavior
}

// IfClause is one branch of an IfThen.
type IfClause struct {
	If   Expression
	Then Expression
}

// IfThen evaluates to the Then of the first true If, else Else.
type IfThen struct {
	Ifs  []IfClause
	Else Expression
}

// AggregateCall invokes an aggregate catalog function.
type AggregateCall struct {
	Key        extension.Key
	Args       []Expression
	OutputType types.Type
	Distinct   bool
}

func (*FieldRef) expression()   {}
func (*Literal) expression()    {}
func (*ScalarCall) expression() {}
func (*WindowCall) expression() {}
func (*Cast) expression()       {}
func (*IfThen) expression()     {}

func (f *FieldRef) ResultType() types.Type   { return f.Type }
func (l *Literal) ResultType() types.Type    { return l.Type }
func (c *ScalarCall) ResultType() types.Type { return c.OutputType }
func (w *WindowCall) ResultType() types.Type { return w.OutputType }
func (c *Cast) ResultType() types.Type       { return c.Type }

func (i *IfThen) ResultType() types.Type {
	if len(i.Ifs) > 0 {
		return i.Ifs[0].Then.ResultType()
	}
	if i.Else != nil {
		return i.Else.ResultType()
	}
	return types.Type{}
}

// ArgTypes returns the result types of a list of expressions.
func ArgTypes(args []Expression) []types.Type {
	out := make([]types.Type, len(args))
	for i, a := range args {
		out[i] = a.ResultType()
	}
	return out
}
