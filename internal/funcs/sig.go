// Package funcs maps catalog functions to operator symbols and back.
//
// A Sig binds an operator to a catalog function name. Resolvers hold two
// Sig tables per function class: the catalog-declared table (defaults for
// the builtin catalog) and the host-declared table passed in by the
// embedding application. Both tables are searched with the same rules; a
// function mapped on both sides is a conflict.
package funcs

import (
	"strings"

	"github.com/roach88/relbridge/internal/optree"
)

// Sig binds an operator to a catalog function name. An empty Namespace
// matches the function in every namespace.
type Sig struct {
	Operator  *optree.Operator
	Name      string
	Namespace string
}

// S binds op to the catalog function named like the operator, lower-cased.
func S(op *optree.Operator) Sig {
	return Sig{Operator: op, Name: strings.ToLower(op.Name)}
}

// NewSig binds op to the catalog function name.
func NewSig(op *optree.Operator, name string) Sig {
	return Sig{Operator: op, Name: name}
}

// InNamespace returns a copy of s restricted to namespace.
func (s Sig) InNamespace(namespace string) Sig {
	s.Namespace = namespace
	return s
}

func (s Sig) matchesFunction(namespace, name string) bool {
	return s.Name == name && (s.Namespace == "" || s.Namespace == namespace)
}

// DefaultScalarSigs maps the builtin scalar functions to standard operators.
func DefaultScalarSigs() []Sig {
	return []Sig{
		NewSig(optree.Plus, "add"),
		NewSig(optree.Minus, "subtract"),
		NewSig(optree.Multiply, "multiply"),
		NewSig(optree.Divide, "divide"),
		NewSig(optree.Mod, "modulus"),
		NewSig(optree.UnaryMinus, "negate"),
		NewSig(optree.Abs, "abs"),
		NewSig(optree.Equals, "equal"),
		NewSig(optree.NotEquals, "not_equal"),
		NewSig(optree.LessThan, "lt"),
		NewSig(optree.GreaterThan, "gt"),
		NewSig(optree.LessThanOrEqual, "lte"),
		NewSig(optree.GreaterThanOrEqual, "gte"),
		NewSig(optree.And, "and"),
		NewSig(optree.Or, "or"),
		NewSig(optree.Not, "not"),
		NewSig(optree.IsNull, "is_null"),
		NewSig(optree.IsNotNull, "is_not_null"),
		NewSig(optree.Like, "like"),
		NewSig(optree.Upper, "upper"),
		NewSig(optree.Lower, "lower"),
		NewSig(optree.Concat, "concat"),
		NewSig(optree.CharLength, "char_length"),
		NewSig(optree.Substring, "substring"),
	}
}

// DefaultAggregateSigs maps the builtin aggregate functions.
func DefaultAggregateSigs() []Sig {
	return []Sig{
		S(optree.Sum),
		S(optree.Count),
		S(optree.Min),
		S(optree.Max),
		S(optree.Avg),
	}
}

// DefaultWindowSigs maps the builtin window functions.
func DefaultWindowSigs() []Sig {
	return []Sig{
		S(optree.RowNumber),
		S(optree.Rank),
		S(optree.DenseRank),
		S(optree.Lag),
		S(optree.Lead),
	}
}
