package forward

import (
	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/typemap"
)

// convertExpr converts e evaluated over rows of type row.
func (c *Converter) convertExpr(e plan.Expression, row optree.RowType) (optree.RexNode, error) {
	switch e := e.(type) {
	case *plan.FieldRef:
		if e.Index < 0 || e.Index >= row.FieldCount() {
			return nil, converr.TypeMismatch("field reference $%d out of range for %d fields", e.Index, row.FieldCount())
		}
		return &optree.InputRef{Index: e.Index, Type: row.Fields[e.Index].Type}, nil

	case *plan.Literal:
		t, err := typemap.ToSQL(e.Type)
		if err != nil {
			return nil, err
		}
		return &optree.Literal{Value: e.Value, Type: t}, nil

	case *plan.ScalarCall:
		operands, err := c.convertExprs(e.Args, row)
		if err != nil {
			return nil, err
		}
		op, err := c.funcs.Scalar.ToTarget(e.Key, plan.ArgTypes(e.Args))
		if err != nil {
			return nil, err
		}
		t, err := typemap.ToSQL(e.OutputType)
		if err != nil {
			return nil, err
		}
		return &optree.Call{Op: op, Operands: operands, Type: t}, nil

	case *plan.Cast:
		in, err := c.convertExpr(e.Input, row)
		if err != nil {
			return nil, err
		}
		t, err := typemap.ToSQL(e.Type)
		if err != nil {
			return nil, err
		}
		return &optree.Call{Op: optree.Cast, Operands: []optree.RexNode{in}, Type: t}, nil

	case *plan.IfThen:
		return c.ifThen(e, row)

	case *plan.WindowCall:
		return c.window(e, row)

	case nil:
		return nil, converr.TypeMismatch("nil expression")
	}
	return nil, converr.TypeMismatch("unsupported expression %T", e)
}

func (c *Converter) convertExprs(es []plan.Expression, row optree.RowType) ([]optree.RexNode, error) {
	out := make([]optree.RexNode, len(es))
	for i, e := range es {
		rex, err := c.convertExpr(e, row)
		if err != nil {
			return nil, err
		}
		out[i] = rex
	}
	return out, nil
}

// ifThen builds CASE(cond1, val1, ..., else). A missing else branch is a
// typed null.
func (c *Converter) ifThen(e *plan.IfThen, row optree.RowType) (optree.RexNode, error) {
	if len(e.Ifs) == 0 {
		return nil, converr.TypeMismatch("if-then without clauses")
	}
	t, err := typemap.ToSQL(e.ResultType())
	if err != nil {
		return nil, err
	}
	operands := make([]optree.RexNode, 0, 2*len(e.Ifs)+1)
	for _, clause := range e.Ifs {
		cond, err := c.convertExpr(clause.If, row)
		if err != nil {
			return nil, err
		}
		then, err := c.convertExpr(clause.Then, row)
		if err != nil {
			return nil, err
		}
		operands = append(operands, cond, then)
	}
	if e.Else != nil {
		otherwise, err := c.convertExpr(e.Else, row)
		if err != nil {
			return nil, err
		}
		operands = append(operands, otherwise)
	} else {
		operands = append(operands, &optree.Literal{Type: t.WithNullable(true)})
	}
	return &optree.Call{Op: optree.Case, Operands: operands, Type: t}, nil
}

func (c *Converter) window(e *plan.WindowCall, row optree.RowType) (optree.RexNode, error) {
	operands, err := c.convertExprs(e.Args, row)
	if err != nil {
		return nil, err
	}
	op, err := c.funcs.Window.ToTarget(e.Key, plan.ArgTypes(e.Args))
	if err != nil {
		return nil, err
	}
	t, err := typemap.ToSQL(e.OutputType)
	if err != nil {
		return nil, err
	}
	partitions, err := c.convertExprs(e.Partitions, row)
	if err != nil {
		return nil, err
	}
	orderKeys := make([]optree.RexFieldCollation, len(e.Sorts))
	for i, s := range e.Sorts {
		expr, err := c.convertExpr(s.Expr, row)
		if err != nil {
			return nil, err
		}
		dir, nulls, err := direction(s.Direction)
		if err != nil {
			return nil, err
		}
		orderKeys[i] = optree.RexFieldCollation{Expr: expr, Direction: dir, NullDirection: nulls}
	}
	lower, err := bound(e.LowerBound, true)
	if err != nil {
		return nil, err
	}
	upper, err := bound(e.UpperBound, false)
	if err != nil {
		return nil, err
	}
	return &optree.Over{
		Op:       op,
		Operands: operands,
		Type:     t,
		Window: optree.Window{
			PartitionKeys: partitions,
			OrderKeys:     orderKeys,
			Lower:         lower,
			Upper:         upper,
			Rows:          e.Rows,
		},
		Distinct: e.Distinct,
	}, nil
}

// bound maps a frame bound. Unbounded means UNBOUNDED PRECEDING on the
// lower end and UNBOUNDED FOLLOWING on the upper end.
func bound(b plan.Bound, lower bool) (optree.WindowBound, error) {
	switch b.Kind {
	case plan.BoundUnspecified:
		return optree.WindowBound{}, nil
	case plan.BoundPreceding:
		return optree.WindowBound{Kind: optree.BoundPreceding, Offset: b.Offset}, nil
	case plan.BoundFollowing:
		return optree.WindowBound{Kind: optree.BoundFollowing, Offset: b.Offset}, nil
	case plan.BoundCurrentRow:
		return optree.WindowBound{Kind: optree.BoundCurrentRow}, nil
	case plan.BoundUnbounded:
		if lower {
			return optree.WindowBound{Kind: optree.BoundUnboundedPreceding}, nil
		}
		return optree.WindowBound{Kind: optree.BoundUnboundedFollowing}, nil
	}
	return optree.WindowBound{}, converr.TypeMismatch("unsupported window bound kind %d", b.Kind)
}
