package reverse

import (
	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/typemap"
)

// convertExpr converts rex evaluated over rows of type row.
func (c *Converter) convertExpr(rex optree.RexNode, row optree.RowType) (plan.Expression, error) {
	switch r := rex.(type) {
	case *optree.InputRef:
		return fieldRef(r.Index, row)

	case *optree.Literal:
		t, err := typemap.FromSQL(r.Type)
		if err != nil {
			return nil, err
		}
		return &plan.Literal{Value: r.Value, Type: t}, nil

	case *optree.Call:
		switch r.Op {
		case optree.Cast:
			return c.cast(r, row)
		case optree.Case:
			return c.caseWhen(r, row)
		}
		args, err := c.convertExprs(r.Operands, row)
		if err != nil {
			return nil, err
		}
		key, err := c.funcs.Scalar.ToSource(r.Op, plan.ArgTypes(args))
		if err != nil {
			return nil, err
		}
		out, err := typemap.FromSQL(r.Type)
		if err != nil {
			return nil, err
		}
		return &plan.ScalarCall{Key: key, Args: args, OutputType: out}, nil

	case *optree.Over:
		return c.over(r, row)

	case nil:
		return nil, converr.TypeMismatch("nil expression")
	}
	return nil, converr.TypeMismatch("unsupported expression %T", rex)
}

func (c *Converter) convertExprs(rexes []optree.RexNode, row optree.RowType) ([]plan.Expression, error) {
	out := make([]plan.Expression, len(rexes))
	for i, r := range rexes {
		e, err := c.convertExpr(r, row)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (c *Converter) cast(r *optree.Call, row optree.RowType) (plan.Expression, error) {
	if len(r.Operands) != 1 {
		return nil, converr.TypeMismatch("CAST takes one operand, got %d", len(r.Operands))
	}
	in, err := c.convertExpr(r.Operands[0], row)
	if err != nil {
		return nil, err
	}
	t, err := typemap.FromSQL(r.Type)
	if err != nil {
		return nil, err
	}
	return &plan.Cast{Input: in, Type: t}, nil
}

// caseWhen converts CASE(cond1, val1, ..., else).
func (c *Converter) caseWhen(r *optree.Call, row optree.RowType) (plan.Expression, error) {
	if len(r.Operands) < 3 || len(r.Operands)%2 == 0 {
		return nil, converr.TypeMismatch("CASE needs condition/value pairs and an else operand, got %d operands", len(r.Operands))
	}
	operands, err := c.convertExprs(r.Operands, row)
	if err != nil {
		return nil, err
	}
	out := &plan.IfThen{Else: operands[len(operands)-1]}
	for i := 0; i+1 < len(operands)-1; i += 2 {
		out.Ifs = append(out.Ifs, plan.IfClause{If: operands[i], Then: operands[i+1]})
	}
	return out, nil
}

func (c *Converter) over(r *optree.Over, row optree.RowType) (plan.Expression, error) {
	args, err := c.convertExprs(r.Operands, row)
	if err != nil {
		return nil, err
	}
	key, err := c.funcs.Window.ToSource(r.Op, plan.ArgTypes(args))
	if err != nil {
		return nil, err
	}
	out, err := typemap.FromSQL(r.Type)
	if err != nil {
		return nil, err
	}
	partitions, err := c.convertExprs(r.Window.PartitionKeys, row)
	if err != nil {
		return nil, err
	}
	var sorts []plan.SortField
	for _, k := range r.Window.OrderKeys {
		e, err := c.convertExpr(k.Expr, row)
		if err != nil {
			return nil, err
		}
		dir, err := sortDirection(k.Direction, k.NullDirection)
		if err != nil {
			return nil, err
		}
		sorts = append(sorts, plan.SortField{Expr: e, Direction: dir})
	}
	lower, err := bound(r.Window.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := bound(r.Window.Upper)
	if err != nil {
		return nil, err
	}
	return &plan.WindowCall{
		Key:        key,
		Args:       args,
		OutputType: out,
		Partitions: partitions,
		Sorts:      sorts,
		LowerBound: lower,
		UpperBound: upper,
		Rows:       r.Window.Rows,
		Distinct:   r.Distinct,
	}, nil
}

func bound(b optree.WindowBound) (plan.Bound, error) {
	switch b.Kind {
	case optree.BoundUnspecified:
		return plan.Bound{}, nil
	case optree.BoundUnboundedPreceding, optree.BoundUnboundedFollowing:
		return plan.Bound{Kind: plan.BoundUnbounded}, nil
	case optree.BoundPreceding:
		return plan.Bound{Kind: plan.BoundPreceding, Offset: b.Offset}, nil
	case optree.BoundFollowing:
		return plan.Bound{Kind: plan.BoundFollowing, Offset: b.Offset}, nil
	case optree.BoundCurrentRow:
		return plan.Bound{Kind: plan.BoundCurrentRow}, nil
	}
	return plan.Bound{}, converr.TypeMismatch("unsupported window bound kind %d", b.Kind)
}
