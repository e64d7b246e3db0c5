package reverse

import (
	"fmt"

	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/typemap"
)

func (c *Converter) convertRel(node optree.RelNode) (plan.Rel, error) {
	switch n := node.(type) {
	case *optree.TableScan:
		return c.scan(n)
	case *optree.Project:
		return c.project(n)
	case *optree.Filter:
		return c.filter(n)
	case *optree.Aggregate:
		return c.aggregate(n)
	case *optree.Join:
		return c.join(n)
	case *optree.Sort:
		return c.sort(n)
	case nil:
		return nil, converr.TypeMismatch("nil relation")
	}
	return nil, converr.TypeMismatch("unsupported relation %T", node)
}

func (c *Converter) scan(n *optree.TableScan) (plan.Rel, error) {
	ts, err := typemap.FromSQLAll(n.RowType.Types())
	if err != nil {
		return nil, fmt.Errorf("table %v: %w", n.Table, err)
	}
	return &plan.NamedScan{
		Names:  append([]string(nil), n.Table...),
		Schema: plan.NamedStruct{Names: n.RowType.Names(), Types: ts},
	}, nil
}

// project emits exactly the projected expressions, after the input fields.
func (c *Converter) project(n *optree.Project) (plan.Rel, error) {
	input, err := c.convertRel(n.Input)
	if err != nil {
		return nil, err
	}
	exprs, err := c.convertExprs(n.Exprs, n.Input.Row())
	if err != nil {
		return nil, err
	}
	width := n.Input.Row().FieldCount()
	remap := make([]int, len(exprs))
	for i := range remap {
		remap[i] = width + i
	}
	return &plan.Project{Input: input, Expressions: exprs, Remap: remap}, nil
}

func (c *Converter) filter(n *optree.Filter) (plan.Rel, error) {
	input, err := c.convertRel(n.Input)
	if err != nil {
		return nil, err
	}
	cond, err := c.convertExpr(n.Condition, n.Input.Row())
	if err != nil {
		return nil, err
	}
	return &plan.Filter{Input: input, Condition: cond}, nil
}

func (c *Converter) aggregate(n *optree.Aggregate) (plan.Rel, error) {
	input, err := c.convertRel(n.Input)
	if err != nil {
		return nil, err
	}
	inRow := n.Input.Row()

	sets := n.GroupSets
	if len(sets) == 0 && len(n.GroupKeys) > 0 {
		sets = [][]int{n.GroupKeys}
	}
	agg := &plan.Aggregate{Input: input}
	if !(len(sets) == 1 && len(sets[0]) == 0) {
		for _, set := range sets {
			g := plan.Grouping{}
			for _, f := range set {
				ref, err := fieldRef(f, inRow)
				if err != nil {
					return nil, err
				}
				g.Expressions = append(g.Expressions, ref)
			}
			agg.Groupings = append(agg.Groupings, g)
		}
	}

	for _, call := range n.Calls {
		args := make([]plan.Expression, len(call.Args))
		for i, f := range call.Args {
			ref, err := fieldRef(f, inRow)
			if err != nil {
				return nil, err
			}
			args[i] = ref
		}
		key, err := c.funcs.Aggregate.ToSource(call.Op, plan.ArgTypes(args))
		if err != nil {
			return nil, err
		}
		out, err := typemap.FromSQL(call.Type)
		if err != nil {
			return nil, err
		}
		agg.Measures = append(agg.Measures, plan.Measure{Function: plan.AggregateCall{
			Key:        key,
			Args:       args,
			OutputType: out,
			Distinct:   call.Distinct,
		}})
	}

	// Plan keys come out in order of first appearance across the sets;
	// restore the tree's key order when that differs.
	keys, _ := agg.GroupingKeys()
	if remap, ok := keyOrder(keys, n.GroupKeys, len(n.Calls)); !ok {
		agg.Remap = remap
	}
	return agg, nil
}

// keyOrder returns the remap putting plan keys into group key order, and
// whether the orders already agree.
func keyOrder(keys []plan.Expression, groupKeys []int, measures int) ([]int, bool) {
	pos := make(map[int]int, len(keys))
	for i, k := range keys {
		if ref, ok := k.(*plan.FieldRef); ok {
			pos[ref.Index] = i
		}
	}
	same := len(keys) == len(groupKeys)
	remap := make([]int, 0, len(groupKeys)+measures)
	for i, f := range groupKeys {
		p, ok := pos[f]
		if !ok {
			continue
		}
		if p != i {
			same = false
		}
		remap = append(remap, p)
	}
	if same {
		return nil, true
	}
	for i := 0; i < measures; i++ {
		remap = append(remap, len(keys)+i)
	}
	return remap, false
}

func (c *Converter) join(n *optree.Join) (plan.Rel, error) {
	left, err := c.convertRel(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.convertRel(n.Right)
	if err != nil {
		return nil, err
	}
	jt, err := joinType(n.Type)
	if err != nil {
		return nil, err
	}
	both := optree.RowType{Fields: append(append([]optree.Field(nil), n.Left.Row().Fields...), n.Right.Row().Fields...)}
	cond, err := c.convertExpr(n.Condition, both)
	if err != nil {
		return nil, err
	}
	return &plan.Join{Left: left, Right: right, Condition: cond, Type: jt}, nil
}

func joinType(jt optree.JoinType) (plan.JoinType, error) {
	switch jt {
	case optree.JoinInner:
		return plan.JoinInner, nil
	case optree.JoinFull:
		return plan.JoinOuter, nil
	case optree.JoinLeft:
		return plan.JoinLeft, nil
	case optree.JoinRight:
		return plan.JoinRight, nil
	case optree.JoinSemi:
		return plan.JoinLeftSemi, nil
	case optree.JoinAnti:
		return plan.JoinLeftAnti, nil
	}
	return 0, converr.TypeMismatch("unsupported join type %s", jt)
}

// sort splits a limited sort into Fetch over Sort, or a bare Fetch when
// there is no collation. A sort that neither orders nor limits is dropped.
func (c *Converter) sort(n *optree.Sort) (plan.Rel, error) {
	input, err := c.convertRel(n.Input)
	if err != nil {
		return nil, err
	}
	limited := n.Offset != nil || n.Fetch != nil
	if !limited && len(n.Collation) == 0 {
		return input, nil
	}

	rel := input
	if len(n.Collation) > 0 {
		row := n.Input.Row()
		sorts := make([]plan.SortField, len(n.Collation))
		for i, fc := range n.Collation {
			ref, err := fieldRef(fc.Field, row)
			if err != nil {
				return nil, err
			}
			dir, err := sortDirection(fc.Direction, fc.NullDirection)
			if err != nil {
				return nil, err
			}
			sorts[i] = plan.SortField{Expr: ref, Direction: dir}
		}
		rel = &plan.Sort{Input: input, Sorts: sorts}
	}
	if !limited {
		return rel, nil
	}

	f := &plan.Fetch{Input: rel, Count: plan.CountAll}
	if n.Offset != nil {
		f.Offset = *n.Offset
	}
	if n.Fetch != nil {
		f.Count = *n.Fetch
	}
	return f, nil
}

// sortDirection maps a collation. Unspecified null placement follows the
// SQL default: nulls sort high.
func sortDirection(d optree.Direction, nulls optree.NullDirection) (plan.SortDirection, error) {
	switch d {
	case optree.Ascending:
		if nulls == optree.NullsFirst {
			return plan.AscNullsFirst, nil
		}
		return plan.AscNullsLast, nil
	case optree.Descending:
		if nulls == optree.NullsLast {
			return plan.DescNullsLast, nil
		}
		return plan.DescNullsFirst, nil
	case optree.Clustered:
		return plan.Clustered, nil
	}
	return 0, converr.TypeMismatch("unsupported sort direction %d", d)
}

func fieldRef(index int, row optree.RowType) (*plan.FieldRef, error) {
	if index < 0 || index >= row.FieldCount() {
		return nil, converr.TypeMismatch("field $%d out of range for %d fields", index, row.FieldCount())
	}
	t, err := typemap.FromSQL(row.Fields[index].Type)
	if err != nil {
		return nil, err
	}
	return &plan.FieldRef{Index: index, Type: t}, nil
}
