package forward

import (
	"fmt"

	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/typemap"
)

func (c *Converter) convertRel(rel plan.Rel) (optree.RelNode, error) {
	var (
		node optree.RelNode
		err  error
	)
	switch r := rel.(type) {
	case *plan.NamedScan:
		node, err = c.scan(r)
	case *plan.Project:
		// Project applies its own remap while choosing expressions.
		return c.project(r)
	case *plan.Filter:
		node, err = c.filter(r)
	case *plan.Aggregate:
		node, err = c.aggregate(r)
	case *plan.Join:
		node, err = c.join(r)
	case *plan.Sort:
		node, err = c.sort(r)
	case *plan.Fetch:
		node, err = c.fetch(r)
	case nil:
		return nil, converr.TypeMismatch("nil relation")
	default:
		return nil, converr.TypeMismatch("unsupported relation %T", rel)
	}
	if err != nil {
		return nil, err
	}
	return emit(node, plan.RemapOf(rel))
}

// emit applies an emit remap as a projection of input references.
func emit(node optree.RelNode, remap []int) (optree.RelNode, error) {
	if remap == nil {
		return node, nil
	}
	row := node.Row()
	exprs := make([]optree.RexNode, len(remap))
	fields := make([]optree.Field, len(remap))
	for i, idx := range remap {
		if idx < 0 || idx >= row.FieldCount() {
			return nil, converr.TypeMismatch("emit remap index %d out of range for %d fields", idx, row.FieldCount())
		}
		f := row.Fields[idx]
		exprs[i] = &optree.InputRef{Index: idx, Type: f.Type}
		fields[i] = f
	}
	return &optree.Project{Input: node, Exprs: exprs, RowType: optree.RowType{Fields: fields}}, nil
}

func (c *Converter) scan(r *plan.NamedScan) (optree.RelNode, error) {
	if len(r.Schema.Names) != len(r.Schema.Types) {
		return nil, converr.TypeMismatch("table %v: %d names for %d types", r.Names, len(r.Schema.Names), len(r.Schema.Types))
	}
	sqlTypes, err := typemap.ToSQLAll(r.Schema.Types)
	if err != nil {
		return nil, fmt.Errorf("table %v: %w", r.Names, err)
	}
	return &optree.TableScan{
		Table:   append([]string(nil), r.Names...),
		RowType: optree.NewRowType(r.Schema.Names, sqlTypes),
	}, nil
}

func (c *Converter) project(r *plan.Project) (optree.RelNode, error) {
	input, err := c.convertRel(r.Input)
	if err != nil {
		return nil, err
	}
	row := input.Row()

	// The direct output is every input field followed by the expressions.
	all := make([]optree.RexNode, 0, row.FieldCount()+len(r.Expressions))
	names := make([]string, 0, cap(all))
	for i, f := range row.Fields {
		all = append(all, &optree.InputRef{Index: i, Type: f.Type})
		names = append(names, f.Name)
	}
	for _, e := range r.Expressions {
		rex, err := c.convertExpr(e, row)
		if err != nil {
			return nil, err
		}
		all = append(all, rex)
		// A projected input field keeps its name.
		if ref, ok := rex.(*optree.InputRef); ok {
			names = append(names, row.Fields[ref.Index].Name)
		} else {
			names = append(names, "")
		}
	}

	selected := r.Remap
	if selected == nil {
		selected = identity(len(all))
	}
	exprs := make([]optree.RexNode, len(selected))
	fields := make([]optree.Field, len(selected))
	for i, idx := range selected {
		if idx < 0 || idx >= len(all) {
			return nil, converr.TypeMismatch("project remap index %d out of range for %d fields", idx, len(all))
		}
		name := names[idx]
		if name == "" {
			name = fmt.Sprintf("$f%d", i)
		}
		exprs[i] = all[idx]
		fields[i] = optree.Field{Name: name, Type: all[idx].DataType()}
	}
	return &optree.Project{Input: input, Exprs: exprs, RowType: optree.RowType{Fields: fields}}, nil
}

func (c *Converter) filter(r *plan.Filter) (optree.RelNode, error) {
	input, err := c.convertRel(r.Input)
	if err != nil {
		return nil, err
	}
	cond, err := c.convertExpr(r.Condition, input.Row())
	if err != nil {
		return nil, err
	}
	return &optree.Filter{Input: input, Condition: cond}, nil
}

func (c *Converter) aggregate(r *plan.Aggregate) (optree.RelNode, error) {
	input, err := c.convertRel(r.Input)
	if err != nil {
		return nil, err
	}
	keys, sets := r.GroupingKeys()

	// Grouping keys and measure arguments must be input fields; anything
	// else is computed by a projection below the aggregate.
	pre := newPreProjection(c, input)
	keyFields := make([]int, len(keys))
	for i, k := range keys {
		if keyFields[i], err = pre.field(k); err != nil {
			return nil, err
		}
	}
	measureArgs := make([][]int, len(r.Measures))
	for i, m := range r.Measures {
		args := make([]int, len(m.Function.Args))
		for j, a := range m.Function.Args {
			if args[j], err = pre.field(a); err != nil {
				return nil, err
			}
		}
		measureArgs[i] = args
	}
	input = pre.node()
	inRow := input.Row()

	direct := plan.DirectRecordType(r)
	outTypes, err := typemap.ToSQLAll(direct)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outTypes))
	for i, f := range keyFields {
		names[i] = inRow.Fields[f].Name
	}

	calls := make([]optree.AggregateCall, len(r.Measures))
	for i, m := range r.Measures {
		argTypes := plan.ArgTypes(m.Function.Args)
		op, err := c.funcs.Aggregate.ToTarget(m.Function.Key, argTypes)
		if err != nil {
			return nil, err
		}
		pos := len(keys) + i
		names[pos] = fmt.Sprintf("$f%d", pos)
		calls[i] = optree.AggregateCall{
			Op:       op,
			Args:     measureArgs[i],
			Distinct: m.Function.Distinct,
			Type:     outTypes[pos],
			Name:     names[pos],
		}
	}

	groupSets := make([][]int, 0, len(sets))
	for _, set := range sets {
		fields := make([]int, len(set))
		for i, k := range set {
			fields[i] = keyFields[k]
		}
		groupSets = append(groupSets, fields)
	}
	if len(groupSets) == 0 {
		groupSets = [][]int{{}}
	}

	return &optree.Aggregate{
		Input:     input,
		GroupKeys: keyFields,
		GroupSets: groupSets,
		Calls:     calls,
		RowType:   optree.NewRowType(names, outTypes),
	}, nil
}

func (c *Converter) join(r *plan.Join) (optree.RelNode, error) {
	left, err := c.convertRel(r.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.convertRel(r.Right)
	if err != nil {
		return nil, err
	}
	jt, err := joinType(r.Type)
	if err != nil {
		return nil, err
	}

	both := optree.RowType{Fields: append(append([]optree.Field(nil), left.Row().Fields...), right.Row().Fields...)}
	var cond optree.RexNode = &optree.Literal{Value: true, Type: optree.NewType(optree.TypeBoolean, false)}
	if r.Condition != nil {
		if cond, err = c.convertExpr(r.Condition, both); err != nil {
			return nil, err
		}
	}
	node := &optree.Join{
		Left:      left,
		Right:     right,
		Condition: cond,
		Type:      jt,
		RowType:   optree.JoinRowType(left.Row(), right.Row(), jt),
	}
	if r.PostJoinFilter == nil {
		return node, nil
	}

	if jt == optree.JoinSemi || jt == optree.JoinAnti {
		return nil, converr.TypeMismatch("post-join filter on a %s join has no right fields to reference", r.Type)
	}
	post, err := c.convertExpr(r.PostJoinFilter, node.Row())
	if err != nil {
		return nil, err
	}
	return &optree.Filter{Input: node, Condition: post}, nil
}

func joinType(jt plan.JoinType) (optree.JoinType, error) {
	switch jt {
	case plan.JoinInner:
		return optree.JoinInner, nil
	case plan.JoinOuter:
		return optree.JoinFull, nil
	case plan.JoinLeft:
		return optree.JoinLeft, nil
	case plan.JoinRight:
		return optree.JoinRight, nil
	case plan.JoinLeftSemi:
		return optree.JoinSemi, nil
	case plan.JoinLeftAnti:
		return optree.JoinAnti, nil
	}
	return 0, converr.TypeMismatch("unsupported join type %d", jt)
}

func (c *Converter) sort(r *plan.Sort) (optree.RelNode, error) {
	input, err := c.convertRel(r.Input)
	if err != nil {
		return nil, err
	}
	width := input.Row().FieldCount()

	pre := newPreProjection(c, input)
	collation := make([]optree.FieldCollation, len(r.Sorts))
	for i, s := range r.Sorts {
		field, err := pre.field(s.Expr)
		if err != nil {
			return nil, err
		}
		dir, nulls, err := direction(s.Direction)
		if err != nil {
			return nil, err
		}
		collation[i] = optree.FieldCollation{Field: field, Direction: dir, NullDirection: nulls}
	}

	var node optree.RelNode = &optree.Sort{Input: pre.node(), Collation: collation}
	if pre.extended() {
		// Drop the computed sort keys again.
		node, err = emit(node, identity(width))
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func direction(d plan.SortDirection) (optree.Direction, optree.NullDirection, error) {
	switch d {
	case plan.AscNullsFirst:
		return optree.Ascending, optree.NullsFirst, nil
	case plan.AscNullsLast:
		return optree.Ascending, optree.NullsLast, nil
	case plan.DescNullsFirst:
		return optree.Descending, optree.NullsFirst, nil
	case plan.DescNullsLast:
		return optree.Descending, optree.NullsLast, nil
	case plan.Clustered:
		return optree.Clustered, optree.NullsUnspecified, nil
	}
	return 0, 0, converr.TypeMismatch("unsupported sort direction %d", d)
}

// fetch flattens into the Sort below when there is one without limits;
// otherwise it becomes a Sort with no collation.
func (c *Converter) fetch(r *plan.Fetch) (optree.RelNode, error) {
	input, err := c.convertRel(r.Input)
	if err != nil {
		return nil, err
	}
	var offset, count *int64
	if r.Offset != 0 {
		v := r.Offset
		offset = &v
	}
	if r.Count != plan.CountAll {
		v := r.Count
		count = &v
	}

	if s, ok := input.(*optree.Sort); ok && s.Offset == nil && s.Fetch == nil {
		flat := *s
		flat.Offset, flat.Fetch = offset, count
		return &flat, nil
	}
	return &optree.Sort{Input: input, Offset: offset, Fetch: count}, nil
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// preProjection collects expressions that must be computed below a node
// that only accepts input field indexes.
type preProjection struct {
	conv  *Converter
	input optree.RelNode
	extra []optree.RexNode
}

func newPreProjection(c *Converter, input optree.RelNode) *preProjection {
	return &preProjection{conv: c, input: input}
}

// field returns the input field index computing e, adding a projected
// field when e is not a plain field reference.
func (p *preProjection) field(e plan.Expression) (int, error) {
	row := p.input.Row()
	if ref, ok := e.(*plan.FieldRef); ok {
		if ref.Index < 0 || ref.Index >= row.FieldCount() {
			return 0, converr.TypeMismatch("field reference $%d out of range for %d fields", ref.Index, row.FieldCount())
		}
		return ref.Index, nil
	}
	rex, err := p.conv.convertExpr(e, row)
	if err != nil {
		return 0, err
	}
	p.extra = append(p.extra, rex)
	return row.FieldCount() + len(p.extra) - 1, nil
}

func (p *preProjection) extended() bool { return len(p.extra) > 0 }

// node returns the input, wrapped in a projection when fields were added.
func (p *preProjection) node() optree.RelNode {
	if !p.extended() {
		return p.input
	}
	row := p.input.Row()
	n := row.FieldCount()
	exprs := make([]optree.RexNode, 0, n+len(p.extra))
	fields := make([]optree.Field, 0, n+len(p.extra))
	for i, f := range row.Fields {
		exprs = append(exprs, &optree.InputRef{Index: i, Type: f.Type})
		fields = append(fields, f)
	}
	for i, e := range p.extra {
		exprs = append(exprs, e)
		fields = append(fields, optree.Field{Name: fmt.Sprintf("$f%d", n+i), Type: e.DataType()})
	}
	return &optree.Project{Input: p.input, Exprs: exprs, RowType: optree.RowType{Fields: fields}}
}
