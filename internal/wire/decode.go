package wire

import (
	"fmt"
	"unicode/utf8"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"

	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/types"
)

type decoder struct {
	funcs map[uint32]extension.Key
}

// Decode converts a Substrait plan message into a plan.
func Decode(p *pb.Plan) (*plan.Plan, error) {
	uris := make(map[uint32]string, len(p.GetExtensionUris()))
	for _, u := range p.GetExtensionUris() {
		uris[u.GetExtensionUriAnchor()] = u.GetUri()
	}
	d := &decoder{funcs: make(map[uint32]extension.Key)}
	for _, ext := range p.GetExtensions() {
		fn := ext.GetExtensionFunction()
		if fn == nil {
			continue
		}
		uri, ok := uris[fn.GetExtensionUriReference()]
		if !ok {
			return nil, fmt.Errorf("decode: function %q references unknown extension uri %d", fn.GetName(), fn.GetExtensionUriReference())
		}
		d.funcs[fn.GetFunctionAnchor()] = extension.ParseKey(uri, fn.GetName())
	}

	out := &plan.Plan{}
	for i, pr := range p.GetRelations() {
		var root plan.Root
		switch rt := pr.GetRelType().(type) {
		case *pb.PlanRel_Root:
			input, err := d.rel(rt.Root.GetInput())
			if err != nil {
				return nil, fmt.Errorf("decode relation %d: %w", i, err)
			}
			root = plan.Root{Input: input, Names: append([]string(nil), rt.Root.GetNames()...)}
		case *pb.PlanRel_Rel:
			input, err := d.rel(rt.Rel)
			if err != nil {
				return nil, fmt.Errorf("decode relation %d: %w", i, err)
			}
			root = plan.Root{Input: input}
		default:
			return nil, fmt.Errorf("decode relation %d: missing relation", i)
		}
		out.Relations = append(out.Relations, root)
	}
	return out, nil
}

func (d *decoder) key(anchor uint32) (extension.Key, error) {
	k, ok := d.funcs[anchor]
	if !ok {
		return extension.Key{}, fmt.Errorf("decode: undeclared function anchor %d", anchor)
	}
	return k, nil
}

func decodeRemap(c *pb.RelCommon) []int {
	emit := c.GetEmit()
	if emit == nil {
		return nil
	}
	out := make([]int, len(emit.GetOutputMapping()))
	for i, idx := range emit.GetOutputMapping() {
		out[i] = int(idx)
	}
	return out
}

func (d *decoder) rel(rel *pb.Rel) (plan.Rel, error) {
	switch r := rel.GetRelType().(type) {
	case *pb.Rel_Read:
		return d.read(r.Read)

	case *pb.Rel_Project:
		input, err := d.rel(r.Project.GetInput())
		if err != nil {
			return nil, err
		}
		exprs, err := d.exprs(r.Project.GetExpressions(), input.RecordType())
		if err != nil {
			return nil, err
		}
		return &plan.Project{Input: input, Expressions: exprs, Remap: decodeRemap(r.Project.GetCommon())}, nil

	case *pb.Rel_Filter:
		input, err := d.rel(r.Filter.GetInput())
		if err != nil {
			return nil, err
		}
		cond, err := d.expr(r.Filter.GetCondition(), input.RecordType())
		if err != nil {
			return nil, err
		}
		return &plan.Filter{Input: input, Condition: cond, Remap: decodeRemap(r.Filter.GetCommon())}, nil

	case *pb.Rel_Aggregate:
		return d.aggregate(r.Aggregate)

	case *pb.Rel_Join:
		return d.join(r.Join)

	case *pb.Rel_Sort:
		input, err := d.rel(r.Sort.GetInput())
		if err != nil {
			return nil, err
		}
		sorts, err := d.sorts(r.Sort.GetSorts(), input.RecordType())
		if err != nil {
			return nil, err
		}
		return &plan.Sort{Input: input, Sorts: sorts, Remap: decodeRemap(r.Sort.GetCommon())}, nil

	case *pb.Rel_Fetch:
		input, err := d.rel(r.Fetch.GetInput())
		if err != nil {
			return nil, err
		}
		f := &plan.Fetch{Input: input, Count: plan.CountAll, Remap: decodeRemap(r.Fetch.GetCommon())}
		if off, ok := r.Fetch.GetOffsetMode().(*pb.FetchRel_Offset); ok {
			f.Offset = off.Offset
		}
		if cnt, ok := r.Fetch.GetCountMode().(*pb.FetchRel_Count); ok {
			f.Count = cnt.Count
		}
		return f, nil
	}
	return nil, fmt.Errorf("decode: unsupported relation %T", rel.GetRelType())
}

func (d *decoder) read(r *pb.ReadRel) (plan.Rel, error) {
	nt := r.GetNamedTable()
	if nt == nil {
		return nil, fmt.Errorf("decode: only named table reads are supported")
	}
	schema := r.GetBaseSchema()
	ts, err := decodeTypes(schema.GetStruct().GetTypes())
	if err != nil {
		return nil, fmt.Errorf("table %v: %w", nt.GetNames(), err)
	}
	if len(ts) != len(schema.GetNames()) {
		return nil, fmt.Errorf("table %v: %d names for %d types", nt.GetNames(), len(schema.GetNames()), len(ts))
	}
	return &plan.NamedScan{
		Names:  append([]string(nil), nt.GetNames()...),
		Schema: plan.NamedStruct{Names: append([]string(nil), schema.GetNames()...), Types: ts},
		Remap:  decodeRemap(r.GetCommon()),
	}, nil
}

// aggregate accepts grouping sets written either as references into the
// shared grouping expressions or inline per grouping.
func (d *decoder) aggregate(r *pb.AggregateRel) (plan.Rel, error) {
	input, err := d.rel(r.GetInput())
	if err != nil {
		return nil, err
	}
	row := input.RecordType()
	keys, err := d.exprs(r.GetGroupingExpressions(), row)
	if err != nil {
		return nil, err
	}
	a := &plan.Aggregate{Input: input, Remap: decodeRemap(r.GetCommon())}
	for gi, g := range r.GetGroupings() {
		var grouping plan.Grouping
		if len(g.GetExpressionReferences()) > 0 {
			for _, ref := range g.GetExpressionReferences() {
				if int(ref) >= len(keys) {
					return nil, fmt.Errorf("decode: grouping %d references expression %d of %d", gi, ref, len(keys))
				}
				grouping.Expressions = append(grouping.Expressions, keys[ref])
			}
		} else {
			//nolint:staticcheck // inline grouping expressions are still produced by older writers
			inline, err := d.exprs(g.GetGroupingExpressions(), row)
			if err != nil {
				return nil, err
			}
			grouping.Expressions = inline
		}
		a.Groupings = append(a.Groupings, grouping)
	}
	for _, m := range r.GetMeasures() {
		fn := m.GetMeasure()
		k, err := d.key(fn.GetFunctionReference())
		if err != nil {
			return nil, err
		}
		args, err := d.args(fn.GetArguments(), row)
		if err != nil {
			return nil, err
		}
		out, err := decodeType(fn.GetOutputType())
		if err != nil {
			return nil, err
		}
		a.Measures = append(a.Measures, plan.Measure{Function: plan.AggregateCall{
			Key:        k,
			Args:       args,
			OutputType: out,
			Distinct:   fn.GetInvocation() == pb.AggregateFunction_AGGREGATION_INVOCATION_DISTINCT,
		}})
	}
	return a, nil
}

func (d *decoder) join(r *pb.JoinRel) (plan.Rel, error) {
	left, err := d.rel(r.GetLeft())
	if err != nil {
		return nil, err
	}
	right, err := d.rel(r.GetRight())
	if err != nil {
		return nil, err
	}
	jt, ok := joinTypesFromWire[r.GetType()]
	if !ok {
		return nil, fmt.Errorf("decode: unsupported join type %s", r.GetType())
	}
	row := append(append([]types.Type(nil), left.RecordType()...), right.RecordType()...)
	j := &plan.Join{Left: left, Right: right, Type: jt, Remap: decodeRemap(r.GetCommon())}
	if r.GetExpression() != nil {
		if j.Condition, err = d.expr(r.GetExpression(), row); err != nil {
			return nil, err
		}
	}
	if r.GetPostJoinFilter() != nil {
		if j.PostJoinFilter, err = d.expr(r.GetPostJoinFilter(), row); err != nil {
			return nil, err
		}
	}
	return j, nil
}

var joinTypesFromWire = invert(joinTypes)

var sortDirectionsFromWire = invert(sortDirections)

var failureBehaviorsFromWire = invert(failureBehaviors)

func invert[K, V comparable](m map[K]V) map[V]K {
	out := make(map[V]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func (d *decoder) sorts(fields []*pb.SortField, row []types.Type) ([]plan.SortField, error) {
	out := make([]plan.SortField, len(fields))
	for i, f := range fields {
		expr, err := d.expr(f.GetExpr(), row)
		if err != nil {
			return nil, err
		}
		dir, ok := sortDirectionsFromWire[f.GetDirection()]
		if !ok {
			return nil, fmt.Errorf("decode: unsupported sort direction %s", f.GetDirection())
		}
		out[i] = plan.SortField{Expr: expr, Direction: dir}
	}
	return out, nil
}

func (d *decoder) exprs(es []*pb.Expression, row []types.Type) ([]plan.Expression, error) {
	if len(es) == 0 {
		return nil, nil
	}
	out := make([]plan.Expression, len(es))
	for i, x := range es {
		e, err := d.expr(x, row)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (d *decoder) args(args []*pb.FunctionArgument, row []types.Type) ([]plan.Expression, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]plan.Expression, len(args))
	for i, a := range args {
		v := a.GetValue()
		if v == nil {
			return nil, fmt.Errorf("decode: argument %d is not a value", i)
		}
		e, err := d.expr(v, row)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (d *decoder) expr(x *pb.Expression, row []types.Type) (plan.Expression, error) {
	switch x := x.GetRexType().(type) {
	case *pb.Expression_Selection:
		seg := x.Selection.GetDirectReference().GetStructField()
		if seg == nil {
			return nil, fmt.Errorf("decode: only direct struct field references are supported")
		}
		idx := int(seg.GetField())
		if idx < 0 || idx >= len(row) {
			return nil, fmt.Errorf("decode: field %d out of range for %d fields", idx, len(row))
		}
		return &plan.FieldRef{Index: idx, Type: row[idx]}, nil

	case *pb.Expression_Literal_:
		return decodeLiteral(x.Literal)

	case *pb.Expression_ScalarFunction_:
		fn := x.ScalarFunction
		k, err := d.key(fn.GetFunctionReference())
		if err != nil {
			return nil, err
		}
		args, err := d.args(fn.GetArguments(), row)
		if err != nil {
			return nil, err
		}
		out, err := decodeType(fn.GetOutputType())
		if err != nil {
			return nil, err
		}
		return &plan.ScalarCall{Key: k, Args: args, OutputType: out}, nil

	case *pb.Expression_WindowFunction_:
		return d.window(x.WindowFunction, row)

	case *pb.Expression_Cast_:
		in, err := d.expr(x.Cast.GetInput(), row)
		if err != nil {
			return nil, err
		}
		t, err := decodeType(x.Cast.GetType())
		if err != nil {
			return nil, err
		}
		return &plan.Cast{Input: in, Type: t, FailureBehavior: failureBehaviorsFromWire[x.Cast.GetFailureBehavior()]}, nil

	case *pb.Expression_IfThen_:
		it := &plan.IfThen{}
		for _, c := range x.IfThen.GetIfs() {
			cond, err := d.expr(c.GetIf(), row)
			if err != nil {
				return nil, err
			}
			then, err := d.expr(c.GetThen(), row)
			if err != nil {
				return nil, err
			}
			it.Ifs = append(it.Ifs, plan.IfClause{If: cond, Then: then})
		}
		if x.IfThen.GetElse() != nil {
			otherwise, err := d.expr(x.IfThen.GetElse(), row)
			if err != nil {
				return nil, err
			}
			it.Else = otherwise
		}
		return it, nil
	}
	return nil, fmt.Errorf("decode: unsupported expression %T", x.GetRexType())
}

func (d *decoder) window(fn *pb.Expression_WindowFunction, row []types.Type) (plan.Expression, error) {
	k, err := d.key(fn.GetFunctionReference())
	if err != nil {
		return nil, err
	}
	args, err := d.args(fn.GetArguments(), row)
	if err != nil {
		return nil, err
	}
	out, err := decodeType(fn.GetOutputType())
	if err != nil {
		return nil, err
	}
	partitions, err := d.exprs(fn.GetPartitions(), row)
	if err != nil {
		return nil, err
	}
	sorts, err := d.sorts(fn.GetSorts(), row)
	if err != nil {
		return nil, err
	}
	if len(sorts) == 0 {
		sorts = nil
	}
	return &plan.WindowCall{
		Key:        k,
		Args:       args,
		OutputType: out,
		Partitions: partitions,
		Sorts:      sorts,
		LowerBound: decodeBound(fn.GetLowerBound()),
		UpperBound: decodeBound(fn.GetUpperBound()),
		Rows:       fn.GetBoundsType() == pb.Expression_WindowFunction_BOUNDS_TYPE_ROWS,
		Distinct:   fn.GetInvocation() == pb.AggregateFunction_AGGREGATION_INVOCATION_DISTINCT,
	}, nil
}

func decodeBound(b *pb.Expression_WindowFunction_Bound) plan.Bound {
	switch k := b.GetKind().(type) {
	case *pb.Expression_WindowFunction_Bound_Preceding_:
		return plan.Bound{Kind: plan.BoundPreceding, Offset: k.Preceding.GetOffset()}
	case *pb.Expression_WindowFunction_Bound_Following_:
		return plan.Bound{Kind: plan.BoundFollowing, Offset: k.Following.GetOffset()}
	case *pb.Expression_WindowFunction_Bound_CurrentRow_:
		return plan.Bound{Kind: plan.BoundCurrentRow}
	case *pb.Expression_WindowFunction_Bound_Unbounded_:
		return plan.Bound{Kind: plan.BoundUnbounded}
	}
	return plan.Bound{}
}

func decodeLiteral(l *pb.Expression_Literal) (*plan.Literal, error) {
	r := types.Creator{Nullable: l.GetNullable()}
	switch v := l.GetLiteralType().(type) {
	case *pb.Expression_Literal_Null:
		t, err := decodeType(v.Null)
		if err != nil {
			return nil, err
		}
		return &plan.Literal{Type: t}, nil
	case *pb.Expression_Literal_Boolean:
		return &plan.Literal{Value: v.Boolean, Type: r.Bool()}, nil
	case *pb.Expression_Literal_I8:
		return &plan.Literal{Value: int8(v.I8), Type: r.I8()}, nil
	case *pb.Expression_Literal_I16:
		return &plan.Literal{Value: int16(v.I16), Type: r.I16()}, nil
	case *pb.Expression_Literal_I32:
		return &plan.Literal{Value: v.I32, Type: r.I32()}, nil
	case *pb.Expression_Literal_I64:
		return &plan.Literal{Value: v.I64, Type: r.I64()}, nil
	case *pb.Expression_Literal_Fp32:
		return &plan.Literal{Value: v.Fp32, Type: r.FP32()}, nil
	case *pb.Expression_Literal_Fp64:
		return &plan.Literal{Value: v.Fp64, Type: r.FP64()}, nil
	case *pb.Expression_Literal_String_:
		return &plan.Literal{Value: v.String_, Type: r.Str()}, nil
	case *pb.Expression_Literal_VarChar_:
		return &plan.Literal{Value: v.VarChar.GetValue(), Type: r.VarChar(int32(v.VarChar.GetLength()))}, nil
	case *pb.Expression_Literal_FixedChar:
		return &plan.Literal{Value: v.FixedChar, Type: r.FixedChar(int32(utf8.RuneCountInString(v.FixedChar)))}, nil
	case *pb.Expression_Literal_Binary:
		return &plan.Literal{Value: v.Binary, Type: r.Binary()}, nil
	case *pb.Expression_Literal_FixedBinary:
		return &plan.Literal{Value: v.FixedBinary, Type: r.FixedBinary(int32(len(v.FixedBinary)))}, nil
	case *pb.Expression_Literal_Date:
		return &plan.Literal{Value: v.Date, Type: r.Date()}, nil
	case *pb.Expression_Literal_Time:
		return &plan.Literal{Value: v.Time, Type: r.Time()}, nil
	case *pb.Expression_Literal_Timestamp:
		return &plan.Literal{Value: v.Timestamp, Type: r.Timestamp()}, nil
	case *pb.Expression_Literal_TimestampTz:
		return &plan.Literal{Value: v.TimestampTz, Type: r.TimestampTZ()}, nil
	}
	return nil, fmt.Errorf("decode: unsupported literal %T", l.GetLiteralType())
}
